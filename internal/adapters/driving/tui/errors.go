package tui

import "errors"

// ErrMissingIngestionService is returned when the ingestion service is not provided.
var ErrMissingIngestionService = errors.New("tui: ingestion service is required")
