// Package mcp provides an MCP (Model Context Protocol) server adapter for
// clinitrace. It lets AI assistants browse the medical timeline and the
// medication ledger, queue uploads and review narrative notes.
package mcp

import "errors"

// ErrMissingTimelineService is returned when the timeline service is not provided.
var ErrMissingTimelineService = errors.New("mcp: timeline service is required")

// errNotConfigured is returned by tools whose service was not wired.
var errNotConfigured = errors.New("mcp: service not configured")
