package domain

import "strings"

// RawDocument is the content of a working copy handed to a normaliser
// or extractor.
type RawDocument struct {
	// FileID links to the upload that produced this document.
	FileID string

	// Name is the original file name.
	Name string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// MediaKind groups MIME types by how they are extracted.
type MediaKind string

// Media kinds.
const (
	MediaText     MediaKind = "text"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaImage    MediaKind = "image"
	MediaUnknown  MediaKind = "unknown"
)

// KindOfMIME classifies a MIME type.
func KindOfMIME(mimeType string) MediaKind {
	switch {
	case mimeType == "text/plain" || mimeType == "text/html" || mimeType == "text/markdown":
		return MediaText
	case mimeType == "application/pdf" ||
		mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return MediaDocument
	case strings.HasPrefix(mimeType, "audio/"):
		return MediaAudio
	case strings.HasPrefix(mimeType, "video/"):
		return MediaVideo
	case strings.HasPrefix(mimeType, "image/"):
		return MediaImage
	default:
		return MediaUnknown
	}
}
