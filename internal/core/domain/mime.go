package domain

import (
	"mime"
	"path/filepath"
	"strings"
)

// extensionTypes lists the accepted uploads by extension. Go's mime table
// is platform dependent, so the types the pipeline routes on are pinned.
var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".webp":     "image/webp",
	".heic":     "image/heic",
	".mp3":      "audio/mpeg",
	".wav":      "audio/wav",
	".m4a":      "audio/mp4",
	".ogg":      "audio/ogg",
	".flac":     "audio/flac",
	".mp4":      "video/mp4",
	".mov":      "video/quicktime",
	".avi":      "video/avi",
	".webm":     "video/webm",
}

// DetectMIMEType returns the content type for a file name, without
// parameters. Unknown extensions yield application/octet-stream.
func DetectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return "application/octet-stream"
}
