package processor

import (
	"mime"
	"path"
	"strings"
)

// SanitizeFilename turns an object key into a flat local file name.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" || s == "." {
		return "video"
	}
	return s
}

// VideoID is the object's base name without its extension. Status records
// are keyed by it.
func VideoID(objectName string) string {
	base := path.Base(strings.TrimSpace(objectName))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// ContentTypeFor returns the MIME type for an object name, defaulting to
// video/mp4.
func ContentTypeFor(objectName string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(objectName))); ct != "" {
		return ct
	}
	return "video/mp4"
}
