package extract

import (
	"path"
	"strings"
)

// DefaultMimeType is returned for paths with no known type.
const DefaultMimeType = "application/octet-stream"

// mimeTypes maps lower-cased file extensions to MIME types. It is the only
// source consulted, so cached types do not vary with the host's mime.types.
var mimeTypes = map[string]string{
	// Documents
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",
	".txt":      "text/plain",
	".rst":      "text/x-rst",
	".adoc":     "text/asciidoc",
	".org":      "text/org",
	".pdf":      "application/pdf",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",

	// Web
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".mjs":  "text/javascript",
	".ts":   "text/typescript",

	// Data
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".toml": "application/toml",
	".xml":  "application/xml",

	// Images
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/vnd.microsoft.icon",
	".bmp":  "image/bmp",
	".avif": "image/avif",

	// Audio/video
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".webm": "video/webm",

	// Archives
	".zip": "application/zip",
	".gz":  "application/gzip",
	".tar": "application/x-tar",

	// Source
	".go":   "text/x-go",
	".py":   "text/x-python",
	".rs":   "text/x-rust",
	".sh":   "application/x-sh",
	".sql":  "application/sql",
	".c":    "text/x-c",
	".h":    "text/x-c",
	".java": "text/x-java",
}

// specialFilenames maps extensionless well-known names to MIME types.
var specialFilenames = map[string]string{
	"README":     "text/plain",
	"LICENSE":    "text/plain",
	"CHANGELOG":  "text/plain",
	"Dockerfile": "text/x-dockerfile",
	"Makefile":   "text/x-makefile",
}

// MimeType guesses a MIME type from a repository path. Paths always use
// forward slashes regardless of platform.
func MimeType(p string) string {
	base := path.Base(p)
	if mime, ok := specialFilenames[base]; ok {
		return mime
	}

	ext := strings.ToLower(path.Ext(base))
	if ext != "" {
		if mime, ok := mimeTypes[ext]; ok {
			return mime
		}
	}
	return DefaultMimeType
}
