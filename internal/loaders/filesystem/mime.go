package filesystem

import (
	"mime"
	"path/filepath"
	"strings"
)

// detectMIMEType determines a file's content type from its extension.
// Falls back to the platform mime database, then to octet-stream.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}

	// Extensions the platform database misses or gets wrong.
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	case ".go":
		return "text/x-go"
	case ".py":
		return "text/x-python"
	case ".rs":
		return "text/x-rust"
	case ".ts":
		return "text/typescript"
	case ".tsx":
		return "text/typescript-jsx"
	case ".jsx":
		return "text/javascript-jsx"
	case ".yaml", ".yml":
		return "text/yaml"
	case ".toml":
		return "text/toml"
	case ".sh", ".bash":
		return "text/x-shellscript"
	case ".sql":
		return "text/x-sql"
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		// Strip parameters such as charset.
		if idx := strings.Index(mimeType, ";"); idx != -1 {
			mimeType = mimeType[:idx]
		}
		return strings.TrimSpace(mimeType)
	}

	return "application/octet-stream"
}
