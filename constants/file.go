package constants

import "strings"

// AllowedExtensions holds the default allowed file extensions for document ingestion.
// JSON files carry pre-extracted fields; TXT files carry raw text for LLM extraction.
var AllowedExtensions = map[string]struct{}{
	"json": {},
	"txt":  {},
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedExt reports whether a normalized extension is ingestible.
func AllowedExt(ext string) bool {
	_, ok := AllowedExtensions[ext]
	return ok
}
