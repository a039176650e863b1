package static

import "strings"

// DefaultMimeType is served for files whose extension is not in the table.
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".txt":  "text/plain",
}

// MimeType returns the content type for path based on the text after its last
// dot. Matching is case-sensitive.
func MimeType(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx == -1 {
		return DefaultMimeType
	}
	if mt, ok := mimeTypes[path[idx:]]; ok {
		return mt
	}
	return DefaultMimeType
}
