package form

import (
	"mime"
	"path/filepath"
	"strings"
)

const fallbackMimeType = "application/octet-stream"

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// DetectMimeType keeps a concrete declared type and otherwise guesses one
// from the filename extension.
func DetectMimeType(declared, filename string) string {
	if declared != "" {
		mediaType, _, err := mime.ParseMediaType(declared)
		if err == nil && mediaType != fallbackMimeType {
			return mediaType
		}
	}

	if t, ok := imageTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}

	return fallbackMimeType
}
