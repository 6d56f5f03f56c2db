package shared

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMimeType is used when neither the source, the file name nor the content identify an item.
const DefaultMimeType = "image/jpeg"

var extensionMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".dng":  "image/x-adobe-dng",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
}

// MimeTypeFromName infers a MIME type from the file extension, or "" when unknown.
func MimeTypeFromName(name string) string {
	return extensionMimeTypes[strings.ToLower(filepath.Ext(name))]
}

// ResolveMimeType picks the MIME type for an upload.
//
// Order: the type the source reported, the file extension, the content itself, then [DefaultMimeType].
func ResolveMimeType(reported, name string, data []byte) string {
	if reported = strings.TrimSpace(reported); reported != "" && reported != "application/octet-stream" {
		return reported
	}
	if mt := MimeTypeFromName(name); mt != "" {
		return mt
	}
	if len(data) > 0 {
		if detected := mimetype.Detect(data); !detected.Is("application/octet-stream") && !detected.Is("text/plain") {
			return detected.String()
		}
	}
	return DefaultMimeType
}
