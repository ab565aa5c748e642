package document

import (
	"mime"
	"path"
	"strings"
)

// Media types recognized by acquisition.
const (
	MediaPDF     = "application/pdf"
	MediaTIFF    = "image/tiff"
	MediaPNG     = "image/png"
	MediaJPEG    = "image/jpeg"
	MediaGIF     = "image/gif"
	MediaBMP     = "image/bmp"
	MediaWebP    = "image/webp"
	MediaJSON    = "application/json"
	MediaXML     = "application/xml"
	MediaRTF     = "application/rtf"
	MediaHTML    = "text/html"
	MediaPlain   = "text/plain"
	MediaUnknown = "application/octet-stream"
)

var extensions = map[string]string{
	".pdf":  MediaPDF,
	".tif":  MediaTIFF,
	".tiff": MediaTIFF,
	".png":  MediaPNG,
	".jpg":  MediaJPEG,
	".jpeg": MediaJPEG,
	".gif":  MediaGIF,
	".bmp":  MediaBMP,
	".webp": MediaWebP,
	".txt":  MediaPlain,
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": MediaJSON,
	".xml":  MediaXML,
	".rtf":  MediaRTF,
	".html": MediaHTML,
	".htm":  MediaHTML,
}

// IsImage reports whether mediaType names a raster image.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

// DetectMediaType returns the normalized media type for key. A declared type
// wins unless it is empty or generic binary; otherwise the extension decides.
// Returns MediaUnknown when neither signal is usable.
func DetectMediaType(key, declared string) string {
	if mt := normalize(declared); mt != "" && mt != MediaUnknown {
		return mt
	}

	ext := strings.ToLower(path.Ext(key))
	if mt, ok := extensions[ext]; ok {
		return mt
	}
	if mt := normalize(mime.TypeByExtension(ext)); mt != "" {
		return mt
	}
	return MediaUnknown
}

func normalize(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	switch mt {
	case "image/jpg":
		return MediaJPEG
	case "image/x-ms-bmp":
		return MediaBMP
	case "text/xml":
		return MediaXML
	case "text/rtf":
		return MediaRTF
	}
	return mt
}
