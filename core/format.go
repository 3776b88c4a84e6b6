package core

import (
	"net/http"
	"strings"
)

// Format identifies an image codec recognized by the core.
type Format string

const (
	FormatJPEG     Format = "jpeg"
	FormatJPEG2000 Format = "jp2"
	FormatPNG      Format = "png"
	FormatTIFF     Format = "tiff"
	FormatBMP      Format = "bmp"
	FormatGIF      Format = "gif"
	FormatWebP     Format = "webp" // read-only: golang.org/x/image/webp decodes lossy WebP only
	FormatUnknown  Format = "unknown"
)

// MediaType pairs a Format with its canonical MIME subtype.
type MediaType struct {
	Format  Format
	Subtype string // e.g. "jpeg", "jp2", "png", "tiff"
}

func (m MediaType) String() string { return "image/" + m.Subtype }

// mediaTypes maps each readable Format to its canonical MediaType.
var mediaTypes = map[Format]MediaType{
	FormatJPEG:     {FormatJPEG, "jpeg"},
	FormatJPEG2000: {FormatJPEG2000, "jp2"},
	FormatPNG:      {FormatPNG, "png"},
	FormatTIFF:     {FormatTIFF, "tiff"},
	FormatBMP:      {FormatBMP, "bmp"},
	FormatGIF:      {FormatGIF, "gif"},
	FormatWebP:     {FormatWebP, "webp"},
}

// MediaTypeOf returns the canonical MediaType for f, or the unknown
// MediaType if f is not a recognized format.
func MediaTypeOf(f Format) MediaType {
	if mt, ok := mediaTypes[f]; ok {
		return mt
	}
	return MediaType{FormatUnknown, "unknown"}
}

// extensionFormats maps lower-cased file extensions (without the dot) to Format.
var extensionFormats = map[string]Format{
	"jpg": FormatJPEG, "jpeg": FormatJPEG,
	"jp2": FormatJPEG2000, "j2k": FormatJPEG2000, "jpx": FormatJPEG2000,
	"png":  FormatPNG,
	"tif":  FormatTIFF, "tiff": FormatTIFF,
	"bmp":  FormatBMP,
	"gif":  FormatGIF,
	"webp": FormatWebP,
}

// FormatFromExtension maps a file extension (with or without leading dot) to
// a Format. Returns FormatUnknown if the extension is unrecognized. A
// recognized extension is trusted before any byte inspection happens.
func FormatFromExtension(ext string) Format {
	for len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	lower := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	if f, ok := extensionFormats[string(lower)]; ok {
		return f
	}
	return FormatUnknown
}

// FormatFromContentType maps an HTTP Content-Type header value (with or
// without a charset/boundary parameter) to a Format, e.g. "image/jpeg" or
// "image/jpeg; charset=binary" both map to FormatJPEG.
func FormatFromContentType(ct string) Format {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	const prefix = "image/"
	if !strings.HasPrefix(ct, prefix) {
		return FormatUnknown
	}
	return FormatFromExtension(ct[len(prefix):])
}

// magicPrefixes lists byte signatures checked in order against the first
// bytes of a source's data.
var magicPrefixes = []struct {
	prefix []byte
	format Format
}{
	{[]byte{0xFF, 0xD8, 0xFF}, FormatJPEG},
	{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, FormatPNG},
	{[]byte("II*\x00"), FormatTIFF}, // little-endian TIFF
	{[]byte("MM\x00*"), FormatTIFF}, // big-endian TIFF
	{[]byte("GIF87a"), FormatGIF},
	{[]byte("GIF89a"), FormatGIF},
	{[]byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' '}, FormatJPEG2000}, // JP2 signature box
	{[]byte{0xFF, 0x4F, 0xFF, 0x51}, FormatJPEG2000},                    // raw J2K codestream (SOC+SIZ)
	{[]byte("BM"), FormatBMP},
}

// DetectFormat sniffs up to the first 16 bytes of data for a known magic
// number, falling back to net/http's broader content sniffing. Used by
// source providers that cannot supply a trustworthy extension.
func DetectFormat(data []byte) Format {
	if len(data) > 16 {
		data = data[:16]
	}
	if len(data) >= 12 && hasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return FormatWebP
	}
	for _, m := range magicPrefixes {
		if len(data) >= len(m.prefix) && hasPrefix(data, m.prefix) {
			return m.format
		}
	}
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/tiff":
		return FormatTIFF
	case "image/gif":
		return FormatGIF
	case "image/bmp":
		return FormatBMP
	case "image/webp":
		return FormatWebP
	}
	return FormatUnknown
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// WritableFormats is the subset of Format values the writer table is
// required to support; the readable set is strictly larger.
var WritableFormats = []Format{FormatJPEG, FormatPNG, FormatTIFF, FormatGIF}

// IsWritable reports whether f belongs to the writable subset.
func IsWritable(f Format) bool {
	for _, w := range WritableFormats {
		if w == f {
			return true
		}
	}
	return false
}
