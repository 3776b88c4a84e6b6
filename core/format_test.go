package core

import "testing"

func TestFormatFromExtension(t *testing.T) {
	tests := map[string]Format{
		"jpg":   FormatJPEG,
		".JPEG": FormatJPEG,
		"PNG":   FormatPNG,
		"tif":   FormatTIFF,
		"webp":  FormatWebP,
		"xyz":   FormatUnknown,
	}
	for ext, want := range tests {
		if got := FormatFromExtension(ext); got != want {
			t.Errorf("FormatFromExtension(%q) = %s, want %s", ext, got, want)
		}
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := map[string]Format{
		"image/jpeg":              FormatJPEG,
		"image/jpeg; charset=binary": FormatJPEG,
		"image/png":               FormatPNG,
		"image/webp":              FormatWebP,
		"application/json":        FormatUnknown,
		"":                        FormatUnknown,
	}
	for ct, want := range tests {
		if got := FormatFromContentType(ct); got != want {
			t.Errorf("FormatFromContentType(%q) = %s, want %s", ct, got, want)
		}
	}
}

func TestDetectFormatMagicBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, FormatJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, FormatPNG},
		{"gif87", []byte("GIF87a"), FormatGIF},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0), FormatWebP},
		{"unknown", []byte{0x00, 0x01, 0x02}, FormatUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.data); got != tc.want {
				t.Errorf("DetectFormat(%s) = %s, want %s", tc.name, got, tc.want)
			}
		})
	}
}

func TestIsWritable(t *testing.T) {
	if !IsWritable(FormatJPEG) {
		t.Error("jpeg should be writable")
	}
	if IsWritable(FormatWebP) {
		t.Error("webp is read-only and must not be reported writable")
	}
	if IsWritable(FormatJPEG2000) {
		t.Error("jp2 is not in the writer table")
	}
}
