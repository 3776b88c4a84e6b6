package reader

import "github.com/cantaloupe-core/imaging/core"

// RegisterAll registers every reader this package implements against reg.
func RegisterAll(reg core.Registry) {
	reg.RegisterReader(core.FormatJPEG, NewJPEGReaderFactory())
	reg.RegisterReader(core.FormatPNG, NewPNGReaderFactory())
	reg.RegisterReader(core.FormatGIF, NewGIFReaderFactory())
	reg.RegisterReader(core.FormatBMP, NewBMPReaderFactory())
	reg.RegisterReader(core.FormatTIFF, NewTIFFReaderFactory())
	reg.RegisterReader(core.FormatJPEG2000, NewJPEG2000ReaderFactory())
	reg.RegisterReader(core.FormatWebP, NewWebPReaderFactory())
}
