package writer

import "github.com/cantaloupe-core/imaging/core"

// RegisterAll registers every writer in core.WritableFormats against reg.
func RegisterAll(reg core.Registry, defaultJPEGQuality int) {
	reg.RegisterWriter(core.FormatJPEG, NewJPEG(defaultJPEGQuality))
	reg.RegisterWriter(core.FormatPNG, NewPNG())
	reg.RegisterWriter(core.FormatTIFF, NewTIFF())
	reg.RegisterWriter(core.FormatGIF, NewGIF())
}
