package core

// Level describes one resolution level of a (possibly pyramidal) source
// image. TileWidth/TileHeight are 0 for striped or single-strip layouts.
type Level struct {
	Width      int
	Height     int
	TileWidth  int
	TileHeight int
}

// IsTiled reports whether this level is organized into independently
// decodable tiles rather than full-width strips.
func (l Level) IsTiled() bool { return l.TileWidth > 0 && l.TileHeight > 0 }

// ImageInfo is the decoded-metadata summary for one identifier. It is
// produced once by a Reader's GetInfo and memoized by the info cache
// keyed by Identifier; it is never mutated after construction.
type ImageInfo struct {
	Identifier Identifier
	Width      int
	Height     int
	Levels     []Level // ordered large → small; Levels[0] is full resolution
	BitDepth   int      // bits per sample
	NumSamples int      // samples (channels) per pixel
	HasICC     bool

	MediaType MediaType
}

// NumLevels returns the number of resolution levels, i.e. len(Levels).
func (i ImageInfo) NumLevels() int { return len(i.Levels) }

// IsPyramidal reports whether the source exposes more than one resolution
// level internally (a multi-IFD TIFF, or a JPEG2000 with >1 DWT level).
func (i ImageInfo) IsPyramidal() bool { return len(i.Levels) > 1 }
