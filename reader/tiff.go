package reader

import (
	"bufio"
	"context"
	"encoding/binary"
	"image"
	"io"

	"github.com/cantaloupe-core/imaging/core"
	apperrors "github.com/cantaloupe-core/imaging/errors"
	xtiff "golang.org/x/image/tiff"
)

// TIFF IFD tags this reader inspects directly, instead of going through
// golang.org/x/image/tiff's decoder (which only ever exposes the first
// IFD). Tag numbers per the TIFF 6.0 specification, pp. 28-41.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagTileWidth       = 322
	tagTileLength      = 323
	tagBitsPerSample   = 258

	dtByte     = 1
	dtASCII    = 2
	dtShort    = 3
	dtLong     = 4
	dtRational = 5
)

var tagTypeLen = map[int]uint32{dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8}

// tiffIFDSummary is what one IFD walk needs to populate a core.Level.
type tiffIFDSummary struct {
	width, height         int
	tileWidth, tileHeight int
	bitsPerSample         int
	samplesPerPixel       int
}

// TIFFReader decodes TIFF. GetInfo walks every IFD directly (cheap: no
// pixel data is touched) to recover the full resolution-level pyramid,
// including tile dimensions for tiled layouts. Read decodes the full level-0
// image via golang.org/x/image/tiff, then derives any higher (more-reduced)
// level by software subsampling — x/image/tiff's public API has no
// per-IFD partial decode, so this reader cannot exploit per-tile addressing
// the way a from-scratch tiled reader would.
type TIFFReader struct {
	open    core.StreamFactory
	info    *core.ImageInfo
	level0  image.Image
}

// NewTIFFReaderFactory returns a core.ReaderFactory for TIFF sources.
func NewTIFFReaderFactory() core.ReaderFactory {
	return func(_ context.Context, handle core.SourceHandle, _ core.ReaderOptions) (core.Reader, error) {
		return &TIFFReader{open: handleToFactory(handle)}, nil
	}
}

func (r *TIFFReader) GetInfo(ctx context.Context) (core.ImageInfo, error) {
	if r.info != nil {
		return *r.info, nil
	}
	rc, err := r.open(ctx)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "tiff.info", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(bufio.NewReader(rc))
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "tiff.info", err)
	}

	ifds, err := walkIFDs(data)
	if err != nil {
		return core.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "tiff.info", err)
	}
	if len(ifds) == 0 {
		return core.ImageInfo{}, apperrors.New(apperrors.CategoryDecode, "tiff.info", apperrors.ErrEmptyInput)
	}

	levels := make([]core.Level, 0, len(ifds))
	for _, ifd := range ifds {
		levels = append(levels, core.Level{
			Width: ifd.width, Height: ifd.height,
			TileWidth: ifd.tileWidth, TileHeight: ifd.tileHeight,
		})
	}

	first := ifds[0]
	info := core.ImageInfo{
		Width:      first.width,
		Height:     first.height,
		Levels:     levels,
		BitDepth:   first.bitsPerSample,
		NumSamples: first.samplesPerPixel,
		MediaType:  core.MediaTypeOf(core.FormatTIFF),
	}
	r.info = &info
	return info, nil
}

func (r *TIFFReader) GetMetadata(context.Context, int) ([]byte, error) { return nil, nil }

func (r *TIFFReader) Read(ctx context.Context, level int, region *core.Region, subsample int) (core.PixelMatrix, core.Hints, error) {
	if err := ctx.Err(); err != nil {
		return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "tiff.read", err)
	}
	info, err := r.GetInfo(ctx)
	if err != nil {
		return core.PixelMatrix{}, core.Hints{}, err
	}
	if r.level0 == nil {
		rc, err := r.open(ctx)
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "tiff.read", err)
		}
		defer rc.Close()
		img, err := xtiff.Decode(bufio.NewReader(rc))
		if err != nil {
			return core.PixelMatrix{}, core.Hints{}, apperrors.Wrap(apperrors.CategoryDecode, "tiff.read", err)
		}
		r.level0 = img
	}

	// A pyramid level beyond 0 contributes its own power-of-two reduction;
	// fold that into the software subsample since only level 0 is ever
	// actually decoded.
	levelFactor := 1
	if level > 0 && level < len(info.Levels) {
		levelFactor = info.Levels[0].Width / maxInt(info.Levels[level].Width, 1)
		if levelFactor < 1 {
			levelFactor = 1
		}
	}
	if subsample <= 0 {
		subsample = 1
	}
	// region is in the requested level's coordinates; map it onto level 0.
	if region != nil && levelFactor > 1 {
		scaled := core.Region{
			X: region.X * levelFactor, Y: region.Y * levelFactor,
			Width: region.Width * levelFactor, Height: region.Height * levelFactor,
		}
		region = &scaled
	}
	return cropAndSubsample(r.level0, region, levelFactor*subsample)
}

func (r *TIFFReader) Close() error { return nil }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// walkIFDs parses every Image File Directory in a TIFF byte stream without
// decoding any pixel data.
func walkIFDs(data []byte) ([]tiffIFDSummary, error) {
	if len(data) < 8 {
		return nil, apperrors.ErrEmptyInput
	}
	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, apperrors.ErrUnsupportedFormat
	}

	var out []tiffIFDSummary
	offset := bo.Uint32(data[4:8])
	for offset != 0 {
		if int(offset)+2 > len(data) {
			break
		}
		numEntries := int(bo.Uint16(data[offset : offset+2]))
		entryBase := offset + 2
		summary := tiffIFDSummary{samplesPerPixel: 1, bitsPerSample: 8}

		for i := 0; i < numEntries; i++ {
			entryOff := entryBase + uint32(i*12)
			if int(entryOff)+12 > len(data) {
				break
			}
			tag := int(bo.Uint16(data[entryOff : entryOff+2]))
			typ := int(bo.Uint16(data[entryOff+2 : entryOff+4]))
			count := bo.Uint32(data[entryOff+4 : entryOff+8])
			valueField := data[entryOff+8 : entryOff+12]

			val := readIFDScalar(bo, typ, count, valueField, data)
			switch tag {
			case tagImageWidth:
				summary.width = val
			case tagImageLength:
				summary.height = val
			case tagTileWidth:
				summary.tileWidth = val
			case tagTileLength:
				summary.tileHeight = val
			case tagBitsPerSample:
				summary.bitsPerSample = val
			case tagSamplesPerPixel:
				summary.samplesPerPixel = val
			}
		}
		out = append(out, summary)

		nextOff := entryBase + uint32(numEntries*12)
		if int(nextOff)+4 > len(data) {
			break
		}
		offset = bo.Uint32(data[nextOff : nextOff+4])
	}
	return out, nil
}

// readIFDScalar reads a single scalar value out of an IFD entry, sufficient
// for the dimension/tag fields this reader cares about (all of which are
// SHORT or LONG in practice).
func readIFDScalar(bo binary.ByteOrder, typ int, count uint32, valueField, data []byte) int {
	if count == 0 {
		return 0
	}
	size, ok := tagTypeLen[typ]
	if !ok {
		size = 4
	}
	if size*count <= 4 {
		switch typ {
		case dtShort:
			return int(bo.Uint16(valueField[:2]))
		case dtLong:
			return int(bo.Uint32(valueField[:4]))
		case dtByte:
			return int(valueField[0])
		}
		return int(bo.Uint32(valueField[:4]))
	}
	// Value is stored out-of-line; valueField holds the offset.
	off := bo.Uint32(valueField)
	if int(off)+4 > len(data) {
		return 0
	}
	switch typ {
	case dtShort:
		return int(bo.Uint16(data[off : off+2]))
	default:
		return int(bo.Uint32(data[off : off+4]))
	}
}
