package encode

import (
	"bytes"
	"image"
	"image/png"
)

// PNGEncoder encodes exported catalog tiles as PNG.
type PNGEncoder struct {
	// Level selects the zlib compression level. The catalog exports tiles
	// at level 0 (png.NoCompression) since they are throwaway intermediates
	// re-read once during composition, not archival output.
	Level int
}

func (e *PNGEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: pngCompressionLevel(e.Level)}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *PNGEncoder) Format() string        { return "png" }
func (e *PNGEncoder) FileExtension() string { return ".png" }

func pngCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level >= 9:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}
