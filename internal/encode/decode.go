package encode

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/gen2brain/webp"
	"github.com/mrjoshuak/go-jpeg2000"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DecodeFile decodes image bytes whose format is inferred from path's
// extension. Supported extensions match the tile catalog's enumeration
// filter: bmp, dib, jpeg, jpg, jpe, jp2, png, webp, pbm, pgm, ppm, pxm,
// pnm, tiff, tif.
func DecodeFile(path string, data []byte) (image.Image, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r := bufio.NewReader(bytes.NewReader(data))

	switch ext {
	case "bmp", "dib":
		return bmp.Decode(r)
	case "jpeg", "jpg", "jpe":
		return jpeg.Decode(r)
	case "jp2":
		return jpeg2000.Decode(r)
	case "png":
		return png.Decode(r)
	case "webp":
		return webp.Decode(r)
	case "pbm", "pgm", "ppm", "pxm", "pnm":
		return decodePNM(r)
	case "tiff", "tif":
		return tiff.Decode(r)
	default:
		return nil, &unsupportedFormatError{op: "decode", format: ext}
	}
}

// decodePNM reads a NetPBM (PBM/PGM/PPM) image. None of the example
// repositories carry a NetPBM codec, so this is a small hand-rolled reader
// covering the plain (ASCII) and raw (binary) variants of P1/P2/P3/P4/P5/P6 —
// see DESIGN.md for why this one format is built on bufio/image directly
// instead of a third-party decoder.
func decodePNM(r *bufio.Reader) (image.Image, error) {
	magic, err := readPNMToken(r)
	if err != nil {
		return nil, fmt.Errorf("pnm: reading magic: %w", err)
	}

	width, err := readPNMInt(r)
	if err != nil {
		return nil, fmt.Errorf("pnm: reading width: %w", err)
	}
	height, err := readPNMInt(r)
	if err != nil {
		return nil, fmt.Errorf("pnm: reading height: %w", err)
	}

	var maxVal int = 1
	switch magic {
	case "P2", "P3", "P5", "P6":
		maxVal, err = readPNMInt(r)
		if err != nil {
			return nil, fmt.Errorf("pnm: reading maxval: %w", err)
		}
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pnm: invalid dimensions %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	switch magic {
	case "P1": // ASCII bitmap: 0 = white, 1 = black
		for i := 0; i < width*height; i++ {
			v, err := readPNMInt(r)
			if err != nil {
				return nil, fmt.Errorf("pnm: reading bit %d: %w", i, err)
			}
			setGray(img, i, width, pnmScale(1-v, 1))
		}
	case "P2": // ASCII grayscale
		for i := 0; i < width*height; i++ {
			v, err := readPNMInt(r)
			if err != nil {
				return nil, fmt.Errorf("pnm: reading sample %d: %w", i, err)
			}
			setGray(img, i, width, pnmScale(v, maxVal))
		}
	case "P3": // ASCII RGB
		for i := 0; i < width*height; i++ {
			rv, err := readPNMInt(r)
			if err != nil {
				return nil, err
			}
			gv, err := readPNMInt(r)
			if err != nil {
				return nil, err
			}
			bv, err := readPNMInt(r)
			if err != nil {
				return nil, err
			}
			setRGB(img, i, width, pnmScale(rv, maxVal), pnmScale(gv, maxVal), pnmScale(bv, maxVal))
		}
	case "P4": // raw bitmap, packed 8 pixels/byte, MSB first
		rowBytes := (width + 7) / 8
		row := make([]byte, rowBytes)
		for y := 0; y < height; y++ {
			if _, err := io.ReadFull(r, row); err != nil {
				return nil, fmt.Errorf("pnm: reading row %d: %w", y, err)
			}
			for x := 0; x < width; x++ {
				bit := (row[x/8] >> (7 - uint(x%8))) & 1
				setGray(img, y*width+x, width, pnmScale(int(1-bit), 1))
			}
		}
	case "P5": // raw grayscale
		sampleBytes := 1
		if maxVal > 255 {
			sampleBytes = 2
		}
		row := make([]byte, width*sampleBytes)
		for y := 0; y < height; y++ {
			if _, err := io.ReadFull(r, row); err != nil {
				return nil, fmt.Errorf("pnm: reading row %d: %w", y, err)
			}
			for x := 0; x < width; x++ {
				v := int(row[x*sampleBytes])
				if sampleBytes == 2 {
					v = int(row[x*2])<<8 | int(row[x*2+1])
				}
				setGray(img, y*width+x, width, pnmScale(v, maxVal))
			}
		}
	case "P6": // raw RGB
		sampleBytes := 1
		if maxVal > 255 {
			sampleBytes = 2
		}
		row := make([]byte, width*3*sampleBytes)
		for y := 0; y < height; y++ {
			if _, err := io.ReadFull(r, row); err != nil {
				return nil, fmt.Errorf("pnm: reading row %d: %w", y, err)
			}
			for x := 0; x < width; x++ {
				base := x * 3 * sampleBytes
				rv := int(row[base])
				gv := int(row[base+sampleBytes])
				bv := int(row[base+2*sampleBytes])
				setRGB(img, y*width+x, width, pnmScale(rv, maxVal), pnmScale(gv, maxVal), pnmScale(bv, maxVal))
			}
		}
	default:
		return nil, fmt.Errorf("pnm: unrecognized magic %q", magic)
	}

	return img, nil
}

func pnmScale(v, maxVal int) uint8 {
	if maxVal <= 0 {
		maxVal = 1
	}
	scaled := v * 255 / maxVal
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	return uint8(scaled)
}

func setGray(img *image.RGBA, idx, width int, v uint8) {
	setRGB(img, idx, width, v, v, v)
}

func setRGB(img *image.RGBA, idx, width int, r, g, b uint8) {
	x, y := idx%width, idx/width
	o := img.PixOffset(x, y)
	img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, b, 255
}

// readPNMToken reads the next whitespace-delimited token, skipping
// '#'-prefixed comments, as required by the NetPBM plain-header grammar.
func readPNMToken(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		c, err := r.ReadByte()
		if err != nil {
			if b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		if c == '#' {
			for {
				c, err := r.ReadByte()
				if err != nil || c == '\n' {
					break
				}
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if b.Len() > 0 {
				return b.String(), nil
			}
			continue
		}
		b.WriteByte(c)
	}
}

func readPNMInt(r *bufio.Reader) (int, error) {
	tok, err := readPNMToken(r)
	if err != nil {
		return 0, err
	}
	var v int
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("pnm: invalid integer token %q", tok)
		}
		v = v*10 + int(c-'0')
	}
	return v, nil
}
