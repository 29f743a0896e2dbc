// Package phash computes the 128-bit perceptual difference-hash used to
// deduplicate near-identical tiles in the catalog (spec component C2),
// following the structure of the pack's imagehash implementations but
// built on top of internal/imaging's own Lanczos resampler rather than a
// generic image.Image resize, so a tile is hashed from the exact same
// pixel values the rest of the pipeline already operates on.
package phash

import (
	"fmt"
	"math/bits"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

// Hash is a 128-bit perceptual hash: 64 bits of horizontal gradient sign
// bits followed by 64 bits of vertical gradient sign bits.
type Hash struct {
	Horizontal uint64
	Vertical   uint64
}

// Compute derives the difference hash of img. The horizontal half resamples
// img to 9x8 grayscale samples and records, for each row, whether each
// sample is brighter than its left neighbor (8 comparisons x 8 rows = 64
// bits). The vertical half mirrors this with an 8x9 resample compared
// top-to-bottom.
func Compute(img *imaging.Image) Hash {
	return Hash{
		Horizontal: directionalHash(img, 9, 8, true),
		Vertical:   directionalHash(img, 8, 9, false),
	}
}

// directionalHash resamples img to w x h and accumulates a bitmask of
// "current sample brighter than previous sample" comparisons, scanned along
// rows (horizontal=true, comparing column to column) or down columns
// (horizontal=false, comparing row to row).
func directionalHash(img *imaging.Image, w, h int, horizontal bool) uint64 {
	small := imaging.Resample(img, img.Full(), w, h, imaging.Lanczos)

	gray := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b, g, r := small.At(x, y)
			gray[y*w+x] = imaging.Gray(b, g, r)
		}
	}

	var hash uint64
	var bit uint
	if horizontal {
		for y := 0; y < h; y++ {
			for x := 1; x < w; x++ {
				if gray[y*w+x] > gray[y*w+x-1] {
					hash |= 1 << bit
				}
				bit++
			}
		}
	} else {
		for y := 1; y < h; y++ {
			for x := 0; x < w; x++ {
				if gray[y*w+x] > gray[(y-1)*w+x] {
					hash |= 1 << bit
				}
				bit++
			}
		}
	}
	return hash
}

// Distance returns the Hamming distance between two hashes, in [0, 128].
func Distance(a, b Hash) int {
	return bits.OnesCount64(a.Horizontal^b.Horizontal) + bits.OnesCount64(a.Vertical^b.Vertical)
}

// String renders the hash as two hex-encoded 64-bit words, horizontal
// first, for diagnostic logging.
func (h Hash) String() string {
	return fmt.Sprintf("%016x%016x", h.Horizontal, h.Vertical)
}
