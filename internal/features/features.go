// Package features reduces an image region to a fixed-size color descriptor
// and defines the perceptual distance between two descriptors used
// throughout the catalog and match solver (spec component C3).
package features

import (
	"math"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

// BlockGrid is D, the per-axis block count: a region is reduced to a D x D
// grid of mean-BGR blocks, so a descriptor holds 3*D*D values.
const BlockGrid = 4

// Count is the fixed descriptor length, 3*D*D with D = BlockGrid.
const Count = 3 * BlockGrid * BlockGrid

// Vector is a 48-value color descriptor: D*D blocks in row-major order,
// each holding (B, G, R) means, all in [0, 255].
type Vector [Count]float64

// Compute partitions rect (within img) into a BlockGrid x BlockGrid grid —
// the last row and last column absorb any remainder pixels when rect's
// dimensions don't divide evenly — and writes the mean B, G, R of each
// block into the returned descriptor.
func Compute(img *imaging.Image, rect imaging.Rect) Vector {
	var v Vector
	if rect.Empty() {
		return v
	}

	for by := 0; by < BlockGrid; by++ {
		y0 := rect.Y + by*rect.H/BlockGrid
		y1 := rect.Y + (by+1)*rect.H/BlockGrid
		if by == BlockGrid-1 {
			y1 = rect.Y + rect.H
		}
		for bx := 0; bx < BlockGrid; bx++ {
			x0 := rect.X + bx*rect.W/BlockGrid
			x1 := rect.X + (bx+1)*rect.W/BlockGrid
			if bx == BlockGrid-1 {
				x1 = rect.X + rect.W
			}

			var sumB, sumG, sumR float64
			n := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					b, g, r := img.At(x, y)
					sumB += float64(b)
					sumG += float64(g)
					sumR += float64(r)
					n++
				}
			}

			idx := (by*BlockGrid + bx) * 3
			if n > 0 {
				v[idx+0] = sumB / float64(n)
				v[idx+1] = sumG / float64(n)
				v[idx+2] = sumR / float64(n)
			}
		}
	}
	return v
}

// Distance computes the deltaE-like perceptual distance between two
// descriptors: per block, sqrt((2 + Rbar/256)*dR^2 + 4*dG^2 + (2 +
// (255-Rbar)/256)*dB^2), summed over all D*D blocks. Rbar is the mean of
// the two blocks' red channels. The result is symmetric and non-negative
// but is not a metric (it need not satisfy the triangle inequality); it is
// used purely as a match-solver cost.
func Distance(a, b Vector) float64 {
	var sum float64
	for block := 0; block < BlockGrid*BlockGrid; block++ {
		idx := block * 3
		dB := a[idx+0] - b[idx+0]
		dG := a[idx+1] - b[idx+1]
		dR := a[idx+2] - b[idx+2]
		rBar := (a[idx+2] + b[idx+2]) / 2

		term := (2+rBar/256)*dR*dR + 4*dG*dG + (2+(255-rBar)/256)*dB*dB
		sum += math.Sqrt(term)
	}
	return sum
}
