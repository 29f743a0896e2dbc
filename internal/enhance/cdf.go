package enhance

import "github.com/julianbustillos/photomosaic/internal/imaging"

// CDF is a 3x256 cumulative-distribution table: CDF[c][k] is the fraction
// of pixels in channel c (0=B, 1=G, 2=R) with value <= k. The source this
// is grounded on allocates 768 doubles but only ever loops to 758 — almost
// certainly a bug (spec §9 open question 3) — so this is sized and indexed
// as exactly 3*256 throughout.
type CDF [3][256]float64

// ImageCDF computes the per-channel cumulative histogram of rect within
// img.
func ImageCDF(img *imaging.Image, rect imaging.Rect) CDF {
	var cdf CDF
	if rect.Empty() {
		for c := 0; c < 3; c++ {
			cdf[c][255] = 1
		}
		return cdf
	}

	var hist [3][256]float64
	for y := rect.Y; y < rect.Y+rect.H; y++ {
		for x := rect.X; x < rect.X+rect.W; x++ {
			b, g, r := img.At(x, y)
			hist[0][b]++
			hist[1][g]++
			hist[2][r]++
		}
	}

	nbPixels := float64(rect.W * rect.H)
	for c := 0; c < 3; c++ {
		for k := 1; k < 256; k++ {
			hist[c][k] += hist[c][k-1]
		}
		for k := 0; k < 256; k++ {
			cdf[c][k] = hist[c][k] / nbPixels
		}
		cdf[c][255] = 1
	}
	return cdf
}

// W1Distance returns the Wasserstein-1 (sum of absolute CDF differences)
// distance between two CDFs, summed over all channels and bins.
func W1Distance(a, b CDF) float64 {
	var d float64
	for c := 0; c < 3; c++ {
		for k := 0; k < 256; k++ {
			diff := a[c][k] - b[c][k]
			if diff < 0 {
				diff = -diff
			}
			d += diff
		}
	}
	return d
}
