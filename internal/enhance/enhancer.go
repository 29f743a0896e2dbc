// Package enhance reshapes a mosaic tile's color distribution towards the
// reference photograph region it replaces, grounded on the target's
// CDF-matching / Wasserstein-distance color transfer technique (spec
// component C8).
package enhance

import (
	"math"

	"github.com/julianbustillos/photomosaic/internal/gmm"
	"github.com/julianbustillos/photomosaic/internal/imaging"
)

// The constants below are implementation-defined: the source this package
// is grounded on references W1DistTarget, CompoMaxNb, StdDevIncr and
// StdDevMax from ColorEnhancer.cpp without ever defining them anywhere in
// the retrieved tree, and this is exactly the "implementation-defined
// constant, not load-bearing for tests" case the specification calls out.
// MaxIter/ConvergenceTol are carried over from the one sibling class that
// does declare them (MosaicBuilder).
const (
	// w1DistTarget is the W1-distance threshold below which a cell's tile
	// and target-region colors are already close enough that no GMM
	// reshape is attempted.
	w1DistTarget = 10.0

	// maxComponents bounds how many Gaussians the per-channel mixture fit
	// (on the combined tile+region pixel data) may use.
	maxComponents = 5

	gmmKMeansTol  = 1e-3
	gmmKMeansIter = 1000
	gmmEMTol      = 1e-4
	gmmEMIter     = 1000

	// stdDevIncr/stdDevMax bound the forward grid-scan that brackets the
	// golden-section search, expressed in standard-deviation units.
	stdDevIncr = 2.0
	stdDevMax  = 128.0

	// goldenConvergenceTol is the golden-section search's stopping width,
	// in variance-scale units.
	goldenConvergenceTol = 1e-3

	goldenRatio = 0.6180339887498949 // 1/phi
)

// Enhancer holds the per-channel color mapping and W1 distance computed for
// one mosaic cell, ready to be applied to candidate tiles at varying
// blending strengths.
type Enhancer struct {
	colorMapping [3][256]int
	w1Distance   float64
}

// New computes the color mapping that reshapes tileCDF towards targetCDF
// (the reference photograph region's CDF), attempting a GMM-based reshape
// of the target distribution first when the two are far apart. tilePixels
// and targetPixels are the per-channel raw intensity samples used to fit
// the reshape GMM; seeded controls whether that fit is reproducible.
func New(targetCDF, tileCDF CDF, tilePixels, targetPixels [3][]int, seeded bool) *Enhancer {
	e := &Enhancer{w1Distance: W1Distance(targetCDF, tileCDF)}

	effectiveTarget := targetCDF
	if e.w1Distance > w1DistTarget {
		if reshaped, ok := reshapeTarget(targetCDF, tileCDF, tilePixels, targetPixels, seeded); ok {
			effectiveTarget = reshaped
		}
	}

	for c := 0; c < 3; c++ {
		optimalColor := 0
		for k := 0; k < 256; k++ {
			probability := tileCDF[c][k]
			for optimalColor < 255 && effectiveTarget[c][optimalColor] < probability {
				optimalColor++
			}
			e.colorMapping[c][k] = optimalColor
		}
	}
	return e
}

// reshapeTarget attempts, independently per channel, to replace targetCDF
// with a GMM-mixture CDF whose distance to tileCDF is driven towards
// w1DistTarget. If any channel's search fails to bracket a minimum, the
// whole reshape is abandoned and the caller keeps the original targetCDF.
func reshapeTarget(targetCDF, tileCDF CDF, tilePixels, targetPixels [3][]int, seeded bool) (CDF, bool) {
	var reshaped CDF
	for c := 0; c < 3; c++ {
		combined := make([]int, 0, len(tilePixels[c])+len(targetPixels[c]))
		combined = append(combined, tilePixels[c]...)
		combined = append(combined, targetPixels[c]...)

		components := gmm.FitBest(combined, maxComponents, gmmKMeansTol, gmmKMeansIter, gmmEMTol, gmmEMIter, seeded)
		if len(components) == 0 {
			return CDF{}, false
		}

		startConstr := targetCDF[c][0]
		endConstr := targetCDF[c][255] - targetCDF[c][254]

		xOpt, ok := findOptimalVarianceScale(components, c, tileCDF, startConstr, endConstr)
		if !ok {
			return CDF{}, false
		}

		reshaped[c] = boundedGMMCDF(components, xOpt, startConstr, endConstr)
	}
	return reshaped, true
}

// findOptimalVarianceScale performs the forward grid-scan + golden-section
// search for the variance-scale x that makes the bounded GMM CDF's distance
// to tileCDF[c] as close as possible to w1DistTarget.
func findOptimalVarianceScale(components []gmm.Component, channel int, tileCDF CDF, startConstr, endConstr float64) (float64, bool) {
	var varMean float64
	for _, comp := range components {
		varMean += comp.Variance
	}
	varMean /= float64(len(components))
	stdDevMean := math.Sqrt(varMean)

	distanceAt := func(x float64) float64 {
		cdf := boundedGMMCDF(components, x, startConstr, endConstr)
		var d float64
		for k := 0; k < 256; k++ {
			diff := cdf[k] - tileCDF[channel][k]
			if diff < 0 {
				diff = -diff
			}
			d += diff
		}
		return math.Abs(d - w1DistTarget)
	}

	nbSteps := int((stdDevMax - stdDevMean) / stdDevIncr)
	if nbSteps < 1 {
		return 0, false
	}

	type point struct{ x, d float64 }
	prev := point{x: 0, d: math.Inf(1)}
	prevPrev := point{x: 0, d: math.Inf(1)}
	found := false
	var lo, hi float64

	for step := 0; step <= nbSteps; step++ {
		stdDev := stdDevMean + float64(step)*stdDevIncr
		x := (stdDev * stdDev) / varMean
		d := distanceAt(x)
		if step >= 1 && d > prev.d {
			lo, hi = prevPrev.x, x
			found = true
			break
		}
		prevPrev = prev
		prev = point{x: x, d: d}
	}
	if !found {
		return 0, false
	}

	for hi-lo > goldenConvergenceTol {
		m1 := hi - goldenRatio*(hi-lo)
		m2 := lo + goldenRatio*(hi-lo)
		if distanceAt(m1) < distanceAt(m2) {
			hi = m2
		} else {
			lo = m1
		}
	}
	return (lo + hi) / 2, true
}

// boundedGMMCDF evaluates the mixture CDF at variance-scale x, normalizes it
// so it reaches 1 at value 255, then rescales it into [min, max] derived
// from startConstr/endConstr — unless that interval is not narrower than
// [0, 1], in which case the raw normalized CDF is used unmodified.
func boundedGMMCDF(components []gmm.Component, x, startConstr, endConstr float64) [256]float64 {
	var raw [256]float64
	norm := evalGMMCDF(255, components, x)
	if norm <= 0 {
		norm = 1
	}
	for k := 0; k < 256; k++ {
		raw[k] = evalGMMCDF(float64(k), components, x) / norm
	}

	min := math.Max(0, raw[0]-startConstr)
	max := 1 - math.Max(0, endConstr-(raw[255]-raw[254]))
	scale := max - min
	if scale >= 1 {
		return raw
	}

	var out [256]float64
	for k := 0; k < 256; k++ {
		out[k] = min + scale*raw[k]
	}
	return out
}

// evalGaussianCDF returns the CDF of N(mean, variance) at value.
func evalGaussianCDF(value, mean, variance float64) float64 {
	return 0.5 * (1 + math.Erf((value-mean)/math.Sqrt(2*variance)))
}

// evalGMMCDF returns the mixture CDF at value, with every component's
// variance scaled by x.
func evalGMMCDF(value float64, components []gmm.Component, x float64) float64 {
	var sum float64
	for _, c := range components {
		sum += c.Weight * evalGaussianCDF(value, c.Mean, c.Variance*x)
	}
	return sum
}

// Apply reshapes one tile pixel's channel value through the color mapping,
// attenuated by blending and the cell's stored W1 distance: the correction
// is scaled down towards identity as the distance grows relative to
// w1DistTarget, so a tile already close to its target region gets the full
// requested blending (capped at 1) while a far one is attenuated.
func (e *Enhancer) Apply(channel int, value uint8, blending float64) uint8 {
	corrBlending := 1.0
	if e.w1Distance > 0 {
		corrBlending = math.Min(blending*w1DistTarget/e.w1Distance, 1)
	}
	mapped := float64(e.colorMapping[channel][value])
	out := corrBlending*mapped + (1-corrBlending)*float64(value)
	rounded := math.Round(out)
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 255 {
		rounded = 255
	}
	return uint8(rounded)
}

// ApplyImage returns a copy of tile with every pixel passed through Apply.
// The returned image is drawn from imaging's scratch-buffer pool (callers
// that copy it out and discard it, such as compose.paintTile, should
// imaging.Put it back).
func (e *Enhancer) ApplyImage(tile *imaging.Image, blending float64) *imaging.Image {
	out := imaging.Get(tile.Width, tile.Height)
	for y := 0; y < tile.Height; y++ {
		for x := 0; x < tile.Width; x++ {
			b, g, r := tile.At(x, y)
			out.Set(x, y,
				e.Apply(0, b, blending),
				e.Apply(1, g, blending),
				e.Apply(2, r, blending),
			)
		}
	}
	return out
}

// W1DistanceValue returns the cell's stored (pre-reshape) distance between the
// target region's CDF and the tile's CDF.
func (e *Enhancer) W1DistanceValue() float64 { return e.w1Distance }

// ChannelPixels extracts the per-channel (B, G, R) intensity samples of
// rect within img, for feeding the reshape GMM fit.
func ChannelPixels(img *imaging.Image, rect imaging.Rect) [3][]int {
	var out [3][]int
	if rect.Empty() {
		return out
	}
	n := rect.W * rect.H
	out[0] = make([]int, 0, n)
	out[1] = make([]int, 0, n)
	out[2] = make([]int, 0, n)
	for y := rect.Y; y < rect.Y+rect.H; y++ {
		for x := rect.X; x < rect.X+rect.W; x++ {
			b, g, r := img.At(x, y)
			out[0] = append(out[0], int(b))
			out[1] = append(out[1], int(g))
			out[2] = append(out[2], int(r))
		}
	}
	return out
}
