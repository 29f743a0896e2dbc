package imaging

import (
	"math"
)

// Filter selects the interpolation kernel used by Resample.
type Filter int

const (
	// Area computes the exact fractional-rectangle pixel coverage.
	Area Filter = iota
	// Bicubic uses the a = -0.5 Keys cubic.
	Bicubic
	// Lanczos uses the a = 3 normalized-sinc window.
	Lanczos
)

// ParseFilter converts a CLI-friendly name to a Filter.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "area":
		return Area, nil
	case "bicubic":
		return Bicubic, nil
	case "lanczos":
		return Lanczos, nil
	default:
		return 0, &unknownFilterError{s}
	}
}

type unknownFilterError struct{ name string }

func (e *unknownFilterError) Error() string {
	return "imaging: unknown resampling filter " + e.name + " (supported: area, bicubic, lanczos)"
}

// support returns S, the filter's unscaled half-width: Area=1, Bicubic=2,
// Lanczos=3.
func (f Filter) support() float64 {
	switch f {
	case Area:
		return 1
	case Bicubic:
		return 2
	case Lanczos:
		return 3
	default:
		return 1
	}
}

// weight evaluates the filter kernel at sample position x relative to the
// mapped center, both in source-pixel coordinates, scaled by invScale
// (1/max(1, srcSpan/dstSpan)) so downscaling widens the kernel.
func (f Filter) weight(xPos, center, scale, invScale float64) float64 {
	switch f {
	case Area:
		minVal := center - scale*0.5
		maxVal := center + scale*0.5
		minPos := math.Ceil(minVal)
		maxPos := math.Floor(maxVal)
		switch {
		case minPos <= xPos && xPos <= maxPos:
			return 1.0
		case minPos-1 <= xPos && xPos <= minPos:
			return minPos - minVal
		case maxPos <= xPos && xPos <= maxPos+1:
			return maxVal - maxPos
		default:
			return 0.0
		}
	case Bicubic:
		const a = -0.5
		x := (xPos - center) * invScale
		if x < 0 {
			x = -x
		}
		switch {
		case x < 1.0:
			return ((a+2.0)*x-(a+3.0))*x*x + 1
		case x < 2.0:
			return (((x-5)*x+8)*x-4) * a
		default:
			return 0.0
		}
	case Lanczos:
		const a = 3.0
		x := (xPos - center) * invScale
		if x >= -a && x < a {
			return sinc(x) * sinc(x/a)
		}
		return 0.0
	default:
		return 0
	}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	x *= math.Pi
	return math.Sin(x) / x
}

// axisCoeffs holds the precomputed, normalized, fixed-point-quantized
// weights for resampling one axis from inSize source samples within
// [min, max) to outSize destination samples.
type axisCoeffs struct {
	nbCoeffs int
	coeffs   []int32 // outSize * nbCoeffs, fixed-point (see precisionBits)
	bounds   []int   // outSize * 2: [xMin, xSize]
}

// precisionBits matches the spec's (32 - 8 - 2) fixed-point accumulator.
const precisionBits = 32 - 8 - 2

func computeAxisCoeffs(inSize, outSize, lo, hi int, f Filter) axisCoeffs {
	scale := float64(hi-lo) / float64(outSize)
	effScale := scale
	if effScale < 1 {
		effScale = 1
	}
	invScale := 1 / effScale
	support := f.support() * effScale
	nbCoeffs := int(math.Ceil(support))*2 + 1

	out := axisCoeffs{
		nbCoeffs: nbCoeffs,
		coeffs:   make([]int32, outSize*nbCoeffs),
		bounds:   make([]int, outSize*2),
	}

	const halfPixel = 0.5
	raw := make([]float64, nbCoeffs)
	for xOut := 0; xOut < outSize; xOut++ {
		center := float64(lo) + (float64(xOut)+halfPixel)*scale

		xMin := int(center - support + halfPixel)
		if xMin < 0 {
			xMin = 0
		}
		xMax := int(center + support + halfPixel)
		if xMax > inSize {
			xMax = inSize
		}
		xSize := xMax - xMin

		sum := 0.0
		for x := 0; x < xSize; x++ {
			w := f.weight(float64(x+xMin)+halfPixel, center, effScale, invScale)
			raw[x] = w
			sum += w
		}
		if sum != 0 {
			inv := 1 / sum
			for x := 0; x < xSize; x++ {
				raw[x] *= inv
			}
		}

		coeffRow := out.coeffs[xOut*nbCoeffs : xOut*nbCoeffs+nbCoeffs]
		shift := float64(uint32(1) << precisionBits)
		for x := 0; x < xSize; x++ {
			coeffRow[x] = int32(math.Round(raw[x] * shift))
		}
		for x := xSize; x < nbCoeffs; x++ {
			coeffRow[x] = 0
		}

		out.bounds[xOut*2+0] = xMin
		out.bounds[xOut*2+1] = xSize
	}
	return out
}

// resampleHorizontal resamples each of the rowCount rows of src (starting at
// rowOffset) from inSize samples to len(ax.bounds)/2 samples, writing BGR
// triples into a freshly allocated Image of that width and rowCount height.
func resampleHorizontal(src *Image, rowOffset, rowCount int, ax axisCoeffs) *Image {
	outW := len(ax.bounds) / 2
	dst := New(outW, rowCount)

	const pixelInit = int64(1) << (precisionBits - 1)

	for y := 0; y < rowCount; y++ {
		srcRow := rowOffset + y
		for xOut := 0; xOut < outW; xOut++ {
			xMin := ax.bounds[xOut*2+0]
			xSize := ax.bounds[xOut*2+1]
			coeff := ax.coeffs[xOut*ax.nbCoeffs : xOut*ax.nbCoeffs+ax.nbCoeffs]

			var accB, accG, accR int64 = pixelInit, pixelInit, pixelInit
			for x := 0; x < xSize; x++ {
				b, g, r := src.At(xMin+x, srcRow)
				c := int64(coeff[x])
				accB += int64(b) * c
				accG += int64(g) * c
				accR += int64(r) * c
			}
			dst.Set(xOut, y,
				clampInt(accB>>precisionBits),
				clampInt(accG>>precisionBits),
				clampInt(accR>>precisionBits))
		}
	}
	return dst
}

func clampInt(v int64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// transpose returns a new image with rows and columns swapped, used to
// implement vertical resampling as horizontal resampling of the transpose.
func (img *Image) transpose() *Image {
	dst := New(img.Height, img.Width)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			b, g, r := img.At(x, y)
			dst.Set(y, x, b, g, r)
		}
	}
	return dst
}

// Resample resamples the sub-rectangle srcRect of src into a new image of
// size dstW x dstH, using the given filter, per spec component C1.
// Implementation is separable: horizontal pass first (width change, height
// still srcRect.H), vertical pass second (height change). Either pass is
// skipped if the corresponding dimension already matches.
//
// Returns an empty image if dstW or dstH is zero or srcRect lies outside
// src's bounds — callers must treat an empty result as fatal, per spec.
func Resample(src *Image, srcRect Rect, dstW, dstH int, f Filter) *Image {
	if dstW <= 0 || dstH <= 0 || !src.InBounds(srcRect) || srcRect.Empty() {
		return New(0, 0)
	}

	doHori := dstW != srcRect.W
	doVert := dstH != srcRect.H

	if !doHori && !doVert {
		img, err := src.SubImage(srcRect)
		if err != nil {
			return New(0, 0)
		}
		return img
	}

	var horizontal *Image
	if doHori {
		axH := computeAxisCoeffs(src.Width, dstW, srcRect.X, srcRect.X+srcRect.W, f)
		horizontal = resampleHorizontal(src, srcRect.Y, srcRect.H, axH)
	} else {
		img, err := src.SubImage(srcRect)
		if err != nil {
			return New(0, 0)
		}
		horizontal = img
	}

	if !doVert {
		return horizontal
	}

	axV := computeAxisCoeffs(horizontal.Height, dstH, 0, horizontal.Height, f)
	transposed := horizontal.transpose()
	result := resampleHorizontal(transposed, 0, transposed.Height, axV)
	return result.transpose()
}
