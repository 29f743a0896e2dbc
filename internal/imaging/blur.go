package imaging

import "math"

// boxRadiuses approximates a Gaussian of standard deviation sigma by three
// successive box blurs, following the van Vliet/Young construction: pick an
// ideal box width wIdeal from sigma, then split the passes between
// floor(wIdeal) (if even, minus one, to keep them odd) and the next odd
// width so their combined variance matches sigma^2 as closely as three
// integer-radius boxes allow.
func boxRadiuses(sigma float64, passes int) []int {
	if passes <= 0 {
		passes = 3
	}
	wIdeal := math.Sqrt(12.0*sigma*sigma/float64(passes) + 1)
	wl := int(math.Floor(wIdeal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2

	mIdeal := (12.0*sigma*sigma - float64(passes)*float64(wl)*float64(wl) -
		4.0*float64(passes)*float64(wl) - 3.0*float64(passes)) /
		(-4.0*float64(wl) - 4.0)
	m := int(math.Round(mIdeal))

	radiuses := make([]int, passes)
	for i := 0; i < passes; i++ {
		w := wu
		if i < m {
			w = wl
		}
		r := (w - 1) / 2
		if r < 0 {
			r = 0
		}
		radiuses[i] = r
	}
	return radiuses
}

// GaussianBlur applies an approximate Gaussian blur of standard deviation
// sigma to src, via three successive separable box blurs (row pass then
// column pass, three times), per spec component C1. sigma <= 0 returns an
// unmodified copy.
func GaussianBlur(src *Image, sigma float64) *Image {
	if sigma <= 0 {
		dst, _ := src.SubImage(src.Full())
		return dst
	}

	radiuses := boxRadiuses(sigma, 3)
	cur, _ := src.SubImage(src.Full())
	for _, r := range radiuses {
		if r <= 0 {
			continue
		}
		cur = boxBlurRows(cur, r)
		cur = boxBlurCols(cur, r)
	}
	return cur
}

// boxBlurRows applies a 1-D box blur of radius r along each row (horizontal
// axis), with edge pixels clamped (replicated) beyond the image bounds.
func boxBlurRows(src *Image, r int) *Image {
	dst := New(src.Width, src.Height)
	norm := 1.0 / float64(2*r+1)
	for y := 0; y < src.Height; y++ {
		var sumB, sumG, sumR float64
		for x := -r; x <= r; x++ {
			b, g, rr := src.At(clampCoord(x, src.Width), y)
			sumB += float64(b)
			sumG += float64(g)
			sumR += float64(rr)
		}
		dst.Set(0, y, clampToByte(sumB*norm), clampToByte(sumG*norm), clampToByte(sumR*norm))
		for x := 1; x < src.Width; x++ {
			bOut, gOut, rOut := src.At(clampCoord(x-r-1, src.Width), y)
			bIn, gIn, rIn := src.At(clampCoord(x+r, src.Width), y)
			sumB += float64(bIn) - float64(bOut)
			sumG += float64(gIn) - float64(gOut)
			sumR += float64(rIn) - float64(rOut)
			dst.Set(x, y, clampToByte(sumB*norm), clampToByte(sumG*norm), clampToByte(sumR*norm))
		}
	}
	return dst
}

// boxBlurCols applies a 1-D box blur of radius r along each column
// (vertical axis), mirroring boxBlurRows.
func boxBlurCols(src *Image, r int) *Image {
	dst := New(src.Width, src.Height)
	norm := 1.0 / float64(2*r+1)
	for x := 0; x < src.Width; x++ {
		var sumB, sumG, sumR float64
		for y := -r; y <= r; y++ {
			b, g, rr := src.At(x, clampCoord(y, src.Height))
			sumB += float64(b)
			sumG += float64(g)
			sumR += float64(rr)
		}
		dst.Set(x, 0, clampToByte(sumB*norm), clampToByte(sumG*norm), clampToByte(sumR*norm))
		for y := 1; y < src.Height; y++ {
			bOut, gOut, rOut := src.At(x, clampCoord(y-r-1, src.Height))
			bIn, gIn, rIn := src.At(x, clampCoord(y+r, src.Height))
			sumB += float64(bIn) - float64(bOut)
			sumG += float64(gIn) - float64(gOut)
			sumR += float64(rIn) - float64(rOut)
			dst.Set(x, y, clampToByte(sumB*norm), clampToByte(sumG*norm), clampToByte(sumR*norm))
		}
	}
	return dst
}

func clampCoord(v, size int) int {
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}
