package imaging

import "testing"

func solidImage(w, h int, b, g, r uint8) *Image {
	img := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, b, g, r)
		}
	}
	return img
}

func TestResampleIdentity(t *testing.T) {
	src := solidImage(16, 12, 10, 20, 30)
	for _, f := range []Filter{Area, Bicubic, Lanczos} {
		out := Resample(src, src.Full(), 16, 12, f)
		if out.Width != 16 || out.Height != 12 {
			t.Fatalf("filter %v: got %dx%d, want 16x12", f, out.Width, out.Height)
		}
		for y := 0; y < 12; y++ {
			for x := 0; x < 16; x++ {
				b, g, r := out.At(x, y)
				if b != 10 || g != 20 || r != 30 {
					t.Fatalf("filter %v: identity resample altered pixel (%d,%d): got %d,%d,%d", f, x, y, b, g, r)
				}
			}
		}
	}
}

// A constant-color source must resample to the same constant color
// regardless of scale: every kernel in use is normalized to sum to 1, so a
// flat field is a fixed point of the filter.
func TestResampleConstantColorPreserved(t *testing.T) {
	src := solidImage(40, 30, 100, 150, 200)
	cases := []struct{ w, h int }{
		{20, 15}, // downscale
		{80, 60}, // upscale
		{40, 15}, // mixed
	}
	for _, f := range []Filter{Area, Bicubic, Lanczos} {
		for _, c := range cases {
			out := Resample(src, src.Full(), c.w, c.h, f)
			for y := 0; y < c.h; y++ {
				for x := 0; x < c.w; x++ {
					b, g, r := out.At(x, y)
					if b != 100 || g != 150 || r != 200 {
						t.Fatalf("filter %v size %dx%d: pixel (%d,%d)=%d,%d,%d drifted from constant 100,150,200",
							f, c.w, c.h, x, y, b, g, r)
					}
				}
			}
		}
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestResampleEmptyOnBadInput(t *testing.T) {
	src := solidImage(10, 10, 1, 2, 3)
	if out := Resample(src, src.Full(), 0, 5, Lanczos); out.Width != 0 || out.Height != 0 {
		t.Fatalf("expected empty image for zero dst width, got %dx%d", out.Width, out.Height)
	}
	if out := Resample(src, Rect{5, 5, 10, 10}, 5, 5, Lanczos); out.Width != 0 {
		t.Fatalf("expected empty image for out-of-bounds rect, got %dx%d", out.Width, out.Height)
	}
}

func TestGaussianBlurPreservesConstantField(t *testing.T) {
	src := solidImage(32, 32, 77, 88, 99)
	out := GaussianBlur(src, 3.0)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			b, g, r := out.At(x, y)
			if b != 77 || g != 88 || r != 99 {
				t.Fatalf("blur altered constant field at (%d,%d): got %d,%d,%d", x, y, b, g, r)
			}
		}
	}
}

func TestGaussianBlurZeroSigmaIsCopy(t *testing.T) {
	src := solidImage(4, 4, 1, 2, 3)
	src.Set(2, 2, 9, 9, 9)
	out := GaussianBlur(src, 0)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			wb, wg, wr := src.At(x, y)
			gb, gg, gr := out.At(x, y)
			if wb != gb || wg != gg || wr != gr {
				t.Fatalf("zero-sigma blur modified pixel (%d,%d)", x, y)
			}
		}
	}
}
