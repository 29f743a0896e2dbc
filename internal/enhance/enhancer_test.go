package enhance

import (
	"testing"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

func solid(w, h int, b, g, r uint8) *imaging.Image {
	img := imaging.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, b, g, r)
		}
	}
	return img
}

// S6 — identical tile and target distributions: the color map must be the
// identity and Apply must leave every value unchanged regardless of
// blending.
func TestIdenticalDistributionsYieldIdentityMapping(t *testing.T) {
	tile := solid(32, 32, 100, 120, 140)
	target := solid(32, 32, 100, 120, 140)

	tileCDF := ImageCDF(tile, tile.Full())
	targetCDF := ImageCDF(target, target.Full())
	tilePixels := ChannelPixels(tile, tile.Full())
	targetPixels := ChannelPixels(target, target.Full())

	e := New(targetCDF, tileCDF, tilePixels, targetPixels, true)
	if e.w1Distance > 1e-9 {
		t.Fatalf("expected near-zero W1 distance for identical distributions, got %v", e.w1Distance)
	}

	for _, blending := range []float64{0, 0.25, 0.5, 1} {
		out := e.ApplyImage(tile, blending)
		b, g, r := out.At(0, 0)
		if b != 100 || g != 120 || r != 140 {
			t.Fatalf("blending=%v: expected (100,120,140), got (%d,%d,%d)", blending, b, g, r)
		}
	}
}

// Blending-attenuation bound: the enhanced value must always lie between
// the original value and the fully-mapped value.
func TestApplyStaysWithinMappingBounds(t *testing.T) {
	tile := solid(16, 16, 10, 200, 50)
	target := solid(16, 16, 220, 30, 180)

	tileCDF := ImageCDF(tile, tile.Full())
	targetCDF := ImageCDF(target, target.Full())
	tilePixels := ChannelPixels(tile, tile.Full())
	targetPixels := ChannelPixels(target, target.Full())

	e := New(targetCDF, tileCDF, tilePixels, targetPixels, true)

	for c := 0; c < 3; c++ {
		var value uint8
		switch c {
		case 0:
			value = 10
		case 1:
			value = 200
		case 2:
			value = 50
		}
		mapped := e.colorMapping[c][value]
		for _, blending := range []float64{0, 0.3, 0.7, 1, 5} {
			out := int(e.Apply(c, value, blending))
			lo, hi := int(value), mapped
			if lo > hi {
				lo, hi = hi, lo
			}
			if out < lo || out > hi {
				t.Fatalf("channel %d blending %v: output %d outside [%d,%d]", c, blending, out, lo, hi)
			}
		}
	}
}

func TestBlendingZeroIsIdentity(t *testing.T) {
	tile := solid(8, 8, 5, 5, 5)
	target := solid(8, 8, 250, 250, 250)

	tileCDF := ImageCDF(tile, tile.Full())
	targetCDF := ImageCDF(target, target.Full())
	tilePixels := ChannelPixels(tile, tile.Full())
	targetPixels := ChannelPixels(target, target.Full())

	e := New(targetCDF, tileCDF, tilePixels, targetPixels, true)
	out := e.ApplyImage(tile, 0)
	b, g, r := out.At(0, 0)
	if b != 5 || g != 5 || r != 5 {
		t.Fatalf("blending=0 should leave the tile unchanged, got (%d,%d,%d)", b, g, r)
	}
}

func TestCDFMonotonicAndNormalized(t *testing.T) {
	img := solid(20, 10, 30, 60, 90)
	cdf := ImageCDF(img, img.Full())
	for c := 0; c < 3; c++ {
		if cdf[c][255] != 1 {
			t.Fatalf("channel %d: CDF[255] = %v, want 1", c, cdf[c][255])
		}
		for k := 1; k < 256; k++ {
			if cdf[c][k] < cdf[c][k-1] {
				t.Fatalf("channel %d: CDF not monotonic at %d", c, k)
			}
		}
	}
}

func TestW1DistanceZeroForIdenticalCDFs(t *testing.T) {
	img := solid(10, 10, 1, 2, 3)
	cdf := ImageCDF(img, img.Full())
	if d := W1Distance(cdf, cdf); d != 0 {
		t.Fatalf("expected 0 distance for identical CDFs, got %v", d)
	}
}
