package features

import (
	"math"
	"testing"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

func TestComputeConstantImage(t *testing.T) {
	img := imaging.New(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, 10, 20, 30)
		}
	}
	v := Compute(img, img.Full())
	for block := 0; block < BlockGrid*BlockGrid; block++ {
		idx := block * 3
		if v[idx] != 10 || v[idx+1] != 20 || v[idx+2] != 30 {
			t.Fatalf("block %d: got %v,%v,%v want 10,20,30", block, v[idx], v[idx+1], v[idx+2])
		}
	}
}

func TestComputeAbsorbsRemainder(t *testing.T) {
	img := imaging.New(10, 10) // not evenly divisible by BlockGrid=4
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, 1, 1, 1)
		}
	}
	v := Compute(img, img.Full())
	for i := 0; i < Count; i++ {
		if v[i] != 1 {
			t.Fatalf("value %d: got %v want 1 (remainder pixels must still be covered)", i, v[i])
		}
	}
}

func TestDistanceZeroForIdentical(t *testing.T) {
	img := imaging.New(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, uint8(x*10), uint8(y*10), 50)
		}
	}
	v := Compute(img, img.Full())
	if d := Distance(v, v); d != 0 {
		t.Fatalf("expected 0 distance for identical vectors, got %v", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	var a, b Vector
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(Count - i)
	}
	d1 := Distance(a, b)
	d2 := Distance(b, a)
	if math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestDistanceNonNegative(t *testing.T) {
	var a, b Vector
	for i := range a {
		a[i] = float64(i % 256)
		b[i] = float64((i * 7) % 256)
	}
	if Distance(a, b) < 0 {
		t.Fatalf("distance must be non-negative")
	}
}
