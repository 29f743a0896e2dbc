package imaging

import "testing"

func TestGetReturnsZeroedBuffer(t *testing.T) {
	img := Get(4, 4)
	img.Set(1, 1, 9, 9, 9)
	Put(img)

	reused := Get(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			b, g, r := reused.At(x, y)
			if b != 0 || g != 0 || r != 0 {
				t.Fatalf("pixel (%d,%d) not zeroed after reuse: got %d,%d,%d", x, y, b, g, r)
			}
		}
	}
}

func TestGetKeysBySize(t *testing.T) {
	a := Get(8, 8)
	Put(a)
	b := Get(4, 4)
	if b.Width != 4 || b.Height != 4 {
		t.Fatalf("Get(4,4) returned a %dx%d buffer", b.Width, b.Height)
	}
}

func TestPutNilIsIgnored(t *testing.T) {
	Put(nil)
}
