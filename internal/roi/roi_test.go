package roi

import (
	"testing"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

func blankImage(w, h int) *imaging.Image {
	return imaging.New(w, h)
}

func TestFindDefaultROINoDetector(t *testing.T) {
	img := blankImage(1000, 800)
	r, err := Find(img, nil, 500, 500, false)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if r.W != 500 || r.H != 500 {
		t.Fatalf("got size %dx%d, want 500x500", r.W, r.H)
	}
	wantX := (1000 - 500) / 2
	wantY := (800 - 500) / 3
	if r.X != wantX || r.Y != wantY {
		t.Fatalf("default column-search ROI: got (%d,%d), want (%d,%d)", r.X, r.Y, wantX, wantY)
	}
}

func TestFindDefaultROIRowSearch(t *testing.T) {
	img := blankImage(1000, 800)
	r, err := Find(img, nil, 1000, 400, true)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	wantX := (1000 - 1000) / 2
	wantY := (800 - 400) / 2
	if r.X != wantX || r.Y != wantY {
		t.Fatalf("default row-search ROI: got (%d,%d), want (%d,%d)", r.X, r.Y, wantX, wantY)
	}
}

func TestFindSkipsDetectionWhenRatioAlreadyHigh(t *testing.T) {
	img := blankImage(1000, 800)
	// target height 750 / source height 800 = 0.9375 >= minCroppedRatio: no
	// detection needed even with a detector that would otherwise panic.
	det := &panicDetector{t: t}
	r, err := Find(img, det, 1000, 750, true)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if r.H != 750 {
		t.Fatalf("got height %d, want 750", r.H)
	}
}

type panicDetector struct{ t *testing.T }

func (p *panicDetector) SetInputSize(w, h int) { p.t.Fatal("detector should not have been invoked") }
func (p *panicDetector) Detect(img *imaging.Image) ([]Detection, error) {
	p.t.Fatal("detector should not have been invoked")
	return nil, nil
}

// stubDetector reports a single fixed face, scaled down by whatever
// SetInputSize was told so the mapped-back coordinates line up.
type stubDetector struct {
	face  Detection
	scale float64
}

func (s *stubDetector) SetInputSize(w, h int) {}
func (s *stubDetector) Detect(img *imaging.Image) ([]Detection, error) {
	return []Detection{{
		X:          int(float64(s.face.X) * s.scale),
		Y:          int(float64(s.face.Y) * s.scale),
		W:          int(float64(s.face.W) * s.scale),
		H:          int(float64(s.face.H) * s.scale),
		Confidence: s.face.Confidence,
	}}, nil
}

func TestFindCentersOnSingleDetectedFace(t *testing.T) {
	img := blankImage(1000, 2000)
	// row_search = true: free along y. A single face near y=1500 should
	// pull the crop window toward it rather than centering on the image.
	maxSize := 2000
	scale := float64(detectionInputSize) / float64(maxSize)
	det := &stubDetector{face: Detection{X: 400, Y: 1450, W: 200, H: 200, Confidence: 0.95}, scale: scale}

	r, err := Find(img, det, 1000, 300, true)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if r.Y < 1000 {
		t.Fatalf("expected crop centered near the detected face (y~1450), got y=%d", r.Y)
	}
	if r.X != 0 || r.W != 1000 {
		t.Fatalf("row-search crop must span the full width: got x=%d w=%d", r.X, r.W)
	}
}
