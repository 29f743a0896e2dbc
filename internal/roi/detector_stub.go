//go:build !gocv

package roi

import "github.com/julianbustillos/photomosaic/internal/imaging"

// NewDefaultDetector returns a Detector that reports no faces, used when
// the module is built without the gocv tag (no OpenCV/ONNX runtime
// available). Callers fall back to the default ROI for every tile —
// functionally correct, just never face-aware.
func NewDefaultDetector() Detector {
	return noopDetector{}
}

type noopDetector struct{}

func (noopDetector) SetInputSize(width, height int) {}

func (noopDetector) Detect(img *imaging.Image) ([]Detection, error) {
	return nil, nil
}
