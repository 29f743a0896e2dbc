//go:build gocv

package roi

import (
	"fmt"
	stdimage "image"

	"gocv.io/x/gocv"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

// gocvDetector wraps a gocv.FaceDetectorYN. One instance is created per
// catalog worker (see internal/catalog); a Mat-backed detector is not safe
// to share across goroutines.
type gocvDetector struct {
	net gocv.FaceDetectorYN
}

// NewGocvDetector loads the YuNet ONNX face detector from modelPath when
// built with -tags gocv. The score/NMS thresholds passed to the backend
// here only bound what it reports at all; the 0.8/0.5 policy thresholds in
// roi.go are applied afterward regardless of what the backend passes
// through.
func NewGocvDetector(modelPath string) (Detector, error) {
	net := gocv.NewFaceDetectorYN(modelPath, "", stdimage.Point{}, 0.3, 0.3, 5000)
	return &gocvDetector{net: net}, nil
}

func (d *gocvDetector) SetInputSize(width, height int) {
	d.net.SetInputSize(stdimage.Point{X: width, Y: height})
}

func (d *gocvDetector) Detect(img *imaging.Image) ([]Detection, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	faces := gocv.NewMat()
	defer faces.Close()

	if err := d.net.Detect(mat, &faces); err != nil {
		return nil, fmt.Errorf("roi: face detection failed: %w", err)
	}

	out := make([]Detection, 0, faces.Rows())
	for i := 0; i < faces.Rows(); i++ {
		out = append(out, Detection{
			X:          int(faces.GetFloatAt(i, 0)),
			Y:          int(faces.GetFloatAt(i, 1)),
			W:          int(faces.GetFloatAt(i, 2)),
			H:          int(faces.GetFloatAt(i, 3)),
			Confidence: float64(faces.GetFloatAt(i, 14)),
		})
	}
	return out, nil
}

// toMat copies img's BGR buffer into a gocv.Mat with matching layout, since
// gocv's own Mat is already BGR-ordered 8-bit 3-channel.
func toMat(img *imaging.Image) (gocv.Mat, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("roi: converting image to Mat: %w", err)
	}
	return mat, nil
}
