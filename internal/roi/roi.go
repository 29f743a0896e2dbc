// Package roi chooses the sub-rectangle of a source tile that best matches
// a target aspect ratio, preferring regions that contain detected faces
// (spec component C4).
package roi

import (
	"sort"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

const (
	// minCroppedRatio is the threshold below which face detection is
	// worth running at all: if the naive centered crop already keeps at
	// least this fraction of the source along the search axis, detection
	// is skipped.
	minCroppedRatio = 0.9

	// highFaceConfidence and lowFaceConfidence gate which detections are
	// trusted: any detection at or above highFaceConfidence is preferred;
	// otherwise everything at or above lowFaceConfidence is used.
	highFaceConfidence = 0.8
	lowFaceConfidence  = 0.5

	// faceBoxTolerance allows the bounding box of the retained faces to
	// exceed the target extent by this fraction and still be accepted,
	// before falling back to fewer faces.
	faceBoxTolerance = 0.1

	// detectionInputSize is the longer-edge size detector input images
	// are normalized to, per the face detector contract.
	detectionInputSize = 640
)

// Detection is one face bounding box reported by a Detector, in the pixel
// coordinates of the image passed to Detect.
type Detection struct {
	X, Y, W, H int
	Confidence float64
}

// Detector is the narrow capability the ROI selector depends on: resize its
// internal model to expect width x height input, then report face
// boxes for an image already resampled to that size. Implementations are
// not required to be bit-compatible with any specific model.
//
// A Detector is not safe for concurrent use: per spec, each worker owns its
// own Detector instance.
type Detector interface {
	SetInputSize(width, height int)
	Detect(img *imaging.Image) ([]Detection, error)
}

// Find returns the sub-rectangle of img, sized targetW x targetH, to crop
// for use as a tile. rowSearch selects which axis is free to position: true
// frees the y axis (fixed x = 0, spanning the full scaled width), false
// frees the x axis.
//
// detector may be nil, in which case the default ROI is always used — this
// is the Non-goal-facing behavior when no face-detection backend is
// compiled in (see internal/roi's detector_stub.go).
func Find(img *imaging.Image, detector Detector, targetW, targetH int, rowSearch bool) (imaging.Rect, error) {
	box := imaging.Rect{W: targetW, H: targetH}

	var croppedRatio float64
	if rowSearch {
		croppedRatio = float64(box.H) / float64(img.Height)
	} else {
		croppedRatio = float64(box.W) / float64(img.Width)
	}

	if croppedRatio >= minCroppedRatio || detector == nil {
		return defaultROI(img, box, rowSearch), nil
	}

	detections, err := detectFaces(img, detector)
	if err != nil {
		return imaging.Rect{}, err
	}
	if len(detections) == 0 {
		return defaultROI(img, box, rowSearch), nil
	}

	if r, ok := detectionROI(img, detections, box, rowSearch); ok {
		return r, nil
	}
	return defaultROI(img, box, rowSearch), nil
}

// detectFaces resamples img (Area filter) so its longer edge matches
// detectionInputSize, runs the detector, and maps detections back to img's
// original pixel coordinates.
func detectFaces(img *imaging.Image, detector Detector) ([]Detection, error) {
	maxSize := img.Width
	if img.Height > maxSize {
		maxSize = img.Height
	}
	if maxSize == 0 {
		return nil, nil
	}

	scale := float64(detectionInputSize) / float64(maxSize)
	scaleInv := float64(maxSize) / float64(detectionInputSize)

	sw := int(float64(img.Width)*scale + 0.5)
	sh := int(float64(img.Height)*scale + 0.5)
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}

	small := imaging.Resample(img, img.Full(), sw, sh, imaging.Area)

	detector.SetInputSize(sw, sh)
	faces, err := detector.Detect(small)
	imaging.Put(small)
	if err != nil {
		return nil, err
	}

	out := make([]Detection, len(faces))
	for i, f := range faces {
		out[i] = Detection{
			X:          int(float64(f.X) * scaleInv),
			Y:          int(float64(f.Y) * scaleInv),
			W:          int(float64(f.W) * scaleInv),
			H:          int(float64(f.H) * scaleInv),
			Confidence: f.Confidence,
		}
	}
	return out, nil
}

// detectionROI implements the confidence filter, center-proximity sort, and
// incremental bounding-box search described in spec component C4.
func detectionROI(img *imaging.Image, detections []Detection, box imaging.Rect, rowSearch bool) (imaging.Rect, bool) {
	minConfidence := lowFaceConfidence
	for _, d := range detections {
		if d.Confidence >= highFaceConfidence {
			minConfidence = highFaceConfidence
			break
		}
	}

	var boxes []Detection
	for _, d := range detections {
		if d.Confidence >= minConfidence {
			boxes = append(boxes, d)
		}
	}
	if len(boxes) == 0 {
		return imaging.Rect{}, false
	}

	var imageCenter float64
	center := func(d Detection) float64 {
		if rowSearch {
			return float64(d.Y) + float64(d.H)*0.5
		}
		return float64(d.X) + float64(d.W)*0.5
	}
	if rowSearch {
		imageCenter = float64(img.Height) * 0.5
	} else {
		imageCenter = float64(img.Width) * 0.5
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		return absF(imageCenter-center(boxes[i])) < absF(imageCenter-center(boxes[j]))
	})

	for nbFaces := len(boxes); nbFaces > 0; nbFaces-- {
		minX, minY := img.Width, img.Height
		maxX, maxY := 0, 0
		for i := 0; i < nbFaces; i++ {
			d := boxes[i]
			if d.X < minX {
				minX = d.X
			}
			if d.X+d.W > maxX {
				maxX = d.X + d.W
			}
			if d.Y < minY {
				minY = d.Y
			}
			if d.Y+d.H > maxY {
				maxY = d.Y + d.H
			}
		}

		if rowSearch {
			extent := maxY - minY
			if nbFaces == 1 || float64(extent) <= float64(box.H)*(1+faceBoxTolerance) {
				y := (maxY + minY - box.H) / 2
				if y < 0 {
					y = 0
				} else if y+box.H > img.Height {
					y = img.Height - box.H
				}
				return imaging.Rect{X: 0, Y: y, W: box.W, H: box.H}, true
			}
		} else {
			extent := maxX - minX
			if nbFaces == 1 || float64(extent) <= float64(box.W)*(1+faceBoxTolerance) {
				x := (maxX + minX - box.W) / 2
				if x < 0 {
					x = 0
				} else if x+box.W > img.Width {
					x = img.Width - box.W
				}
				return imaging.Rect{X: x, Y: 0, W: box.W, H: box.H}, true
			}
		}
	}
	return imaging.Rect{}, false
}

// defaultROI centers the target box along y (row search) or places it at
// H/3 and centers along x (column search), with no face detection.
func defaultROI(img *imaging.Image, box imaging.Rect, rowSearch bool) imaging.Rect {
	x := (img.Width - box.W) / 2
	var y int
	if rowSearch {
		y = (img.Height - box.H) / 2
	} else {
		y = (img.Height - box.H) / 3
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return imaging.Rect{X: x, Y: y, W: box.W, H: box.H}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
