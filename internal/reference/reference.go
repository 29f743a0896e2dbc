// Package reference loads the reference photograph, resamples it to a
// working resolution, and slices it into the grid of tile-sized regions the
// match solver and composer operate on (spec component C6).
package reference

import (
	"errors"
	"fmt"
	"math"

	"github.com/julianbustillos/photomosaic/internal/features"
	"github.com/julianbustillos/photomosaic/internal/imaging"
)

// minTileDimension is the smallest tile_size.w or tile_size.h the geometry
// may resolve to; below this, per-block feature extraction (4x4) and color
// enhancement become meaningless.
const minTileDimension = 32

// ErrGeometryInfeasible reports a grid/scale/resolution combination that
// resolves to a tile size below minTileDimension in either axis.
var ErrGeometryInfeasible = errors.New("reference: infeasible geometry")

// Grid is the mosaic's cell layout: W_g columns by H_g rows.
type Grid struct {
	W, H int
}

// Cells returns the total cell count W_g * H_g.
func (g Grid) Cells() int { return g.W * g.H }

// Coords maps a flat cell index m to (row i, column j): i = m / W_g, j = m
// mod W_g, per the spec's Grid data model (i is the row, j the column).
func (g Grid) Coords(m int) (row, col int) {
	return m / g.W, m % g.W
}

// Reference holds the working-resolution image and its grid slicing.
type Reference struct {
	Image    *imaging.Image
	Grid     Grid
	TileSize imaging.Rect // W, H only are meaningful here
	offsetX  int
	offsetY  int
}

// LoadOptions configures how the raw reference image is resampled to a
// working resolution before slicing.
type LoadOptions struct {
	Grid Grid

	// Exactly one of Scale or (Width, Height) must be set.
	Scale         float64
	Width, Height int
	Crop          bool // only meaningful with Width/Height

	// Filter selects the resampling kernel (default imaging.Area, the zero
	// value; cmd/mosaic always passes the user's -resampling choice).
	Filter imaging.Filter
}

// Load resamples src per opts and slices the result into opts.Grid
// contiguous tile-sized regions, evenly splitting any leftover border
// pixels as a centered offset. Returns an error if the resolved tile size
// is smaller than 32x32 in either dimension.
func Load(src *imaging.Image, opts LoadOptions) (*Reference, error) {
	if opts.Grid.W <= 0 || opts.Grid.H <= 0 {
		return nil, fmt.Errorf("reference: grid dimensions must be positive, got %dx%d", opts.Grid.W, opts.Grid.H)
	}

	working, err := resampleToWorkingResolution(src, opts)
	if err != nil {
		return nil, err
	}

	tileW := working.Width / opts.Grid.W
	tileH := working.Height / opts.Grid.H
	if tileW < minTileDimension || tileH < minTileDimension {
		return nil, fmt.Errorf("%w: resolved tile size %dx%d is below the %dx%d minimum",
			ErrGeometryInfeasible, tileW, tileH, minTileDimension, minTileDimension)
	}

	usedW := tileW * opts.Grid.W
	usedH := tileH * opts.Grid.H
	offsetX := (working.Width - usedW) / 2
	offsetY := (working.Height - usedH) / 2

	return &Reference{
		Image:    working,
		Grid:     opts.Grid,
		TileSize: imaging.Rect{W: tileW, H: tileH},
		offsetX:  offsetX,
		offsetY:  offsetY,
	}, nil
}

// resampleToWorkingResolution implements the scale-vs-resolution branch,
// with resolution mode additionally supporting a letterbox/pillarbox crop:
// the resample target is computed to cover (Width, Height) while preserving
// aspect ratio, then the result is center-cropped down to exactly
// (Width, Height).
func resampleToWorkingResolution(src *imaging.Image, opts LoadOptions) (*imaging.Image, error) {
	if opts.Scale > 0 {
		w := int(math.Round(float64(src.Width) * opts.Scale))
		h := int(math.Round(float64(src.Height) * opts.Scale))
		return imaging.Resample(src, src.Full(), w, h, opts.Filter), nil
	}

	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("reference: neither scale nor resolution was specified")
	}

	if !opts.Crop {
		return imaging.Resample(src, src.Full(), opts.Width, opts.Height, opts.Filter), nil
	}

	srcAspect := float64(src.Width) / float64(src.Height)
	dstAspect := float64(opts.Width) / float64(opts.Height)

	var resampleW, resampleH int
	if srcAspect > dstAspect {
		resampleH = opts.Height
		resampleW = int(math.Round(float64(opts.Height) * srcAspect))
	} else {
		resampleW = opts.Width
		resampleH = int(math.Round(float64(opts.Width) / srcAspect))
	}

	oversized := imaging.Resample(src, src.Full(), resampleW, resampleH, opts.Filter)

	cropX := (oversized.Width - opts.Width) / 2
	cropY := (oversized.Height - opts.Height) / 2
	cropped, err := oversized.SubImage(imaging.Rect{X: cropX, Y: cropY, W: opts.Width, H: opts.Height})
	if err != nil {
		return nil, fmt.Errorf("reference: letterbox crop: %w", err)
	}
	return cropped, nil
}

// TileBox returns the (x, y, w, h) rectangle of cell m within the working
// resolution image.
func (r *Reference) TileBox(m int) imaging.Rect {
	row, col := r.Grid.Coords(m)
	return imaging.Rect{
		X: r.offsetX + col*r.TileSize.W,
		Y: r.offsetY + row*r.TileSize.H,
		W: r.TileSize.W,
		H: r.TileSize.H,
	}
}

// TileImage extracts the pixels of cell m as a standalone image.
func (r *Reference) TileImage(m int) (*imaging.Image, error) {
	return r.Image.SubImage(r.TileBox(m))
}

// Features returns the 48-value color descriptor of cell m's region,
// computed directly against the working-resolution image (no extra copy).
func (r *Reference) Features(m int) features.Vector {
	return features.Compute(r.Image, r.TileBox(m))
}
