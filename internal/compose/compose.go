// Package compose blits matched tiles onto one mosaic canvas per blending
// level, color-enhancing each tile towards the reference region it
// replaces (spec component C10).
package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/julianbustillos/photomosaic/internal/catalog"
	"github.com/julianbustillos/photomosaic/internal/encode"
	"github.com/julianbustillos/photomosaic/internal/enhance"
	"github.com/julianbustillos/photomosaic/internal/imaging"
	"github.com/julianbustillos/photomosaic/internal/logging"
	"github.com/julianbustillos/photomosaic/internal/progress"
	"github.com/julianbustillos/photomosaic/internal/reference"
	"github.com/julianbustillos/photomosaic/internal/solver"
)

// jpegQuality is the fixed export quality for every mosaic level.
const jpegQuality = 100

// Blending describes the range of blending strengths to render, one mosaic
// per step from Min to Max inclusive (Max included only if it lands exactly
// on a step).
type Blending struct {
	Step, Min, Max float64
}

// steps enumerates the blending values to render: a single Min-only mosaic
// when Max <= Min, otherwise every Min + k*Step up to and including Max.
func (b Blending) steps() []float64 {
	size := b.Max - b.Min
	n := 1
	if size > 0 {
		n = int(size/b.Step) + 1
	}
	out := make([]float64, n)
	for s := 0; s < n; s++ {
		out[s] = b.Min + float64(s)*b.Step
	}
	return out
}

// Options configures mosaic composition.
type Options struct {
	OutputDir    string
	Blending     Blending
	Workers      int
	Seeded       bool // reproducible GMM color-reshape fits, for tests
	Logger       logging.Logger
	ShowProgress bool
}

// cellPlan is one cell's precomputed enhancer and assigned tile image,
// ready to be rendered at any blending step.
type cellPlan struct {
	box      imaging.Rect
	tile     *imaging.Image
	enhancer *enhance.Enhancer
}

// Build renders one JPEG mosaic per blending step into opts.OutputDir,
// returning the written file paths in step order. ref and cat must already
// reflect sol's grid; every cell must have a non-negative match.
func Build(ref *reference.Reference, cat *catalog.Catalog, sol *solver.Solution, opts Options) ([]string, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	plans, err := buildPlans(ref, cat, sol, opts, log)
	if err != nil {
		return nil, err
	}

	mosaicW := ref.TileSize.W * ref.Grid.W
	mosaicH := ref.TileSize.H * ref.Grid.H
	steps := opts.Blending.steps()

	canvases := make([]*imaging.Image, len(steps))
	for s := range canvases {
		canvases[s] = imaging.New(mosaicW, mosaicH)
	}

	for m, plan := range plans {
		_ = m
		for s, blending := range steps {
			paintTile(canvases[s], plan, blending)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("compose: creating output directory %s: %w", opts.OutputDir, err)
	}

	enc := encode.NewJPEGEncoder(jpegQuality)
	paths := make([]string, len(steps))
	for s, blending := range steps {
		name := fmt.Sprintf("mosaic_%03d.jpg", int(blending*100))
		path := filepath.Join(opts.OutputDir, name)
		data, err := enc.Encode(canvases[s].ToStdImage())
		if err != nil {
			return nil, fmt.Errorf("compose: encoding %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("compose: writing %s: %w", path, err)
		}
		log.Info("compose", "mosaic exported", map[string]interface{}{"path": path, "blending": blending})
		paths[s] = path
	}
	return paths, nil
}

// paintTile applies the cell's color enhancement at blending and copies the
// result into canvas at the cell's box; boxes never overlap across cells so
// this is safe to call concurrently across cells (not across steps of the
// same cell against the same canvas, which is why Build's blending loop is
// the inner one).
func paintTile(canvas *imaging.Image, plan cellPlan, blending float64) {
	enhanced := plan.enhancer.ApplyImage(plan.tile, blending)
	for y := 0; y < plan.box.H; y++ {
		for x := 0; x < plan.box.W; x++ {
			b, g, r := enhanced.At(x, y)
			canvas.Set(plan.box.X+x, plan.box.Y+y, b, g, r)
		}
	}
	imaging.Put(enhanced)
}

// buildPlans loads every assigned tile and computes its color enhancer in
// parallel worker goroutines, mirroring the catalog package's compute pool.
func buildPlans(ref *reference.Reference, cat *catalog.Catalog, sol *solver.Solution, opts Options, log logging.Logger) ([]cellPlan, error) {
	cells := len(sol.MatchingIDs)
	plans := make([]cellPlan, cells)
	errCh := make(chan error, 1)
	var failed atomic.Bool

	var bar *progress.Bar
	if opts.ShowProgress {
		bar = progress.New("Mosaic", "cells", int64(cells))
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if failed.Load() {
					continue
				}
				if bar != nil {
					bar.Increment()
				}

				plan, err := buildCellPlan(ref, cat, sol, m, opts.Seeded)
				if err != nil {
					if failed.CompareAndSwap(false, true) {
						errCh <- fmt.Errorf("compose: cell %d: %w", m, err)
					}
					continue
				}
				plans[m] = plan
			}
		}()
	}
	for m := range plans {
		jobs <- m
	}
	close(jobs)
	wg.Wait()
	if bar != nil {
		bar.Finish()
	}

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	return plans, nil
}

func buildCellPlan(ref *reference.Reference, cat *catalog.Catalog, sol *solver.Solution, m int, seeded bool) (cellPlan, error) {
	tileIdx := sol.MatchingIDs[m]
	if tileIdx < 0 {
		return cellPlan{}, fmt.Errorf("cell has no matched tile")
	}
	catTile := cat.Tiles[tileIdx]

	data, err := os.ReadFile(catTile.ExportedPath)
	if err != nil {
		return cellPlan{}, fmt.Errorf("reading exported tile %s: %w", catTile.ExportedPath, err)
	}
	decoded, err := encode.DecodeFile(catTile.ExportedPath, data)
	if err != nil {
		return cellPlan{}, fmt.Errorf("decoding exported tile %s: %w", catTile.ExportedPath, err)
	}
	tile := imaging.FromStdImage(decoded)

	box := ref.TileBox(m)
	targetCDF := enhance.ImageCDF(ref.Image, box)
	tileCDF := enhance.ImageCDF(tile, tile.Full())
	targetPixels := enhance.ChannelPixels(ref.Image, box)
	tilePixels := enhance.ChannelPixels(tile, tile.Full())

	enhancer := enhance.New(targetCDF, tileCDF, tilePixels, targetPixels, seeded)

	return cellPlan{box: box, tile: tile, enhancer: enhancer}, nil
}
