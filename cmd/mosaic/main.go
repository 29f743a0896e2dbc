// Command mosaic reconstructs a reference photograph as a grid of
// non-repeating, color-corrected tile images.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/julianbustillos/photomosaic/internal/catalog"
	"github.com/julianbustillos/photomosaic/internal/compose"
	"github.com/julianbustillos/photomosaic/internal/config"
	"github.com/julianbustillos/photomosaic/internal/encode"
	"github.com/julianbustillos/photomosaic/internal/features"
	"github.com/julianbustillos/photomosaic/internal/imaging"
	"github.com/julianbustillos/photomosaic/internal/logging"
	"github.com/julianbustillos/photomosaic/internal/reference"
	"github.com/julianbustillos/photomosaic/internal/solver"
	"github.com/rs/zerolog"
)

func main() {
	start := time.Now()

	opts, err := config.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("Configuration: %v", err)
	}

	level := zerolog.InfoLevel
	if !opts.Verbose {
		level = zerolog.WarnLevel
	}
	logger := logging.NewConsoleLogger(level)

	redundancy := opts.Redundancy
	if redundancy <= 0 {
		redundancy = solver.DefaultRedundancyRadius
	}

	fmt.Printf("photomosaic\n")
	fmt.Printf("  %-14s %s\n", "Photo:", opts.Photo)
	fmt.Printf("  %-14s %s\n", "Tiles:", opts.Tiles)
	fmt.Printf("  %-14s %d x %d\n", "Grid:", opts.GridW, opts.GridH)
	if opts.Scale > 0 {
		fmt.Printf("  %-14s x%v\n", "Scale:", opts.Scale)
	} else {
		crop := ""
		if opts.Crop {
			crop = " (cropped)"
		}
		fmt.Printf("  %-14s %dx%d%s\n", "Resolution:", opts.Width, opts.Height, crop)
	}
	fmt.Printf("  %-14s step %v, range [%v, %v]\n", "Blending:", opts.BlendingStep, opts.BlendingMin, opts.BlendingMax)
	fmt.Printf("  %-14s %s\n", "Resampling:", resamplingName(opts.Resampling))
	fmt.Printf("  %-14s %d\n", "Concurrency:", opts.Concurrency)
	fmt.Printf("  %-14s %d\n", "Redundancy:", redundancy)

	// Stage 1: load and slice the reference photo. This fixes tile_size,
	// which the catalog needs before it can crop/resample candidate tiles.
	refStart := time.Now()
	photoData, err := os.ReadFile(opts.Photo)
	if err != nil {
		log.Fatalf("Reading reference photo: %v", err)
	}
	decodedPhoto, err := encode.DecodeFile(opts.Photo, photoData)
	if err != nil {
		log.Fatalf("Decoding reference photo: %v", err)
	}
	src := imaging.FromStdImage(decodedPhoto)

	ref, err := reference.Load(src, reference.LoadOptions{
		Grid:   reference.Grid{W: opts.GridW, H: opts.GridH},
		Scale:  opts.Scale,
		Width:  opts.Width,
		Height: opts.Height,
		Crop:   opts.Crop,
		Filter: opts.Resampling,
	})
	if err != nil {
		log.Fatalf("Reference: %v", err)
	}
	if opts.Verbose {
		log.Printf("Reference sliced into %d cells (tile size %dx%d) in %v",
			ref.Grid.Cells(), ref.TileSize.W, ref.TileSize.H, time.Since(refStart).Round(time.Millisecond))
	}

	// Stage 2: build the tile catalog at that tile size.
	catalogStart := time.Now()
	cat, err := catalog.Build(catalog.Options{
		TilesDir:     opts.Tiles,
		TileWidth:    ref.TileSize.W,
		TileHeight:   ref.TileSize.H,
		Resampling:   opts.Resampling,
		Workers:      opts.Concurrency,
		Redundancy:   redundancy,
		Logger:       logger,
		ShowProgress: opts.Verbose,
	})
	if err != nil {
		log.Fatalf("Catalog: %v", err)
	}
	defer cat.Close()
	if opts.Verbose {
		log.Printf("Catalog built: %d tiles in %v", len(cat.Tiles), time.Since(catalogStart).Round(time.Millisecond))
	}

	// Stage 3: solve the assignment.
	solveStart := time.Now()
	cellFeatures := make([]features.Vector, ref.Grid.Cells())
	for m := range cellFeatures {
		cellFeatures[m] = ref.Features(m)
	}
	tileFeatures := make([]features.Vector, len(cat.Tiles))
	for i, tile := range cat.Tiles {
		tileFeatures[i] = tile.Features
	}

	grid := solver.Grid{W: ref.Grid.W, H: ref.Grid.H}
	sol, err := solver.Solve(grid, cellFeatures, tileFeatures, redundancy)
	if err != nil {
		log.Fatalf("Match solver: %v", err)
	}
	if opts.Verbose {
		log.Printf("Solved assignment for %d cells using %d distinct tiles in %v",
			len(sol.MatchingIDs), len(sol.UniqueIDs), time.Since(solveStart).Round(time.Millisecond))
	}

	// Stage 4: compose the mosaics.
	composeStart := time.Now()
	outputDir := filepath.Dir(opts.Photo)
	paths, err := compose.Build(ref, cat, sol, compose.Options{
		OutputDir:    outputDir,
		Blending:     compose.Blending{Step: opts.BlendingStep, Min: opts.BlendingMin, Max: opts.BlendingMax},
		Workers:      opts.Concurrency,
		Seeded:       opts.Seed,
		Logger:       logger,
		ShowProgress: opts.Verbose,
	})
	if err != nil {
		log.Fatalf("Compose: %v", err)
	}
	if opts.Verbose {
		log.Printf("Composed %d mosaic(s) in %v", len(paths), time.Since(composeStart).Round(time.Millisecond))
	}

	fmt.Printf("Done: %d mosaic(s) in %v\n", len(paths), time.Since(start).Round(time.Millisecond))
}

func resamplingName(f imaging.Filter) string {
	switch f {
	case imaging.Area:
		return "area"
	case imaging.Bicubic:
		return "bicubic"
	case imaging.Lanczos:
		return "lanczos"
	default:
		return "unknown"
	}
}
