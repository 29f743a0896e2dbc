package compose

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/julianbustillos/photomosaic/internal/catalog"
	"github.com/julianbustillos/photomosaic/internal/encode"
	"github.com/julianbustillos/photomosaic/internal/features"
	"github.com/julianbustillos/photomosaic/internal/imaging"
	"github.com/julianbustillos/photomosaic/internal/reference"
	"github.com/julianbustillos/photomosaic/internal/solver"
)

func writeSolidTilePNG(t *testing.T, dir, name string, b, g, r uint8) string {
	t.Helper()
	img := imaging.New(64, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, b, g, r)
		}
	}
	enc := encode.NewPNGEncoder(0)
	data, err := enc.Encode(img.ToStdImage())
	if err != nil {
		t.Fatalf("encoding test tile: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing test tile: %v", err)
	}
	return path
}

func constantImage(w, h int, b, g, r uint8) *imaging.Image {
	img := imaging.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, b, g, r)
		}
	}
	return img
}

// S1 — a trivial 1x1 grid with a pre-sized, constant-color tile must
// produce a mosaic_100.jpg of the same size whose every pixel is close to
// the tile color (within JPEG quantization and the blending-attenuation
// bound, both negligible for a perfect distribution match).
func TestBuildTrivialGridProducesExpectedMosaic(t *testing.T) {
	dir := t.TempDir()
	tilePath := writeSolidTilePNG(t, dir, "tile_0.png", 128, 128, 128)

	cat := &catalog.Catalog{Tiles: []catalog.Tile{
		{SourcePath: tilePath, ExportedPath: tilePath, Features: features.Vector{}},
	}}

	src := constantImage(64, 64, 128, 128, 128)
	ref, err := reference.Load(src, reference.LoadOptions{Grid: reference.Grid{W: 1, H: 1}, Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("reference.Load: %v", err)
	}

	sol := &solver.Solution{MatchingIDs: []int{0}, UniqueIDs: []int{0}}

	outDir := t.TempDir()
	paths, err := Build(ref, cat, sol, Options{OutputDir: outDir, Blending: Blending{Step: 1, Min: 1, Max: 1}, Workers: 2, Seeded: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 mosaic, got %d", len(paths))
	}
	if filepath.Base(paths[0]) != "mosaic_100.jpg" {
		t.Fatalf("expected mosaic_100.jpg, got %s", filepath.Base(paths[0]))
	}

	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 64 {
		t.Fatalf("expected 64x64 mosaic, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	const tol = 5
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
			if absDiff(r8, 128) > tol || absDiff(g8, 128) > tol || absDiff(b8, 128) > tol {
				t.Fatalf("expected pixel (%d,%d) near (128,128,128), got (%d,%d,%d)", x, y, r8, g8, b8)
			}
		}
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestBlendingStepsSingleWhenMaxNotAboveMin(t *testing.T) {
	steps := Blending{Step: 0.1, Min: 0.5, Max: 0.5}.steps()
	if len(steps) != 1 || steps[0] != 0.5 {
		t.Fatalf("expected a single step at 0.5, got %v", steps)
	}
}

func TestBlendingStepsRange(t *testing.T) {
	steps := Blending{Step: 0.25, Min: 0, Max: 1}.steps()
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d (%v)", len(want), len(steps), steps)
	}
	for i := range want {
		if absFloat(steps[i]-want[i]) > 1e-9 {
			t.Fatalf("step %d: got %v, want %v", i, steps[i], want[i])
		}
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestBuildFailsOnUnmatchedCell(t *testing.T) {
	dir := t.TempDir()
	tilePath := writeSolidTilePNG(t, dir, "tile_0.png", 10, 10, 10)
	cat := &catalog.Catalog{Tiles: []catalog.Tile{{SourcePath: tilePath, ExportedPath: tilePath}}}

	src := constantImage(64, 64, 10, 10, 10)
	ref, err := reference.Load(src, reference.LoadOptions{Grid: reference.Grid{W: 1, H: 1}, Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("reference.Load: %v", err)
	}
	sol := &solver.Solution{MatchingIDs: []int{-1}}

	_, err = Build(ref, cat, sol, Options{OutputDir: t.TempDir(), Blending: Blending{Step: 1, Min: 1, Max: 1}, Workers: 1})
	if err == nil {
		t.Fatalf("expected an error for an unmatched cell")
	}
}
