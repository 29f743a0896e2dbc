package reference

import (
	"errors"
	"testing"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

func constantImage(w, h int, b, g, r uint8) *imaging.Image {
	img := imaging.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, b, g, r)
		}
	}
	return img
}

func TestLoadTrivialGrid(t *testing.T) {
	src := constantImage(64, 64, 128, 128, 128)
	ref, err := Load(src, LoadOptions{Grid: Grid{W: 1, H: 1}, Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ref.TileSize.W != 64 || ref.TileSize.H != 64 {
		t.Fatalf("expected tile size 64x64, got %dx%d", ref.TileSize.W, ref.TileSize.H)
	}
	box := ref.TileBox(0)
	if box.X != 0 || box.Y != 0 || box.W != 64 || box.H != 64 {
		t.Fatalf("expected box (0,0,64,64), got %+v", box)
	}
}

func TestLoadRejectsTooSmallTiles(t *testing.T) {
	src := constantImage(100, 100, 1, 1, 1)
	_, err := Load(src, LoadOptions{Grid: Grid{W: 10, H: 10}, Width: 100, Height: 100})
	if err == nil {
		t.Fatalf("expected an error for 10x10 tiles (below the 32x32 minimum)")
	}
	if !errors.Is(err, ErrGeometryInfeasible) {
		t.Fatalf("expected ErrGeometryInfeasible, got %v", err)
	}
}

func TestGridSplitCentersBorderOffset(t *testing.T) {
	src := constantImage(100, 100, 1, 1, 1)
	ref, err := Load(src, LoadOptions{Grid: Grid{W: 3, H: 3}, Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 100 / 3 = 33 per tile, 1 pixel leftover on each axis -> offset 0 (int
	// division of 1/2).
	box := ref.TileBox(0)
	if box.W != 33 || box.H != 33 || box.X != 0 || box.Y != 0 {
		t.Fatalf("expected box (0,0,33,33), got %+v", box)
	}
}

func TestCoordsMapping(t *testing.T) {
	g := Grid{W: 4, H: 3}
	row, col := g.Coords(5)
	if row != 1 || col != 1 {
		t.Fatalf("cell 5 in a 4-wide grid: got (row=%d,col=%d), want (1,1)", row, col)
	}
}

func TestScaleResamplesBySize(t *testing.T) {
	src := constantImage(200, 100, 1, 1, 1)
	ref, err := Load(src, LoadOptions{Grid: Grid{W: 1, H: 1}, Scale: 0.5})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ref.Image.Width != 100 || ref.Image.Height != 50 {
		t.Fatalf("expected scaled working resolution 100x50, got %dx%d", ref.Image.Width, ref.Image.Height)
	}
}
