package catalog

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/julianbustillos/photomosaic/internal/logging"
)

func writeSolidPNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// writeNoisePNG writes a gray image made of 8x8-pixel blocks of random
// intensity drawn from a generator seeded with seed.
func writeNoisePNG(t *testing.T, path string, w, h int, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for by := 0; by < h; by += 8 {
		for bx := 0; bx < w; bx += 8 {
			v := uint8(rng.Intn(256))
			for y := by; y < by+8 && y < h; y++ {
				for x := bx; x < bx+8 && x < w; x++ {
					img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
				}
			}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestEnumerateExcludesTempDir(t *testing.T) {
	dir := t.TempDir()
	writeSolidPNG(t, filepath.Join(dir, "a.png"), 8, 8, color.RGBA{1, 2, 3, 255})

	tempDir := dir + tempDirSuffix
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSolidPNG(t, filepath.Join(tempDir, "should_be_ignored.png"), 8, 8, color.RGBA{9, 9, 9, 255})

	paths, err := enumerate(dir)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 file outside temp dir, got %d: %v", len(paths), paths)
	}
}

func TestEnumerateFiltersExtension(t *testing.T) {
	dir := t.TempDir()
	writeSolidPNG(t, filepath.Join(dir, "a.png"), 8, 8, color.RGBA{1, 2, 3, 255})
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := enumerate(dir)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected only the .png to be enumerated, got %v", paths)
	}
}

// S2 — hash deduplication: two extra identical copies of a tile, amid
// enough distinct tiles to survive cleanup, must be removed, keeping the
// first occurrence.
func TestCleanupDedupesIdenticalTiles(t *testing.T) {
	dir := t.TempDir()

	writeSolidPNG(t, filepath.Join(dir, "000_original.png"), 64, 64, color.RGBA{10, 20, 30, 255})
	writeSolidPNG(t, filepath.Join(dir, "001_dup_a.png"), 64, 64, color.RGBA{10, 20, 30, 255})
	writeSolidPNG(t, filepath.Join(dir, "002_dup_b.png"), 64, 64, color.RGBA{10, 20, 30, 255})

	for i := 0; i < MinTiles-1; i++ {
		// distinct per-tile block patterns so no two collide under the dedup
		// threshold (flat colors would not do: every flat image hashes to 0).
		writeNoisePNG(t, filepath.Join(dir, "noise_"+itoa(i)+".png"), 64, 64, int64(i+1))
	}

	paths, err := enumerate(dir)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}

	survivors, err := cleanup(paths, 4, logging.Nop(), false)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if len(survivors) != MinTiles {
		t.Fatalf("expected %d survivors (2 duplicates removed), got %d", MinTiles, len(survivors))
	}

	found := false
	for _, p := range survivors {
		if filepath.Base(p) == "000_original.png" {
			found = true
		}
		if filepath.Base(p) == "001_dup_a.png" || filepath.Base(p) == "002_dup_b.png" {
			t.Fatalf("duplicate %s should have been removed", p)
		}
	}
	if !found {
		t.Fatalf("the first occurrence of the duplicate class should survive")
	}
}

func TestCleanupAbortsBelowMinimum(t *testing.T) {
	dir := t.TempDir()
	writeSolidPNG(t, filepath.Join(dir, "a.png"), 8, 8, color.RGBA{1, 2, 3, 255})

	paths, err := enumerate(dir)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	survivors, err := cleanup(paths, 1, logging.Nop(), false)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(survivors) >= MinTiles {
		t.Fatalf("test setup error: expected fewer than MinTiles survivors")
	}

	_, err = Build(Options{TilesDir: dir, TileWidth: 8, TileHeight: 8, Workers: 1})
	if err == nil {
		t.Fatalf("expected Build to abort with too few surviving tiles")
	}
	if !errors.Is(err, ErrInsufficientTiles) {
		t.Fatalf("expected ErrInsufficientTiles, got %v", err)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
