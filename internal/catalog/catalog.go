// Package catalog enumerates a tile directory, deduplicates near-identical
// images by perceptual hash, and crops/resamples survivors into a working
// set of fixed-size exported tiles with precomputed color features (spec
// component C5).
package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/julianbustillos/photomosaic/internal/encode"
	"github.com/julianbustillos/photomosaic/internal/features"
	"github.com/julianbustillos/photomosaic/internal/imaging"
	"github.com/julianbustillos/photomosaic/internal/logging"
	"github.com/julianbustillos/photomosaic/internal/phash"
	"github.com/julianbustillos/photomosaic/internal/progress"
	"github.com/julianbustillos/photomosaic/internal/roi"
	"github.com/julianbustillos/photomosaic/internal/solver"
)

// MinTiles is the smallest surviving catalog size the match solver can
// guarantee a non-redundant assignment from at the default redundancy
// radius. Callers that let the user override the radius (-redundancy)
// should check against solver.MinCandidatesFor(radius) instead.
const MinTiles = solver.MinCandidates

// ErrInsufficientTiles reports too few surviving tiles for the match solver
// to guarantee a non-redundant assignment at the configured radius.
var ErrInsufficientTiles = errors.New("catalog: insufficient surviving tiles")

// hashDedupFraction (alpha) and hashDedupDistance derive the cleanup
// dedup threshold: floor(128 * alpha).
const hashDedupFraction = 0.16

var hashDedupDistance = int(math.Floor(128 * hashDedupFraction))

// tempDirSuffix names the per-tiles-directory scratch folder, excluded from
// enumeration so re-running the tool over its own output is a no-op.
const tempDirSuffix = "PMG_temp"

// supportedExtensions is the enumeration allow-list, matching the formats
// internal/encode.DecodeFile understands.
var supportedExtensions = map[string]bool{
	"bmp": true, "dib": true,
	"jpeg": true, "jpg": true, "jpe": true,
	"jp2": true, "png": true, "webp": true,
	"pbm": true, "pgm": true, "ppm": true, "pxm": true, "pnm": true,
	"tiff": true, "tif": true,
}

// Tile is one surviving catalog entry: its source path, the path of its
// cropped/resampled export, and its precomputed color descriptor.
type Tile struct {
	SourcePath   string
	ExportedPath string
	Features     features.Vector
}

// Catalog owns the surviving Tile set and the temp directory their exports
// live in. Close removes the temp directory; callers should always defer it.
type Catalog struct {
	Tiles   []Tile
	tempDir string
}

// Options configures catalog construction.
type Options struct {
	TilesDir     string
	TileWidth    int
	TileHeight   int
	Resampling   imaging.Filter // resampling kernel for the ROI crop (default imaging.Area, the zero value)
	Workers      int
	Redundancy   int // match-solver radius the cleanup threshold must satisfy; 0 uses solver.DefaultRedundancyRadius
	NewDetector  func() roi.Detector // nil uses roi.NewDefaultDetector
	Logger       logging.Logger
	ShowProgress bool
}

// Build enumerates TilesDir, removes decode failures and near-duplicates,
// aborts if fewer than solver.MinCandidatesFor(opts.Redundancy) survive
// (MinTiles when Redundancy is 0), then crops/resamples/features the
// rest into tempDir = TilesDir + "PMG_temp". The returned Catalog owns that
// directory; callers must Close it.
func Build(opts Options) (*Catalog, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.NewDetector == nil {
		opts.NewDetector = func() roi.Detector { return roi.NewDefaultDetector() }
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	paths, err := enumerate(opts.TilesDir)
	if err != nil {
		return nil, fmt.Errorf("catalog: enumerating %s: %w", opts.TilesDir, err)
	}
	log.Info("catalog", "enumerated candidate tiles", map[string]interface{}{"count": len(paths)})

	survivors, err := cleanup(paths, opts.Workers, log, opts.ShowProgress)
	if err != nil {
		return nil, err
	}
	minTiles := solver.MinCandidatesFor(opts.Redundancy)
	if opts.Redundancy <= 0 {
		minTiles = MinTiles
	}
	if len(survivors) < minTiles {
		return nil, fmt.Errorf("%w: only %d tiles survived cleanup, need at least %d", ErrInsufficientTiles, len(survivors), minTiles)
	}
	log.Info("catalog", "cleanup complete", map[string]interface{}{"survivors": len(survivors)})

	tempDir := strings.TrimRight(opts.TilesDir, string(filepath.Separator)) + tempDirSuffix
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("catalog: creating temp directory %s: %w", tempDir, err)
	}

	tiles, err := compute(survivors, tempDir, opts, log)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	return &Catalog{Tiles: tiles, tempDir: tempDir}, nil
}

// Close removes the catalog's temp directory. Safe to call multiple times.
func (c *Catalog) Close() error {
	if c.tempDir == "" {
		return nil
	}
	err := os.RemoveAll(c.tempDir)
	c.tempDir = ""
	return err
}

// enumerate recursively walks dir, returning file paths whose extension is
// in supportedExtensions, skipping the catalog's own temp subdirectory.
func enumerate(dir string) ([]string, error) {
	tempDir := strings.TrimRight(dir, string(filepath.Separator)) + tempDirSuffix
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path == tempDir {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if supportedExtensions[ext] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

type hashedTile struct {
	path string
	hash phash.Hash
	ok   bool
}

// cleanup computes a DHash per tile in parallel, then removes decode
// failures and duplicates: for every ordered pair (t1, t2) with t1 before
// t2 in enumeration order and both decodable, t2 is marked a duplicate if
// it falls within hashDedupDistance of t1 — even when t1 is itself already
// marked a duplicate of something earlier. Chains therefore collapse
// transitively (A, B-dup-of-A, C-dup-of-B-but-not-A all drop but A), matching
// TilesCleanerImpl::clean's double loop rather than comparing only against
// tiles that ultimately survive.
func cleanup(paths []string, workers int, log logging.Logger, showProgress bool) ([]string, error) {
	results := make([]hashedTile, len(paths))

	var bar *progress.Bar
	if showProgress {
		bar = progress.New("Cleanup", "tiles", int64(len(paths)))
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				data, err := os.ReadFile(paths[i])
				if err != nil {
					results[i] = hashedTile{path: paths[i], ok: false}
					if bar != nil {
						bar.Increment()
					}
					continue
				}
				img, err := encode.DecodeFile(paths[i], data)
				if err != nil {
					results[i] = hashedTile{path: paths[i], ok: false}
					if bar != nil {
						bar.Increment()
					}
					continue
				}
				h := phash.Compute(imaging.FromStdImage(img))
				results[i] = hashedTile{path: paths[i], hash: h, ok: true}
				if bar != nil {
					bar.Increment()
				}
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if bar != nil {
		bar.Finish()
	}

	var decodable []hashedTile
	for _, r := range results {
		if !r.ok {
			log.Warning("catalog", "dropping undecodable tile", map[string]interface{}{"path": r.path})
			continue
		}
		decodable = append(decodable, r)
	}

	duplicate := make([]bool, len(decodable))
	for t1 := 0; t1 < len(decodable)-1; t1++ {
		for t2 := t1 + 1; t2 < len(decodable); t2++ {
			if phash.Distance(decodable[t1].hash, decodable[t2].hash) <= hashDedupDistance {
				duplicate[t2] = true
			}
		}
	}

	var out []string
	for i, d := range decodable {
		if !duplicate[i] {
			out = append(out, d.path)
		}
	}
	return out, nil
}

// compute crops, resamples, and feature-extracts each surviving path in
// parallel workers, each owning its own face-detector instance, writing PNG
// exports to tempDir.
func compute(paths []string, tempDir string, opts Options, log logging.Logger) ([]Tile, error) {
	digits := len(strconv.Itoa(len(paths) - 1))
	pngEncoder := encode.NewPNGEncoder(0)

	tiles := make([]Tile, len(paths))
	errCh := make(chan error, 1)
	var failed atomic.Bool

	var bar *progress.Bar
	if opts.ShowProgress {
		bar = progress.New("Tiles", "tiles", int64(len(paths)))
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detector := opts.NewDetector()
			for i := range jobs {
				if failed.Load() {
					continue
				}
				if bar != nil {
					bar.Increment()
				}

				t, err := computeOne(paths[i], i, digits, tempDir, opts.TileWidth, opts.TileHeight, opts.Resampling, detector, pngEncoder)
				if err != nil {
					if failed.CompareAndSwap(false, true) {
						errCh <- fmt.Errorf("catalog: computing tile %s: %w", paths[i], err)
					}
					continue
				}
				tiles[i] = t
			}
		}()
	}
	for i := range paths {
		jobs <- i
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
	return tiles, nil
}

func computeOne(path string, index, digits int, tempDir string, tileW, tileH int, filter imaging.Filter, detector roi.Detector, enc *encode.PNGEncoder) (Tile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tile{}, err
	}
	decoded, err := encode.DecodeFile(path, data)
	if err != nil {
		return Tile{}, err
	}
	img := imaging.FromStdImage(decoded)

	cropRect := cropBox(img, tileW, tileH)
	rowSearch := false
	if img.Width > 0 && img.Height > 0 {
		wScaleInv := float64(img.Width) / float64(tileW)
		hScaleInv := float64(img.Height) / float64(tileH)
		rowSearch = wScaleInv < hScaleInv
	}

	placed, err := roi.Find(img, detector, cropRect.W, cropRect.H, rowSearch)
	if err != nil {
		return Tile{}, err
	}

	resampled := imaging.Resample(img, placed, tileW, tileH, filter)
	if resampled.Width == 0 || resampled.Height == 0 {
		return Tile{}, fmt.Errorf("resample produced an empty tile")
	}

	vec := features.Compute(resampled, resampled.Full())

	exportedName := fmt.Sprintf("tile_%0*d.png", digits, index)
	exportedPath := filepath.Join(tempDir, exportedName)
	encoded, err := enc.Encode(resampled.ToStdImage())
	if err != nil {
		return Tile{}, err
	}
	if err := os.WriteFile(exportedPath, encoded, 0o644); err != nil {
		return Tile{}, err
	}
	imaging.Put(resampled)

	return Tile{SourcePath: path, ExportedPath: exportedPath, Features: vec}, nil
}

// cropBox computes the pre-ROI crop rectangle: the largest tileW x tileH
// -aspect rectangle that fits inside img, scaled by the smaller of the two
// axis scale-inverses so it stays within bounds on both axes and exactly
// fills the constraining axis.
func cropBox(img *imaging.Image, tileW, tileH int) imaging.Rect {
	if img.Width == tileW && img.Height == tileH {
		return img.Full()
	}
	wScaleInv := float64(img.Width) / float64(tileW)
	hScaleInv := float64(img.Height) / float64(tileH)
	scaleInv := math.Min(wScaleInv, hScaleInv)

	w := int(math.Ceil(float64(tileW) * scaleInv))
	h := int(math.Ceil(float64(tileH) * scaleInv))
	if w > img.Width {
		w = img.Width
	}
	if h > img.Height {
		h = img.Height
	}
	return imaging.Rect{W: w, H: h}
}
