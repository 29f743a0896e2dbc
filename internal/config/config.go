// Package config parses and validates the command-line surface: photo and
// tile paths, grid shape, working-resolution geometry, and blending range,
// plus the ambient flags (resampling filter, concurrency, verbosity,
// redundancy radius, RNG seeding).
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/julianbustillos/photomosaic/internal/imaging"
)

// ConfigError reports one or more invalid-configuration problems found
// before any image I/O happens. Its Error() renders every problem on its
// own line.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration:\n")
	for _, p := range e.Problems {
		b.WriteString("  - ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}

func newConfigError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ConfigError{Problems: problems}
}

// Options is the fully validated, resolved configuration for one mosaic
// generation run.
type Options struct {
	Photo string
	Tiles string

	GridW, GridH int

	Scale         float64 // > 0 when set, mutually exclusive with Width/Height
	Width, Height int     // > 0 when set
	Crop          bool

	BlendingStep, BlendingMin, BlendingMax float64

	Resampling  imaging.Filter
	Concurrency int
	Verbose     bool
	Redundancy  int // 0 uses solver.DefaultRedundancyRadius
	Seed        bool
}

// Parse parses args (typically os.Args[1:]) and returns validated Options.
// A -help request returns flag.ErrHelp after printing usage; any other
// problem is returned as a *ConfigError listing every violation found.
func Parse(args []string) (*Options, error) {
	fs := flag.NewFlagSet("mosaic", flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder)) // suppress the default error print; callers decide how to report it

	var (
		photo       string
		tiles       string
		gridRaw     string
		scale       float64
		resolution  string
		crop        bool
		blendingRaw string
		resampling  string
		concurrency int
		verbose     bool
		redundancy  int
		seed        bool
	)

	fs.StringVar(&photo, "photo", "", "Reference photograph path (required)")
	fs.StringVar(&tiles, "tiles", "", "Candidate tile directory path (required)")
	fs.StringVar(&gridRaw, "grid", "", "Grid shape: one value for a square grid, or WxH (required)")
	fs.Float64Var(&scale, "scale", 0, "Scale factor applied to the reference photo; mutually exclusive with -resolution")
	fs.StringVar(&resolution, "resolution", "", "Working resolution WxH; mutually exclusive with -scale")
	fs.BoolVar(&crop, "crop", false, "Letterbox/pillarbox-crop to -resolution instead of stretching; only valid with -resolution")
	fs.StringVar(&blendingRaw, "blending", "0.1", "Blending step, or step,min,max")
	fs.StringVar(&resampling, "resampling", "lanczos", "Resampling filter: area, bicubic, lanczos")
	fs.IntVar(&concurrency, "concurrency", runtime.NumCPU(), "Number of parallel workers")
	fs.BoolVar(&verbose, "verbose", false, "Verbose per-stage timing")
	fs.IntVar(&redundancy, "redundancy", 0, "Match-solver redundancy radius R; 0 uses the default (5)")
	fs.BoolVar(&seed, "seed", false, "Use a fixed RNG seed for color-enhancement GMM fits, for reproducible output")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: mosaic -photo <path> -tiles <dir> -grid <shape> [flags]\n\n")
		fmt.Fprintf(fs.Output(), "Generate a photo-mosaic from a reference photograph and a directory of tile images.\n\n")
		fmt.Fprintf(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stderr)
			fs.Usage()
			return nil, err
		}
		return nil, newConfigError([]string{err.Error()})
	}

	var problems []string
	opts := &Options{
		Photo:       photo,
		Tiles:       tiles,
		Crop:        crop,
		Concurrency: concurrency,
		Verbose:     verbose,
		Redundancy:  redundancy,
		Seed:        seed,
	}

	if photo == "" {
		problems = append(problems, "-photo is required")
	}
	if tiles == "" {
		problems = append(problems, "-tiles is required")
	}

	gridW, gridH, err := parseGrid(gridRaw)
	if err != nil {
		problems = append(problems, err.Error())
	}
	opts.GridW, opts.GridH = gridW, gridH

	haveScale := scale != 0
	haveResolution := resolution != ""
	switch {
	case haveScale && haveResolution:
		problems = append(problems, "-scale and -resolution are mutually exclusive")
	case haveScale:
		if scale <= 0 {
			problems = append(problems, "-scale must be positive")
		}
		opts.Scale = scale
	case haveResolution:
		w, h, err := parseResolution(resolution)
		if err != nil {
			problems = append(problems, err.Error())
		}
		opts.Width, opts.Height = w, h
	default:
		problems = append(problems, "exactly one of -scale or -resolution is required")
	}
	if crop && !haveResolution {
		problems = append(problems, "-crop is only valid with -resolution")
	}

	step, min, max, err := parseBlending(blendingRaw)
	if err != nil {
		problems = append(problems, err.Error())
	}
	opts.BlendingStep, opts.BlendingMin, opts.BlendingMax = step, min, max

	filter, err := imaging.ParseFilter(resampling)
	if err != nil {
		problems = append(problems, err.Error())
	}
	opts.Resampling = filter

	if concurrency <= 0 {
		problems = append(problems, "-concurrency must be positive")
	}
	if redundancy < 0 {
		problems = append(problems, "-redundancy must not be negative")
	}

	if err := newConfigError(problems); err != nil {
		return nil, err
	}
	return opts, nil
}

// parseGrid accepts "N" (square grid) or "WxH".
func parseGrid(raw string) (w, h int, err error) {
	if raw == "" {
		return 0, 0, fmt.Errorf("-grid is required")
	}
	if i := strings.IndexAny(raw, "xX"); i >= 0 {
		w, err = strconv.Atoi(strings.TrimSpace(raw[:i]))
		if err != nil {
			return 0, 0, fmt.Errorf("-grid: invalid width %q", raw[:i])
		}
		h, err = strconv.Atoi(strings.TrimSpace(raw[i+1:]))
		if err != nil {
			return 0, 0, fmt.Errorf("-grid: invalid height %q", raw[i+1:])
		}
	} else {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, 0, fmt.Errorf("-grid: invalid value %q", raw)
		}
		w, h = n, n
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("-grid values must be positive, got %dx%d", w, h)
	}
	return w, h, nil
}

// parseResolution accepts "WxH".
func parseResolution(raw string) (w, h int, err error) {
	i := strings.IndexAny(raw, "xX")
	if i < 0 {
		return 0, 0, fmt.Errorf("-resolution: expected WxH, got %q", raw)
	}
	w, err = strconv.Atoi(strings.TrimSpace(raw[:i]))
	if err != nil {
		return 0, 0, fmt.Errorf("-resolution: invalid width %q", raw[:i])
	}
	h, err = strconv.Atoi(strings.TrimSpace(raw[i+1:]))
	if err != nil {
		return 0, 0, fmt.Errorf("-resolution: invalid height %q", raw[i+1:])
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("-resolution values must each be at least 1, got %dx%d", w, h)
	}
	return w, h, nil
}

// parseBlending accepts "step" (min defaults to 0, max to 1, sweeping the
// full range at that granularity) or "step,min,max" per spec.md's blending
// option grammar.
func parseBlending(raw string) (step, min, max float64, err error) {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("-blending: invalid value %q", parts[0])
		}
		step, min, max = v, 0, 1
	case 3:
		step, err = strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("-blending: invalid step %q", parts[0])
		}
		min, err = strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("-blending: invalid min %q", parts[1])
		}
		max, err = strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("-blending: invalid max %q", parts[2])
		}
	default:
		return 0, 0, 0, fmt.Errorf("-blending: expected one value or step,min,max, got %q", raw)
	}

	if step < 0.01 || step > 1 {
		return 0, 0, 0, fmt.Errorf("-blending: step must be in [0.01, 1], got %v", step)
	}
	if min < 0 {
		return 0, 0, 0, fmt.Errorf("-blending: min must be >= 0, got %v", min)
	}
	if max > 1 {
		return 0, 0, 0, fmt.Errorf("-blending: max must be <= 1, got %v", max)
	}
	if min > max {
		return 0, 0, 0, fmt.Errorf("-blending: min (%v) must not exceed max (%v)", min, max)
	}
	return step, min, max, nil
}
