// Package solver assigns a catalog tile to every mosaic cell, preferring
// the closest-matching tile while bounding how often any one tile repeats
// within a local neighborhood (spec component C9).
package solver

import (
	"fmt"
	"sort"

	"github.com/julianbustillos/photomosaic/internal/features"
)

// DefaultRedundancyRadius is R, the Chebyshev radius within which a catalog
// tile may not be reused by more than one cell. The original hard-codes
// this; here it is a Solve parameter so callers can override it (exposed on
// the CLI as -redundancy).
const DefaultRedundancyRadius = 5

// MinCandidatesFor returns (2*radius-1)^2, the number of nearest-distance
// candidates kept per cell before pruning, and therefore the minimum
// catalog size a non-redundant assignment can be guaranteed from at that
// radius.
func MinCandidatesFor(radius int) int {
	mask := 2*radius - 1
	return mask * mask
}

// MinCandidates is MinCandidatesFor(DefaultRedundancyRadius), the threshold
// most callers (e.g. the catalog's cleanup-abort check) use before the
// actual configured radius is known.
const MinCandidates = (2*DefaultRedundancyRadius - 1) * (2*DefaultRedundancyRadius - 1)

// Grid is the mosaic's cell layout.
type Grid struct {
	W, H int
}

func (g Grid) cells() int { return g.W * g.H }

// candidate is one (tile id, distance) pairing for a cell.
type candidate struct {
	id   int
	dist float64
}

// Solution is the per-cell tile assignment the solver converged on.
type Solution struct {
	// MatchingIDs[m] is the catalog tile index assigned to cell m.
	MatchingIDs []int
	// UniqueIDs is the sorted set of distinct tile indices actually used.
	UniqueIDs []int
}

// Solve assigns one catalog tile (identified by index into tileFeatures) to
// every cell of grid, greedily taking the smallest feature distances to
// cellFeatures first (a heuristic; the total distance is not guaranteed to be
// minimal) subject to the redundancy constraint at the given Chebyshev radius
// (radius <= 0 uses DefaultRedundancyRadius). Returns an error if the
// catalog is smaller than MinCandidatesFor(radius), since a full assignment
// could then be impossible to guarantee.
func Solve(grid Grid, cellFeatures, tileFeatures []features.Vector, radius int) (*Solution, error) {
	if radius <= 0 {
		radius = DefaultRedundancyRadius
	}
	minCandidates := MinCandidatesFor(radius)
	if len(tileFeatures) < minCandidates {
		return nil, fmt.Errorf("solver: catalog has %d tiles, need at least %d", len(tileFeatures), minCandidates)
	}

	candidates := findCandidateTiles(grid, cellFeatures, tileFeatures, minCandidates)
	reduceCandidateTiles(grid, candidates, radius)
	return findSolution(grid, candidates, radius), nil
}

// computeRedundancyBox returns the grid-cell rectangle (row-major bounds,
// inclusive) within which a tile assigned to cell (i, j) may not repeat.
func computeRedundancyBox(i, j, gridW, gridH, radius int) (y0, x0, h, w int) {
	dist := radius - 1
	y0 = max(i-dist, 0)
	h = min(i+dist, gridH-1) - y0 + 1
	x0 = max(j-dist, 0)
	w = min(j+dist, gridW-1) - x0 + 1
	return
}

func findCandidateTiles(grid Grid, cellFeatures, tileFeatures []features.Vector, minCandidates int) [][]candidate {
	candidates := make([][]candidate, grid.cells())
	for m := 0; m < grid.cells(); m++ {
		list := make([]candidate, len(tileFeatures))
		for t, tf := range tileFeatures {
			list[t] = candidate{id: t, dist: features.Distance(cellFeatures[m], tf)}
		}
		sort.Slice(list, func(a, b int) bool {
			if list[a].dist != list[b].dist {
				return list[a].dist < list[b].dist
			}
			return list[a].id < list[b].id
		})
		candidates[m] = list[:minCandidates]
	}
	return candidates
}

// reduceCandidateTiles shrinks each cell's candidate list to the shortest
// prefix that still contains at least one tile no other cell within its
// redundancy box could also use — any candidate beyond that point is
// strictly worse (farther) and substitutable elsewhere, so it can never be
// the only option left for this cell. Repeats full passes over the grid
// until one completes with no reduction anywhere.
func reduceCandidateTiles(grid Grid, candidates [][]candidate, radius int) {
	sortedIDs := make([][]int, len(candidates))
	rebuildSortedIDs := func(m int) {
		ids := make([]int, len(candidates[m]))
		for t, c := range candidates[m] {
			ids[t] = c.id
		}
		sort.Ints(ids)
		sortedIDs[m] = ids
	}
	for m := range candidates {
		rebuildSortedIDs(m)
	}

	for {
		reducedAny := false
		m := 0
		for i := 0; i < grid.H; i++ {
			for j := 0; j < grid.W; j++ {
				if len(candidates[m]) >= 2 {
					y0, x0, h, w := computeRedundancyBox(i, j, grid.W, grid.H, radius)
					for t := 0; t < len(candidates[m])-1; t++ {
						if !idUsedInBox(sortedIDs, grid.W, y0, x0, h, w, candidates[m][t].id, m) {
							candidates[m] = candidates[m][:t+1]
							rebuildSortedIDs(m)
							reducedAny = true
							break
						}
					}
				}
				m++
			}
		}
		if !reducedAny {
			return
		}
	}
}

// idUsedInBox reports whether id appears in the candidate list of any cell
// of the box other than self.
func idUsedInBox(sortedIDs [][]int, gridW, y0, x0, h, w, id, self int) bool {
	for row := 0; row < h; row++ {
		base := (y0+row)*gridW + x0
		for col := 0; col < w; col++ {
			if base+col == self {
				continue
			}
			ids := sortedIDs[base+col]
			i := sort.SearchInts(ids, id)
			if i < len(ids) && ids[i] == id {
				return true
			}
		}
	}
	return false
}

// sortCandidate flattens one cell's surviving candidate for the global
// greedy assignment pass.
type sortCandidate struct {
	candidate
	row, col int
}

func findSolution(grid Grid, candidates [][]candidate, radius int) *Solution {
	var flat []sortCandidate
	m := 0
	for i := 0; i < grid.H; i++ {
		for j := 0; j < grid.W; j++ {
			for _, c := range candidates[m] {
				flat = append(flat, sortCandidate{candidate: c, row: i, col: j})
			}
			m++
		}
	}
	sort.Slice(flat, func(a, b int) bool {
		if flat[a].dist != flat[b].dist {
			return flat[a].dist < flat[b].dist
		}
		return flat[a].id < flat[b].id
	})

	matching := make([]int, grid.cells())
	for i := range matching {
		matching[i] = -1
	}

	for _, sc := range flat {
		cellID := sc.row*grid.W + sc.col
		if matching[cellID] >= 0 {
			continue
		}

		y0, x0, h, w := computeRedundancyBox(sc.row, sc.col, grid.W, grid.H, radius)
		if idAssignedInBox(matching, grid.W, y0, x0, h, w, sc.id) {
			continue
		}

		matching[cellID] = sc.id
	}

	uniqueSet := make(map[int]struct{})
	for _, id := range matching {
		if id >= 0 {
			uniqueSet[id] = struct{}{}
		}
	}
	unique := make([]int, 0, len(uniqueSet))
	for id := range uniqueSet {
		unique = append(unique, id)
	}
	sort.Ints(unique)

	return &Solution{MatchingIDs: matching, UniqueIDs: unique}
}

func idAssignedInBox(matching []int, gridW, y0, x0, h, w, id int) bool {
	for row := 0; row < h; row++ {
		base := (y0+row)*gridW + x0
		for col := 0; col < w; col++ {
			if matching[base+col] == id {
				return true
			}
		}
	}
	return false
}
