// Package gmm fits a 1-D Gaussian mixture model to a value histogram via
// k-means++ seeding followed by Expectation-Maximization, selecting the
// component count by BIC (spec component C7).
package gmm

import (
	"math"
	"math/rand"
)

// EpsilonVariance is the floor every component variance is clamped to, so a
// degenerate (single-value) cluster never collapses the density to a spike.
const EpsilonVariance = 1.0 / 16.0

// defaultSeed is the fixed seed used in deterministic mode, required for
// reproducible tests (spec §9, Random-number reproducibility).
const defaultSeed = 5489

// Component is one Gaussian in the mixture.
type Component struct {
	Mean     float64
	Variance float64
	Weight   float64
}

// bin is one (value, count) histogram entry.
type bin struct {
	value float64
	count int
}

// Model fits mixtures to a single histogram, reusable across calls to Run
// with different component counts (as FitBest does internally).
type Model struct {
	kmeansTol  float64
	kmeansIter int
	emTol      float64
	emIter     int
	rng        *rand.Rand

	histogram []bin
	nbData    int

	components []Component
	bic        float64
}

// New constructs a Model with the given convergence parameters. If seeded
// is true, the k-means++ initializer uses a fixed seed so results are
// reproducible; otherwise it seeds from system entropy.
func New(kmeansTol float64, kmeansIter int, emTol float64, emIter int, seeded bool) *Model {
	var rng *rand.Rand
	if seeded {
		rng = rand.New(rand.NewSource(defaultSeed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Model{
		kmeansTol:  kmeansTol,
		kmeansIter: kmeansIter,
		emTol:      emTol,
		emIter:     emIter,
		rng:        rng,
	}
}

// SetData builds the internal histogram from raw integer samples.
func (m *Model) SetData(data []int) {
	counts := make(map[int]int)
	for _, v := range data {
		counts[v]++
	}
	m.setCounts(counts, len(data))
}

// SetHistogram builds the internal histogram directly from per-value
// counts (e.g. a 256-bin pixel-intensity histogram), skipping zero-count
// values.
func (m *Model) SetHistogram(counts []int) {
	byValue := make(map[int]int, len(counts))
	total := 0
	for v, c := range counts {
		if c > 0 {
			byValue[v] = c
			total += c
		}
	}
	m.setCounts(byValue, total)
}

func (m *Model) setCounts(counts map[int]int, total int) {
	values := make([]int, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sortInts(values)

	m.histogram = make([]bin, len(values))
	for i, v := range values {
		m.histogram[i] = bin{value: float64(v), count: counts[v]}
	}
	m.nbData = total
	m.components = nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Run fits a k-component mixture to the current histogram, returning false
// if k is invalid (k <= 0 or more components than distinct histogram
// values).
func (m *Model) Run(k int) bool {
	if k <= 0 || len(m.histogram) < k {
		return false
	}
	m.components = make([]Component, k)
	m.kmeansPlusPlus()
	m.expectationMaximization()
	m.computeBIC()
	return true
}

// BIC returns the Bayesian Information Criterion of the last successful Run.
func (m *Model) BIC() float64 { return m.bic }

// Components returns the fitted mixture of the last successful Run.
func (m *Model) Components() []Component {
	out := make([]Component, len(m.components))
	copy(out, m.components)
	return out
}

// FitBest runs k = 1..maxK and returns the components minimizing BIC.
func FitBest(data []int, maxK int, kmeansTol float64, kmeansIter int, emTol float64, emIter int, seeded bool) []Component {
	m := New(kmeansTol, kmeansIter, emTol, emIter, seeded)
	m.SetData(data)
	return m.fitBest(maxK)
}

// FitBestHistogram is FitBest over a precomputed per-value histogram.
func FitBestHistogram(counts []int, maxK int, kmeansTol float64, kmeansIter int, emTol float64, emIter int, seeded bool) []Component {
	m := New(kmeansTol, kmeansIter, emTol, emIter, seeded)
	m.SetHistogram(counts)
	return m.fitBest(maxK)
}

func (m *Model) fitBest(maxK int) []Component {
	var best []Component
	bestBIC := math.Inf(1)
	for k := 1; k <= maxK; k++ {
		if !m.Run(k) {
			continue
		}
		if m.bic < bestBIC {
			best = m.Components()
			bestBIC = m.bic
		}
	}
	return best
}

// kmeansPlusPlus seeds m.components' means via k-means++ sampling over the
// histogram, then runs Lloyd iteration to convergence, and initializes
// variances/weights from the resulting clusters.
func (m *Model) kmeansPlusPlus() {
	n := len(m.histogram)
	k := len(m.components)

	m.components[0].Mean = m.histogram[m.rng.Intn(n)].value

	sqDistToNearest := make([]float64, n)
	for b := range sqDistToNearest {
		sqDistToNearest[b] = math.Inf(1)
	}

	for c := 1; c < k; c++ {
		for b := 0; b < n; b++ {
			d := m.histogram[b].value - m.components[c-1].Mean
			sq := d * d
			if sq < sqDistToNearest[b] {
				sqDistToNearest[b] = sq
			}
		}
		m.components[c].Mean = m.histogram[sampleWeighted(m.rng, sqDistToNearest)].value
	}

	assigned := make([]int, n)
	meanMaxDiff := math.Inf(1)
	iteration := 0

	type clusterAcc struct {
		sum   float64
		count int
	}
	clusters := make([]clusterAcc, k)

	for meanMaxDiff > m.kmeansTol && iteration < m.kmeansIter {
		for c := range clusters {
			clusters[c] = clusterAcc{}
		}

		for b := 0; b < n; b++ {
			bestC, bestDist := 0, math.Inf(1)
			for c := 0; c < k; c++ {
				d := math.Abs(m.components[c].Mean - m.histogram[b].value)
				if d < bestDist {
					bestDist = d
					bestC = c
				}
			}
			assigned[b] = bestC
			clusters[bestC].sum += m.histogram[b].value * float64(m.histogram[b].count)
			clusters[bestC].count += m.histogram[b].count
		}

		meanMaxDiff = 0
		for c := 0; c < k; c++ {
			var newMean float64
			if clusters[c].count > 0 {
				newMean = clusters[c].sum / float64(clusters[c].count)
			} else {
				newMean = m.components[c].Mean
			}
			diff := math.Abs(m.components[c].Mean - newMean)
			if diff > meanMaxDiff {
				meanMaxDiff = diff
			}
			m.components[c].Mean = newMean
		}
		iteration++
	}

	for b := 0; b < n; b++ {
		c := assigned[b]
		d := m.histogram[b].value - m.components[c].Mean
		m.components[c].Variance += d * d * float64(m.histogram[b].count)
	}
	for c := 0; c < k; c++ {
		if clusters[c].count > 0 {
			m.components[c].Variance /= float64(clusters[c].count)
		}
		if m.components[c].Variance < EpsilonVariance {
			m.components[c].Variance = EpsilonVariance
		}
		m.components[c].Weight = 1.0 / float64(k)
	}
}

// sampleWeighted draws an index from weights with probability proportional
// to its value (a manual piecewise-constant/alias-free sample: this is a
// small, fixed-size histogram so a linear scan is cheap and exact).
func sampleWeighted(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	target := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target <= acc {
			return i
		}
	}
	return len(weights) - 1
}

// expectationMaximization runs EM to convergence, updating m.components in
// place.
func (m *Model) expectationMaximization() {
	n := len(m.histogram)
	k := len(m.components)
	resp := make([][]float64, k)
	for c := range resp {
		resp[c] = make([]float64, n)
	}

	logLH := m.logLikelihood()
	logLHDiff := math.Inf(1)
	iteration := 0

	for logLHDiff > m.emTol && iteration < m.emIter {
		respAcc := make([]float64, n)
		for c := 0; c < k; c++ {
			for b := 0; b < n; b++ {
				v := weightedNormalPDF(m.histogram[b].value, m.components[c])
				if v > epsilon {
					resp[c][b] = v
					respAcc[b] += v
				} else {
					resp[c][b] = 0
				}
			}
		}
		for c := 0; c < k; c++ {
			for b := 0; b < n; b++ {
				if respAcc[b] > epsilon {
					resp[c][b] /= respAcc[b]
				} else {
					resp[c][b] = 1.0 / float64(k)
				}
			}
		}

		for c := 0; c < k; c++ {
			var clusterResp, mean float64
			for b := 0; b < n; b++ {
				weight := resp[c][b] * float64(m.histogram[b].count)
				clusterResp += weight
				mean += weight * m.histogram[b].value
			}
			if clusterResp > 0 {
				mean /= clusterResp
			}
			m.components[c].Mean = mean

			var variance float64
			for b := 0; b < n; b++ {
				d := m.histogram[b].value - mean
				variance += resp[c][b] * d * d * float64(m.histogram[b].count)
			}
			if clusterResp > 0 {
				variance /= clusterResp
			}
			if variance < EpsilonVariance {
				variance = EpsilonVariance
			}
			m.components[c].Variance = variance
			m.components[c].Weight = clusterResp / float64(m.nbData)
		}

		newLogLH := m.logLikelihood()
		logLHDiff = newLogLH - logLH
		logLH = newLogLH
		iteration++
	}
}

// epsilon mirrors std::numeric_limits<double>::epsilon() closely enough for
// the underflow guards it is used for.
const epsilon = 2.220446049250313e-16

// weightedNormalPDF returns weight * N(value; mean, variance) — the
// mixture's component density is always consumed pre-weighted.
func weightedNormalPDF(value float64, c Component) float64 {
	d := value - c.Mean
	return math.Exp(-d*d/(2*c.Variance)) / math.Sqrt(2*math.Pi*c.Variance) * c.Weight
}

func (m *Model) logLikelihood() float64 {
	var logLH float64
	for _, b := range m.histogram {
		var valueLH float64
		for _, c := range m.components {
			valueLH += weightedNormalPDF(b.value, c)
		}
		if valueLH > 0 {
			logLH += math.Log(valueLH) * float64(b.count)
		}
	}
	return logLH
}

func (m *Model) computeBIC() {
	k := len(m.components)
	m.bic = -2*m.logLikelihood() + float64(3*k-1)*math.Log(float64(m.nbData))
}
