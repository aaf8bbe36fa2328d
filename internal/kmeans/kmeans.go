// Package kmeans implements the clustering collaborator consumed by
// pkg/kmknn: clustering of a row-major point matrix into k centers, with
// a per-point cluster assignment and per-cluster sizes. Empty clusters
// are permitted here; pruning them is pkg/kmknn's concern, not this
// package's.
//
// Split into an Initializer (the k-means++ seeding phase) and a Refiner
// (the Lloyd iteration phase) so pkg/kmknn can plug in either
// independently.
package kmeans

import (
	"fmt"
	"math"
	"math/rand"
)

// Initializer seeds k initial centers (k*dim row-major) from the data.
type Initializer interface {
	Init(data []float64, dim, nobs, k int, rng *rand.Rand) []float64
}

// Refiner iterates an initial set of centers to convergence, returning
// the final per-point cluster assignment and per-cluster sizes. Centers
// are updated in place.
type Refiner interface {
	Refine(data []float64, dim, nobs int, centers []float64, k int) (clusters []int, sizes []int)
}

// Result is everything pkg/kmknn needs out of a single Compute call.
type Result struct {
	Centers  []float64 // k*dim, row-major
	Clusters []int     // len nobs, cluster id per point
	Sizes    []int     // len k, points per cluster (may contain zeros)
}

// Compute runs initialization then refinement. data is nobs*dim
// row-major; seed makes the k-means++ seeding reproducible.
func Compute(data []float64, dim, nobs, k int, init Initializer, refine Refiner, seed int64) (Result, error) {
	if k <= 0 {
		return Result{}, fmt.Errorf("kmeans: k must be positive, got %d", k)
	}
	if nobs < k {
		return Result{}, fmt.Errorf("kmeans: need at least %d points for %d clusters, got %d", k, k, nobs)
	}

	rng := rand.New(rand.NewSource(seed))
	centers := init.Init(data, dim, nobs, k, rng)
	clusters, sizes := refine.Refine(data, dim, nobs, centers, k)

	return Result{Centers: centers, Clusters: clusters, Sizes: sizes}, nil
}

func sqEuclidean(dim int, data []float64, o int, centers []float64, c int) float64 {
	var sum float64
	op := o * dim
	cp := c * dim
	for d := 0; d < dim; d++ {
		diff := data[op+d] - centers[cp+d]
		sum += diff * diff
	}
	return sum
}

// PlusPlusInit is k-means++: the first center is uniform-random, every
// subsequent one is sampled with probability proportional to its squared
// distance to the nearest center chosen so far.
type PlusPlusInit struct{}

func (PlusPlusInit) Init(data []float64, dim, nobs, k int, rng *rand.Rand) []float64 {
	centers := make([]float64, k*dim)

	firstIdx := rng.Intn(nobs)
	copy(centers[0:dim], data[firstIdx*dim:firstIdx*dim+dim])

	minDist := make([]float64, nobs)
	for c := 1; c < k; c++ {
		var total float64
		for o := 0; o < nobs; o++ {
			d := sqEuclidean(dim, data, o, centers, c-1)
			if c == 1 || d < minDist[o] {
				minDist[o] = d
			}
			total += minDist[o]
		}

		if total > 0 {
			target := rng.Float64() * total
			var cumulative float64
			chosen := nobs - 1
			for o, d := range minDist {
				cumulative += d
				if cumulative >= target {
					chosen = o
					break
				}
			}
			copy(centers[c*dim:c*dim+dim], data[chosen*dim:chosen*dim+dim])
		} else {
			idx := rng.Intn(nobs)
			copy(centers[c*dim:c*dim+dim], data[idx*dim:idx*dim+dim])
		}
	}

	return centers
}

// RandomInit seeds centers by sampling nobs uniformly at random without
// replacement — the cheap fallback when k-means++'s extra passes aren't
// worth it.
type RandomInit struct{}

func (RandomInit) Init(data []float64, dim, nobs, k int, rng *rand.Rand) []float64 {
	centers := make([]float64, k*dim)
	perm := rng.Perm(nobs)
	for c := 0; c < k; c++ {
		o := perm[c]
		copy(centers[c*dim:c*dim+dim], data[o*dim:o*dim+dim])
	}
	return centers
}

// LloydRefiner alternates nearest-center assignment and centroid
// recomputation until convergence or MaxIterations is reached, returning
// the final cluster assignment and per-cluster sizes.
type LloydRefiner struct {
	MaxIterations int     // default 25
	Tolerance     float64 // convergence threshold on centroid movement
}

func NewLloydRefiner() *LloydRefiner {
	return &LloydRefiner{MaxIterations: 25, Tolerance: 1e-6}
}

func (r *LloydRefiner) Refine(data []float64, dim, nobs int, centers []float64, k int) ([]int, []int) {
	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = 25
	}
	tol := r.Tolerance
	if tol <= 0 {
		tol = 1e-6
	}

	clusters := make([]int, nobs)
	sizes := make([]int, k)

	for iter := 0; iter < maxIter; iter++ {
		for c := range sizes {
			sizes[c] = 0
		}

		for o := 0; o < nobs; o++ {
			best := 0
			bestDist := math.MaxFloat64
			for c := 0; c < k; c++ {
				d := sqEuclidean(dim, data, o, centers, c)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			clusters[o] = best
			sizes[best]++
		}

		sums := make([]float64, k*dim)
		for o := 0; o < nobs; o++ {
			c := clusters[o]
			op := o * dim
			cp := c * dim
			for d := 0; d < dim; d++ {
				sums[cp+d] += data[op+d]
			}
		}

		converged := true
		for c := 0; c < k; c++ {
			if sizes[c] == 0 {
				continue // keep the previous centroid for an empty cluster
			}
			cp := c * dim
			var moved float64
			for d := 0; d < dim; d++ {
				newVal := sums[cp+d] / float64(sizes[c])
				diff := newVal - centers[cp+d]
				moved += diff * diff
				centers[cp+d] = newVal
			}
			if moved > tol*tol {
				converged = false
			}
		}

		if converged {
			break
		}
	}

	return clusters, sizes
}
