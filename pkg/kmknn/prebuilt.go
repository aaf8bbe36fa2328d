package kmknn

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/knncolle-go/kmknn/internal/kmeans"
	"github.com/knncolle-go/kmknn/internal/metric"
	"github.com/knncolle-go/kmknn/pkg/observability"
)

// Prebuilt is a constructed KMKNN index: the points, partitioned into
// k-means clusters and reordered in memory so that each cluster occupies
// a contiguous, distance-to-center-sorted run. Initialize returns a
// Searcher over it.
type Prebuilt struct {
	dim int
	obs int

	data   []float64 // obs*dim, row-major, reordered
	metric metric.Metric

	sizes   []int // per-cluster point count, len numCenters
	offsets []int // per-cluster start row, len numCenters
	centers []float64

	observationID  []int     // row -> original index
	newLocation    []int     // original index -> row
	distToCentroid []float64 // row -> distance to its cluster's center

	useUpperBound bool
	logger        *observability.Logger
	metrics       *observability.Metrics
}

// NumObservations returns the number of indexed points.
func (p *Prebuilt) NumObservations() int { return p.obs }

// NumDimensions returns the per-point dimensionality.
func (p *Prebuilt) NumDimensions() int { return p.dim }

// byDistPair is one (distance, original-index) entry used to sort points
// within a cluster by their distance to that cluster's center.
type byDistPair struct {
	dist float64
	obs  int
}

// buildPrebuilt runs the full KMKNN construction: k-means partitioning,
// empty-cluster pruning with an index remap, per-cluster sort by
// distance-to-center, and the in-place cycle-following permutation.
func buildPrebuilt(dim, nobs int, data []float64, m metric.Metric, opts Options) (*Prebuilt, error) {
	start := time.Now()

	if nobs < 0 {
		return nil, fmt.Errorf("%w: number of observations must be non-negative, got %d", ErrConfiguration, nobs)
	}
	if opts.Power <= 0 {
		return nil, fmt.Errorf("%w: power must be positive, got %g", ErrConfiguration, opts.Power)
	}

	// N=0 is legal: an empty index with zero clusters, every array
	// empty, and every search trivially returning no results.
	if nobs == 0 {
		p := &Prebuilt{
			dim:            dim,
			obs:            0,
			data:           data,
			metric:         m,
			sizes:          []int{},
			offsets:        []int{},
			centers:        []float64{},
			observationID:  []int{},
			newLocation:    []int{},
			distToCentroid: []float64{},
			useUpperBound:  opts.UseUpperBound,
			logger:         opts.Logger,
			metrics:        opts.Metrics,
		}
		if p.metrics != nil {
			p.metrics.RecordBuild(time.Since(start), 0)
		}
		opts.Logger.Info("kmknn index built", map[string]interface{}{
			"nobs": 0, "dim": dim, "clusters": 0, "duration": time.Since(start),
		})
		return p, nil
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrConfiguration, dim)
	}

	ncenters := int(math.Ceil(math.Pow(float64(nobs), opts.Power)))
	if ncenters < 1 {
		ncenters = 1
	}
	if ncenters > nobs {
		ncenters = nobs
	}

	opts.Logger.Debug("starting kmeans partition", map[string]interface{}{"nobs": nobs, "dim": dim, "ncenters": ncenters})

	result, err := kmeans.Compute(data, dim, nobs, ncenters, opts.InitAlgorithm, opts.RefineAlgorithm, opts.RandomSeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCollaborator, err)
	}

	centers := result.Centers
	clusters := result.Clusters
	sizes := result.Sizes

	// Removing empty clusters, e.g. due to duplicate points.
	remap := make([]int, ncenters)
	survivors := 0
	newSizes := make([]int, 0, ncenters)
	for c := 0; c < ncenters; c++ {
		if sizes[c] == 0 {
			continue
		}
		if c > survivors {
			copy(centers[survivors*dim:survivors*dim+dim], centers[c*dim:c*dim+dim])
		}
		remap[c] = survivors
		newSizes = append(newSizes, sizes[c])
		survivors++
	}
	if survivors < ncenters {
		for o, c := range clusters {
			clusters[o] = remap[c]
		}
		ncenters = survivors
		centers = centers[:ncenters*dim]
		sizes = newSizes
	}

	offsets := make([]int, ncenters)
	for c := 1; c < ncenters; c++ {
		offsets[c] = offsets[c-1] + sizes[c-1]
	}

	// Sort points within each cluster by distance to that cluster's
	// center, so a later lower-bound search can binary-search the
	// prefix to skip.
	byDistance := make([]byDistPair, nobs)
	{
		sofar := make([]int, ncenters)
		copy(sofar, offsets)
		for o := 0; o < nobs; o++ {
			optr := data[o*dim : o*dim+dim]
			c := clusters[o]
			cptr := centers[c*dim : c*dim+dim]
			d := m.Normalize(m.Raw(dim, optr, cptr))

			counter := sofar[c]
			byDistance[counter] = byDistPair{dist: d, obs: o}
			sofar[c]++
		}

		for c := 0; c < ncenters; c++ {
			begin := offsets[c]
			end := begin + sizes[c]
			slice := byDistance[begin:end]
			sort.Slice(slice, func(i, j int) bool {
				if slice[i].dist != slice[j].dist {
					return slice[i].dist < slice[j].dist
				}
				return slice[i].obs < slice[j].obs
			})
		}
	}

	// Permute data in place to mirror the reordered distances, following
	// replacement cycles with a single d-wide scratch buffer rather than
	// allocating a full nobs*dim shadow matrix.
	observationID := make([]int, nobs)
	newLocation := make([]int, nobs)
	distToCentroid := make([]float64, nobs)
	used := make([]bool, nobs)
	scratch := make([]float64, dim)

	for o := 0; o < nobs; o++ {
		if used[o] {
			continue
		}

		current := byDistance[o]
		observationID[o] = current.obs
		distToCentroid[o] = current.dist
		newLocation[current.obs] = o
		if current.obs == o {
			used[o] = true
			continue
		}

		copy(scratch, data[o*dim:o*dim+dim])
		optr := o
		replacement := current.obs
		for {
			copy(data[optr*dim:optr*dim+dim], data[replacement*dim:replacement*dim+dim])
			used[replacement] = true

			next := byDistance[replacement]
			observationID[replacement] = next.obs
			distToCentroid[replacement] = next.dist
			newLocation[next.obs] = replacement

			optr = replacement
			replacement = next.obs
			if replacement == o {
				break
			}
		}
		copy(data[optr*dim:optr*dim+dim], scratch)
		used[o] = true
	}

	p := &Prebuilt{
		dim:            dim,
		obs:            nobs,
		data:           data,
		metric:         m,
		sizes:          sizes,
		offsets:        offsets,
		centers:        centers,
		observationID:  observationID,
		newLocation:    newLocation,
		distToCentroid: distToCentroid,
		useUpperBound:  opts.UseUpperBound,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}

	if p.metrics != nil {
		p.metrics.RecordBuild(time.Since(start), ncenters)
	}
	opts.Logger.Info("kmknn index built", map[string]interface{}{
		"nobs": nobs, "dim": dim, "clusters": ncenters, "duration": time.Since(start),
	})

	return p, nil
}

// Initialize returns a Searcher over this index.
func (p *Prebuilt) Initialize() *Searcher {
	return newSearcher(p)
}
