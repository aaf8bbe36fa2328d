package kmknn

import (
	"fmt"
	"time"

	"github.com/knncolle-go/kmknn/internal/nnqueue"
)

// Searcher runs queries against a Prebuilt index. Not safe for
// concurrent use: each Searcher owns reusable scratch buffers (a
// NeighborQueue and a center-distance ordering) that a query overwrites
// on every call. Build one Searcher per goroutine via Prebuilt.Initialize.
type Searcher struct {
	parent *Prebuilt

	queue      *nnqueue.Queue
	order      []centerDist
	conversion []float64 // scratch for the []float32 query wrappers below
}

func newSearcher(p *Prebuilt) *Searcher {
	return &Searcher{
		parent:     p,
		queue:      nnqueue.New(8),
		order:      make([]centerDist, 0, len(p.sizes)),
		conversion: make([]float64, p.dim),
	}
}

// CanSearchAll reports whether this Searcher supports radius search.
// KMKNN always does.
func (s *Searcher) CanSearchAll() bool { return true }

// SearchByIndex returns the k nearest neighbors of the point already at
// observation index i, excluding i itself.
func (s *Searcher) SearchByIndex(i, k int) (ids []int, dists []float64, err error) {
	if i < 0 || i >= s.parent.obs {
		return nil, nil, fmt.Errorf("%w: observation index %d out of range [0,%d)", ErrConfiguration, i, s.parent.obs)
	}
	if k < 0 {
		return nil, nil, fmt.Errorf("%w: k must be non-negative, got %d", ErrConfiguration, k)
	}

	start := time.Now()
	newI := s.parent.newLocation[i]
	target := s.parent.data[newI*s.parent.dim : newI*s.parent.dim+s.parent.dim]

	// k+1 is safe here: self (distance 0) is excluded from the report,
	// so the caller still gets k neighbors provided k < NumObservations.
	// Exact duplicates visited before self can fill the queue and keep
	// self out; the report then holds k+1 entries and the farthest is
	// dropped.
	s.queue.Reset(k + 1)
	s.order = s.parent.searchNN(target, s.queue, s.order)
	ids, dists = s.queue.Report(newI, true)
	if len(ids) > k {
		ids, dists = ids[:k], dists[:k]
	}
	s.parent.normalizeResults(ids, dists)

	if s.parent.metrics != nil {
		s.parent.metrics.RecordSearch("knn_by_index", time.Since(start))
	}
	return ids, dists, nil
}

// SearchByQuery returns the k nearest neighbors of an arbitrary query
// point, which need not be a point already in the index.
func (s *Searcher) SearchByQuery(query []float64, k int) (ids []int, dists []float64, err error) {
	if len(query) != s.parent.dim {
		return nil, nil, fmt.Errorf("%w: query has dimension %d, expected %d", ErrConfiguration, len(query), s.parent.dim)
	}
	if k < 0 {
		return nil, nil, fmt.Errorf("%w: k must be non-negative, got %d", ErrConfiguration, k)
	}
	if k == 0 {
		return []int{}, []float64{}, nil
	}

	start := time.Now()
	s.queue.Reset(k)
	s.order = s.parent.searchNN(query, s.queue, s.order)
	ids, dists = s.queue.Report(0, false)
	s.parent.normalizeResults(ids, dists)

	if s.parent.metrics != nil {
		s.parent.metrics.RecordSearch("knn_by_query", time.Since(start))
	}
	return ids, dists, nil
}

// SearchAllByIndex returns every observation within radius of the point
// already at observation index i, excluding i itself. count is the
// number of such neighbors; ids/dists are nil if collect is false.
func (s *Searcher) SearchAllByIndex(i int, radius float64, collect bool) (count int, ids []int, dists []float64, err error) {
	if i < 0 || i >= s.parent.obs {
		return 0, nil, nil, fmt.Errorf("%w: observation index %d out of range [0,%d)", ErrConfiguration, i, s.parent.obs)
	}

	start := time.Now()
	newI := s.parent.newLocation[i]
	target := s.parent.data[newI*s.parent.dim : newI*s.parent.dim+s.parent.dim]

	rawCount, rawIDs, rawDists := s.parent.searchAll(target, radius, collect)
	// The query point is itself a member of the index and always
	// within its own radius; exclude it from both the count and the
	// reported neighbors.
	count = rawCount - 1
	if count < 0 {
		count = 0
	}

	if collect {
		ids = make([]int, 0, len(rawIDs))
		dists = make([]float64, 0, len(rawDists))
		for j, row := range rawIDs {
			if row == newI {
				continue
			}
			ids = append(ids, row)
			dists = append(dists, rawDists[j])
		}
		s.parent.normalizeResults(ids, dists)
	}

	if s.parent.metrics != nil {
		s.parent.metrics.RecordSearch("radius_by_index", time.Since(start))
	}
	return count, ids, dists, nil
}

// SearchAllByQuery returns every observation within radius of an
// arbitrary query point.
func (s *Searcher) SearchAllByQuery(query []float64, radius float64, collect bool) (count int, ids []int, dists []float64, err error) {
	if len(query) != s.parent.dim {
		return 0, nil, nil, fmt.Errorf("%w: query has dimension %d, expected %d", ErrConfiguration, len(query), s.parent.dim)
	}

	start := time.Now()
	count, ids, dists = s.parent.searchAll(query, radius, collect)
	if collect {
		s.parent.normalizeResults(ids, dists)
	}

	if s.parent.metrics != nil {
		s.parent.metrics.RecordSearch("radius_by_query", time.Since(start))
	}
	return count, ids, dists, nil
}

// SearchVectorF32 is SearchByQuery for a []float32 query, converting into
// the Searcher's own scratch buffer rather than allocating one per call.
func (s *Searcher) SearchVectorF32(query []float32, k int) (ids []int, dists []float64, err error) {
	if len(query) != s.parent.dim {
		return nil, nil, fmt.Errorf("%w: query has dimension %d, expected %d", ErrConfiguration, len(query), s.parent.dim)
	}
	for i, v := range query {
		s.conversion[i] = float64(v)
	}
	return s.SearchByQuery(s.conversion, k)
}

// RadiusF32 is SearchAllByQuery for a []float32 query, converting into the
// Searcher's own scratch buffer rather than allocating one per call.
func (s *Searcher) RadiusF32(query []float32, radius float64, collect bool) (count int, ids []int, dists []float64, err error) {
	if len(query) != s.parent.dim {
		return 0, nil, nil, fmt.Errorf("%w: query has dimension %d, expected %d", ErrConfiguration, len(query), s.parent.dim)
	}
	for i, v := range query {
		s.conversion[i] = float64(v)
	}
	return s.SearchAllByQuery(s.conversion, radius, collect)
}
