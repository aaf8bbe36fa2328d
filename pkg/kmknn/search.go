package kmknn

import (
	"math"
	"sort"

	"github.com/knncolle-go/kmknn/internal/nnqueue"
)

// centerDist holds one cluster's raw distance to the query; a slice of
// them is reused across calls so the search loop doesn't allocate per
// query.
type centerDist struct {
	raw    float64
	center int
}

// searchNN runs the core KMKNN k-NN search: visit clusters nearest-center
// first so the queue's threshold shrinks as early as possible, then skip
// whole clusters or sorted prefixes within a cluster via the triangle
// inequality. Ported from Kmknn.hpp's search_nn.
func (p *Prebuilt) searchNN(target []float64, nearest *nnqueue.Queue, order []centerDist) []centerDist {
	ncenters := len(p.sizes)
	if cap(order) < ncenters {
		order = make([]centerDist, ncenters)
	} else {
		order = order[:ncenters]
	}
	for c := 0; c < ncenters; c++ {
		cptr := p.centers[c*p.dim : c*p.dim+p.dim]
		order[c] = centerDist{raw: p.metric.Raw(p.dim, target, cptr), center: c}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].raw != order[j].raw {
			return order[i].raw < order[j].raw
		}
		return order[i].center < order[j].center
	})

	thresholdRaw := math.Inf(1)

	for _, cd := range order {
		center := cd.center
		dist2center := p.metric.Normalize(cd.raw)

		curNobs := p.sizes[center]
		if curNobs == 0 {
			continue
		}
		dStart := p.offsets[center]
		dSlice := p.distToCentroid[dStart : dStart+curNobs]
		maxdist := dSlice[curNobs-1]

		firstcell := 0
		upperBd := math.MaxFloat64

		if !math.IsInf(thresholdRaw, 1) {
			threshold := p.metric.Normalize(thresholdRaw)

			// Triangle inequality: equivalent to asking whether
			// threshold + maxdist < dist2center. Points (if any)
			// within this cluster with distance above lowerBd are
			// potentially countable.
			lowerBd := dist2center - threshold
			if maxdist < lowerBd {
				if p.metrics != nil {
					p.metrics.RecordClustersPruned(1)
				}
				continue
			}

			firstcell = sort.Search(len(dSlice), func(i int) bool { return dSlice[i] >= lowerBd })

			if p.useUpperBound {
				upperBd = threshold + dist2center
			}
		}

		curStart := p.offsets[center]
		for celldex := firstcell; celldex < curNobs; celldex++ {
			if p.useUpperBound && dSlice[celldex] > upperBd {
				break
			}

			otherRow := p.data[(curStart+celldex)*p.dim : (curStart+celldex)*p.dim+p.dim]
			dist2cellRaw := p.metric.Raw(p.dim, target, otherRow)
			if dist2cellRaw <= thresholdRaw {
				nearest.Add(curStart+celldex, dist2cellRaw)
				if p.metrics != nil {
					p.metrics.RecordQueueAdmission()
				}
				if nearest.IsFull() {
					thresholdRaw = nearest.Limit()
					if p.useUpperBound {
						upperBd = p.metric.Normalize(thresholdRaw) + dist2center
					}
				}
			}
		}
	}

	return order
}

// searchAll runs a fixed-radius search: unlike searchNN the threshold
// never shrinks mid-search, so clusters are visited in storage order.
// When collect is false, only the count of matches is accumulated (the
// caller wants counts, not identities). Ported from Kmknn.hpp's
// search_all.
func (p *Prebuilt) searchAll(target []float64, radius float64, collect bool) (count int, ids []int, dists []float64) {
	thresholdRaw := p.metric.Denormalize(radius)

	ncenters := len(p.sizes)
	for center := 0; center < ncenters; center++ {
		cptr := p.centers[center*p.dim : center*p.dim+p.dim]
		dist2center := p.metric.Normalize(p.metric.Raw(p.dim, target, cptr))

		curNobs := p.sizes[center]
		if curNobs == 0 {
			continue
		}
		dStart := p.offsets[center]
		dSlice := p.distToCentroid[dStart : dStart+curNobs]
		maxdist := dSlice[curNobs-1]

		lowerBd := dist2center - radius
		if maxdist < lowerBd {
			if p.metrics != nil {
				p.metrics.RecordClustersPruned(1)
			}
			continue
		}

		firstcell := sort.Search(len(dSlice), func(i int) bool { return dSlice[i] >= lowerBd })
		upperBd := math.MaxFloat64
		if p.useUpperBound {
			upperBd = radius + dist2center
		}

		curStart := p.offsets[center]
		for celldex := firstcell; celldex < curNobs; celldex++ {
			if p.useUpperBound && dSlice[celldex] > upperBd {
				break
			}

			otherRow := p.data[(curStart+celldex)*p.dim : (curStart+celldex)*p.dim+p.dim]
			dist2cellRaw := p.metric.Raw(p.dim, target, otherRow)
			if dist2cellRaw <= thresholdRaw {
				if collect {
					ids = append(ids, curStart+celldex)
					dists = append(dists, dist2cellRaw)
				}
				count++
			}
		}
	}

	return count, ids, dists
}

// normalizeResults maps internal row indices back to original
// observation ids and converts raw distances to true distances.
func (p *Prebuilt) normalizeResults(ids []int, dists []float64) {
	for i, row := range ids {
		ids[i] = p.observationID[row]
	}
	for i, d := range dists {
		dists[i] = p.metric.Normalize(d)
	}
}
