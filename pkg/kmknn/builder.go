package kmknn

import (
	"fmt"

	"github.com/knncolle-go/kmknn/internal/metric"
)

// Builder constructs Prebuilt indexes from a Matrix and a fixed distance
// metric, per the IndexBuilder contract.
type Builder struct {
	Metric  metric.Metric
	Options Options
}

// NewBuilder returns a Builder using the given metric and DefaultOptions.
func NewBuilder(m metric.Metric) *Builder {
	return &Builder{Metric: m, Options: DefaultOptions()}
}

// NewBuilderWithOptions returns a Builder using the given metric and
// options. A zero Power and nil InitAlgorithm, RefineAlgorithm and
// Logger are replaced with defaults; a zero RandomSeed is kept.
func NewBuilderWithOptions(m metric.Metric, opts Options) *Builder {
	return &Builder{Metric: m, Options: opts.withDefaults()}
}

// Build partitions data with k-means and constructs the searchable
// Prebuilt index. The input Matrix is read once, row by row; Build does
// not retain a reference to it afterward.
func (b *Builder) Build(data Matrix) (*Prebuilt, error) {
	if b.Metric == nil {
		return nil, fmt.Errorf("%w: builder has no metric", ErrConfiguration)
	}

	nobs, dim := data.Dims()
	if nobs < 0 || dim < 0 {
		return nil, fmt.Errorf("%w: negative matrix dimensions (nobs=%d, dim=%d)", ErrConfiguration, nobs, dim)
	}
	// nobs == 0 is legal: an empty index with no clusters, searches
	// trivially returning no results.
	if nobs > 0 && dim <= 0 {
		return nil, fmt.Errorf("%w: non-empty matrix with non-positive dimension (nobs=%d, dim=%d)", ErrConfiguration, nobs, dim)
	}

	store := make([]float64, nobs*dim)
	for o := 0; o < nobs; o++ {
		row := data.Row(o)
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has length %d, expected %d", ErrConfiguration, o, len(row), dim)
		}
		copy(store[o*dim:o*dim+dim], row)
	}

	opts := b.Options.withDefaults()
	return buildPrebuilt(dim, nobs, store, b.Metric, opts)
}
