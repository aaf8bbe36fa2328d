package kmknn

import (
	"github.com/knncolle-go/kmknn/internal/kmeans"
	"github.com/knncolle-go/kmknn/pkg/observability"
)

// Options controls Prebuilt construction. NewBuilderWithOptions, Build
// and the loaders replace a zero Power, a nil InitAlgorithm,
// RefineAlgorithm or Logger with the defaults; a zero RandomSeed is used
// as given.
type Options struct {
	// Power sets the number of cluster centers: K = ceil(N^Power).
	// Must be positive. Default 0.5 (square root).
	Power float64

	// InitAlgorithm seeds k-means centers. Defaults to k-means++.
	InitAlgorithm kmeans.Initializer

	// RefineAlgorithm iterates k-means to convergence. Defaults to Lloyd.
	RefineAlgorithm kmeans.Refiner

	// RandomSeed makes k-means initialization reproducible.
	RandomSeed int64

	// UseUpperBound gates the optional reverse-triangle-inequality early
	// break within a surviving cluster. Off by default: the lower-bound
	// prune and the sorted prefix skip already dominate.
	UseUpperBound bool

	// Logger receives the Debug and Info events emitted during Build.
	// Save, Load and the searches do not log. A nil Logger is replaced
	// with a no-op one.
	Logger *observability.Logger

	// Metrics, if non-nil, records build/search instrumentation.
	Metrics *observability.Metrics
}

// DefaultOptions returns the standard defaults: power=0.5, k-means++
// initialization, Lloyd refinement, upper bound off.
func DefaultOptions() Options {
	return Options{
		Power:           0.5,
		InitAlgorithm:   kmeans.PlusPlusInit{},
		RefineAlgorithm: kmeans.NewLloydRefiner(),
		RandomSeed:      42,
		UseUpperBound:   false,
		Logger:          observability.NewNopLogger(),
		Metrics:         nil,
	}
}

func (o Options) withDefaults() Options {
	if o.Power == 0 {
		o.Power = 0.5
	}
	if o.InitAlgorithm == nil {
		o.InitAlgorithm = kmeans.PlusPlusInit{}
	}
	if o.RefineAlgorithm == nil {
		o.RefineAlgorithm = kmeans.NewLloydRefiner()
	}
	if o.Logger == nil {
		o.Logger = observability.NewNopLogger()
	}
	return o
}
