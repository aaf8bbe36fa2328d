// Package kmknn implements KMKNN (Wang, 2012): an exact k-nearest-neighbor
// and radius-search index over a fixed set of dense points, accelerated by
// partitioning the points with k-means clustering and pruning whole
// clusters (and prefixes/suffixes within surviving clusters) via the
// triangle inequality between query, cluster center, and candidate point.
//
// Construction (Build), the two search routines (a Searcher's k-NN and
// radius operations), and on-disk persistence are the core; the k-means
// algorithm, the distance metric, and the bounded top-k collector are
// consumed as narrow external contracts from internal/kmeans,
// internal/metric, and internal/nnqueue respectively.
package kmknn
