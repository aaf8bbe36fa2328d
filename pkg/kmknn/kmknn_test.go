package kmknn

import (
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/knncolle-go/kmknn/internal/metric"
)

func generateRandomVectors(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float64, n)
	for i := 0; i < n; i++ {
		vectors[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			vectors[i][j] = rng.Float64()
		}
	}
	return vectors
}

// bruteForceKNN is the independent reference used to cross-check KMKNN's
// pruning against an exhaustive scan.
func bruteForceKNN(data [][]float64, query []float64, k int, m metric.Metric) ([]int, []float64) {
	type cand struct {
		id   int
		dist float64
	}
	cands := make([]cand, len(data))
	for i, row := range data {
		cands[i] = cand{id: i, dist: m.Normalize(m.Raw(len(query), query, row))}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if k > len(cands) {
		k = len(cands)
	}
	ids := make([]int, k)
	dists := make([]float64, k)
	for i := 0; i < k; i++ {
		ids[i] = cands[i].id
		dists[i] = cands[i].dist
	}
	return ids, dists
}

func bruteForceRadius(data [][]float64, query []float64, radius float64, m metric.Metric) int {
	count := 0
	for _, row := range data {
		if m.Normalize(m.Raw(len(query), query, row)) <= radius {
			count++
		}
	}
	return count
}

func buildTestIndex(t *testing.T, vectors [][]float64, m metric.Metric) *Prebuilt {
	t.Helper()
	b := NewBuilder(m)
	p, err := b.Build(SliceMatrix(vectors))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return p
}

func TestBuild_BasicShape(t *testing.T) {
	vectors := generateRandomVectors(500, 16, 1)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})

	if p.NumObservations() != 500 {
		t.Errorf("expected 500 observations, got %d", p.NumObservations())
	}
	if p.NumDimensions() != 16 {
		t.Errorf("expected dim 16, got %d", p.NumDimensions())
	}
}

// TestSearchByQuery_MatchesBruteForce checks that KMKNN returns the same
// k nearest neighbors (by id and distance) as an exhaustive scan,
// regardless of the pruning taken along the way.
func TestSearchByQuery_MatchesBruteForce(t *testing.T) {
	vectors := generateRandomVectors(800, 8, 2)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	query := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	k := 10

	gotIDs, gotDists, err := s.SearchByQuery(query, k)
	if err != nil {
		t.Fatalf("SearchByQuery failed: %v", err)
	}
	wantIDs, wantDists := bruteForceKNN(vectors, query, k, metric.EuclideanMetric{})

	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("got %d results, want %d", len(gotIDs), len(wantIDs))
	}
	for i := range gotIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("result %d: got id %d, want %d", i, gotIDs[i], wantIDs[i])
		}
		if math.Abs(gotDists[i]-wantDists[i]) > 1e-9 {
			t.Errorf("result %d: got dist %g, want %g", i, gotDists[i], wantDists[i])
		}
	}
}

func TestSearchByQuery_UpperBoundMatchesBruteForce(t *testing.T) {
	vectors := generateRandomVectors(600, 8, 3)
	m := metric.EuclideanMetric{}
	b := NewBuilderWithOptions(m, Options{UseUpperBound: true})
	p, err := b.Build(SliceMatrix(vectors))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	s := p.Initialize()

	query := vectors[0]
	k := 5
	gotIDs, _, err := s.SearchByQuery(query, k)
	if err != nil {
		t.Fatalf("SearchByQuery failed: %v", err)
	}
	wantIDs, _ := bruteForceKNN(vectors, query, k, m)
	for i := range gotIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("result %d: got id %d, want %d (upper bound enabled)", i, gotIDs[i], wantIDs[i])
		}
	}
}

// TestSearchByIndex_ExcludesSelf covers a point searching against its
// own index: the point itself (distance 0) must not appear in its own
// neighbor list.
func TestSearchByIndex_ExcludesSelf(t *testing.T) {
	vectors := generateRandomVectors(300, 4, 4)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	for _, i := range []int{0, 50, 299} {
		ids, _, err := s.SearchByIndex(i, 5)
		if err != nil {
			t.Fatalf("SearchByIndex(%d) failed: %v", i, err)
		}
		for _, id := range ids {
			if id == i {
				t.Errorf("SearchByIndex(%d) returned self in results: %v", i, ids)
			}
		}
	}
}

// TestSearchAll_RadiusMatchesBruteForce checks that the count returned
// by SearchAllByQuery matches an exhaustive scan for several radii, and
// that every reported distance lies within the radius.
func TestSearchAll_RadiusMatchesBruteForce(t *testing.T) {
	vectors := generateRandomVectors(400, 6, 5)
	m := metric.EuclideanMetric{}
	p := buildTestIndex(t, vectors, m)
	s := p.Initialize()

	query := vectors[7]
	for _, radius := range []float64{0.1, 0.5, 1.0, 2.0} {
		count, ids, dists, err := s.SearchAllByQuery(query, radius, true)
		if err != nil {
			t.Fatalf("SearchAllByQuery failed: %v", err)
		}
		want := bruteForceRadius(vectors, query, radius, m)
		if count != want {
			t.Errorf("radius %g: got count %d, want %d", radius, count, want)
		}
		if len(ids) != count || len(dists) != count {
			t.Errorf("radius %g: ids/dists length mismatch with count %d: %d/%d", radius, count, len(ids), len(dists))
		}
		for _, d := range dists {
			if d > radius+1e-9 {
				t.Errorf("radius %g: returned distance %g exceeds radius", radius, d)
			}
		}
	}
}

func TestSearchAllByIndex_ExcludesSelf(t *testing.T) {
	vectors := generateRandomVectors(300, 4, 6)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	count, ids, _, err := s.SearchAllByIndex(10, 5.0, true)
	if err != nil {
		t.Fatalf("SearchAllByIndex failed: %v", err)
	}
	if count != len(ids) {
		t.Errorf("count %d != len(ids) %d", count, len(ids))
	}
	for _, id := range ids {
		if id == 10 {
			t.Error("SearchAllByIndex returned self")
		}
	}
}

// TestSearchAll_CountOnly checks that the count-only mode (collect=false)
// agrees with the collecting mode's count.
func TestSearchAll_CountOnly(t *testing.T) {
	vectors := generateRandomVectors(300, 5, 7)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	query := vectors[3]
	radius := 1.5

	countOnly, ids, dists, err := s.SearchAllByQuery(query, radius, false)
	if err != nil {
		t.Fatalf("count-only search failed: %v", err)
	}
	if ids != nil || dists != nil {
		t.Error("count-only search should not allocate ids/dists")
	}

	countCollect, _, _, err := s.SearchAllByQuery(query, radius, true)
	if err != nil {
		t.Fatalf("collecting search failed: %v", err)
	}
	if countOnly != countCollect {
		t.Errorf("count-only %d != collecting %d", countOnly, countCollect)
	}
}

// TestBuild_DuplicatePoints exercises the empty-cluster pruning path:
// many duplicate points will collapse several k-means clusters to
// empty, and construction must remap the survivors correctly.
func TestBuild_DuplicatePoints(t *testing.T) {
	vectors := make([][]float64, 200)
	for i := range vectors {
		vectors[i] = []float64{1.0, 2.0, 3.0}
	}
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	ids, dists, err := s.SearchByQuery([]float64{1.0, 2.0, 3.0}, 5)
	if err != nil {
		t.Fatalf("SearchByQuery failed: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 results among duplicates, got %d", len(ids))
	}
	for _, d := range dists {
		if d > 1e-9 {
			t.Errorf("expected distance ~0 among duplicates, got %g", d)
		}
	}
}

// TestSearchByQuery_KExceedsAvailable exercises the k > N edge case for a
// by-query search: requesting more
// neighbors than exist must return whatever is available, not error.
func TestSearchByQuery_KExceedsAvailable(t *testing.T) {
	vectors := generateRandomVectors(10, 3, 8)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	ids, _, err := s.SearchByQuery(vectors[0], 50)
	if err != nil {
		t.Fatalf("SearchByQuery failed: %v", err)
	}
	if len(ids) != 10 {
		t.Errorf("expected all 10 points returned when k exceeds nobs, got %d", len(ids))
	}
}

func TestSearchByQuery_KZero(t *testing.T) {
	vectors := generateRandomVectors(10, 3, 9)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	ids, dists, err := s.SearchByQuery(vectors[0], 0)
	if err != nil {
		t.Fatalf("SearchByQuery(k=0) failed: %v", err)
	}
	if len(ids) != 0 || len(dists) != 0 {
		t.Errorf("expected empty results for k=0, got %d ids", len(ids))
	}
}

// TestPersistence_RoundTrip checks that a reloaded index answers the
// same query identically to the index it was saved from.
func TestPersistence_RoundTrip(t *testing.T) {
	vectors := generateRandomVectors(500, 12, 10)
	m := metric.EuclideanMetric{}
	p := buildTestIndex(t, vectors, m)

	dir := t.TempDir()
	prefix := filepath.Join(dir, "index_")
	if err := p.Save(prefix); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(prefix, DefaultOptions())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s1 := p.Initialize()
	s2 := reloaded.Initialize()

	query := vectors[42]
	ids1, dists1, err := s1.SearchByQuery(query, 8)
	if err != nil {
		t.Fatalf("original search failed: %v", err)
	}
	ids2, dists2, err := s2.SearchByQuery(query, 8)
	if err != nil {
		t.Fatalf("reloaded search failed: %v", err)
	}

	if len(ids1) != len(ids2) {
		t.Fatalf("result count mismatch: %d vs %d", len(ids1), len(ids2))
	}
	for i := range ids1 {
		if ids1[i] != ids2[i] {
			t.Errorf("result %d: id mismatch %d vs %d", i, ids1[i], ids2[i])
		}
		if math.Abs(dists1[i]-dists2[i]) > 1e-9 {
			t.Errorf("result %d: dist mismatch %g vs %g", i, dists1[i], dists2[i])
		}
	}
}

func TestPersistence_TagMismatch(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "bogus_")
	if err := writeTag(prefix+"ALGORITHM", "not-kmknn"); err != nil {
		t.Fatalf("writeTag failed: %v", err)
	}

	if _, err := Load(prefix, DefaultOptions()); err == nil {
		t.Error("expected an error loading a mismatched tag")
	}
}

func TestRegistry_LoadPrebuilt(t *testing.T) {
	vectors := generateRandomVectors(200, 5, 11)
	p := buildTestIndex(t, vectors, metric.ManhattanMetric{})

	dir := t.TempDir()
	prefix := filepath.Join(dir, "reg_")
	if err := p.Save(prefix); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := LoadPrebuilt(prefix, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadPrebuilt failed: %v", err)
	}
	if reloaded.NumObservations() != 200 {
		t.Errorf("expected 200 observations, got %d", reloaded.NumObservations())
	}
}

func TestManhattanMetric_SearchMatchesBruteForce(t *testing.T) {
	vectors := generateRandomVectors(400, 6, 12)
	m := metric.ManhattanMetric{}
	p := buildTestIndex(t, vectors, m)
	s := p.Initialize()

	query := vectors[17]
	gotIDs, _, err := s.SearchByQuery(query, 6)
	if err != nil {
		t.Fatalf("SearchByQuery failed: %v", err)
	}
	wantIDs, _ := bruteForceKNN(vectors, query, 6, m)
	for i := range gotIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("result %d: got id %d, want %d", i, gotIDs[i], wantIDs[i])
		}
	}
}

func TestBuilder_RejectsBadConfiguration(t *testing.T) {
	vectors := generateRandomVectors(10, 3, 13)

	if _, err := NewBuilder(nil).Build(SliceMatrix(vectors)); err == nil {
		t.Error("expected an error building without a metric")
	}

	b := NewBuilderWithOptions(metric.EuclideanMetric{}, Options{Power: -1})
	if _, err := b.Build(SliceMatrix(vectors)); err == nil {
		t.Error("expected an error building with a non-positive power")
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	p, err := NewBuilder(metric.EuclideanMetric{}).Build(SliceMatrix(nil))
	if err != nil {
		t.Fatalf("Build on empty input should succeed, got: %v", err)
	}
	if p.NumObservations() != 0 {
		t.Errorf("expected 0 observations, got %d", p.NumObservations())
	}

	s := p.Initialize()

	ids, dists, err := s.SearchByQuery(nil, 5)
	if err != nil {
		t.Fatalf("SearchByQuery on empty index: %v", err)
	}
	if len(ids) != 0 || len(dists) != 0 {
		t.Errorf("expected no neighbors from an empty index, got %d", len(ids))
	}

	count, ids, dists, err := s.SearchAllByQuery(nil, 1.0, true)
	if err != nil {
		t.Fatalf("SearchAllByQuery on empty index: %v", err)
	}
	if count != 0 || len(ids) != 0 || len(dists) != 0 {
		t.Errorf("expected no matches from an empty index, got count=%d", count)
	}
}

func TestToCommon_ConvertsNumericTypes(t *testing.T) {
	in := []int32{1, 2, 3}
	out := ToCommon(in)
	want := []float64{1, 2, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: got %g, want %g", i, out[i], want[i])
		}
	}
}

func TestFloat32Matrix_Row(t *testing.T) {
	m := Float32Matrix{{1, 2}, {3, 4}}
	nobs, dim := m.Dims()
	if nobs != 2 || dim != 2 {
		t.Fatalf("unexpected dims %d,%d", nobs, dim)
	}
	row := m.Row(1)
	if row[0] != 3 || row[1] != 4 {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestSearchVectorF32_MatchesSearchByQuery(t *testing.T) {
	vectors := generateRandomVectors(300, 6, 1)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	query64 := []float64{0.2, 0.4, 0.6, 0.1, 0.9, 0.3}
	query32 := make([]float32, len(query64))
	for i, v := range query64 {
		query32[i] = float32(v)
	}

	wantIDs, wantDists, err := s.SearchByQuery(query64, 5)
	if err != nil {
		t.Fatalf("SearchByQuery: %v", err)
	}
	gotIDs, gotDists, err := s.SearchVectorF32(query32, 5)
	if err != nil {
		t.Fatalf("SearchVectorF32: %v", err)
	}
	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("got %d ids, want %d", len(gotIDs), len(wantIDs))
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] || math.Abs(gotDists[i]-wantDists[i]) > 1e-6 {
			t.Errorf("index %d: got (%d,%g), want (%d,%g)", i, gotIDs[i], gotDists[i], wantIDs[i], wantDists[i])
		}
	}
}

func TestRadiusF32_MatchesSearchAllByQuery(t *testing.T) {
	vectors := generateRandomVectors(300, 6, 2)
	p := buildTestIndex(t, vectors, metric.EuclideanMetric{})
	s := p.Initialize()

	query64 := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	query32 := make([]float32, len(query64))
	for i, v := range query64 {
		query32[i] = float32(v)
	}

	wantCount, wantIDs, wantDists, err := s.SearchAllByQuery(query64, 0.5, true)
	if err != nil {
		t.Fatalf("SearchAllByQuery: %v", err)
	}
	gotCount, gotIDs, gotDists, err := s.RadiusF32(query32, 0.5, true)
	if err != nil {
		t.Fatalf("RadiusF32: %v", err)
	}
	if gotCount != wantCount || len(gotIDs) != len(wantIDs) {
		t.Fatalf("got count=%d len=%d, want count=%d len=%d", gotCount, len(gotIDs), wantCount, len(wantIDs))
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] || math.Abs(gotDists[i]-wantDists[i]) > 1e-6 {
			t.Errorf("index %d: got (%d,%g), want (%d,%g)", i, gotIDs[i], gotDists[i], wantIDs[i], wantDists[i])
		}
	}
}

func BenchmarkSearchByQuery(b *testing.B) {
	vectors := generateRandomVectors(20000, 32, 99)
	builder := NewBuilder(metric.EuclideanMetric{})
	p, err := builder.Build(SliceMatrix(vectors))
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	s := p.Initialize()
	query := vectors[0]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.SearchByQuery(query, 10)
	}
}

func BenchmarkBuild(b *testing.B) {
	vectors := generateRandomVectors(5000, 32, 100)
	builder := NewBuilder(metric.EuclideanMetric{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.Build(SliceMatrix(vectors)); err != nil {
			b.Fatalf("Build failed: %v", err)
		}
	}
}
