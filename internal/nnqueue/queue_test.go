package nnqueue

import (
	"math"
	"testing"
)

func TestQueue_AdmitsUntilFullThenReplacesWorst(t *testing.T) {
	q := New(4)
	q.Reset(3)

	q.Add(1, 5.0)
	q.Add(2, 1.0)
	q.Add(3, 3.0)

	if !q.IsFull() {
		t.Fatal("expected queue to be full after 3 adds with capacity 3")
	}
	if q.Limit() != 5.0 {
		t.Errorf("expected limit 5.0, got %g", q.Limit())
	}

	// better than current worst (5.0): should evict id 1
	q.Add(4, 2.0)
	if q.Limit() != 3.0 {
		t.Errorf("expected new limit 3.0 after eviction, got %g", q.Limit())
	}

	ids, dists := q.Report(0, false)
	want := map[int]float64{2: 1.0, 4: 2.0, 3: 3.0}
	if len(ids) != 3 {
		t.Fatalf("expected 3 results, got %d", len(ids))
	}
	for i, id := range ids {
		if want[id] != dists[i] {
			t.Errorf("id %d: got dist %g, want %g", id, dists[i], want[id])
		}
	}
	for i := 1; i < len(dists); i++ {
		if dists[i-1] > dists[i] {
			t.Errorf("results not in ascending order: %v", dists)
		}
	}
}

func TestQueue_LimitIsInfWhenNotFull(t *testing.T) {
	q := New(5)
	q.Reset(5)
	q.Add(1, 2.0)

	if !math.IsInf(q.Limit(), 1) {
		t.Errorf("expected +Inf limit before queue is full, got %g", q.Limit())
	}
}

func TestQueue_ReportExcludesID(t *testing.T) {
	q := New(4)
	q.Reset(4)
	q.Add(1, 1.0)
	q.Add(2, 2.0)
	q.Add(3, 3.0)

	ids, _ := q.Report(2, true)
	for _, id := range ids {
		if id == 2 {
			t.Error("expected id 2 to be excluded from the report")
		}
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 results after exclusion, got %d", len(ids))
	}
}

func TestQueue_ResetReusesCapacity(t *testing.T) {
	q := New(2)
	q.Reset(2)
	q.Add(1, 1.0)
	q.Add(2, 2.0)

	q.Reset(2)
	if q.IsFull() {
		t.Error("expected queue to be empty immediately after Reset")
	}
	ids, _ := q.Report(0, false)
	if len(ids) != 0 {
		t.Errorf("expected no results after Reset, got %d", len(ids))
	}
}

func TestQueue_ZeroCapacityAdmitsNothing(t *testing.T) {
	q := New(1)
	q.Reset(0)
	q.Add(1, 1.0)

	ids, _ := q.Report(0, false)
	if len(ids) != 0 {
		t.Errorf("expected no admissions with zero capacity, got %d", len(ids))
	}
}
