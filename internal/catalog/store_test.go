package catalog

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
	"github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

func candidateID(c recommend.Candidate) string {
	rec := c.Record()
	return rec.ID()
}

func testRecord(t *testing.T, id, name string, emb []float32) assessment.Assessment {
	t.Helper()
	rec, err := assessment.New(assessment.Params{ID: id, Name: name, Embedding: emb})
	if err != nil {
		t.Fatalf("building record %s: %v", id, err)
	}
	return rec
}

func newTestStore(dedupe bool) *Store {
	return New(3, dedupe, nil, zap.NewNop())
}

func TestSearch_EmptyCatalog(t *testing.T) {
	s := newTestStore(false)

	_, err := s.Search([]float32{1, 0, 0}, 5)
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestLoad_QuarantinesBadRecords(t *testing.T) {
	s := newTestStore(false)

	records := []assessment.Assessment{
		testRecord(t, "good1", "Good One", []float32{1, 0, 0}),
		testRecord(t, "wrongdim", "Wrong Dim", []float32{1, 0}),
		testRecord(t, "zeronorm", "Zero Norm", []float32{0, 0, 0}),
		testRecord(t, "good1", "Duplicate ID", []float32{0, 1, 0}),
		testRecord(t, "good2", "Good Two", []float32{0, 0, 1}),
	}

	stats, err := s.Load(records)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.Loaded != 2 {
		t.Errorf("Loaded = %d, want 2", stats.Loaded)
	}
	if stats.Quarantined != 3 {
		t.Errorf("Quarantined = %d, want 3", stats.Quarantined)
	}
	if stats.Generation != 1 {
		t.Errorf("Generation = %d, want 1", stats.Generation)
	}
	if _, ok := s.Get("wrongdim"); ok {
		t.Error("quarantined record must not be served")
	}
	if _, ok := s.Get("good2"); !ok {
		t.Error("valid record missing from store")
	}
}

func TestLoad_EmptySetKeepsServingGeneration(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "a", "A", []float32{1, 0, 0}),
	}); err != nil {
		t.Fatalf("first Load: %v", err)
	}

	_, err := s.Load([]assessment.Assessment{
		testRecord(t, "bad", "Bad", []float32{0, 0, 0}),
	})
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog on empty reload, got %v", err)
	}

	if got := s.Stats().Generation; got != 1 {
		t.Errorf("Generation = %d, want 1 (failed reload must not swap)", got)
	}
	results, err := s.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search after failed reload: %v", err)
	}
	if len(results) != 1 || candidateID(results[0]) != "a" {
		t.Errorf("store no longer serves the previous generation: %+v", results)
	}
}

func TestLoad_DedupeNames(t *testing.T) {
	s := newTestStore(true)

	stats, err := s.Load([]assessment.Assessment{
		testRecord(t, "a", "Verify Numerical", []float32{1, 0, 0}),
		testRecord(t, "b", "verify numerical", []float32{0, 1, 0}),
		testRecord(t, "c", "Other", []float32{0, 0, 1}),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.Loaded != 2 {
		t.Errorf("Loaded = %d, want 2", stats.Loaded)
	}
	if stats.Deduplicated != 1 {
		t.Errorf("Deduplicated = %d, want 1", stats.Deduplicated)
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("first occurrence must be kept")
	}
	if _, ok := s.Get("b"); ok {
		t.Error("duplicate name must be dropped")
	}
}

func TestLoad_DedupeDisabledKeepsAll(t *testing.T) {
	s := newTestStore(false)

	stats, err := s.Load([]assessment.Assessment{
		testRecord(t, "a", "Same Name", []float32{1, 0, 0}),
		testRecord(t, "b", "Same Name", []float32{0, 1, 0}),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.Loaded != 2 || stats.Deduplicated != 0 {
		t.Errorf("stats = %+v, want 2 loaded, 0 deduplicated", stats)
	}
}

func TestSearch_OrdersBySimilarity(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "ortho", "Orthogonal", []float32{0, 1, 0}),
		testRecord(t, "exact", "Exact", []float32{1, 0, 0}),
		testRecord(t, "close", "Close", []float32{0.9, 0.1, 0}),
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	results, err := s.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if candidateID(results[0]) != "exact" || candidateID(results[1]) != "close" {
		t.Errorf("order = [%s %s], want [exact close]",
			candidateID(results[0]), candidateID(results[1]))
	}
	if math.Abs(results[0].Similarity()-1.0) > 1e-6 {
		t.Errorf("similarity of exact match = %f, want 1.0", results[0].Similarity())
	}
	if results[1].Similarity() >= results[0].Similarity() {
		t.Errorf("results not in descending similarity order")
	}
}

func TestSearch_TieBreakByInsertionOrder(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "ortho", "Orthogonal", []float32{0, 1, 0}),
		testRecord(t, "first", "First Tie", []float32{1, 0, 0}),
		testRecord(t, "mid", "Middling", []float32{0.6, 0.8, 0}),
		testRecord(t, "second", "Second Tie", []float32{1, 0, 0}),
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	results, err := s.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got := make([]string, len(results))
	for i, r := range results {
		got[i] = candidateID(r)
	}
	want := []string{"first", "second", "mid"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestSearch_TopNLargerThanCatalog(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "a", "A", []float32{1, 0, 0}),
		testRecord(t, "b", "B", []float32{0, 1, 0}),
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	results, err := s.Search([]float32{1, 0, 0}, 100)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want all 2", len(results))
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "a", "A", []float32{1, 0, 0}),
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, err := s.Search([]float32{1, 0}, 5)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSearch_DegenerateQueries(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "a", "A", []float32{1, 0, 0}),
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	results, err := s.Search([]float32{0, 0, 0}, 5)
	if err != nil || results != nil {
		t.Errorf("zero-norm query: got (%v, %v), want (nil, nil)", results, err)
	}

	results, err = s.Search([]float32{1, 0, 0}, 0)
	if err != nil || results != nil {
		t.Errorf("topN=0: got (%v, %v), want (nil, nil)", results, err)
	}
}

func TestReload_SwapsGeneration(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "old", "Old", []float32{1, 0, 0}),
	}); err != nil {
		t.Fatalf("first Load: %v", err)
	}

	stats, err := s.Load([]assessment.Assessment{
		testRecord(t, "new", "New", []float32{1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if stats.Generation != 2 {
		t.Errorf("Generation = %d, want 2", stats.Generation)
	}

	if _, ok := s.Get("old"); ok {
		t.Error("previous generation record still served after swap")
	}
	results, err := s.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || candidateID(results[0]) != "new" {
		t.Errorf("search after reload = %+v, want only the new record", results)
	}
}

func TestStats_BeforeFirstLoad(t *testing.T) {
	s := newTestStore(false)

	if got := s.Stats(); got != (Stats{}) {
		t.Errorf("Stats before load = %+v, want zero value", got)
	}
	if got := s.Len(); got != 0 {
		t.Errorf("Len before load = %d, want 0", got)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get before load must report not found")
	}
}

func TestSearch_ConcurrentWithReload(t *testing.T) {
	s := newTestStore(false)

	if _, err := s.Load([]assessment.Assessment{
		testRecord(t, "a", "A", []float32{1, 0, 0}),
	}); err != nil {
		t.Fatalf("initial Load: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				results, err := s.Search([]float32{1, 0, 0}, 1)
				if err != nil {
					t.Errorf("Search during reload: %v", err)
					return
				}
				if len(results) != 1 {
					t.Errorf("got %d results during reload, want 1", len(results))
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if _, err := s.Load([]assessment.Assessment{
			testRecord(t, fmt.Sprintf("gen%d", i), "A", []float32{1, 0, 0}),
		}); err != nil {
			t.Errorf("reload %d: %v", i, err)
		}
	}
	wg.Wait()
}
