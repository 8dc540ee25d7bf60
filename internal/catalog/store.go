package catalog

import (
	"container/heap"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
	"github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

// index is one immutable catalog generation. Once published it is never
// mutated; reloads build a fresh index and swap the pointer.
type index struct {
	generation uint64
	records    []assessment.Assessment
	norms      []float64
	byID       map[string]int
	loadedAt   time.Time
}

// Store is the in-memory assessment index. Reads go through an atomic
// pointer load and never block; Load builds a new generation off to the
// side and swaps it in.
type Store struct {
	dims   int
	dedupe bool

	mu         sync.Mutex // serializes Load against itself, never held on reads
	generation atomic.Uint64
	current    atomic.Pointer[index]

	recordsGauge prometheus.Gauge
	logger       *zap.Logger
}

// LoadStats reports the outcome of one Load.
type LoadStats struct {
	Generation   uint64
	Loaded       int
	Quarantined  int
	Deduplicated int
}

// Stats is a point-in-time view of the serving generation.
type Stats struct {
	Generation uint64
	Records    int
	LoadedAt   time.Time
}

// New creates an empty store for vectors of the given dimensionality.
// recordsGauge tracks the serving record count, passed explicitly; nil disables it.
// When dedupe is set, records repeating an already-loaded name are dropped.
func New(dims int, dedupe bool, recordsGauge prometheus.Gauge, logger *zap.Logger) *Store {
	return &Store{
		dims:         dims,
		dedupe:       dedupe,
		recordsGauge: recordsGauge,
		logger:       logger,
	}
}

// Load builds a fresh generation from records and swaps it in. The previous
// generation keeps serving until the swap, so reads never observe a partial
// catalog. Records with a wrong-dimension or zero-norm embedding and records
// repeating an already-seen ID are quarantined. Loading an empty set is
// refused and the current generation stays up.
func (s *Store) Load(records []assessment.Assessment) (LoadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	var stats LoadStats
	kept := make([]assessment.Assessment, 0, len(records))
	norms := make([]float64, 0, len(records))
	byID := make(map[string]int, len(records))

	var seenNames map[string]struct{}
	if s.dedupe {
		seenNames = make(map[string]struct{}, len(records))
	}

	for _, rec := range records {
		emb := rec.Embedding()
		if len(emb) != s.dims {
			stats.Quarantined++
			s.logger.Warn("Quarantining record with wrong embedding dimensions",
				zap.String("id", rec.ID()), zap.Int("got", len(emb)), zap.Int("want", s.dims))
			continue
		}

		n := norm(emb)
		if n == 0 {
			stats.Quarantined++
			s.logger.Warn("Quarantining record with zero-norm embedding", zap.String("id", rec.ID()))
			continue
		}

		if _, dup := byID[rec.ID()]; dup {
			stats.Quarantined++
			s.logger.Warn("Quarantining record with duplicate ID", zap.String("id", rec.ID()))
			continue
		}

		if s.dedupe {
			key := strings.ToLower(strings.TrimSpace(rec.Name()))
			if _, dup := seenNames[key]; dup {
				stats.Deduplicated++
				s.logger.Debug("Dropping record with duplicate name",
					zap.String("id", rec.ID()), zap.String("name", rec.Name()))
				continue
			}
			seenNames[key] = struct{}{}
		}

		byID[rec.ID()] = len(kept)
		kept = append(kept, rec)
		norms = append(norms, n)
	}

	if len(kept) == 0 {
		return stats, fmt.Errorf("%w: no loadable records", domain.ErrEmptyCatalog)
	}

	gen := s.generation.Add(1)
	s.current.Store(&index{
		generation: gen,
		records:    kept,
		norms:      norms,
		byID:       byID,
		loadedAt:   time.Now(),
	})

	stats.Generation = gen
	stats.Loaded = len(kept)

	if s.recordsGauge != nil {
		s.recordsGauge.Set(float64(len(kept)))
	}

	s.logger.Info("Catalog generation swapped",
		zap.Uint64("generation", gen),
		zap.Int("records", stats.Loaded),
		zap.Int("quarantined", stats.Quarantined),
		zap.Int("deduplicated", stats.Deduplicated),
		zap.Duration("took", time.Since(start)))

	return stats, nil
}

// scoredPos tracks a record position and its similarity during the scan phase.
type scoredPos struct {
	pos   int
	score float64
}

// Search performs brute-force cosine similarity over the serving generation,
// returning the topN most similar records in descending order. Equal scores
// keep catalog insertion order. Returns ErrEmptyCatalog before the first
// successful Load.
func (s *Store) Search(vector []float32, topN int) ([]recommend.Candidate, error) {
	idx := s.current.Load()
	if idx == nil {
		return nil, domain.ErrEmptyCatalog
	}
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrVectorDimMismatch, len(vector), s.dims)
	}
	if topN <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &scoredPosHeap{}
	heap.Init(h)

	for pos := range idx.records {
		score := cosine(vector, idx.records[pos].Embedding(), queryNorm, idx.norms[pos])
		if h.Len() < topN {
			heap.Push(h, scoredPos{pos: pos, score: score})
		} else if score > (*h)[0].score {
			(*h)[0] = scoredPos{pos: pos, score: score}
			heap.Fix(h, 0)
		}
	}

	out := make([]recommend.Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		item := heap.Pop(h).(scoredPos)
		out[i] = recommend.NewCandidate(idx.records[item.pos], item.score)
	}

	return out, nil
}

// Get returns the record with the given ID from the serving generation.
func (s *Store) Get(id string) (assessment.Assessment, bool) {
	idx := s.current.Load()
	if idx == nil {
		return assessment.Assessment{}, false
	}
	pos, ok := idx.byID[id]
	if !ok {
		return assessment.Assessment{}, false
	}
	return idx.records[pos], true
}

// Len returns the serving record count, zero before the first Load.
func (s *Store) Len() int {
	idx := s.current.Load()
	if idx == nil {
		return 0
	}
	return len(idx.records)
}

// Stats returns generation info for the serving index, zero before the first Load.
func (s *Store) Stats() Stats {
	idx := s.current.Load()
	if idx == nil {
		return Stats{}
	}
	return Stats{
		Generation: idx.generation,
		Records:    len(idx.records),
		LoadedAt:   idx.loadedAt,
	}
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine computes dot(a,b) / (aNorm * bNorm) with precomputed norms.
// Both norms are non-zero and both vectors have the index dimensionality,
// enforced at Load and at the top of Search.
func cosine(a, b []float32, aNorm, bNorm float64) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

// scoredPosHeap is a min-heap of scoredPos with the worst candidate on top.
// Equal scores order later positions first so they are evicted before
// earlier ones, preserving insertion order among ties.
type scoredPosHeap []scoredPos

func (h scoredPosHeap) Len() int { return len(h) }
func (h scoredPosHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].pos > h[j].pos
}
func (h scoredPosHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scoredPosHeap) Push(x any)   { *h = append(*h, x.(scoredPos)) }
func (h *scoredPosHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
