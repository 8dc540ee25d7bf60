package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
)

// SnapshotRecord mirrors one entry of the catalog snapshot file produced by
// the ingestion pipeline.
type SnapshotRecord struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	URL             string    `json:"url,omitempty"`
	DurationMinutes *int      `json:"duration_minutes"`
	Categories      []string  `json:"categories,omitempty"`
	RemoteTesting   bool      `json:"remote_testing,omitempty"`
	AdaptiveSupport bool      `json:"adaptive_support,omitempty"`
	AssessmentKind  string    `json:"assessment_kind,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
}

// ToAssessment validates the raw record and builds the domain object.
func (r SnapshotRecord) ToAssessment() (assessment.Assessment, error) {
	cats := make([]assessment.Category, 0, len(r.Categories))
	for _, c := range r.Categories {
		cat, ok := assessment.ParseCategory(c)
		if !ok {
			return assessment.Assessment{}, fmt.Errorf("unknown category %q", c)
		}
		cats = append(cats, cat)
	}

	return assessment.New(assessment.Params{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		URL:             r.URL,
		DurationMinutes: r.DurationMinutes,
		Categories:      cats,
		RemoteTesting:   r.RemoteTesting,
		AdaptiveSupport: r.AdaptiveSupport,
		Kind:            assessment.ParseKind(r.AssessmentKind),
		Embedding:       r.Embedding,
	})
}

// ReadSnapshot parses a snapshot file into raw records without validating them.
func ReadSnapshot(path string) ([]SnapshotRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var raw []SnapshotRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidSnapshot, path, err)
	}

	return raw, nil
}

// WriteSnapshot serializes records to path, replacing any existing file.
func WriteSnapshot(path string, records []SnapshotRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// SnapshotLoader reads the catalog snapshot file and loads it into the store.
// Load is re-invocable: the serving generation is replaced only on success.
type SnapshotLoader struct {
	store  *Store
	path   string
	logger *zap.Logger
}

// NewSnapshotLoader creates a loader bound to one snapshot path.
func NewSnapshotLoader(store *Store, path string, logger *zap.Logger) *SnapshotLoader {
	return &SnapshotLoader{
		store:  store,
		path:   path,
		logger: logger,
	}
}

// Load parses the snapshot, quarantines records that fail validation and
// swaps the rest into the store. Quarantined counts cover both parse-level
// rejects and records the store refused.
func (l *SnapshotLoader) Load() (LoadStats, error) {
	raw, err := ReadSnapshot(l.path)
	if err != nil {
		return LoadStats{}, err
	}

	records := make([]assessment.Assessment, 0, len(raw))
	var invalid int
	for _, sr := range raw {
		rec, err := sr.ToAssessment()
		if err != nil {
			invalid++
			l.logger.Warn("Quarantining malformed snapshot record",
				zap.String("id", sr.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	stats, err := l.store.Load(records)
	stats.Quarantined += invalid
	if err != nil {
		return stats, fmt.Errorf("load snapshot %s: %w", l.path, err)
	}

	return stats, nil
}
