package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LabeledQuery pairs query text with the record ids a correct
// recommendation should surface.
type LabeledQuery struct {
	Query       string   `json:"query"`
	RelevantIDs []string `json:"relevant_ids"`
}

// LoadLabels reads a labeled query set from a JSON file. Entries with blank
// query text are rejected; entries without relevant ids load fine and are
// excluded from averaging at run time.
func LoadLabels(path string) ([]LabeledQuery, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}

	var labeled []LabeledQuery
	if err := json.Unmarshal(data, &labeled); err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	if len(labeled) == 0 {
		return nil, fmt.Errorf("labels %s: empty labeled set", path)
	}
	for i := range labeled {
		if strings.TrimSpace(labeled[i].Query) == "" {
			return nil, fmt.Errorf("labels %s: entry %d has blank query text", path, i)
		}
	}
	return labeled, nil
}
