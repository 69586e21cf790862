package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/segbridge/internal/platform/artifacts"
)

// Manifest lists the samples one evaluation run walks. It lives in the
// artifact store as a JSON document; keys are artifact keys in the same
// store.
type Manifest struct {
	Name    string   `json:"name,omitempty"`
	Samples []Sample `json:"samples"`
}

// Sample is one case to evaluate. TruthKey is optional; without it the
// sample is aggregated and persisted but never scored.
type Sample struct {
	ID       string `json:"id"`
	InputKey string `json:"input_key"`
	TruthKey string `json:"truth_key,omitempty"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if len(m.Samples) == 0 {
		return nil, fmt.Errorf("manifest has no samples")
	}
	seen := make(map[string]bool, len(m.Samples))
	for i := range m.Samples {
		s := &m.Samples[i]
		s.ID = strings.TrimSpace(s.ID)
		s.InputKey = strings.TrimSpace(s.InputKey)
		s.TruthKey = strings.TrimSpace(s.TruthKey)
		if s.ID == "" {
			return nil, fmt.Errorf("manifest sample %d has no id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate manifest sample id %q", s.ID)
		}
		seen[s.ID] = true
		if s.InputKey == "" {
			return nil, fmt.Errorf("manifest sample %q has no input_key", s.ID)
		}
	}
	return &m, nil
}

// LoadManifest reads and parses the manifest document at key.
func LoadManifest(ctx context.Context, store artifacts.Store, key string) (*Manifest, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", key, err)
	}
	return ParseManifest(data)
}
