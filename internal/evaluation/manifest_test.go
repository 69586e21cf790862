package evaluation

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

func TestParseManifest(t *testing.T) {
	doc := `{
		"name": "nightly",
		"samples": [
			{"id": " case_001 ", "input_key": "inputs/case_001.json", "truth_key": "truths/case_001.json"},
			{"id": "case_002", "input_key": "inputs/case_002.json"}
		]
	}`
	m, err := ParseManifest([]byte(doc))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Name != "nightly" {
		t.Fatalf("Name: want=%q got=%q", "nightly", m.Name)
	}
	if len(m.Samples) != 2 {
		t.Fatalf("sample count: want=2 got=%d", len(m.Samples))
	}
	if m.Samples[0].ID != "case_001" {
		t.Fatalf("sample 0 id not trimmed: %q", m.Samples[0].ID)
	}
	if m.Samples[1].TruthKey != "" {
		t.Fatalf("sample 1 truth key: want empty got %q", m.Samples[1].TruthKey)
	}
}

func TestParseManifestRejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"not_json", "{", "manifest"},
		{"no_samples", `{"samples": []}`, "no samples"},
		{"missing_id", `{"samples":[{"input_key":"a"}]}`, "no id"},
		{"duplicate_id", `{"samples":[{"id":"a","input_key":"x"},{"id":"a","input_key":"y"}]}`, "duplicate"},
		{"missing_input", `{"samples":[{"id":"a"}]}`, "input_key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.doc))
			if err == nil {
				t.Fatalf("ParseManifest accepted %s", tc.name)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	ctx := context.Background()
	store, err := artifacts.NewLocalStore(t.TempDir(), logger.Noop())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	doc := `{"samples":[{"id":"case_001","input_key":"inputs/case_001.json"}]}`
	if err := store.Put(ctx, "manifests/nightly.json", bytes.NewReader([]byte(doc))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	m, err := LoadManifest(ctx, store, "manifests/nightly.json")
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.Samples) != 1 || m.Samples[0].ID != "case_001" {
		t.Fatalf("unexpected manifest: %+v", m)
	}

	if _, err := LoadManifest(ctx, store, "manifests/missing.json"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("missing manifest: want ErrNotFound, got %v", err)
	}
}
