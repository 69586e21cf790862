package evaluation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPipelineSpecEmbeddedDefault(t *testing.T) {
	t.Setenv(evalPipelineEnv, "")

	rt, err := loadPipelineRuntime()
	if err != nil {
		t.Fatalf("loadPipelineRuntime: %v", err)
	}
	if len(rt.StageOrder) != len(fallbackStageOrder) {
		t.Fatalf("stage count: want=%d got=%d", len(fallbackStageOrder), len(rt.StageOrder))
	}
	for i, name := range fallbackStageOrder {
		if rt.StageOrder[i] != name {
			t.Fatalf("stage %d: want=%q got=%q", i, name, rt.StageOrder[i])
		}
	}
}

func TestPipelineSpecEnvOverrideDisablesOptionalStages(t *testing.T) {
	yaml := `pipeline: evaluation
version: 1
stages:
  - name: fetch
  - name: infer
  - name: aggregate
  - name: score
  - name: persist
  - name: preview
    enabled: false
  - name: publish
    enabled: false
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(evalPipelineEnv, path)

	rt, err := loadPipelineRuntime()
	if err != nil {
		t.Fatalf("loadPipelineRuntime: %v", err)
	}
	want := []string{stageFetch, stageInfer, stageAggregate, stageScore, stagePersist}
	if len(rt.StageOrder) != len(want) {
		t.Fatalf("stage count: want=%d got=%d (%v)", len(want), len(rt.StageOrder), rt.StageOrder)
	}
	for i, name := range want {
		if rt.StageOrder[i] != name {
			t.Fatalf("stage %d: want=%q got=%q", i, name, rt.StageOrder[i])
		}
	}
	if _, ok := rt.Stages[stagePreview]; ok {
		t.Fatalf("disabled stage %q still present", stagePreview)
	}
}

func TestPipelineSpecRejectsBadSpecs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "wrong_pipeline",
			yaml: "pipeline: training\nstages:\n  - name: fetch\n",
		},
		{
			name: "no_stages",
			yaml: "pipeline: evaluation\nstages: []\n",
		},
		{
			name: "unknown_stage",
			yaml: "pipeline: evaluation\nstages:\n  - name: fetch\n  - name: infer\n  - name: aggregate\n  - name: persist\n  - name: teleport\n",
		},
		{
			name: "duplicate_stage",
			yaml: "pipeline: evaluation\nstages:\n  - name: fetch\n  - name: fetch\n  - name: infer\n  - name: aggregate\n  - name: persist\n",
		},
		{
			name: "disabled_core_stage",
			yaml: "pipeline: evaluation\nstages:\n  - name: fetch\n  - name: infer\n    enabled: false\n  - name: aggregate\n  - name: persist\n",
		},
		{
			name: "missing_core_stage",
			yaml: "pipeline: evaluation\nstages:\n  - name: fetch\n  - name: infer\n  - name: aggregate\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pipeline.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			t.Setenv(evalPipelineEnv, path)

			if _, err := loadPipelineRuntime(); err == nil {
				t.Fatalf("loadPipelineRuntime accepted %s", tc.name)
			}
		})
	}
}
