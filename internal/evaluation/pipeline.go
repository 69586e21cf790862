package evaluation

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/segbridge/internal/platform/logger"
)

const evalPipelineEnv = "SB_EVAL_PIPELINE_YAML"

//go:embed evaluation.yaml
var evalSpecFS embed.FS

// Stage names, in run order. Fetch through persist are load-bearing;
// score, preview and publish can be toggled off per deployment.
const (
	stageFetch     = "fetch"
	stageInfer     = "infer"
	stageAggregate = "aggregate"
	stageScore     = "score"
	stagePersist   = "persist"
	stagePreview   = "preview"
	stagePublish   = "publish"
)

// fallback stage graph used when YAML is missing or invalid
var fallbackStageOrder = []string{
	stageFetch,
	stageInfer,
	stageAggregate,
	stageScore,
	stagePersist,
	stagePreview,
	stagePublish,
}

var coreStages = map[string]bool{
	stageFetch:     true,
	stageInfer:     true,
	stageAggregate: true,
	stagePersist:   true,
}

type yamlPipelineSpec struct {
	Pipeline string          `yaml:"pipeline"`
	Version  int             `yaml:"version"`
	Stages   []yamlStageSpec `yaml:"stages"`
}

type yamlStageSpec struct {
	Name    string         `yaml:"name"`
	Enabled *bool          `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

type pipelineRuntime struct {
	StageOrder []string
	Stages     map[string]yamlStageSpec
}

var runtimeOnce sync.Once
var runtimeCache *pipelineRuntime
var runtimeErr error

func currentPipelineRuntime(log *logger.Logger) *pipelineRuntime {
	runtimeOnce.Do(func() {
		runtimeCache, runtimeErr = loadPipelineRuntime()
	})
	if runtimeErr != nil {
		if log != nil {
			log.Warn("evaluation: pipeline spec load failed; using fallback", "error", runtimeErr)
		}
		return nil
	}
	return runtimeCache
}

func pipelineStageOrder(log *logger.Logger) []string {
	if rt := currentPipelineRuntime(log); rt != nil && len(rt.StageOrder) > 0 {
		return rt.StageOrder
	}
	return fallbackStageOrder
}

// stageEnabled reports whether a stage survived spec filtering. With the
// fallback order every stage runs.
func stageEnabled(log *logger.Logger, name string) bool {
	for _, s := range pipelineStageOrder(log) {
		if s == name {
			return true
		}
	}
	return false
}

func loadPipelineRuntime() (*pipelineRuntime, error) {
	data, err := readEvalSpec()
	if err != nil {
		return nil, err
	}

	var spec yamlPipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := validatePipelineSpec(&spec); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(spec.Stages))
	stages := make(map[string]yamlStageSpec, len(spec.Stages))
	for _, stage := range spec.Stages {
		if stage.Enabled != nil && !*stage.Enabled {
			continue
		}
		order = append(order, stage.Name)
		stages[stage.Name] = stage
	}

	return &pipelineRuntime{
		StageOrder: order,
		Stages:     stages,
	}, nil
}

func readEvalSpec() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(evalPipelineEnv)); path != "" {
		return os.ReadFile(path)
	}
	return evalSpecFS.ReadFile("evaluation.yaml")
}

func validatePipelineSpec(spec *yamlPipelineSpec) error {
	if spec == nil {
		return errors.New("missing spec")
	}
	if strings.TrimSpace(spec.Pipeline) != "evaluation" {
		return fmt.Errorf("unexpected pipeline: %s", spec.Pipeline)
	}
	if len(spec.Stages) == 0 {
		return errors.New("no stages defined")
	}

	known := map[string]bool{}
	for _, name := range fallbackStageOrder {
		known[name] = true
	}

	seen := map[string]bool{}
	for _, stage := range spec.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return errors.New("stage name is required")
		}
		if !known[name] {
			return fmt.Errorf("unknown stage: %s", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate stage name: %s", name)
		}
		seen[name] = true
		if coreStages[name] && stage.Enabled != nil && !*stage.Enabled {
			return fmt.Errorf("stage %s cannot be disabled", name)
		}
	}
	for name := range coreStages {
		if !seen[name] {
			return fmt.Errorf("missing stage: %s", name)
		}
	}
	return nil
}
