package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yungbote/segbridge/internal/app"
	types "github.com/yungbote/segbridge/internal/domain"
	"github.com/yungbote/segbridge/internal/evaluation"
	"github.com/yungbote/segbridge/internal/folds"
)

type weightList []float64

func (l *weightList) String() string {
	parts := make([]string, 0, len(*l))
	for _, w := range *l {
		parts = append(parts, strconv.FormatFloat(w, 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

func (l *weightList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return fmt.Errorf("bad weight %q: %w", part, err)
		}
		*l = append(*l, w)
	}
	return nil
}

func main() {
	var manifestKey string
	var name string
	var method string
	var weights weightList
	var scoreWeights bool
	var dryRun bool
	flag.StringVar(&manifestKey, "manifest", "", "artifact key of the evaluation manifest (required)")
	flag.StringVar(&name, "name", "", "run name (defaults to the manifest name)")
	flag.StringVar(&method, "method", "", "ensemble method override: mean or vote")
	flag.Var(&weights, "weights", "comma-separated member weights, one per configured member")
	flag.BoolVar(&scoreWeights, "score-weights", false, "weight members by their configured val_score")
	flag.BoolVar(&dryRun, "dry-run", false, "print manifest samples and members without creating a run")
	flag.Parse()

	if strings.TrimSpace(manifestKey) == "" {
		fmt.Println("missing required -manifest")
		flag.Usage()
		os.Exit(1)
	}
	if scoreWeights && len(weights) > 0 {
		fmt.Println("-weights and -score-weights are mutually exclusive")
		os.Exit(1)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()

	if scoreWeights {
		ws, err := folds.WeightsFromScores(application.Registry.ValScores())
		if err != nil {
			fmt.Printf("score weights: %v\n", err)
			os.Exit(1)
		}
		weights = ws
	}

	if dryRun {
		m, err := evaluation.LoadManifest(ctx, application.Store, manifestKey)
		if err != nil {
			fmt.Printf("load manifest: %v\n", err)
			os.Exit(1)
		}
		scored := 0
		for _, s := range m.Samples {
			truth := "unscored"
			if s.TruthKey != "" {
				truth = "scored"
				scored++
			}
			fmt.Printf("[dry-run] sample %s input=%s (%s)\n", s.ID, s.InputKey, truth)
		}
		for _, st := range application.Registry.Statuses(ctx) {
			state := "healthy"
			if !st.Healthy {
				state = "unhealthy: " + st.Error
			}
			fmt.Printf("[dry-run] member %s model=%s weight=%g (%s)\n", st.ID, st.Model, st.Weight, state)
		}
		fmt.Printf("[dry-run] would evaluate %d samples (%d scored) across %d members\n", len(m.Samples), scored, application.Registry.Count())
		return
	}

	run, err := application.Services.Evaluation.CreateRun(ctx, evaluation.RunRequest{
		Name:        name,
		Method:      method,
		ManifestKey: manifestKey,
		Weights:     weights,
	})
	if err != nil {
		fmt.Printf("create run: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created run %s method=%s\n", run.ID, run.Method)

	if err := application.Services.Evaluation.Execute(ctx, run.ID); err != nil {
		fmt.Printf("run %s: %v\n", run.ID, err)
		os.Exit(1)
	}

	results, err := application.Repos.Results.GetByRunID(ctx, nil, run.ID)
	if err != nil {
		fmt.Printf("load results: %v\n", err)
		os.Exit(1)
	}
	for _, r := range results {
		switch {
		case r.Status == types.SampleStatusFailed:
			fmt.Printf("sample %s failed: %s\n", r.SampleID, r.Error)
		case r.MeanDice != nil:
			fmt.Printf("sample %s done mean_dice=%.4f output=%s\n", r.SampleID, *r.MeanDice, r.OutputKey)
		default:
			fmt.Printf("sample %s done output=%s\n", r.SampleID, r.OutputKey)
		}
	}

	final, err := application.Repos.Runs.GetByID(ctx, nil, run.ID)
	if err != nil {
		fmt.Printf("load run: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("run %s finished status=%s\n", final.ID, final.Status)
	if len(final.Stats) > 0 {
		fmt.Printf("stats: %s\n", string(final.Stats))
	}
	if final.Status == types.RunStatusFailed {
		os.Exit(1)
	}
}
