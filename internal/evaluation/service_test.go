package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	redisclient "github.com/yungbote/segbridge/internal/clients/redis"
	"github.com/yungbote/segbridge/internal/config"
	types "github.com/yungbote/segbridge/internal/domain"
	"github.com/yungbote/segbridge/internal/members"
	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/logger"
	"github.com/yungbote/segbridge/internal/tensor"
)

func TestEvaluationRunMean(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "mean")

	seedSampleArtifacts(t, env)

	run, err := env.svc.CreateRun(ctx, RunRequest{
		Name:        "nightly",
		ManifestKey: "manifests/nightly.json",
		Weights:     []float64{0.95, 0.94},
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.Status != types.RunStatusPending {
		t.Fatalf("run status: want=%q got=%q", types.RunStatusPending, run.Status)
	}
	rows, err := env.runRepo.GetMembers(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("GetMembers: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("member rows: want=2 got=%d", len(rows))
	}
	if rows[0].MemberID != "fold-0" || rows[0].Position != 0 || rows[0].Weight != 0.95 {
		t.Fatalf("member row 0: %+v", rows[0])
	}
	if rows[1].MemberID != "fold-1" || rows[1].Position != 1 || rows[1].Weight != 0.94 {
		t.Fatalf("member row 1: %+v", rows[1])
	}

	if err := env.svc.Execute(ctx, run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := env.runRepo.finished[run.ID]; got != types.RunStatusDone {
		t.Fatalf("run finish status: want=%q got=%q", types.RunStatusDone, got)
	}

	results, err := env.resultRepo.GetByRunID(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: want=2 got=%d", len(results))
	}

	scored := results[0] // case_001 sorts first
	if scored.SampleID != "case_001" || scored.Status != types.SampleStatusDone {
		t.Fatalf("scored result: %+v", scored)
	}
	if scored.MeanDice == nil || *scored.MeanDice < 0 || *scored.MeanDice > 1 {
		t.Fatalf("scored mean dice: %v", scored.MeanDice)
	}
	if len(scored.Dice) == 0 {
		t.Fatalf("scored per-channel dice missing")
	}
	wantKey := fmt.Sprintf("runs/%s/outputs/case_001.json", run.ID)
	if scored.OutputKey != wantKey {
		t.Fatalf("output key: want=%q got=%q", wantKey, scored.OutputKey)
	}

	unscored := results[1]
	if unscored.SampleID != "case_002" || unscored.Status != types.SampleStatusDone {
		t.Fatalf("unscored result: %+v", unscored)
	}
	if unscored.MeanDice != nil {
		t.Fatalf("unscored sample has dice %v", *unscored.MeanDice)
	}

	keys, err := env.store.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("output artifacts: want=2 got=%d (%v)", len(keys), keys)
	}

	var stats map[string]any
	if err := json.Unmarshal(env.runRepo.stats[run.ID], &stats); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["samples"] != float64(2) || stats["done"] != float64(2) {
		t.Fatalf("stats counts: %v", stats)
	}
	if _, ok := stats["mean_dice"]; !ok {
		t.Fatalf("stats missing mean_dice: %v", stats)
	}

	// Both members were scored against case_001.
	for _, row := range rows {
		if _, ok := env.runRepo.memberDice[row.ID]; !ok {
			t.Fatalf("member %s has no dice", row.MemberID)
		}
	}

	if env.preview.calls != 2 {
		t.Fatalf("preview calls: want=2 got=%d", env.preview.calls)
	}

	// run running, two samples, run done
	if len(env.bus.events) != 4 {
		t.Fatalf("bus events: want=4 got=%d (%+v)", len(env.bus.events), env.bus.events)
	}
	if env.bus.events[0].Stage != "run" || env.bus.events[0].Status != types.RunStatusRunning {
		t.Fatalf("first event: %+v", env.bus.events[0])
	}
	last := env.bus.events[len(env.bus.events)-1]
	if last.Stage != "run" || last.Status != types.RunStatusDone {
		t.Fatalf("last event: %+v", last)
	}

	// A finished run cannot be executed again.
	if err := env.svc.Execute(ctx, run.ID); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("re-execute: want ErrInvalidArgument, got %v", err)
	}
}

func TestEvaluationRunVote(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "vote")

	seedSampleArtifacts(t, env)

	run, err := env.svc.CreateRun(ctx, RunRequest{ManifestKey: "manifests/nightly.json"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.Method != "vote" {
		t.Fatalf("method: want=vote got=%q", run.Method)
	}
	if err := env.svc.Execute(ctx, run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := env.runRepo.finished[run.ID]; got != types.RunStatusDone {
		t.Fatalf("run finish status: want=%q got=%q", types.RunStatusDone, got)
	}

	// The voted artifact must hold discrete class indices.
	rc, err := env.store.Get(ctx, fmt.Sprintf("runs/%s/outputs/case_001.json", run.ID))
	if err != nil {
		t.Fatalf("Get output: %v", err)
	}
	defer rc.Close()
	var w tensor.WireTensor
	if err := json.NewDecoder(rc).Decode(&w); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	voted, err := tensor.FromWire(w)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if !tensor.ShapeEqual(voted.Shape(), []int{1, 1, 4, 4}) {
		t.Fatalf("voted shape: %v", voted.Shape())
	}
	for i, v := range voted.Data() {
		if v != 0 && v != 1 {
			t.Fatalf("voted value at %d is %v, want 0 or 1", i, v)
		}
	}
}

func TestEvaluationRunFailsWhenInputsMissing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "mean")

	manifest := `{"samples":[{"id":"case_404","input_key":"inputs/absent.json"}]}`
	if err := env.store.Put(ctx, "manifests/broken.json", bytes.NewReader([]byte(manifest))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	run, err := env.svc.CreateRun(ctx, RunRequest{ManifestKey: "manifests/broken.json"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := env.svc.Execute(ctx, run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := env.runRepo.finished[run.ID]; got != types.RunStatusFailed {
		t.Fatalf("run finish status: want=%q got=%q", types.RunStatusFailed, got)
	}
	if env.runRepo.finishErr[run.ID] != "all samples failed" {
		t.Fatalf("run error: %q", env.runRepo.finishErr[run.ID])
	}

	results, err := env.resultRepo.GetByRunID(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if len(results) != 1 || results[0].Status != types.SampleStatusFailed {
		t.Fatalf("results: %+v", results)
	}
	if results[0].Error == "" {
		t.Fatalf("failed result has no error message")
	}
}

func TestEvaluationRunFailsOnMissingManifest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "mean")

	run, err := env.svc.CreateRun(ctx, RunRequest{ManifestKey: "manifests/absent.json"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := env.svc.Execute(ctx, run.ID); err == nil {
		t.Fatalf("Execute succeeded without a manifest")
	}
	if got := env.runRepo.finished[run.ID]; got != types.RunStatusFailed {
		t.Fatalf("run finish status: want=%q got=%q", types.RunStatusFailed, got)
	}
}

func TestCreateRunValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "mean")

	cases := []struct {
		name string
		req  RunRequest
	}{
		{"unknown_method", RunRequest{Method: "median", ManifestKey: "m.json"}},
		{"missing_manifest", RunRequest{}},
		{"weight_count", RunRequest{ManifestKey: "m.json", Weights: []float64{1}}},
		{"negative_weight", RunRequest{ManifestKey: "m.json", Weights: []float64{1, -1}}},
		{"zero_weights", RunRequest{ManifestKey: "m.json", Weights: []float64{0, 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.CreateRun(ctx, tc.req); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
				t.Fatalf("CreateRun(%s): want ErrInvalidArgument, got %v", tc.name, err)
			}
		})
	}
}

// ---- test environment ----

type testEnv struct {
	svc        Service
	store      artifacts.Store
	runRepo    *fakeRunRepo
	resultRepo *fakeResultRepo
	preview    *fakePreview
	bus        *fakeBus
}

func newTestEnv(t *testing.T, method string) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Ensemble: config.EnsembleConfig{Method: method},
		Members: []config.MemberConfig{
			{ID: "fold-0", Model: "fold-0", Weight: 1, ValScore: 0.91, Engine: config.EngineConfig{Type: "mock"}},
			{ID: "fold-1", Model: "fold-1", Weight: 1, ValScore: 0.89, Engine: config.EngineConfig{Type: "mock"}},
		},
	}
	registry, err := members.New(cfg)
	if err != nil {
		t.Fatalf("members.New: %v", err)
	}
	store, err := artifacts.NewLocalStore(t.TempDir(), logger.Noop())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	env := &testEnv{
		store:      store,
		runRepo:    newFakeRunRepo(),
		resultRepo: &fakeResultRepo{},
		preview:    &fakePreview{},
		bus:        &fakeBus{},
	}
	svc, err := NewService(logger.Noop(), cfg, registry, store, env.runRepo, env.resultRepo, env.preview, env.bus)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	env.svc = svc
	return env
}

func seedSampleArtifacts(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	putWire := func(key string, tt *tensor.Tensor) {
		doc, err := json.Marshal(tensor.ToWire(tt))
		if err != nil {
			t.Fatalf("marshal %s: %v", key, err)
		}
		if err := env.store.Put(ctx, key, bytes.NewReader(doc)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	input := make([]float32, 16)
	for i := range input {
		input[i] = float32(i) / 16
	}
	in1, err := tensor.New([]int{1, 1, 4, 4}, input)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in2 := in1.Clone()
	for i := range in2.Data() {
		in2.Data()[i] += 0.5
	}

	truth, err := tensor.Zeros([]int{1, 1, 4, 4})
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	for i := 0; i < 8; i++ {
		truth.Data()[i] = 1
	}

	putWire("inputs/case_001.json", in1)
	putWire("inputs/case_002.json", in2)
	putWire("truths/case_001.json", truth)

	manifest := `{"samples":[
		{"id":"case_001","input_key":"inputs/case_001.json","truth_key":"truths/case_001.json"},
		{"id":"case_002","input_key":"inputs/case_002.json"}
	]}`
	if err := env.store.Put(ctx, "manifests/nightly.json", bytes.NewReader([]byte(manifest))); err != nil {
		t.Fatalf("Put manifest: %v", err)
	}
}

// ---- fakes ----

type fakeRunRepo struct {
	runs       map[uuid.UUID]*types.EnsembleRun
	members    map[uuid.UUID][]*types.RunMember
	finished   map[uuid.UUID]string
	finishErr  map[uuid.UUID]string
	stats      map[uuid.UUID]datatypes.JSON
	memberDice map[uuid.UUID]float64
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{
		runs:       map[uuid.UUID]*types.EnsembleRun{},
		members:    map[uuid.UUID][]*types.RunMember{},
		finished:   map[uuid.UUID]string{},
		finishErr:  map[uuid.UUID]string{},
		stats:      map[uuid.UUID]datatypes.JSON{},
		memberDice: map[uuid.UUID]float64{},
	}
}

func (f *fakeRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.EnsembleRun) (*types.EnsembleRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (*types.EnsembleRun, error) {
	run, ok := f.runs[runID]
	if !ok {
		return nil, fmt.Errorf("ensemble run %s: %w", runID, pkgerrors.ErrNotFound)
	}
	return run, nil
}

func (f *fakeRunRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.EnsembleRun, error) {
	out := make([]*types.EnsembleRun, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRunRepo) MarkRunning(ctx context.Context, tx *gorm.DB, runID uuid.UUID) error {
	run, ok := f.runs[runID]
	if !ok {
		return fmt.Errorf("ensemble run %s: %w", runID, pkgerrors.ErrNotFound)
	}
	run.Status = types.RunStatusRunning
	return nil
}

func (f *fakeRunRepo) Finish(ctx context.Context, tx *gorm.DB, runID uuid.UUID, status, errMsg string, stats datatypes.JSON) error {
	run, ok := f.runs[runID]
	if !ok {
		return fmt.Errorf("ensemble run %s: %w", runID, pkgerrors.ErrNotFound)
	}
	run.Status = status
	f.finished[runID] = status
	f.finishErr[runID] = errMsg
	if len(stats) > 0 {
		f.stats[runID] = stats
	}
	return nil
}

func (f *fakeRunRepo) CreateMembers(ctx context.Context, tx *gorm.DB, rows []*types.RunMember) ([]*types.RunMember, error) {
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		f.members[row.RunID] = append(f.members[row.RunID], row)
	}
	return rows, nil
}

func (f *fakeRunRepo) GetMembers(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.RunMember, error) {
	rows := append([]*types.RunMember(nil), f.members[runID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
	return rows, nil
}

func (f *fakeRunRepo) UpdateMemberDice(ctx context.Context, tx *gorm.DB, memberRowID uuid.UUID, meanDice float64) error {
	f.memberDice[memberRowID] = meanDice
	return nil
}

type fakeResultRepo struct {
	results []*types.SampleResult
}

func (f *fakeResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.SampleResult) ([]*types.SampleResult, error) {
	for _, res := range results {
		for _, existing := range f.results {
			if existing.RunID == res.RunID && existing.SampleID == res.SampleID {
				return nil, fmt.Errorf("sample result already recorded for this run: %w", pkgerrors.ErrConflict)
			}
		}
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		f.results = append(f.results, res)
	}
	return results, nil
}

func (f *fakeResultRepo) GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.SampleResult, error) {
	out := []*types.SampleResult{}
	for _, res := range f.results {
		if res.RunID == runID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SampleID < out[j].SampleID })
	return out, nil
}

func (f *fakeResultRepo) GetBySample(ctx context.Context, tx *gorm.DB, runID uuid.UUID, sampleID string) (*types.SampleResult, error) {
	for _, res := range f.results {
		if res.RunID == runID && res.SampleID == sampleID {
			return res, nil
		}
	}
	return nil, fmt.Errorf("sample result %s/%s: %w", runID, sampleID, pkgerrors.ErrNotFound)
}

func (f *fakeResultRepo) UpdatePreviewKey(ctx context.Context, tx *gorm.DB, resultID uuid.UUID, previewKey string) error {
	for _, res := range f.results {
		if res.ID == resultID {
			res.PreviewKey = previewKey
			return nil
		}
	}
	return fmt.Errorf("sample result %s: %w", resultID, pkgerrors.ErrNotFound)
}

type fakePreview struct {
	calls int
}

func (f *fakePreview) Render(pred *tensor.Tensor, label string) (bytes.Buffer, error) {
	return bytes.Buffer{}, nil
}

func (f *fakePreview) CreateAndUploadPreview(ctx context.Context, tx *gorm.DB, result *types.SampleResult, pred *tensor.Tensor) error {
	f.calls++
	return nil
}

type fakeBus struct {
	events []redisclient.Event
}

func (f *fakeBus) Enabled() bool { return true }

func (f *fakeBus) Publish(ctx context.Context, ev redisclient.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeBus) StartForwarder(ctx context.Context, onEvent func(ev redisclient.Event)) error {
	return nil
}

func (f *fakeBus) Close() error { return nil }
