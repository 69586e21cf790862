// Package evaluation walks a manifest of samples through the k-fold
// ensemble: every member infers concurrently, the collected outputs are
// reduced with the run's method, and the result is scored, persisted and
// rendered. Inference is the parallel part; samples run sequentially.
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	redisclient "github.com/yungbote/segbridge/internal/clients/redis"
	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/data/repos/runs"
	types "github.com/yungbote/segbridge/internal/domain"
	"github.com/yungbote/segbridge/internal/ensemble"
	"github.com/yungbote/segbridge/internal/members"
	"github.com/yungbote/segbridge/internal/observability"
	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/logger"
	"github.com/yungbote/segbridge/internal/postprocess"
	"github.com/yungbote/segbridge/internal/scoring"
	"github.com/yungbote/segbridge/internal/services"
	"github.com/yungbote/segbridge/internal/tensor"
)

const tracerName = "segbridge/evaluation"

// RunRequest describes a run to launch. Weights, when present, override
// the configured member weights positionally and must cover every member.
type RunRequest struct {
	Name        string
	Method      string
	ManifestKey string
	Weights     []float64
}

type Service interface {
	// CreateRun persists the run and its member rows in pending state.
	CreateRun(ctx context.Context, req RunRequest) (*types.EnsembleRun, error)
	// StartRun is CreateRun plus asynchronous execution.
	StartRun(ctx context.Context, req RunRequest) (*types.EnsembleRun, error)
	// Execute walks a pending run to completion.
	Execute(ctx context.Context, runID uuid.UUID) error
}

type evalService struct {
	log        *logger.Logger
	cfg        *config.Config
	registry   *members.Registry
	store      artifacts.Store
	runRepo    runs.RunRepo
	resultRepo runs.ResultRepo
	preview    services.PreviewService
	bus        redisclient.ProgressBus
}

// NewService wires the evaluation pipeline. preview and bus are optional;
// the corresponding stages degrade to no-ops without them.
func NewService(
	log *logger.Logger,
	cfg *config.Config,
	registry *members.Registry,
	store artifacts.Store,
	runRepo runs.RunRepo,
	resultRepo runs.ResultRepo,
	preview services.PreviewService,
	bus redisclient.ProgressBus,
) (Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if registry == nil {
		return nil, fmt.Errorf("member registry required")
	}
	if store == nil {
		return nil, fmt.Errorf("artifact store required")
	}
	if runRepo == nil || resultRepo == nil {
		return nil, fmt.Errorf("run repositories required")
	}
	return &evalService{
		log:        log.With("service", "EvaluationService"),
		cfg:        cfg,
		registry:   registry,
		store:      store,
		runRepo:    runRepo,
		resultRepo: resultRepo,
		preview:    preview,
		bus:        bus,
	}, nil
}

// runConfigSnapshot freezes the knobs a run was launched with, so later
// executions and audits do not depend on live config.
type runConfigSnapshot struct {
	Method      string            `json:"method"`
	ManifestKey string            `json:"manifest_key"`
	Vote        config.VoteConfig `json:"vote"`
}

func (s *evalService) CreateRun(ctx context.Context, req RunRequest) (*types.EnsembleRun, error) {
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if method == "" {
		method = s.cfg.Ensemble.Method
	}
	switch method {
	case "mean", "vote":
	default:
		return nil, fmt.Errorf("unknown ensemble method %q: %w", method, pkgerrors.ErrInvalidArgument)
	}

	manifestKey := strings.TrimSpace(req.ManifestKey)
	if manifestKey == "" {
		return nil, fmt.Errorf("manifest key required: %w", pkgerrors.ErrInvalidArgument)
	}

	mems := s.registry.Members()
	if len(req.Weights) > 0 {
		if len(req.Weights) != len(mems) {
			return nil, fmt.Errorf("got %d weights for %d members: %w", len(req.Weights), len(mems), pkgerrors.ErrInvalidArgument)
		}
		var sum float64
		for i, w := range req.Weights {
			if w < 0 {
				return nil, fmt.Errorf("weight %d is negative: %w", i, pkgerrors.ErrInvalidArgument)
			}
			sum += w
		}
		if sum == 0 {
			return nil, fmt.Errorf("weights sum to zero: %w", pkgerrors.ErrInvalidArgument)
		}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "run-" + time.Now().UTC().Format("20060102-150405")
	}

	snapshot, err := json.Marshal(runConfigSnapshot{
		Method:      method,
		ManifestKey: manifestKey,
		Vote:        s.cfg.Ensemble.Vote,
	})
	if err != nil {
		return nil, err
	}

	run := &types.EnsembleRun{
		Name:     name,
		Method:   method,
		Status:   types.RunStatusPending,
		Manifest: manifestKey,
		Config:   datatypes.JSON(snapshot),
	}
	if _, err := s.runRepo.Create(ctx, nil, run); err != nil {
		return nil, err
	}

	rows := make([]*types.RunMember, 0, len(mems))
	for i, m := range mems {
		weight := m.Weight
		if len(req.Weights) > 0 {
			weight = req.Weights[i]
		}
		rows = append(rows, &types.RunMember{
			RunID:    run.ID,
			Position: i,
			MemberID: m.ID,
			Model:    m.Model,
			Weight:   weight,
			ValScore: m.ValScore,
		})
	}
	if _, err := s.runRepo.CreateMembers(ctx, nil, rows); err != nil {
		return nil, err
	}

	s.log.Info("Evaluation run created", "run_id", run.ID, "method", method, "members", len(rows))
	return run, nil
}

func (s *evalService) StartRun(ctx context.Context, req RunRequest) (*types.EnsembleRun, error) {
	run, err := s.CreateRun(ctx, req)
	if err != nil {
		return nil, err
	}
	// The run outlives the request; only its context values carry over.
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.Execute(bg, run.ID); err != nil {
			s.log.Error("Evaluation run failed", "run_id", run.ID, "error", err)
		}
	}()
	return run, nil
}

func (s *evalService) Execute(ctx context.Context, runID uuid.UUID) error {
	run, err := s.runRepo.GetByID(ctx, nil, runID)
	if err != nil {
		return err
	}
	if run.Status != types.RunStatusPending {
		return fmt.Errorf("run %s is %s, not %s: %w", run.ID, run.Status, types.RunStatusPending, pkgerrors.ErrInvalidArgument)
	}

	memberRows, err := s.runRepo.GetMembers(ctx, nil, runID)
	if err != nil {
		return err
	}
	if len(memberRows) == 0 {
		return fmt.Errorf("run %s has no members", run.ID)
	}

	var snap runConfigSnapshot
	if err := json.Unmarshal(run.Config, &snap); err != nil {
		return s.failRun(ctx, run, nil, fmt.Errorf("bad config snapshot: %w", err))
	}
	voteOpts, err := VoteOptionsFromConfig(snap.Vote)
	if err != nil {
		return s.failRun(ctx, run, nil, err)
	}
	weights, err := runWeights(memberRows)
	if err != nil {
		return s.failRun(ctx, run, nil, err)
	}

	if err := s.runRepo.MarkRunning(ctx, nil, runID); err != nil {
		return err
	}
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "evaluation.run", trace.WithAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("run.method", run.Method),
	))
	defer span.End()

	s.publish(ctx, redisclient.Event{RunID: run.ID.String(), Stage: "run", Status: types.RunStatusRunning})
	s.log.Info("Evaluation run started", "run_id", run.ID, "method", run.Method)

	manifest, err := LoadManifest(ctx, s.store, run.Manifest)
	if err != nil {
		return s.failRun(ctx, run, span, err)
	}

	stats := newRunStats(len(memberRows))
	for _, sample := range manifest.Samples {
		out := s.evaluateSample(ctx, run, voteOpts, memberRows, weights, sample)
		if out.err != nil {
			s.log.Warn("Sample evaluation failed", "run_id", run.ID, "sample_id", sample.ID, "error", out.err)
			s.recordFailedSample(ctx, run, sample, out)
		}
		stats.observe(sample.ID, out)

		dice := -1.0
		if out.meanDice != nil {
			dice = *out.meanDice
		}
		observability.Current().ObserveSample(out.status, dice)

		ev := redisclient.Event{RunID: run.ID.String(), SampleID: sample.ID, Stage: "sample", Status: out.status}
		if out.meanDice != nil {
			ev.Dice = *out.meanDice
		}
		if out.err != nil {
			ev.Message = out.err.Error()
		}
		s.publish(ctx, ev)
	}

	for i, row := range memberRows {
		if avg, ok := stats.memberMean(i); ok {
			if err := s.runRepo.UpdateMemberDice(ctx, nil, row.ID, avg); err != nil {
				s.log.Warn("could not store member dice", "run_id", run.ID, "member", row.MemberID, "error", err)
			}
		}
	}

	status := types.RunStatusDone
	errMsg := ""
	if stats.Done == 0 && stats.Failed > 0 {
		status = types.RunStatusFailed
		errMsg = "all samples failed"
	}
	statsJSON, err := json.Marshal(stats.payload(memberRows, time.Since(start).Milliseconds()))
	if err != nil {
		statsJSON = nil
	}
	if err := s.runRepo.Finish(ctx, nil, run.ID, status, errMsg, statsJSON); err != nil {
		return err
	}
	observability.Current().ObserveRunFinished(status)

	done := redisclient.Event{RunID: run.ID.String(), Stage: "run", Status: status, Message: errMsg}
	if avg, ok := stats.overallMean(); ok {
		done.Dice = avg
	}
	s.publish(ctx, done)

	if stats.Failed > 0 {
		observability.ReportRunFailure(ctx, s.log, run.ID.String(), status, stats.failedIDs, map[string]any{
			"method":  run.Method,
			"samples": stats.Samples,
		})
	}

	s.log.Info("Evaluation run finished",
		"run_id", run.ID,
		"status", status,
		"samples", stats.Samples,
		"failed", stats.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (s *evalService) failRun(ctx context.Context, run *types.EnsembleRun, span trace.Span, cause error) error {
	if span != nil {
		span.RecordError(cause)
	}
	if err := s.runRepo.Finish(ctx, nil, run.ID, types.RunStatusFailed, cause.Error(), nil); err != nil {
		s.log.Error("could not mark run failed", "run_id", run.ID, "error", err)
	}
	observability.Current().ObserveRunFinished(types.RunStatusFailed)
	s.publish(ctx, redisclient.Event{RunID: run.ID.String(), Stage: "run", Status: types.RunStatusFailed, Message: cause.Error()})
	observability.ReportRunFailure(ctx, s.log, run.ID.String(), types.RunStatusFailed, nil, map[string]any{
		"error": cause.Error(),
	})
	return cause
}

type sampleOutcome struct {
	status      string
	err         error
	result      *types.SampleResult
	diceJSON    datatypes.JSON
	meanDice    *float64
	memberDice  []float64
	inferMillis int64
	totalMillis int64
}

func (o sampleOutcome) fail(err error, started time.Time) sampleOutcome {
	o.status = types.SampleStatusFailed
	o.err = err
	o.totalMillis = time.Since(started).Milliseconds()
	return o
}

func (s *evalService) evaluateSample(
	ctx context.Context,
	run *types.EnsembleRun,
	voteOpts ensemble.VoteOptions,
	memberRows []*types.RunMember,
	weights *tensor.Tensor,
	sample Sample,
) sampleOutcome {
	out := sampleOutcome{status: types.SampleStatusDone, memberDice: nanSlice(len(memberRows))}
	started := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "evaluation.sample", trace.WithAttributes(
		attribute.String("sample.id", sample.ID),
	))
	defer span.End()

	scoreWanted := sample.TruthKey != "" && stageEnabled(s.log, stageScore)

	var input, truth *tensor.Tensor
	err := s.stage(ctx, stageFetch, func(ctx context.Context) error {
		var err error
		input, err = s.fetchTensor(ctx, sample.InputKey)
		if err != nil {
			return err
		}
		if scoreWanted {
			truth, err = s.fetchTensor(ctx, sample.TruthKey)
		}
		return err
	})
	if err != nil {
		return out.fail(err, started)
	}

	preds := make([]*tensor.Tensor, len(memberRows))
	err = s.stage(ctx, stageInfer, func(ctx context.Context) error {
		inferStart := time.Now()
		defer func() { out.inferMillis = time.Since(inferStart).Milliseconds() }()

		// Resolve engines up front so a stale member row fails the sample
		// before any inference is in flight.
		engines := make([]members.Member, len(memberRows))
		for i, row := range memberRows {
			m, ok := s.registry.ByID(row.MemberID)
			if !ok {
				return fmt.Errorf("member %s is not configured", row.MemberID)
			}
			engines[i] = m
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(len(engines))
		for i, m := range engines {
			i, m := i, m
			g.Go(func() error {
				memberStart := time.Now()
				pred, err := m.Engine.Infer(gctx, m.Model, input)
				status := "ok"
				if err != nil {
					status = "error"
				}
				observability.Current().ObserveInference(m.ID, status, time.Since(memberStart))
				if err != nil {
					return fmt.Errorf("member %s: %w", m.ID, err)
				}
				preds[i] = pred
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return out.fail(err, started)
	}

	// Aggregation starts only after every member has answered; the
	// errgroup wait above is the collection barrier.
	var aggregated, discrete *tensor.Tensor
	err = s.stage(ctx, stageAggregate, func(ctx context.Context) error {
		var aggErr error
		switch run.Method {
		case "mean":
			// Engines emit probabilities; the mean is aggregated raw and
			// discretized afterwards for scoring and previews.
			aggregated, aggErr = ensemble.Mean(preds, weights)
			if aggErr == nil {
				discrete, aggErr = discretize(aggregated)
			}
		case "vote":
			votes := make([]*tensor.Tensor, len(preds))
			for i, p := range preds {
				votes[i], aggErr = discretize(p)
				if aggErr != nil {
					break
				}
			}
			if aggErr == nil {
				aggregated, aggErr = ensemble.Vote(votes, voteOpts)
				discrete = aggregated
			}
		default:
			aggErr = fmt.Errorf("unknown ensemble method %q", run.Method)
		}
		observability.Current().IncAggregation(run.Method, aggregationOutcome(aggErr))
		return aggErr
	})
	if err != nil {
		return out.fail(err, started)
	}

	if scoreWanted {
		err = s.stage(ctx, stageScore, func(ctx context.Context) error {
			p, t, err := alignMasks(discrete, truth, voteOpts.NumClasses)
			if err != nil {
				return err
			}
			res, err := scoring.Dice(p, t, scoring.Options{})
			if err != nil {
				return err
			}
			out.diceJSON = diceToJSON(res.PerChannel)
			if !math.IsNaN(res.Mean) {
				mean := res.Mean
				out.meanDice = &mean
			}

			for i, pred := range preds {
				d, err := discretize(pred)
				if err != nil {
					continue
				}
				mp, mt, err := alignMasks(d, truth, voteOpts.NumClasses)
				if err != nil {
					continue
				}
				if mr, err := scoring.Dice(mp, mt, scoring.Options{}); err == nil && !math.IsNaN(mr.Mean) {
					out.memberDice[i] = mr.Mean
				}
			}
			return nil
		})
		if err != nil {
			return out.fail(err, started)
		}
	}

	err = s.stage(ctx, stagePersist, func(ctx context.Context) error {
		out.totalMillis = time.Since(started).Milliseconds()
		outputKey := fmt.Sprintf("runs/%s/outputs/%s.json", run.ID.String(), sample.ID)
		doc, err := json.Marshal(tensor.ToWire(aggregated))
		if err != nil {
			return err
		}
		if err := s.store.Put(ctx, outputKey, bytes.NewReader(doc)); err != nil {
			return err
		}
		result := &types.SampleResult{
			RunID:       run.ID,
			SampleID:    sample.ID,
			Status:      types.SampleStatusDone,
			Dice:        out.diceJSON,
			MeanDice:    out.meanDice,
			OutputKey:   outputKey,
			InferMillis: out.inferMillis,
			TotalMillis: out.totalMillis,
		}
		if _, err := s.resultRepo.Create(ctx, nil, []*types.SampleResult{result}); err != nil {
			return err
		}
		out.result = result
		return nil
	})
	if err != nil {
		return out.fail(err, started)
	}

	if s.preview != nil && stageEnabled(s.log, stagePreview) {
		if err := s.stage(ctx, stagePreview, func(ctx context.Context) error {
			return s.preview.CreateAndUploadPreview(ctx, nil, out.result, discrete)
		}); err != nil {
			s.log.Warn("preview render failed", "run_id", run.ID, "sample_id", sample.ID, "error", err)
		}
	}

	return out
}

// stage runs fn inside a span and records its duration and outcome.
func (s *evalService) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "evaluation."+name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	observability.Current().ObserveStage(name, status, time.Since(start))
	return err
}

func (s *evalService) publish(ctx context.Context, ev redisclient.Event) {
	if s.bus == nil || !stageEnabled(s.log, stagePublish) {
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("progress publish failed", "run_id", ev.RunID, "error", err)
	}
}

func (s *evalService) recordFailedSample(ctx context.Context, run *types.EnsembleRun, sample Sample, out sampleOutcome) {
	res := &types.SampleResult{
		RunID:       run.ID,
		SampleID:    sample.ID,
		Status:      types.SampleStatusFailed,
		Error:       out.err.Error(),
		InferMillis: out.inferMillis,
		TotalMillis: out.totalMillis,
	}
	if _, err := s.resultRepo.Create(ctx, nil, []*types.SampleResult{res}); err != nil {
		s.log.Error("could not record failed sample", "run_id", run.ID, "sample_id", sample.ID, "error", err)
	}
}

func (s *evalService) fetchTensor(ctx context.Context, key string) (*tensor.Tensor, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", key, err)
	}
	defer rc.Close()
	var w tensor.WireTensor
	if err := json.NewDecoder(rc).Decode(&w); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", key, err)
	}
	return tensor.FromWire(w)
}

// ---- reduction helpers ----

// VoteOptionsFromConfig maps configured policy strings onto vote options.
// Unknown values are ErrInvalidArgument.
func VoteOptionsFromConfig(v config.VoteConfig) (ensemble.VoteOptions, error) {
	opts := ensemble.VoteOptions{NumClasses: v.NumClasses, Strict: v.Strict}
	switch strings.ToLower(strings.TrimSpace(v.TieBreak)) {
	case "", "smallest":
		opts.TieBreak = ensemble.TieSmallestValue
	case "largest":
		opts.TieBreak = ensemble.TieLargestValue
	default:
		return opts, fmt.Errorf("unknown tie_break %q: %w", v.TieBreak, pkgerrors.ErrInvalidArgument)
	}
	switch strings.ToLower(strings.TrimSpace(v.HalfVotes)) {
	case "", "off":
		opts.HalfVotes = ensemble.HalfVoteOff
	case "on":
		opts.HalfVotes = ensemble.HalfVoteOn
	default:
		return opts, fmt.Errorf("unknown half_votes %q: %w", v.HalfVotes, pkgerrors.ErrInvalidArgument)
	}
	return opts, nil
}

// runWeights builds the [N] weight tensor from member rows, or nil when
// every weight is 1 and the mean degenerates to uniform.
func runWeights(rows []*types.RunMember) (*tensor.Tensor, error) {
	allOne := true
	ws := make([]float32, len(rows))
	for i, r := range rows {
		ws[i] = float32(r.Weight)
		if r.Weight != 1 {
			allOne = false
		}
	}
	if allOne {
		return nil, nil
	}
	return tensor.New([]int{len(rows)}, ws)
}

// discretize collapses probabilities to a mask: argmax over channels, or
// a 0.5 threshold when there is only one.
func discretize(t *tensor.Tensor) (*tensor.Tensor, error) {
	if t.Rank() < 2 {
		return nil, fmt.Errorf("prediction needs shape [B, C, ...], got %v", t.Shape())
	}
	if t.Dim(1) > 1 {
		return postprocess.ArgMax(t)
	}
	return postprocess.Threshold(t, 0.5), nil
}

// alignMasks brings prediction and truth into one encoding for Dice.
// Mixed encodings one-hot the class-index side; two class-index masks
// with more than two classes expand so the score is per class instead of
// any-foreground.
func alignMasks(pred, truth *tensor.Tensor, numClasses int) (*tensor.Tensor, *tensor.Tensor, error) {
	if pred.Rank() < 2 || truth.Rank() < 2 {
		return pred, truth, nil
	}
	pc, tc := pred.Dim(1), truth.Dim(1)
	switch {
	case pc == 1 && tc > 1:
		p, err := postprocess.OneHot(pred, tc)
		if err != nil {
			return nil, nil, err
		}
		return p, truth, nil
	case pc > 1 && tc == 1:
		t, err := postprocess.OneHot(truth, pc)
		if err != nil {
			return nil, nil, err
		}
		return pred, t, nil
	case pc == 1 && tc == 1 && numClasses > 2:
		p, err := postprocess.OneHot(pred, numClasses)
		if err != nil {
			return nil, nil, err
		}
		t, err := postprocess.OneHot(truth, numClasses)
		if err != nil {
			return nil, nil, err
		}
		return p, t, nil
	default:
		return pred, truth, nil
	}
}

func aggregationOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return ensemble.ErrorCode(err)
}

func diceToJSON(perChannel []float64) datatypes.JSON {
	vals := make([]*float64, len(perChannel))
	for i, v := range perChannel {
		if !math.IsNaN(v) {
			vv := v
			vals[i] = &vv
		}
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// ---- run statistics ----

type runStats struct {
	Samples int
	Done    int
	Failed  int

	failedIDs []string

	diceSum   float64
	diceCount int

	memberSum   []float64
	memberCount []int
}

func newRunStats(memberCount int) *runStats {
	return &runStats{
		memberSum:   make([]float64, memberCount),
		memberCount: make([]int, memberCount),
	}
}

func (st *runStats) observe(sampleID string, out sampleOutcome) {
	st.Samples++
	if out.err != nil {
		st.Failed++
		st.failedIDs = append(st.failedIDs, sampleID)
		return
	}
	st.Done++
	if out.meanDice != nil {
		st.diceSum += *out.meanDice
		st.diceCount++
	}
	for i, d := range out.memberDice {
		if i < len(st.memberSum) && !math.IsNaN(d) {
			st.memberSum[i] += d
			st.memberCount[i]++
		}
	}
}

func (st *runStats) overallMean() (float64, bool) {
	if st.diceCount == 0 {
		return 0, false
	}
	return st.diceSum / float64(st.diceCount), true
}

func (st *runStats) memberMean(i int) (float64, bool) {
	if i >= len(st.memberCount) || st.memberCount[i] == 0 {
		return 0, false
	}
	return st.memberSum[i] / float64(st.memberCount[i]), true
}

func (st *runStats) payload(rows []*types.RunMember, durationMillis int64) map[string]any {
	p := map[string]any{
		"samples":         st.Samples,
		"done":            st.Done,
		"failed":          st.Failed,
		"duration_millis": durationMillis,
	}
	if len(st.failedIDs) > 0 {
		p["failed_samples"] = st.failedIDs
	}
	if mean, ok := st.overallMean(); ok {
		p["mean_dice"] = mean
	}
	memberMeans := map[string]float64{}
	for i, row := range rows {
		if mean, ok := st.memberMean(i); ok {
			memberMeans[row.MemberID] = mean
		}
	}
	if len(memberMeans) > 0 {
		p["members"] = memberMeans
	}
	return p
}
