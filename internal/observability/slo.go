package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/segbridge/internal/platform/envutil"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type rollingSum struct {
	values []float64
	idx    int
	total  float64
}

func newRollingSum(size int) *rollingSum {
	if size < 1 {
		size = 1
	}
	return &rollingSum{values: make([]float64, size)}
}

func (r *rollingSum) add(v float64) {
	r.total += v - r.values[r.idx]
	r.values[r.idx] = v
	r.idx++
	if r.idx >= len(r.values) {
		r.idx = 0
	}
}

// SLOEvaluator turns the raw counters into windowed SLI / error-budget /
// burn-rate gauges and posts webhook alerts when the burn rate crosses the
// configured thresholds.
type SLOEvaluator struct {
	metrics *Metrics
	log     *logger.Logger

	interval    time.Duration
	window      time.Duration
	windowLabel string

	apiAvailTarget   float64
	apiLatencyTarget float64
	sampleTarget     float64
	inferenceTarget  float64

	apiTotal    *rollingSum
	apiError    *rollingSum
	apiGood     *rollingSum
	sampleTotal *rollingSum
	sampleError *rollingSum
	inferTotal  *rollingSum
	inferError  *rollingSum

	prevApiTotal    float64
	prevApiError    float64
	prevApiGood     float64
	prevSampleTotal float64
	prevSampleError float64
	prevInferTotal  float64
	prevInferError  float64

	alertWebhook     string
	alertOwner       string
	alertRunbook     string
	alertMinInterval time.Duration
	alertBurnWarn    float64
	alertBurnCrit    float64

	alertMu    sync.Mutex
	lastAlerts map[string]time.Time
}

func (m *Metrics) StartSLOEvaluator(ctx context.Context, log *logger.Logger) {
	if m == nil || !envutil.Bool("SLO_ENABLED", false) {
		return
	}
	eval := newSLOEvaluator(m, log)
	go eval.run(ctx)
	if log != nil {
		log.Info("SLO evaluator started", "window", eval.windowLabel, "interval", eval.interval.String())
	}
}

func newSLOEvaluator(m *Metrics, log *logger.Logger) *SLOEvaluator {
	interval := envutil.Duration("SLO_EVAL_INTERVAL", 60*time.Second)
	if interval <= 0 {
		interval = 60 * time.Second
	}
	windowHours := envutil.Float("SLO_WINDOW_HOURS", 720)
	if windowHours < 1 {
		windowHours = 24
	}
	window := time.Duration(windowHours * float64(time.Hour))
	windowLabel := formatWindowLabel(window)
	size := int(window / interval)
	if size < 1 {
		size = 1
	}
	return &SLOEvaluator{
		metrics:          m,
		log:              log,
		interval:         interval,
		window:           window,
		windowLabel:      windowLabel,
		apiAvailTarget:   clamp01(envutil.Float("SLO_API_AVAIL_TARGET", 0.995)),
		apiLatencyTarget: clamp01(envutil.Float("SLO_API_LATENCY_TARGET", 0.95)),
		sampleTarget:     clamp01(envutil.Float("SLO_SAMPLE_SUCCESS_TARGET", 0.98)),
		inferenceTarget:  clamp01(envutil.Float("SLO_INFERENCE_SUCCESS_TARGET", 0.98)),
		apiTotal:         newRollingSum(size),
		apiError:         newRollingSum(size),
		apiGood:          newRollingSum(size),
		sampleTotal:      newRollingSum(size),
		sampleError:      newRollingSum(size),
		inferTotal:       newRollingSum(size),
		inferError:       newRollingSum(size),
		alertWebhook:     strings.TrimSpace(envutil.String("SLO_ALERT_WEBHOOK_URL", "")),
		alertOwner:       strings.TrimSpace(envutil.String("SLO_ALERT_OWNER", "")),
		alertRunbook:     strings.TrimSpace(envutil.String("SLO_ALERT_RUNBOOK_URL", "")),
		alertMinInterval: envutil.Duration("SLO_ALERT_MIN_INTERVAL", 15*time.Minute),
		alertBurnWarn:    envutil.Float("SLO_ALERT_BURN_RATE_WARN", 2),
		alertBurnCrit:    envutil.Float("SLO_ALERT_BURN_RATE_CRIT", 10),
		lastAlerts:       map[string]time.Time{},
	}
}

func (e *SLOEvaluator) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluate()
		}
	}
}

func (e *SLOEvaluator) evaluate() {
	if e.metrics == nil {
		return
	}
	apiTotal := e.metrics.apiReqTotal.Value()
	apiError := e.metrics.apiReqError.Value()
	apiGood := e.metrics.apiReqGood.Value()
	sampleTotal := e.metrics.sampleTotal.Value()
	sampleError := e.metrics.sampleError.Value()
	inferTotal := e.metrics.inferTotal.Value()
	inferError := e.metrics.inferError.Value()

	e.apiTotal.add(delta(apiTotal, e.prevApiTotal))
	e.apiError.add(delta(apiError, e.prevApiError))
	e.apiGood.add(delta(apiGood, e.prevApiGood))
	e.sampleTotal.add(delta(sampleTotal, e.prevSampleTotal))
	e.sampleError.add(delta(sampleError, e.prevSampleError))
	e.inferTotal.add(delta(inferTotal, e.prevInferTotal))
	e.inferError.add(delta(inferError, e.prevInferError))

	e.prevApiTotal = apiTotal
	e.prevApiError = apiError
	e.prevApiGood = apiGood
	e.prevSampleTotal = sampleTotal
	e.prevSampleError = sampleError
	e.prevInferTotal = inferTotal
	e.prevInferError = inferError

	e.evalSLO("api_availability", e.apiTotal.total, e.apiError.total, e.apiAvailTarget)
	e.evalSLO("api_latency", e.apiTotal.total, e.apiTotal.total-e.apiGood.total, e.apiLatencyTarget)
	e.evalSLO("sample_success", e.sampleTotal.total, e.sampleError.total, e.sampleTarget)
	e.evalSLO("inference_success", e.inferTotal.total, e.inferError.total, e.inferenceTarget)
}

func (e *SLOEvaluator) evalSLO(name string, total, bad, target float64) {
	if total <= 0 {
		e.metrics.sloCompliance.Set(1, name, e.windowLabel)
		e.metrics.sloBudget.Set(1, name, e.windowLabel)
		e.metrics.sloBurn.Set(0, name, e.windowLabel)
		return
	}
	sli := clamp01(1 - bad/total)
	burn := 0.0
	if target < 1 {
		burn = (1 - sli) / (1 - target)
	}
	budget := clamp01(1 - burn)
	e.metrics.sloCompliance.Set(sli, name, e.windowLabel)
	e.metrics.sloBudget.Set(budget, name, e.windowLabel)
	e.metrics.sloBurn.Set(burn, name, e.windowLabel)

	if e.alertWebhook == "" || e.alertOwner == "" {
		return
	}
	severity := ""
	if burn >= e.alertBurnCrit {
		severity = "critical"
	} else if burn >= e.alertBurnWarn {
		severity = "warning"
	}
	if severity == "" {
		return
	}
	key := name + ":" + severity
	e.alertMu.Lock()
	last := e.lastAlerts[key]
	if !last.IsZero() && time.Since(last) < e.alertMinInterval {
		e.alertMu.Unlock()
		return
	}
	e.lastAlerts[key] = time.Now()
	e.alertMu.Unlock()
	e.sendAlert(name, severity, sli, target, burn, budget)
}

func (e *SLOEvaluator) sendAlert(name, severity string, sli, target, burn, budget float64) {
	payload := map[string]any{
		"title":                  "SLO burn rate alert",
		"severity":               severity,
		"owner":                  e.alertOwner,
		"slo":                    name,
		"window":                 e.windowLabel,
		"sli":                    sli,
		"target":                 target,
		"burn_rate":              burn,
		"error_budget_remaining": budget,
		"runbook":                e.alertRunbook,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, e.alertWebhook, bytes.NewReader(body))
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert request build failed", "error", err, "slo", name)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert post failed", "error", err, "slo", name)
		}
		return
	}
	_ = resp.Body.Close()
	if e.log != nil {
		e.log.Info("slo alert sent", "slo", name, "severity", severity, "status", resp.StatusCode)
	}
}

// Counter resets (process restarts) would show as a negative delta; treat the
// new value as the whole delta instead.
func delta(current, prev float64) float64 {
	if current < prev {
		return current
	}
	return current - prev
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatWindowLabel(window time.Duration) string {
	hours := window.Hours()
	if hours >= 24 && math.Mod(hours, 24) == 0 {
		return strconv.Itoa(int(hours/24)) + "d"
	}
	if hours >= 1 {
		return strconv.Itoa(int(hours)) + "h"
	}
	return strconv.Itoa(int(window.Minutes())) + "m"
}
