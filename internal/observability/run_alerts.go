package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/segbridge/internal/platform/ctxutil"
	"github.com/yungbote/segbridge/internal/platform/envutil"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type runAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var runAlerts runAlertState

// ReportRunFailure posts a webhook notification when an evaluation run
// degrades: failed outright, or finished with failed samples. Alerts with
// the same status are deduped within RUN_ALERT_MIN_INTERVAL so a burst of
// bad runs produces one notification, not one per run.
func ReportRunFailure(ctx context.Context, log *logger.Logger, runID, status string, failedSamples []string, meta map[string]any) {
	if !envutil.Bool("RUN_ALERTS_ENABLED", false) {
		return
	}
	webhook := runAlertWebhook()
	if webhook == "" {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}

	sampleIDs := make([]string, 0, 3)
	for _, id := range failedSamples {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if len(sampleIDs) < 3 {
			sampleIDs = append(sampleIDs, id)
		}
	}

	key := status
	minInterval := envutil.Duration("RUN_ALERT_MIN_INTERVAL", 5*time.Minute)
	runAlerts.mu.Lock()
	if runAlerts.last == nil {
		runAlerts.last = map[string]time.Time{}
	}
	last := runAlerts.last[key]
	if !last.IsZero() && time.Since(last) < minInterval {
		runAlerts.mu.Unlock()
		return
	}
	runAlerts.last[key] = time.Now()
	runAlerts.mu.Unlock()

	payload := map[string]any{
		"title":          "Evaluation run alert",
		"run_id":         runID,
		"status":         status,
		"failed_samples": len(failedSamples),
		"sample_ids":     sampleIDs,
		"meta":           meta,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("run alert request build failed", "error", err, "run_id", runID)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("run alert post failed", "error", err, "run_id", runID)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("run alert sent", "run_id", runID, "status", status, "http_status", resp.StatusCode)
	}
}

func runAlertWebhook() string {
	if v := strings.TrimSpace(envutil.String("RUN_ALERT_WEBHOOK_URL", "")); v != "" {
		return v
	}
	return strings.TrimSpace(envutil.String("SLO_ALERT_WEBHOOK_URL", ""))
}
