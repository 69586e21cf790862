// Package tensorhttp implements the engine interface against a remote
// inference server speaking a small JSON protocol: POST the input tensor,
// receive the prediction tensor.
package tensorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/tensor"
)

type Engine struct {
	baseURL string
	apiKey  string

	inferPath  string
	healthPath string

	timeout time.Duration

	httpClient *http.Client
}

func New(cfg config.EngineConfig) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tensor_http: base_url required")
	}

	inferPath := strings.TrimSpace(cfg.InferPath)
	if inferPath == "" {
		inferPath = "/v1/infer"
	}
	healthPath := strings.TrimSpace(cfg.HealthPath)
	if healthPath == "" {
		healthPath = "/healthz"
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Engine{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		inferPath:  inferPath,
		healthPath: healthPath,
		timeout:    timeout,
		httpClient: &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg config.EngineConfig, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

type inferRequest struct {
	Model string        `json:"model"`
	Input tensorPayload `json:"input"`
}

type inferResponse struct {
	Output tensorPayload `json:"output"`
}

func (e *Engine) Infer(ctx context.Context, model string, input *tensor.Tensor) (*tensor.Tensor, error) {
	if input == nil {
		return nil, errors.New("tensor_http: nil input")
	}
	reqBody := inferRequest{
		Model: model,
		Input: encodeTensor(input),
	}
	var resp inferResponse
	if err := e.doJSON(ctx, e.timeout, "POST", e.inferPath, reqBody, &resp); err != nil {
		return nil, err
	}
	return decodeTensor(resp.Output)
}

func (e *Engine) Health(ctx context.Context) error {
	return e.doJSON(ctx, 10*time.Second, "GET", e.healthPath, nil, nil)
}

func (e *Engine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

func (e *Engine) doJSON(ctx context.Context, timeout time.Duration, method string, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	ctx2 := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx2, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx2, method, e.baseURL+path, &buf)
	if err != nil {
		return err
	}
	e.setHeaders(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
