package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/segbridge/internal/http/response"
	"github.com/yungbote/segbridge/internal/tensor"
)

func aggregateTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAggregateHandler(1 << 20)
	r := gin.New()
	r.POST("/v1/aggregate/mean", h.Mean)
	r.POST("/v1/aggregate/vote", h.Vote)
	return r
}

func wireFrom(t *testing.T, shape []int, data []float32) tensor.WireTensor {
	t.Helper()
	tt, err := tensor.New(shape, data)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tensor.ToWire(tt)
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeOutput(t *testing.T, rec *httptest.ResponseRecorder) *tensor.Tensor {
	t.Helper()
	var payload struct {
		Output tensor.WireTensor `json:"output"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	out, err := tensor.FromWire(payload.Output)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	return out
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error.Code
}

func TestAggregateMeanEndpoint(t *testing.T) {
	r := aggregateTestRouter()

	rec := postJSON(t, r, "/v1/aggregate/mean", meanAggregateRequest{
		Predictions: []tensor.WireTensor{
			wireFrom(t, []int{1, 1, 2, 2}, []float32{0, 0, 0, 0}),
			wireFrom(t, []int{1, 1, 2, 2}, []float32{1, 1, 1, 1}),
		},
		Weights: ptrWire(wireFrom(t, []int{2}, []float32{1, 3})),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}

	out := decodeOutput(t, rec)
	if !tensor.ShapeEqual(out.Shape(), []int{1, 1, 2, 2}) {
		t.Fatalf("output shape: %v", out.Shape())
	}
	for i, v := range out.Data() {
		if v != 0.75 {
			t.Fatalf("output[%d]: want=0.75 got=%v", i, v)
		}
	}
}

func TestAggregateMeanErrorCodes(t *testing.T) {
	r := aggregateTestRouter()

	cases := []struct {
		name string
		req  meanAggregateRequest
		code string
	}{
		{
			name: "empty_collection",
			req:  meanAggregateRequest{},
			code: "empty_collection",
		},
		{
			name: "shape_mismatch",
			req: meanAggregateRequest{
				Predictions: []tensor.WireTensor{
					wireFrom(t, []int{1, 1, 2, 2}, []float32{0, 0, 0, 0}),
					wireFrom(t, []int{1, 1, 2, 3}, []float32{1, 1, 1, 1, 1, 1}),
				},
			},
			code: "shape_mismatch",
		},
		{
			name: "degenerate_weights",
			req: meanAggregateRequest{
				Predictions: []tensor.WireTensor{
					wireFrom(t, []int{1, 1, 2, 2}, []float32{0, 0, 0, 0}),
					wireFrom(t, []int{1, 1, 2, 2}, []float32{1, 1, 1, 1}),
				},
				Weights: ptrWire(wireFrom(t, []int{2}, []float32{0, 0})),
			},
			code: "degenerate_weights",
		},
		{
			name: "invalid_weight_shape",
			req: meanAggregateRequest{
				Predictions: []tensor.WireTensor{
					wireFrom(t, []int{1, 1, 2, 2}, []float32{0, 0, 0, 0}),
					wireFrom(t, []int{1, 1, 2, 2}, []float32{1, 1, 1, 1}),
				},
				Weights: ptrWire(wireFrom(t, []int{3}, []float32{1, 1, 1})),
			},
			code: "invalid_weight_shape",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, r, "/v1/aggregate/mean", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: want=%d got=%d body=%s", http.StatusBadRequest, rec.Code, rec.Body.String())
			}
			if got := decodeErrorCode(t, rec); got != tc.code {
				t.Fatalf("error code: want=%q got=%q", tc.code, got)
			}
		})
	}
}

func TestAggregateVoteEndpoint(t *testing.T) {
	r := aggregateTestRouter()

	rec := postJSON(t, r, "/v1/aggregate/vote", voteAggregateRequest{
		Predictions: []tensor.WireTensor{
			wireFrom(t, []int{1, 1, 2, 2}, []float32{0, 1, 1, 2}),
			wireFrom(t, []int{1, 1, 2, 2}, []float32{0, 1, 2, 2}),
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}

	out := decodeOutput(t, rec)
	want := []float32{0, 1, 1, 2} // split voxel resolves to the smaller class
	for i, v := range out.Data() {
		if v != want[i] {
			t.Fatalf("output[%d]: want=%v got=%v", i, want[i], v)
		}
	}
}

func TestAggregateVoteRejects(t *testing.T) {
	r := aggregateTestRouter()

	t.Run("non_discrete_input", func(t *testing.T) {
		rec := postJSON(t, r, "/v1/aggregate/vote", voteAggregateRequest{
			Predictions: []tensor.WireTensor{
				wireFrom(t, []int{1, 1, 2, 2}, []float32{0.5, 1, 1, 2}),
			},
			Strict: true,
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, rec.Code)
		}
		if got := decodeErrorCode(t, rec); got != "non_discrete_input" {
			t.Fatalf("error code: want=%q got=%q", "non_discrete_input", got)
		}
	})

	t.Run("bad_policy", func(t *testing.T) {
		rec := postJSON(t, r, "/v1/aggregate/vote", voteAggregateRequest{
			Predictions: []tensor.WireTensor{
				wireFrom(t, []int{1, 1, 2, 2}, []float32{0, 1, 1, 2}),
			},
			TieBreak: "coinflip",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, rec.Code)
		}
		if got := decodeErrorCode(t, rec); got != "invalid_vote_options" {
			t.Fatalf("error code: want=%q got=%q", "invalid_vote_options", got)
		}
	})

	t.Run("invalid_json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/aggregate/vote", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, rec.Code)
		}
	})
}

func ptrWire(w tensor.WireTensor) *tensor.WireTensor { return &w }
