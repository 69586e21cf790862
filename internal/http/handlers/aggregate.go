package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/ensemble"
	"github.com/yungbote/segbridge/internal/evaluation"
	"github.com/yungbote/segbridge/internal/http/response"
	"github.com/yungbote/segbridge/internal/observability"
	"github.com/yungbote/segbridge/internal/tensor"
)

// AggregateHandler reduces caller-supplied prediction tensors without a
// run record: the stateless counterpart of the evaluation pipeline.
type AggregateHandler struct {
	maxBytes int64
}

func NewAggregateHandler(maxBytes int64) *AggregateHandler {
	return &AggregateHandler{maxBytes: maxBytes}
}

type meanAggregateRequest struct {
	Predictions []tensor.WireTensor `json:"predictions"`

	// Weights accepts the full broadcast forms: [N], [N,B] or [N,B,C].
	Weights *tensor.WireTensor `json:"weights,omitempty"`
}

type voteAggregateRequest struct {
	Predictions []tensor.WireTensor `json:"predictions"`

	NumClasses int    `json:"num_classes,omitempty"`
	Strict     bool   `json:"strict,omitempty"`
	TieBreak   string `json:"tie_break,omitempty"`
	HalfVotes  string `json:"half_votes,omitempty"`
}

// POST /v1/aggregate/mean
func (h *AggregateHandler) Mean(c *gin.Context) {
	var req meanAggregateRequest
	if !h.bind(c, &req) {
		return
	}
	preds, err := decodePredictions(req.Predictions)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_tensor", err)
		return
	}
	var weights *tensor.Tensor
	if req.Weights != nil {
		weights, err = tensor.FromWire(*req.Weights)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_tensor", fmt.Errorf("weights: %w", err))
			return
		}
	}

	out, err := ensemble.Mean(preds, weights)
	observability.Current().IncAggregation("mean", outcomeCode(err))
	if err != nil {
		respondReductionError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"output": tensor.ToWire(out)})
}

// POST /v1/aggregate/vote
func (h *AggregateHandler) Vote(c *gin.Context) {
	var req voteAggregateRequest
	if !h.bind(c, &req) {
		return
	}
	preds, err := decodePredictions(req.Predictions)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_tensor", err)
		return
	}
	opts, err := evaluation.VoteOptionsFromConfig(config.VoteConfig{
		NumClasses: req.NumClasses,
		Strict:     req.Strict,
		TieBreak:   req.TieBreak,
		HalfVotes:  req.HalfVotes,
	})
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_vote_options", err)
		return
	}

	out, err := ensemble.Vote(preds, opts)
	observability.Current().IncAggregation("vote", outcomeCode(err))
	if err != nil {
		respondReductionError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"output": tensor.ToWire(out)})
}

func (h *AggregateHandler) bind(c *gin.Context, dst any) bool {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return false
	}
	return true
}

func decodePredictions(ws []tensor.WireTensor) ([]*tensor.Tensor, error) {
	preds := make([]*tensor.Tensor, len(ws))
	for i, w := range ws {
		t, err := tensor.FromWire(w)
		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
		preds[i] = t
	}
	return preds, nil
}

// respondReductionError turns a reduction error into its wire form; every
// code models a caller mistake except internal.
func respondReductionError(c *gin.Context, err error) {
	code := ensemble.ErrorCode(err)
	status := http.StatusBadRequest
	if code == "internal" {
		status = http.StatusInternalServerError
	}
	response.RespondError(c, status, code, err)
}

func outcomeCode(err error) string {
	if err == nil {
		return "ok"
	}
	return ensemble.ErrorCode(err)
}
