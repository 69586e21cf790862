// Package members resolves configured ensemble members to the engines
// that serve them. Member order is preserved: mean-ensemble weights are
// positional, so the registry is the single source of truth for ordering.
package members

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/engine"
	"github.com/yungbote/segbridge/internal/engine/mock"
	"github.com/yungbote/segbridge/internal/engine/tensorhttp"
)

// Member is one trained fold model and the engine that serves it.
type Member struct {
	ID       string
	Model    string
	Weight   float64
	ValScore float64
	Engine   engine.Engine
}

// Status is a point-in-time health snapshot of a member.
type Status struct {
	ID       string  `json:"id"`
	Model    string  `json:"model"`
	Weight   float64 `json:"weight"`
	ValScore float64 `json:"val_score,omitempty"`
	Healthy  bool    `json:"healthy"`
	Error    string  `json:"error,omitempty"`
}

type Registry struct {
	members []Member
	index   map[string]int
}

func New(cfg *config.Config) (*Registry, error) {
	r := &Registry{index: map[string]int{}}
	for _, m := range cfg.Members {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("member id required")
		}
		if _, exists := r.index[id]; exists {
			return nil, fmt.Errorf("duplicate member id: %s", id)
		}

		var eng engine.Engine
		switch strings.ToLower(strings.TrimSpace(m.Engine.Type)) {
		case "mock":
			eng = mock.New()
		case "tensor_http":
			e, err := tensorhttp.New(m.Engine)
			if err != nil {
				return nil, err
			}
			eng = e
		default:
			return nil, fmt.Errorf("unsupported engine type %q for member %q", m.Engine.Type, id)
		}

		model := strings.TrimSpace(m.Model)
		if model == "" {
			model = id
		}
		weight := m.Weight
		if weight == 0 {
			weight = 1
		}

		r.index[id] = len(r.members)
		r.members = append(r.members, Member{
			ID:       id,
			Model:    model,
			Weight:   weight,
			ValScore: m.ValScore,
			Engine:   eng,
		})
	}
	if len(r.members) == 0 {
		return nil, fmt.Errorf("no ensemble members configured")
	}
	return r, nil
}

func (r *Registry) Count() int { return len(r.members) }

// Members returns the members in configured order.
func (r *Registry) Members() []Member {
	return append([]Member(nil), r.members...)
}

func (r *Registry) IDs() []string {
	out := make([]string, len(r.members))
	for i, m := range r.members {
		out[i] = m.ID
	}
	return out
}

func (r *Registry) ByID(id string) (Member, bool) {
	i, ok := r.index[strings.TrimSpace(id)]
	if !ok {
		return Member{}, false
	}
	return r.members[i], true
}

// ValScores returns the configured validation scores in member order.
// Members without a score report zero.
func (r *Registry) ValScores() []float64 {
	out := make([]float64, len(r.members))
	for i, m := range r.members {
		out[i] = m.ValScore
	}
	return out
}

// Weights returns the configured member weights in member order.
func (r *Registry) Weights() []float32 {
	out := make([]float32, len(r.members))
	for i, m := range r.members {
		out[i] = float32(m.Weight)
	}
	return out
}

// Health probes every member and fails on the first unhealthy engine.
func (r *Registry) Health(ctx context.Context) error {
	for _, m := range r.members {
		if err := m.Engine.Health(ctx); err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
	}
	return nil
}

// Statuses probes every member and reports all results.
func (r *Registry) Statuses(ctx context.Context) []Status {
	out := make([]Status, len(r.members))
	for i, m := range r.members {
		st := Status{ID: m.ID, Model: m.Model, Weight: m.Weight, ValScore: m.ValScore, Healthy: true}
		if err := m.Engine.Health(ctx); err != nil {
			st.Healthy = false
			st.Error = err.Error()
		}
		out[i] = st
	}
	return out
}
