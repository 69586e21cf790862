package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if strings.TrimSpace(u) == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(u)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   64 << 20,
		},
		Members: []MemberConfig{
			{ID: "fold-0", Engine: EngineConfig{Type: "mock"}},
			{ID: "fold-1", Engine: EngineConfig{Type: "mock"}},
		},
		Ensemble:  EnsembleConfig{Method: "mean"},
		Artifacts: ArtifactsConfig{Backend: "local", LocalDir: "artifacts"},
		Database:  DatabaseConfig{Driver: "postgres"},
	}
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("SB_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.json")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}

	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		var loaded Config
		if err := json.Unmarshal(b, &loaded); err != nil {
			return nil, err
		}
		*cfg = loaded
	}

	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("SB_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("SB_ENSEMBLE_METHOD")); v != "" {
		cfg.Ensemble.Method = v
	}
	if v := strings.TrimSpace(os.Getenv("SB_DB_DRIVER")); v != "" {
		cfg.Database.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("SB_SQLITE_PATH")); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := strings.TrimSpace(os.Getenv("SB_ARTIFACTS_BACKEND")); v != "" {
		cfg.Artifacts.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("SB_ARTIFACTS_DIR")); v != "" {
		cfg.Artifacts.LocalDir = v
	}
	if v := strings.TrimSpace(os.Getenv("SB_ARTIFACTS_BUCKET")); v != "" {
		cfg.Artifacts.Bucket = v
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 64 << 20
	}
	if cfg.HTTP.ReadHeaderTimeout.Duration <= 0 {
		cfg.HTTP.ReadHeaderTimeout = Duration{Duration: 5 * time.Second}
	}
	if cfg.HTTP.IdleTimeout.Duration <= 0 {
		cfg.HTTP.IdleTimeout = Duration{Duration: 2 * time.Minute}
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}

	if len(cfg.Members) == 0 {
		return nil, errors.New("config must define at least one ensemble member")
	}
	seen := make(map[string]bool, len(cfg.Members))
	for i := range cfg.Members {
		m := &cfg.Members[i]
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, errors.New("member id is required")
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate member id %q", m.ID)
		}
		seen[m.ID] = true

		if strings.TrimSpace(m.Model) == "" {
			m.Model = m.ID
		}
		if m.Weight < 0 {
			return nil, fmt.Errorf("member %q has negative weight", m.ID)
		}
		if m.Weight == 0 {
			m.Weight = 1
		}
		if m.ValScore < 0 {
			return nil, fmt.Errorf("member %q has negative val_score", m.ID)
		}

		m.Engine.Type = strings.ToLower(strings.TrimSpace(m.Engine.Type))
		m.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(m.Engine.BaseURL), "/")
		m.Engine.InferPath = strings.TrimSpace(m.Engine.InferPath)
		m.Engine.HealthPath = strings.TrimSpace(m.Engine.HealthPath)

		switch m.Engine.Type {
		case "":
			return nil, fmt.Errorf("member %q missing engine.type", m.ID)
		case "mock":
		case "tensor_http":
			if m.Engine.BaseURL == "" {
				return nil, fmt.Errorf("member %q (tensor_http) missing engine.base_url", m.ID)
			}
			if m.Engine.InferPath == "" {
				m.Engine.InferPath = "/v1/infer"
			}
			if m.Engine.HealthPath == "" {
				m.Engine.HealthPath = "/healthz"
			}
			if m.Engine.Timeout.Duration <= 0 {
				m.Engine.Timeout = Duration{Duration: 60 * time.Second}
			}
		default:
			return nil, fmt.Errorf("member %q has unknown engine.type %q", m.ID, m.Engine.Type)
		}
	}

	cfg.Ensemble.Method = strings.ToLower(strings.TrimSpace(cfg.Ensemble.Method))
	switch cfg.Ensemble.Method {
	case "":
		cfg.Ensemble.Method = "mean"
	case "mean", "vote":
	default:
		return nil, fmt.Errorf("invalid ensemble.method %q", cfg.Ensemble.Method)
	}
	if cfg.Ensemble.Vote.NumClasses < 0 {
		return nil, errors.New("invalid ensemble.vote.num_classes")
	}
	cfg.Ensemble.Vote.TieBreak = strings.ToLower(strings.TrimSpace(cfg.Ensemble.Vote.TieBreak))
	switch cfg.Ensemble.Vote.TieBreak {
	case "":
		cfg.Ensemble.Vote.TieBreak = "smallest"
	case "smallest", "largest":
	default:
		return nil, fmt.Errorf("invalid ensemble.vote.tie_break %q", cfg.Ensemble.Vote.TieBreak)
	}
	cfg.Ensemble.Vote.HalfVotes = strings.ToLower(strings.TrimSpace(cfg.Ensemble.Vote.HalfVotes))
	switch cfg.Ensemble.Vote.HalfVotes {
	case "":
		cfg.Ensemble.Vote.HalfVotes = "off"
	case "off", "on":
	default:
		return nil, fmt.Errorf("invalid ensemble.vote.half_votes %q", cfg.Ensemble.Vote.HalfVotes)
	}

	cfg.Artifacts.Backend = strings.ToLower(strings.TrimSpace(cfg.Artifacts.Backend))
	switch cfg.Artifacts.Backend {
	case "":
		cfg.Artifacts.Backend = "local"
		fallthrough
	case "local":
		if strings.TrimSpace(cfg.Artifacts.LocalDir) == "" {
			cfg.Artifacts.LocalDir = "artifacts"
		}
	case "gcs":
		if strings.TrimSpace(cfg.Artifacts.Bucket) == "" {
			return nil, errors.New("artifacts.bucket required for gcs backend")
		}
	default:
		return nil, fmt.Errorf("invalid artifacts.backend %q", cfg.Artifacts.Backend)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = "postgres"
	case "postgres":
	case "sqlite":
		if strings.TrimSpace(cfg.Database.SQLitePath) == "" {
			cfg.Database.SQLitePath = "segbridge.db"
		}
	default:
		return nil, fmt.Errorf("invalid database.driver %q", cfg.Database.Driver)
	}

	return cfg, nil
}
