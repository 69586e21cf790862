package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout"`
	MaxRequestBytes   int64    `json:"max_request_bytes"`
}

type EngineConfig struct {
	// Type selects the engine implementation:
	// - "mock": deterministic in-process engine, no upstream
	// - "tensor_http": JSON-over-HTTP inference server
	Type string `json:"type"`

	// BaseURL is the upstream base URL (tensor_http only).
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is optional; when set it is sent as `Authorization: Bearer <api_key>`.
	APIKey string `json:"api_key,omitempty"`

	// Endpoint paths, defaulted when empty.
	InferPath  string `json:"infer_path,omitempty"`
	HealthPath string `json:"health_path,omitempty"`

	Timeout Duration `json:"timeout,omitempty"`
}

type MemberConfig struct {
	// ID names the ensemble member, conventionally "fold-<n>".
	ID string `json:"id"`

	// Model overrides the model name sent to the engine. Defaults to ID.
	Model string `json:"model,omitempty"`

	// Weight is the member's default weight for mean aggregation.
	// Defaults to 1; explicit zero or negative weights are rejected here,
	// per-request weights can still be supplied through the API.
	Weight float64 `json:"weight,omitempty"`

	// ValScore is the member's validation score from fold training,
	// carried into run records for reporting. Optional.
	ValScore float64 `json:"val_score,omitempty"`

	Engine EngineConfig `json:"engine"`
}

type VoteConfig struct {
	// NumClasses bounds class values in class-index mode; 0 infers from data.
	NumClasses int `json:"num_classes,omitempty"`

	// Strict verifies inputs are discrete before voting.
	Strict bool `json:"strict,omitempty"`

	// TieBreak is "smallest" (default) or "largest".
	TieBreak string `json:"tie_break,omitempty"`

	// HalfVotes is "off" (default) or "on" and decides exact-half splits
	// in one-hot mode.
	HalfVotes string `json:"half_votes,omitempty"`
}

type EnsembleConfig struct {
	// Method is "mean" (default) or "vote".
	Method string `json:"method,omitempty"`

	Vote VoteConfig `json:"vote,omitempty"`
}

type ArtifactsConfig struct {
	// Backend is "local" (default) or "gcs".
	Backend string `json:"backend,omitempty"`

	// LocalDir is the artifact root for the local backend.
	LocalDir string `json:"local_dir,omitempty"`

	// Bucket is the GCS bucket for the gcs backend.
	Bucket string `json:"bucket,omitempty"`
}

type DatabaseConfig struct {
	// Driver is "postgres" (default) or "sqlite". Postgres connection
	// details come from the POSTGRES_* environment variables.
	Driver string `json:"driver,omitempty"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `json:"sqlite_path,omitempty"`
}

type Config struct {
	Env       string          `json:"env"`
	HTTP      HTTPConfig      `json:"http"`
	Members   []MemberConfig  `json:"members"`
	Ensemble  EnsembleConfig  `json:"ensemble"`
	Artifacts ArtifactsConfig `json:"artifacts"`
	Database  DatabaseConfig  `json:"database"`
}
