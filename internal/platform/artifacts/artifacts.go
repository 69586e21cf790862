package artifacts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/segbridge/internal/config"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

// Store abstracts where run inputs, aggregated outputs and preview images
// live. Keys are slash-separated relative paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

func New(cfg config.ArtifactsConfig, logg *logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, logg)
	case "gcs":
		return NewGCSStore(context.Background(), cfg.Bucket, logg)
	default:
		return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Backend)
	}
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".yaml"), strings.HasSuffix(s, ".yml"):
		return "application/yaml"
	default:
		return ""
	}
}
