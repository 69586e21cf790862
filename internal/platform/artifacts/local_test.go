package artifacts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), logger.Noop())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "runs/nightly/case_001/output.json", strings.NewReader(`{"shape":[1,1,2]}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "runs/nightly/case_001/preview.png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("Put preview: %v", err)
	}
	if err := store.Put(ctx, "runs/other/case_002/output.json", strings.NewReader("{}")); err != nil {
		t.Fatalf("Put other: %v", err)
	}

	r, err := store.Get(ctx, "runs/nightly/case_001/output.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(body) != `{"shape":[1,1,2]}` {
		t.Fatalf("Get: unexpected body %q", body)
	}

	keys, err := store.List(ctx, "runs/nightly/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("List: expected 2 keys, got %v", keys)
	}
	if keys[0] != "runs/nightly/case_001/output.json" || keys[1] != "runs/nightly/case_001/preview.png" {
		t.Fatalf("List: unexpected order %v", keys)
	}

	if err := store.Delete(ctx, "runs/nightly/case_001/preview.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "runs/nightly/case_001/preview.png"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("Get after delete: expected ErrNotFound, got %v", err)
	}
}

func TestLocalStoreMissingArtifact(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), logger.Noop())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if _, err := store.Get(context.Background(), "runs/absent/output.json"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), "runs/absent/output.json"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStoreRejectsEscapingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), logger.Noop())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	for _, key := range []string{"", "..", "../evil", "a/../../evil"} {
		if err := store.Put(context.Background(), key, strings.NewReader("x")); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
			t.Fatalf("Put(%q): expected ErrInvalidArgument, got %v", key, err)
		}
	}
}
