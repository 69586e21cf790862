package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	types "github.com/yungbote/segbridge/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedRun inserts a run row directly, for tests whose subject is something
// hanging off a run rather than run creation itself.
func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, method, status string) *types.EnsembleRun {
	tb.Helper()
	r := &types.EnsembleRun{
		ID:       uuid.New(),
		Name:     "fixture",
		Method:   method,
		Status:   status,
		Manifest: "manifests/fixture.json",
		Config:   datatypes.JSON([]byte(`{"method":"` + method + `"}`)),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return r
}

// SeedRunMembers inserts one member row per id, positions in order.
func SeedRunMembers(tb testing.TB, ctx context.Context, tx *gorm.DB, runID uuid.UUID, memberIDs ...string) []*types.RunMember {
	tb.Helper()
	rows := make([]*types.RunMember, 0, len(memberIDs))
	for i, id := range memberIDs {
		row := &types.RunMember{
			ID:       uuid.New(),
			RunID:    runID,
			Position: i,
			MemberID: id,
			Model:    id,
			Weight:   1,
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			tb.Fatalf("seed run member %s: %v", id, err)
		}
		rows = append(rows, row)
	}
	return rows
}
