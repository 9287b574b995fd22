package export_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/export"
	"github.com/m-mizutani/gt"
)

type fakeBigQuery struct {
	datasetID string
	tableID   string
	rows      any
	calls     int
}

func (f *fakeBigQuery) Insert(ctx context.Context, datasetID, tableID string, rows any) error {
	f.calls++
	f.datasetID = datasetID
	f.tableID = tableID
	f.rows = rows
	return nil
}

func setup(t *testing.T) (*repository.SQLite, *fakeBigQuery, *export.UseCase) {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "engram.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bq := &fakeBigQuery{}
	return repo, bq, export.New(repo, bq)
}

func TestExportMemories(t *testing.T) {
	repo, bq, uc := setup(t)
	ctx := context.Background()

	for _, text := range []string{"the sky is blue", "dogs bark"} {
		_, err := repo.AppendMemory(ctx, text)
		gt.NoError(t, err)
	}

	n, err := uc.Memories(ctx, "analytics", "memories")
	gt.NoError(t, err)
	gt.Equal(t, n, 2)
	gt.Equal(t, bq.calls, 1)
	gt.Equal(t, bq.datasetID, "analytics")
	gt.Equal(t, bq.tableID, "memories")
}

func TestExportMemoriesEmpty(t *testing.T) {
	_, bq, uc := setup(t)

	n, err := uc.Memories(context.Background(), "analytics", "memories")
	gt.NoError(t, err)
	gt.Equal(t, n, 0)
	gt.Equal(t, bq.calls, 0)
}

func TestExportTurns(t *testing.T) {
	repo, bq, uc := setup(t)
	ctx := context.Background()
	userID := model.NewUserID()

	gt.NoError(t, repo.EnsureSession(ctx, userID))
	for _, text := range []string{"hello", "hi there"} {
		turn := &model.ChatTurn{UserID: userID, Role: model.RoleUser, Text: text}
		gt.NoError(t, repo.AppendChatTurn(ctx, turn))
	}

	n, err := uc.Turns(ctx, userID, "analytics", "chat_turns")
	gt.NoError(t, err)
	gt.Equal(t, n, 2)
	gt.Equal(t, bq.calls, 1)
	gt.Equal(t, bq.tableID, "chat_turns")
}
