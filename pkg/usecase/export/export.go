// Package export streams the ledgers into BigQuery for offline analysis.
package export

import (
	"context"
	"time"

	"github.com/m-mizutani/engram/pkg/adapter"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type memoryRow struct {
	ID        int64     `bigquery:"id"`
	CreatedAt time.Time `bigquery:"created_at"`
	Text      string    `bigquery:"text"`
}

type turnRow struct {
	UserID    string    `bigquery:"user_id"`
	Role      string    `bigquery:"role"`
	Text      string    `bigquery:"text"`
	Timestamp time.Time `bigquery:"ts"`
}

// UseCase exports memory records and chat transcripts.
type UseCase struct {
	repo repository.Repository
	bq   adapter.BigQuery
}

func New(repo repository.Repository, bq adapter.BigQuery) *UseCase {
	return &UseCase{repo: repo, bq: bq}
}

// Memories streams all memory records to dataset.table and returns the
// number of exported rows.
func (u *UseCase) Memories(ctx context.Context, datasetID, tableID string) (int, error) {
	records, err := u.repo.ListMemories(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list memory records")
	}
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]*memoryRow, len(records))
	for i, rec := range records {
		rows[i] = &memoryRow{ID: rec.ID, CreatedAt: rec.CreatedAt, Text: rec.Text}
	}

	if err := u.bq.Insert(ctx, datasetID, tableID, rows); err != nil {
		return 0, err
	}

	logging.From(ctx).Info("exported memory records", "rows", len(rows),
		"dataset", datasetID, "table", tableID)
	return len(rows), nil
}

// Turns streams a user's chat transcript to dataset.table and returns the
// number of exported rows.
func (u *UseCase) Turns(ctx context.Context, userID model.UserID, datasetID, tableID string) (int, error) {
	turns, err := u.repo.ListChatTurns(ctx, userID, 0)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list chat turns")
	}
	if len(turns) == 0 {
		return 0, nil
	}

	rows := make([]*turnRow, len(turns))
	for i, turn := range turns {
		rows[i] = &turnRow{
			UserID:    string(turn.UserID),
			Role:      string(turn.Role),
			Text:      turn.Text,
			Timestamp: turn.Timestamp,
		}
	}

	if err := u.bq.Insert(ctx, datasetID, tableID, rows); err != nil {
		return 0, err
	}

	logging.From(ctx).Info("exported chat turns", "rows", len(rows),
		"dataset", datasetID, "table", tableID)
	return len(rows), nil
}
