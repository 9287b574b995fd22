package repository

import (
	"context"

	"github.com/m-mizutani/engram/pkg/model"
)

// Repository defines durable storage for the memory ledger and the chat
// ledger. Both ledgers are append-only; the memory ledger additionally
// promises that ListMemories returns records in insertion order, which the
// vector index depends on for its positional mapping.
type Repository interface {
	// AppendMemory stores a new memory record and returns it with the
	// assigned ID and creation time.
	AppendMemory(ctx context.Context, text string) (*model.MemoryRecord, error)

	// ListMemories retrieves all memory records in insertion order
	// (ascending ID).
	ListMemories(ctx context.Context) ([]*model.MemoryRecord, error)

	// CountMemories returns the number of stored memory records.
	CountMemories(ctx context.Context) (int64, error)

	// EnsureSession creates a session row for userID if absent. Safe to
	// call repeatedly and from concurrent callers.
	EnsureSession(ctx context.Context, userID model.UserID) error

	// AppendChatTurn stores a chat turn. The session must exist.
	AppendChatTurn(ctx context.Context, turn *model.ChatTurn) error

	// ListChatTurns retrieves turns for userID ordered ascending by
	// timestamp. limit > 0 returns at most the earliest limit turns.
	ListChatTurns(ctx context.Context, userID model.UserID, limit int) ([]*model.ChatTurn, error)

	// ClearChatTurns deletes all turns for userID. The session row remains.
	ClearChatTurns(ctx context.Context, userID model.UserID) error

	// Close releases the underlying storage handle.
	Close() error
}
