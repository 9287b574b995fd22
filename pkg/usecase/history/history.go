// Package history implements the durable per-user chat transcript store.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

// Store is the addressable API for session transcript read/write/clear.
// A single mutex serializes ledger access, matching the memory store.
type Store struct {
	mu   sync.Mutex
	repo repository.Repository
}

func New(repo repository.Repository) *Store {
	return &Store{repo: repo}
}

// AddMessage appends one turn to the user's transcript. Empty or
// whitespace-only text is a no-op. The session row is created if absent so
// every stored message is attributable to a known session, even when
// creation and first message race.
func (s *Store) AddMessage(ctx context.Context, userID model.UserID, role model.Role, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := role.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.EnsureSession(ctx, userID); err != nil {
		return err
	}

	turn := &model.ChatTurn{
		UserID:    userID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.repo.AppendChatTurn(ctx, turn); err != nil {
		return goerr.Wrap(err, "failed to append chat turn")
	}

	return nil
}

// LoadHistory returns the user's turns ordered ascending by timestamp.
// limit > 0 returns at most the earliest limit turns; callers that want the
// most recent turns slice the tail of the full result themselves. Loading a
// never-seen user creates the session and returns an empty transcript.
func (s *Store) LoadHistory(ctx context.Context, userID model.UserID, limit int) ([]*model.ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.EnsureSession(ctx, userID); err != nil {
		return nil, err
	}

	turns, err := s.repo.ListChatTurns(ctx, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load history")
	}

	return turns, nil
}

// ClearHistory deletes all turns for userID. The session itself remains and
// keeps accepting new messages.
func (s *Store) ClearHistory(ctx context.Context, userID model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ClearChatTurns(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to clear history")
	}
	return nil
}
