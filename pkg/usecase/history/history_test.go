package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/repository"
	"github.com/m-mizutani/engram/pkg/usecase/history"
	"github.com/m-mizutani/gt"
)

func setupStore(t *testing.T) *history.Store {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "engram.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return history.New(repo)
}

func TestAddAndLoad(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	userID := model.NewUserID()

	gt.NoError(t, store.AddMessage(ctx, userID, model.RoleUser, "hello"))
	gt.NoError(t, store.AddMessage(ctx, userID, model.RoleAssistant, "hi there"))

	turns, err := store.LoadHistory(ctx, userID, 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(2)
	gt.Equal(t, turns[0].Role, model.RoleUser)
	gt.Equal(t, turns[0].Text, "hello")
	gt.Equal(t, turns[1].Role, model.RoleAssistant)
	gt.Equal(t, turns[1].Text, "hi there")
}

func TestAddEmptyTextIsNoOp(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	userID := model.NewUserID()

	gt.NoError(t, store.AddMessage(ctx, userID, model.RoleUser, ""))
	gt.NoError(t, store.AddMessage(ctx, userID, model.RoleUser, "  \n"))

	turns, err := store.LoadHistory(ctx, userID, 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(0)
}

func TestInvalidRole(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	userID := model.NewUserID()

	err := store.AddMessage(ctx, userID, model.Role("system"), "nope")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidRole))

	turns, err := store.LoadHistory(ctx, userID, 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(0)
}

func TestLoadUnknownUser(t *testing.T) {
	store := setupStore(t)

	turns, err := store.LoadHistory(context.Background(), model.NewUserID(), 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(0)
}

func TestLimitReturnsEarliest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	userID := model.NewUserID()

	for _, text := range []string{"first", "second", "third"} {
		gt.NoError(t, store.AddMessage(ctx, userID, model.RoleUser, text))
	}

	turns, err := store.LoadHistory(ctx, userID, 2)
	gt.NoError(t, err)
	gt.A(t, turns).Length(2)
	gt.Equal(t, turns[0].Text, "first")
	gt.Equal(t, turns[1].Text, "second")
}

func TestClearKeepsSession(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	userID := model.NewUserID()

	gt.NoError(t, store.AddMessage(ctx, userID, model.RoleUser, "hello"))
	gt.NoError(t, store.ClearHistory(ctx, userID))

	turns, err := store.LoadHistory(ctx, userID, 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(0)

	// the session keeps accepting messages after a clear
	gt.NoError(t, store.AddMessage(ctx, userID, model.RoleUser, "back again"))
	turns, err = store.LoadHistory(ctx, userID, 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(1)
	gt.Equal(t, turns[0].Text, "back again")
}

func TestUsersAreIsolated(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	alice := model.NewUserID()
	bob := model.NewUserID()

	gt.NoError(t, store.AddMessage(ctx, alice, model.RoleUser, "from alice"))
	gt.NoError(t, store.AddMessage(ctx, bob, model.RoleUser, "from bob"))
	gt.NoError(t, store.ClearHistory(ctx, alice))

	turns, err := store.LoadHistory(ctx, bob, 0)
	gt.NoError(t, err)
	gt.A(t, turns).Length(1)
	gt.Equal(t, turns[0].Text, "from bob")
}
