package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type UserID string

// NewUserID generates a new unique UserID for a fresh session
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return goerr.Wrap(ErrInvalidRole, "unknown role", goerr.V("role", r))
	}
}

// ChatTurn is one message of a user session transcript. Turns are never
// mutated; they are removed only by a bulk clear of the whole session.
type ChatTurn struct {
	UserID    UserID
	Role      Role
	Text      string
	Timestamp time.Time
}

// Session groups chat turns by user identifier. Sessions are created lazily
// on first use and survive a history clear.
type Session struct {
	UserID    UserID
	CreatedAt time.Time
}
