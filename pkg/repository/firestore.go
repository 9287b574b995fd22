package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	memoriesCollection = "memories"
	sessionsCollection = "sessions"
	turnsCollection    = "turns"
	countersCollection = "counters"
	memoryCounterDoc   = "memory_counter"
)

// memoryDoc is the Firestore document representation of model.MemoryRecord.
// The document ID is the zero-padded record ID so that an ID-ordered scan is
// also insertion-ordered.
type memoryDoc struct {
	ID        int64     `firestore:"ID"`
	CreatedAt time.Time `firestore:"CreatedAt"`
	Text      string    `firestore:"Text"`
}

type sessionDoc struct {
	UserID    string    `firestore:"UserID"`
	CreatedAt time.Time `firestore:"CreatedAt"`
}

type turnDoc struct {
	Role      string    `firestore:"Role"`
	Text      string    `firestore:"Text"`
	Timestamp time.Time `firestore:"Timestamp"`
}

// Firestore is the cloud Repository backend. Monotonic memory IDs are
// allocated through a counter document transaction, so insertion order is
// well defined even with concurrent writers.
type Firestore struct {
	client *firestore.Client
}

var _ Repository = (*Firestore)(nil)

// NewFirestore creates a Firestore-backed repository.
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) nextMemoryID(ctx context.Context) (int64, error) {
	counterRef := r.client.Collection(countersCollection).Doc(memoryCounterDoc)

	var nextID int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(counterRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				nextID = 1
				return tx.Set(counterRef, map[string]any{"value": nextID})
			}
			return goerr.Wrap(err, "failed to get memory counter")
		}

		value, err := doc.DataAt("value")
		if err != nil {
			return goerr.Wrap(err, "failed to get memory counter value")
		}
		current, ok := value.(int64)
		if !ok {
			return goerr.New("memory counter is not int64", goerr.V("value", value))
		}

		nextID = current + 1
		return tx.Update(counterRef, []firestore.Update{{Path: "value", Value: nextID}})
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to allocate memory ID")
	}

	return nextID, nil
}

func (r *Firestore) AppendMemory(ctx context.Context, text string) (*model.MemoryRecord, error) {
	id, err := r.nextMemoryID(ctx)
	if err != nil {
		return nil, err
	}

	rec := &model.MemoryRecord{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Text:      text,
	}

	docRef := r.client.Collection(memoriesCollection).Doc(memoryDocID(id))
	if _, err := docRef.Set(ctx, &memoryDoc{ID: rec.ID, CreatedAt: rec.CreatedAt, Text: rec.Text}); err != nil {
		return nil, goerr.Wrap(err, "failed to create memory record", goerr.V("id", id))
	}

	return rec, nil
}

func (r *Firestore) ListMemories(ctx context.Context) ([]*model.MemoryRecord, error) {
	iter := r.client.Collection(memoriesCollection).OrderBy("ID", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var records []*model.MemoryRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory records")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory record")
		}
		records = append(records, &model.MemoryRecord{ID: d.ID, CreatedAt: d.CreatedAt, Text: d.Text})
	}

	return records, nil
}

func (r *Firestore) CountMemories(ctx context.Context) (int64, error) {
	records, err := r.ListMemories(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

func (r *Firestore) EnsureSession(ctx context.Context, userID model.UserID) error {
	docRef := r.client.Collection(sessionsCollection).Doc(string(userID))

	_, err := docRef.Get(ctx)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to get session", goerr.V("user_id", userID))
	}

	if _, err := docRef.Set(ctx, &sessionDoc{
		UserID:    string(userID),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return goerr.Wrap(err, "failed to create session", goerr.V("user_id", userID))
	}
	return nil
}

func (r *Firestore) turns(userID model.UserID) *firestore.CollectionRef {
	return r.client.Collection(sessionsCollection).Doc(string(userID)).Collection(turnsCollection)
}

func (r *Firestore) AppendChatTurn(ctx context.Context, turn *model.ChatTurn) error {
	_, _, err := r.turns(turn.UserID).Add(ctx, &turnDoc{
		Role:      string(turn.Role),
		Text:      turn.Text,
		Timestamp: turn.Timestamp.UTC(),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to append chat turn", goerr.V("user_id", turn.UserID))
	}
	return nil
}

func (r *Firestore) ListChatTurns(ctx context.Context, userID model.UserID, limit int) ([]*model.ChatTurn, error) {
	query := r.turns(userID).OrderBy("Timestamp", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var turns []*model.ChatTurn
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chat turns", goerr.V("user_id", userID))
		}

		var d turnDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chat turn")
		}
		turns = append(turns, &model.ChatTurn{
			UserID:    userID,
			Role:      model.Role(d.Role),
			Text:      d.Text,
			Timestamp: d.Timestamp,
		})
	}

	return turns, nil
}

func (r *Firestore) ClearChatTurns(ctx context.Context, userID model.UserID) error {
	iter := r.turns(userID).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate chat turns for clear", goerr.V("user_id", userID))
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete chat turn", goerr.V("user_id", userID))
		}
	}

	return nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

// memoryDocID zero-pads the record ID so lexicographic document order stays
// aligned with ID order.
func memoryDocID(id int64) string {
	return fmt.Sprintf("%012d", id)
}
