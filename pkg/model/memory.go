package model

import "time"

// MemoryRecord is a single long-term memory fact. Records are append-only:
// ID, CreatedAt and Text never change once stored. The record's rank in
// ascending-ID order equals its row position in the vector index; every
// retrieval maps index positions back through that order.
type MemoryRecord struct {
	ID        int64
	CreatedAt time.Time
	Text      string
}
