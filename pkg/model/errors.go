package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrEmbeddingUnavailable means the embedding provider failed or
	// returned a response that could not be decoded into a vector.
	ErrEmbeddingUnavailable = goerr.New("embedding unavailable")

	// ErrDimensionMismatch means an embedding's length disagrees with the
	// dimension the vector index was fixed to by its first insert.
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrInvalidRole means a chat message role outside {user, assistant}.
	ErrInvalidRole = goerr.New("invalid role")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = goerr.New("not found")
)
