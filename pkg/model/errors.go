package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound is returned when a context, session or backup does not exist
	ErrNotFound = goerr.New("not found")

	// ErrVersionMismatch is returned when a backup was written by another format version
	ErrVersionMismatch = goerr.New("backup version mismatch")

	// ErrDimensionMismatch is returned when vector operands differ in length
	ErrDimensionMismatch = goerr.New("vector dimension mismatch")

	// ErrValidation is returned for malformed input to a mutating call
	ErrValidation = goerr.New("validation failed")

	ErrInvalidPriority = goerr.Wrap(ErrValidation, "invalid priority")
)

// ErrNoEmbedder is returned when an embedding is required but no provider is configured
var ErrNoEmbedder = goerr.New("embedding provider is not configured")
