package repository

import (
	"context"
	"errors"
)

var (
	// ErrRecordNotFound is returned when no record exists for a name.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned by Create when the name is taken.
	ErrRecordExists = errors.New("record already exists")
	// ErrUnavailable is returned when the storage location cannot be enumerated.
	ErrUnavailable = errors.New("record storage unavailable")
)

// RecordRepository stores one opaque encoded record per subject name.
//
// Implementations must replace records atomically: a concurrent Get sees
// either the previous or the new bytes, never a mix. Callers serialize
// writes to the same name; implementations need not.
type RecordRepository interface {
	// Get returns the record bytes or ErrRecordNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Create stores a new record or fails with ErrRecordExists.
	Create(ctx context.Context, name string, data []byte) error
	// Replace overwrites an existing record or fails with ErrRecordNotFound.
	Replace(ctx context.Context, name string, data []byte) error
	// Delete removes a record or fails with ErrRecordNotFound.
	Delete(ctx context.Context, name string) error
	// List returns all record names sorted ascending.
	List(ctx context.Context) ([]string, error)
}
