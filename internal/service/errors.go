package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Every error leaving SubjectService or CatalogService wraps exactly one of
// these, so callers can classify with errors.Is or KindOf.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("subject not found")
	ErrAlreadyExists      = errors.New("subject already exists")
	ErrAlreadyBooked      = errors.New("claimant already holds a task in this subject")
	ErrSlotTaken          = errors.New("task already booked")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageIO          = errors.New("storage I/O failure")
)

// ErrorKind names a failure class in results and metrics.
type ErrorKind string

const (
	KindInvalidArgument    ErrorKind = "InvalidArgument"
	KindNotFound           ErrorKind = "NotFound"
	KindAlreadyExists      ErrorKind = "AlreadyExists"
	KindAlreadyBooked      ErrorKind = "AlreadyBooked"
	KindSlotTaken          ErrorKind = "SlotTaken"
	KindStorageUnavailable ErrorKind = "StorageUnavailable"
	KindStorageIO          ErrorKind = "StorageIOError"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrNotFound, KindNotFound},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrAlreadyBooked, KindAlreadyBooked},
	{ErrSlotTaken, KindSlotTaken},
	{ErrStorageUnavailable, KindStorageUnavailable},
	{ErrStorageIO, KindStorageIO},
}

// KindOf classifies err. Unrecognised errors are StorageIOError; nil is "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindStorageIO
}

// ParseSlot converts a user-supplied task number.
func ParseSlot(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("task %q: %w", raw, ErrInvalidArgument)
	}
	return n, nil
}

func storageIO(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
}
