package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/taskbook/internal/event"
	"github.com/stemsi/taskbook/internal/keylock"
	"github.com/stemsi/taskbook/internal/metrics"
	"github.com/stemsi/taskbook/internal/model"
	"github.com/stemsi/taskbook/internal/record"
	"github.com/stemsi/taskbook/internal/repository"
)

// SubjectService owns the subject records. Create, Delete and Book hold the
// subject's lock from read to durable write; reads take no lock and rely on
// the repository replacing records atomically.
type SubjectService struct {
	records  repository.RecordRepository
	locks    *keylock.Table
	events   event.Publisher
	maxTasks int
	log      zerolog.Logger
}

func NewSubjectService(records repository.RecordRepository, events event.Publisher, maxTasks int, log zerolog.Logger) *SubjectService {
	if events == nil {
		events = event.Nop{}
	}
	return &SubjectService{
		records:  records,
		locks:    keylock.New(),
		events:   events,
		maxTasks: maxTasks,
		log:      log.With().Str("component", "subject_service").Logger(),
	}
}

// MaxTasks returns the largest capacity Create accepts.
func (s *SubjectService) MaxTasks() int {
	return s.maxTasks
}

// Create stores a new subject with capacity free tasks.
func (s *SubjectService) Create(ctx context.Context, name string, capacity int) (sub *model.Subject, err error) {
	defer observe("create", time.Now(), &err)

	if !model.ValidSubjectName(name) {
		return nil, fmt.Errorf("subject name %q: %w", name, ErrInvalidArgument)
	}
	if capacity < 1 || capacity > s.maxTasks {
		return nil, fmt.Errorf("capacity %d outside 1..%d: %w", capacity, s.maxTasks, ErrInvalidArgument)
	}

	unlock, err := s.lock(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sub = model.NewSubject(name, capacity)
	data, err := record.Encode(sub.Slots)
	if err != nil {
		return nil, storageIO("encode record", err)
	}

	if err := s.records.Create(context.WithoutCancel(ctx), name, data); err != nil {
		if errors.Is(err, repository.ErrRecordExists) {
			return nil, fmt.Errorf("subject %q: %w", name, ErrAlreadyExists)
		}
		s.log.Error().Err(err).Str("subject", name).Msg("Failed to write new record")
		return nil, storageIO("write record", err)
	}

	s.log.Info().Str("subject", name).Int("capacity", capacity).Msg("Subject created")
	s.publish(ctx, model.BookingEvent{Type: model.EventSubjectCreated, Subject: name, Capacity: capacity})
	return sub, nil
}

// Delete removes a subject and every booking in it.
func (s *SubjectService) Delete(ctx context.Context, name string) (err error) {
	defer observe("delete", time.Now(), &err)

	if !model.ValidSubjectName(name) {
		return fmt.Errorf("subject %q: %w", name, ErrNotFound)
	}

	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.records.Delete(context.WithoutCancel(ctx), name); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return fmt.Errorf("subject %q: %w", name, ErrNotFound)
		}
		s.log.Error().Err(err).Str("subject", name).Msg("Failed to delete record")
		return storageIO("delete record", err)
	}

	s.log.Info().Str("subject", name).Msg("Subject deleted")
	s.publish(ctx, model.BookingEvent{Type: model.EventSubjectDeleted, Subject: name})
	return nil
}

// Read returns the current state of a subject.
func (s *SubjectService) Read(ctx context.Context, name string) (sub *model.Subject, err error) {
	defer observe("read", time.Now(), &err)
	return s.load(ctx, name)
}

// ListFree returns the free tasks, or every task with its claimant when
// verbose is set.
func (s *SubjectService) ListFree(ctx context.Context, name string, verbose bool) (slots []model.Slot, err error) {
	defer observe("list_free", time.Now(), &err)

	sub, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if verbose {
		return sub.Slots, nil
	}
	return sub.FreeSlots(), nil
}

// Book assigns task slot of subject name to claimant.
//
// Checks run in this order: subject exists, slot in range, claimant holds no
// other task (AlreadyBooked), slot is free (SlotTaken). Once the write has
// started it runs to completion even if ctx is cancelled.
func (s *SubjectService) Book(ctx context.Context, name string, slot int, claimant string) (sub *model.Subject, err error) {
	defer observe("book", time.Now(), &err)

	claimant = strings.TrimSpace(claimant)
	if claimant == "" {
		return nil, fmt.Errorf("empty claimant: %w", ErrInvalidArgument)
	}
	if !utf8.ValidString(claimant) {
		return nil, fmt.Errorf("claimant %q is not valid UTF-8: %w", claimant, ErrInvalidArgument)
	}
	if !model.ValidSubjectName(name) {
		return nil, fmt.Errorf("subject %q: %w", name, ErrNotFound)
	}

	unlock, err := s.lock(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sub, err = s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if slot < 1 || slot > sub.Capacity {
		return nil, fmt.Errorf("task %d outside 1..%d of %q: %w", slot, sub.Capacity, name, ErrInvalidArgument)
	}
	if held, ok := sub.SlotOf(claimant); ok {
		return nil, &BookingConflictError{Slot: held, Err: ErrAlreadyBooked}
	}
	if current := sub.Slots[slot-1]; !current.Free() {
		return nil, &BookingConflictError{Slot: slot, Err: ErrSlotTaken}
	}

	if err := ctx.Err(); err != nil {
		return nil, storageIO("book aborted before write", err)
	}

	sub.Slots[slot-1].Claimant = claimant
	data, err := record.Encode(sub.Slots)
	if err != nil {
		return nil, storageIO("encode record", err)
	}
	if err := s.records.Replace(context.WithoutCancel(ctx), name, data); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, fmt.Errorf("subject %q: %w", name, ErrNotFound)
		}
		s.log.Error().Err(err).Str("subject", name).Int("task", slot).Msg("Failed to write booking")
		return nil, storageIO("write record", err)
	}

	s.log.Info().
		Str("subject", name).
		Int("task", slot).
		Str("claimant", claimant).
		Msg("Task booked")
	s.publish(ctx, model.BookingEvent{Type: model.EventSlotBooked, Subject: name, Slot: slot, Claimant: claimant})
	return sub, nil
}

// BookingConflictError reports which task blocked a booking: the one the
// claimant already holds, or the one that is taken.
type BookingConflictError struct {
	Slot int
	Err  error
}

func (e *BookingConflictError) Error() string {
	return fmt.Sprintf("task %d: %v", e.Slot, e.Err)
}

func (e *BookingConflictError) Unwrap() error {
	return e.Err
}

func (s *SubjectService) load(ctx context.Context, name string) (*model.Subject, error) {
	if !model.ValidSubjectName(name) {
		return nil, fmt.Errorf("subject %q: %w", name, ErrNotFound)
	}

	data, err := s.records.Get(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, fmt.Errorf("subject %q: %w", name, ErrNotFound)
		}
		s.log.Error().Err(err).Str("subject", name).Msg("Failed to read record")
		return nil, storageIO("read record", err)
	}

	slots, err := record.Decode(data)
	if err != nil {
		s.log.Error().Err(err).Str("subject", name).Msg("Corrupt record")
		return nil, storageIO("decode record", err)
	}
	return &model.Subject{Name: name, Capacity: len(slots), Slots: slots}, nil
}

func (s *SubjectService) lock(ctx context.Context, name string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, name)
	if err != nil {
		return nil, storageIO(fmt.Sprintf("lock subject %q", name), err)
	}
	return unlock, nil
}

// publish announces a committed change. Failures are logged only: the
// mutation is already durable.
func (s *SubjectService) publish(ctx context.Context, evt model.BookingEvent) {
	evt.ID = uuid.NewString()
	evt.At = time.Now().UTC()
	if err := s.events.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.log.Warn().Err(err).Str("event", string(evt.Type)).Str("subject", evt.Subject).Msg("Failed to publish event")
	}
}

func observe(operation string, start time.Time, err *error) {
	result := metrics.ResultOK
	if *err != nil {
		result = string(KindOf(*err))
	}
	metrics.ObserveOperation(operation, result, start)
}
