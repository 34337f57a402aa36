package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/taskbook/internal/model"
	"github.com/stemsi/taskbook/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt model.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) snapshot() []model.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.BookingEvent(nil), p.events...)
}

// failingRepository wraps a real repository and fails selected calls.
type failingRepository struct {
	repository.RecordRepository
	replaceErr error
	getErr     error
	listErr    error
}

func (r *failingRepository) Replace(ctx context.Context, name string, data []byte) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	return r.RecordRepository.Replace(ctx, name, data)
}

func (r *failingRepository) Get(ctx context.Context, name string) ([]byte, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.RecordRepository.Get(ctx, name)
}

func (r *failingRepository) List(ctx context.Context) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.RecordRepository.List(ctx)
}

func newFileRepo(t *testing.T) (*repository.FileRecordRepository, string) {
	t.Helper()
	root := t.TempDir()
	repo, err := repository.NewFileRecordRepository(root, zerolog.Nop())
	require.NoError(t, err)
	return repo, root
}

func newSubjectService(t *testing.T) (*SubjectService, *recordingPublisher, string) {
	t.Helper()
	repo, root := newFileRepo(t)
	pub := &recordingPublisher{}
	return NewSubjectService(repo, pub, 100, zerolog.Nop()), pub, root
}

func TestSubjectService_MathScenario(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 3)
	require.NoError(t, err)

	free, err := svc.ListFree(ctx, "math", false)
	require.NoError(t, err)
	assert.Equal(t, []model.Slot{{Index: 1}, {Index: 2}, {Index: 3}}, free)

	_, err = svc.Book(ctx, "math", 2, "u1")
	require.NoError(t, err)

	_, err = svc.Book(ctx, "math", 2, "u2")
	assert.ErrorIs(t, err, ErrSlotTaken)

	_, err = svc.ListFree(ctx, "math android", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubjectService_CreateThenRead(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	for _, capacity := range []int{1, 7, 100} {
		name := fmt.Sprintf("subject_%d", capacity)
		_, err := svc.Create(ctx, name, capacity)
		require.NoError(t, err)

		sub, err := svc.Read(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, capacity, sub.Capacity)
		assert.Len(t, sub.Slots, capacity)
		assert.Equal(t, capacity, sub.FreeCount())
	}
}

func TestSubjectService_CreateValidation(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		subject  string
		capacity int
	}{
		{"EmptyName", "", 3},
		{"PathSeparator", "../etc", 3},
		{"Space", "math android", 3},
		{"ZeroCapacity", "math", 0},
		{"NegativeCapacity", "math", -1},
		{"OverMax", "math", 101},
		{"TooManyRunes", strings.Repeat("a", model.MaxSubjectNameLength+1), 3},
		{"TooManyBytes", strings.Repeat("𝐀", model.MaxSubjectNameLength), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.subject, tt.capacity)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
		})
	}
}

func TestSubjectService_LongMultibyteName(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	longest := strings.Repeat("学", model.MaxSubjectNameLength)
	_, err := svc.Create(ctx, longest, 2)
	require.NoError(t, err)
	sub, err := svc.Read(ctx, longest)
	require.NoError(t, err)
	assert.Equal(t, longest, sub.Name)

	tooLong := strings.Repeat("𝐀", model.MaxSubjectNameLength)
	_, err = svc.Read(ctx, tooLong)
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = svc.Book(ctx, tooLong, 1, "u1")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSubjectService_CreateExistingLeavesRecord(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 3)
	require.NoError(t, err)
	_, err = svc.Book(ctx, "math", 1, "u1")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "math", 5)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Capacity)
	assert.Equal(t, "u1", sub.Slots[0].Claimant)
}

func TestSubjectService_BookRules(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 3)
	require.NoError(t, err)
	_, err = svc.Book(ctx, "math", 1, "u1")
	require.NoError(t, err)

	t.Run("AlreadyBooked", func(t *testing.T) {
		_, err := svc.Book(ctx, "math", 3, "u1")
		assert.ErrorIs(t, err, ErrAlreadyBooked)

		var conflict *BookingConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, 1, conflict.Slot, "reports the task already held")
	})

	t.Run("AlreadyBookedWinsOverTaken", func(t *testing.T) {
		_, err := svc.Book(ctx, "math", 1, "u1")
		assert.ErrorIs(t, err, ErrAlreadyBooked)
	})

	t.Run("SlotTaken", func(t *testing.T) {
		_, err := svc.Book(ctx, "math", 1, "u2")
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		for _, slot := range []int{0, -1, 4} {
			_, err := svc.Book(ctx, "math", slot, "u2")
			assert.ErrorIs(t, err, ErrInvalidArgument, "slot %d", slot)
		}
	})

	t.Run("EmptyClaimant", func(t *testing.T) {
		_, err := svc.Book(ctx, "math", 2, "  ")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		_, err := svc.Book(ctx, "physics", 1, "u2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InvalidUTF8Claimant", func(t *testing.T) {
		for _, claimant := range []string{"\xff", "\xfe", "u\xc3"} {
			_, err := svc.Book(ctx, "math", 2, claimant)
			assert.ErrorIs(t, err, ErrInvalidArgument, "%q", claimant)
		}
	})

	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, []model.Slot{{Index: 1, Claimant: "u1"}, {Index: 2}, {Index: 3}}, sub.Slots, "failed bookings change nothing")
}

func TestSubjectService_ClaimantsSurviveRoundTrip(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	claimants := []string{"пользователь", "学生", "😀 emoji", `quote"d\slash`, "tab\tsep", "\u00e9", "e\u0301"}
	_, err := svc.Create(ctx, "math", len(claimants))
	require.NoError(t, err)
	for i, c := range claimants {
		_, err := svc.Book(ctx, "math", i+1, c)
		require.NoError(t, err, "%q", c)
	}

	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	for i, c := range claimants {
		assert.Equal(t, c, sub.Slots[i].Claimant)
	}

	// Precomposed and decomposed "é" stay distinct after a reload.
	var conflict *BookingConflictError
	_, err = svc.Book(ctx, "math", 1, "e\u0301")
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 7, conflict.Slot)
}

func TestSubjectService_InvalidClaimantsLeaveRecordReadable(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 3)
	require.NoError(t, err)
	_, err = svc.Book(ctx, "math", 1, "\xff")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.Book(ctx, "math", 2, "\xfe")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Book(ctx, "math", 3, "u3")
	require.NoError(t, err)
	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, []model.Slot{{Index: 1}, {Index: 2}, {Index: 3, Claimant: "u3"}}, sub.Slots)
}

func TestSubjectService_ListFreeVerbose(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 3)
	require.NoError(t, err)
	_, err = svc.Book(ctx, "math", 2, "u1")
	require.NoError(t, err)

	all, err := svc.ListFree(ctx, "math", true)
	require.NoError(t, err)
	assert.Equal(t, []model.Slot{{Index: 1}, {Index: 2, Claimant: "u1"}, {Index: 3}}, all)

	free, err := svc.ListFree(ctx, "math", false)
	require.NoError(t, err)
	assert.Equal(t, []model.Slot{{Index: 1}, {Index: 3}}, free)
}

func TestSubjectService_DeleteThenRead(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "math"))

	_, err = svc.Read(ctx, "math")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "math"), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "../math"), ErrNotFound)

	_, err = svc.Create(ctx, "math", 4)
	require.NoError(t, err, "name is reusable after delete")
}

func TestSubjectService_ConcurrentBookingsLoseNothing(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	const n = 32
	_, err := svc.Create(ctx, "math", n)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := svc.Book(ctx, "math", slot, fmt.Sprintf("u%d", slot))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	for i, slot := range sub.Slots {
		assert.Equal(t, fmt.Sprintf("u%d", i+1), slot.Claimant)
	}
	assert.Zero(t, svc.locks.Len(), "lock table drained")
}

func TestSubjectService_ConcurrentSameClaimant(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	const n = 16
	_, err := svc.Create(ctx, "math", n)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := svc.Book(ctx, "math", slot, "u1")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyBooked)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, n-1, sub.FreeCount())
}

func TestSubjectService_CancelledBeforeWrite(t *testing.T) {
	svc, _, _ := newSubjectService(t)

	_, err := svc.Create(context.Background(), "math", 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Book(ctx, "math", 1, "u1")
	require.Error(t, err)
	assert.Equal(t, KindStorageIO, KindOf(err))

	sub, err := svc.Read(context.Background(), "math")
	require.NoError(t, err)
	assert.Equal(t, 2, sub.FreeCount())
}

func TestSubjectService_LockWaitHonoursContext(t *testing.T) {
	svc, _, _ := newSubjectService(t)

	_, err := svc.Create(context.Background(), "math", 2)
	require.NoError(t, err)

	unlock, err := svc.locks.Lock(context.Background(), "math")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = svc.Book(ctx, "math", 1, "u1")
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubjectService_WriteFailure(t *testing.T) {
	repo, _ := newFileRepo(t)
	failing := &failingRepository{RecordRepository: repo}
	pub := &recordingPublisher{}
	svc := NewSubjectService(failing, pub, 10, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 2)
	require.NoError(t, err)

	failing.replaceErr = errors.New("disk full")
	_, err = svc.Book(ctx, "math", 1, "u1")
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.Len(t, pub.snapshot(), 1, "no event for a failed booking")

	failing.replaceErr = nil
	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, 2, sub.FreeCount())
}

func TestSubjectService_CorruptRecord(t *testing.T) {
	svc, _, root := newSubjectService(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "math.json"), []byte(`{"1":`), 0o644))

	_, err := svc.Read(ctx, "math")
	assert.ErrorIs(t, err, ErrStorageIO)

	_, err = svc.Book(ctx, "math", 1, "u1")
	assert.ErrorIs(t, err, ErrStorageIO)
}

func TestSubjectService_LegacyRecord(t *testing.T) {
	svc, _, root := newSubjectService(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "math.json"), []byte(`{"1": null, "2": 123456789, "3": null}`), 0o644))

	_, err := svc.Book(ctx, "math", 3, "123456789")
	assert.ErrorIs(t, err, ErrAlreadyBooked)

	_, err = svc.Book(ctx, "math", 3, "u2")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "math.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"1":null,"2":"123456789","3":"u2"}`, string(data))
}

func TestSubjectService_PublishesEvents(t *testing.T) {
	svc, pub, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 2)
	require.NoError(t, err)
	_, err = svc.Book(ctx, "math", 2, "u1")
	require.NoError(t, err)
	_, err = svc.Book(ctx, "math", 1, "u1")
	require.Error(t, err)
	require.NoError(t, svc.Delete(ctx, "math"))

	events := pub.snapshot()
	require.Len(t, events, 3)

	assert.Equal(t, model.EventSubjectCreated, events[0].Type)
	assert.Equal(t, 2, events[0].Capacity)

	assert.Equal(t, model.EventSlotBooked, events[1].Type)
	assert.Equal(t, "math", events[1].Subject)
	assert.Equal(t, 2, events[1].Slot)
	assert.Equal(t, "u1", events[1].Claimant)

	assert.Equal(t, model.EventSubjectDeleted, events[2].Type)

	for _, evt := range events {
		assert.NotEmpty(t, evt.ID)
		assert.False(t, evt.At.IsZero())
	}
}

func TestSubjectService_PublishFailureKeepsMutation(t *testing.T) {
	svc, pub, _ := newSubjectService(t)
	pub.err = errors.New("redis down")
	ctx := context.Background()

	_, err := svc.Create(ctx, "math", 1)
	require.NoError(t, err)
	_, err = svc.Book(ctx, "math", 1, "u1")
	require.NoError(t, err)

	sub, err := svc.Read(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, "u1", sub.Slots[0].Claimant)
}
