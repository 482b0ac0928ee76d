package state

import (
	"context"
	"sync"
	"time"

	"github.com/ctxmetab/kernel/schema"
)

// TurnRecord is one append-only audit journal entry (spec.md §3).
type TurnRecord struct {
	Initial    []schema.Message
	Responses  []schema.Message
	RecordedAt time.Time
}

// JournalSink lets a caller persist completed turns outside the kernel's
// own in-memory ring. spec.md's Non-goals rule out persistent storage of
// conversations, so the default sink never touches disk; the interface
// exists the way the teacher exposes a pluggable Checkpointer
// (context/engine/checkpoint.go) without mandating a backend.
type JournalSink interface {
	Append(ctx context.Context, rec TurnRecord) error
	Records(ctx context.Context) ([]TurnRecord, error)
	Reset(ctx context.Context) error
}

// InMemoryJournal is the default JournalSink: an append-only slice guarded
// by a mutex, optionally capped (see NewInMemoryJournal) to bound growth
// across a very long run; the Kernel's default instance is unbounded.
type InMemoryJournal struct {
	mu      sync.RWMutex
	records []TurnRecord
	maxSize int
}

// NewInMemoryJournal constructs a journal capped at maxSize records (0 means
// unbounded).
func NewInMemoryJournal(maxSize int) *InMemoryJournal {
	return &InMemoryJournal{maxSize: maxSize}
}

func (j *InMemoryJournal) Append(_ context.Context, rec TurnRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = append(j.records, rec)
	if j.maxSize > 0 && len(j.records) > j.maxSize {
		j.records = j.records[len(j.records)-j.maxSize:]
	}
	return nil
}

func (j *InMemoryJournal) Records(_ context.Context) ([]TurnRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]TurnRecord, len(j.records))
	copy(out, j.records)
	return out, nil
}

func (j *InMemoryJournal) Reset(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = nil
	return nil
}
