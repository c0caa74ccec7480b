package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

// MemoryRepository keeps events in process and shares transactions with an
// in-memory journal repository.
type MemoryRepository struct {
	mu     sync.Mutex
	ledger *journals.MemoryRepository
	events map[uuid.UUID]Event
	order  []uuid.UUID
}

func NewMemoryRepository(ledger *journals.MemoryRepository) *MemoryRepository {
	return &MemoryRepository{ledger: ledger, events: map[uuid.UUID]Event{}}
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return Event{}, shared.ErrEventNotFound
	}
	return event, nil
}

func (m *MemoryRepository) ListBySource(_ context.Context, sourceType, sourceID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, id := range m.order {
		event := m.events[id]
		if event.SourceDocumentType == sourceType && event.SourceDocumentID == sourceID {
			out = append(out, event)
		}
	}
	return out, nil
}

// All returns every event in insertion order.
func (m *MemoryRepository) All() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.events[id])
	}
	return out
}

func (m *MemoryRepository) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return shared.ErrEventNotFound
	}
	if event.ProcessedAt == nil {
		event.PostError = message
		m.events[id] = event
	}
	return nil
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make(map[uuid.UUID]Event, len(m.events))
	for id, event := range m.events {
		events[id] = event
	}
	order := append([]uuid.UUID(nil), m.order...)
	err := m.ledger.Tx(func(jtx *journals.MemoryTx) error {
		return fn(ctx, &memoryTx{MemoryTx: jtx, repo: m})
	})
	if err != nil {
		m.events, m.order = events, order
	}
	return err
}

type memoryTx struct {
	*journals.MemoryTx
	repo *MemoryRepository
}

func (t *memoryTx) InsertEvent(_ context.Context, event Event) error {
	for _, existing := range t.repo.events {
		if existing.Active() && existing.Type.DedupKey() == event.Type.DedupKey() &&
			existing.SourceDocumentType == event.SourceDocumentType && existing.SourceDocumentID == event.SourceDocumentID {
			return &shared.DuplicateEventError{
				EventType:          string(event.Type),
				SourceDocumentType: event.SourceDocumentType,
				SourceDocumentID:   event.SourceDocumentID,
				ExistingEventID:    existing.ID.String(),
			}
		}
	}
	t.repo.events[event.ID] = event
	t.repo.order = append(t.repo.order, event.ID)
	return nil
}

func (t *memoryTx) FindActiveForUpdate(_ context.Context, eventType EventType, sourceType, sourceID string) (Event, error) {
	var matches []Event
	for _, event := range t.repo.events {
		if event.Active() && event.Type.DedupKey() == eventType.DedupKey() && event.SourceDocumentType == sourceType && event.SourceDocumentID == sourceID {
			matches = append(matches, event)
		}
	}
	if len(matches) == 0 {
		return Event{}, shared.ErrEventNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return matches[0], nil
}

func (t *memoryTx) VoidEvent(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	event, ok := t.repo.events[id]
	if !ok || !event.Active() {
		return shared.ErrEventNotFound
	}
	t.repo.events[id] = voided(event, reason, at)
	return nil
}

func (t *memoryTx) VoidBySource(_ context.Context, sourceType, sourceID, reason string, at time.Time) (int, error) {
	count := 0
	for id, event := range t.repo.events {
		if event.Active() && event.SourceDocumentType == sourceType && event.SourceDocumentID == sourceID {
			t.repo.events[id] = voided(event, reason, at)
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) MarkProcessed(_ context.Context, id uuid.UUID, journalEntryID *uuid.UUID, at time.Time) error {
	event, ok := t.repo.events[id]
	if !ok || !event.Active() || event.ProcessedAt != nil {
		return shared.ErrEventProcessed
	}
	event.ProcessedAt = &at
	event.JournalEntryID = journalEntryID
	event.PostError = ""
	t.repo.events[id] = event
	return nil
}

func voided(event Event, reason string, at time.Time) Event {
	event.VoidedAt = &at
	event.VoidReason = reason
	event.JournalEntryID = nil
	return event
}
