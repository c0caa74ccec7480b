package journals

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

// MemoryRepository keeps journals in process. A failed transaction restores
// the state it started from.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]JournalEntry
	seq     map[uuid.UUID]int
	next    int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: map[uuid.UUID]JournalEntry{}, seq: map[uuid.UUID]int{}}
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return m.Tx(func(tx *MemoryTx) error { return fn(ctx, tx) })
}

// Tx runs fn with exclusive access. Stores coordinating several in-memory
// repositories call it from their own WithTx.
func (m *MemoryRepository) Tx(fn func(*MemoryTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make(map[uuid.UUID]JournalEntry, len(m.entries))
	for id, entry := range m.entries {
		entries[id] = entry
	}
	seq := make(map[uuid.UUID]int, len(m.seq))
	for id, n := range m.seq {
		seq[id] = n
	}
	next := m.next
	if err := fn(&MemoryTx{repo: m}); err != nil {
		m.entries, m.seq, m.next = entries, seq, next
		return err
	}
	return nil
}

func (m *MemoryRepository) ListBySource(_ context.Context, sourceType, sourceID string) ([]JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterLocked(func(e JournalEntry) bool {
		return e.SourceDocumentType == sourceType && e.SourceDocumentID == sourceID
	}), nil
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return entry, nil
}

// All returns every stored entry in insertion order.
func (m *MemoryRepository) All() []JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterLocked(func(JournalEntry) bool { return true })
}

func (m *MemoryRepository) filterLocked(keep func(JournalEntry) bool) []JournalEntry {
	var out []JournalEntry
	for _, entry := range m.entries {
		if keep(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out
}

// MemoryTx is the transactional view handed to WithTx callbacks.
type MemoryTx struct {
	repo *MemoryRepository
}

func (t *MemoryTx) InsertJournalEntry(_ context.Context, entry JournalEntry) error {
	if _, exists := t.repo.entries[entry.ID]; exists {
		return shared.ErrSourceConflict
	}
	entry.Lines = nil
	t.repo.entries[entry.ID] = entry
	t.repo.next++
	t.repo.seq[entry.ID] = t.repo.next
	return nil
}

func (t *MemoryTx) InsertJournalLines(_ context.Context, entryID uuid.UUID, lines []JournalLine) error {
	entry, ok := t.repo.entries[entryID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	entry.Lines = append(append([]JournalLine(nil), entry.Lines...), lines...)
	t.repo.entries[entryID] = entry
	return nil
}

func (t *MemoryTx) DeleteBySource(_ context.Context, sourceType, sourceID string) ([]uuid.UUID, error) {
	return t.delete(func(e JournalEntry) bool {
		return e.SourceDocumentType == sourceType && e.SourceDocumentID == sourceID
	}), nil
}

func (t *MemoryTx) DeleteByEvent(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	return t.delete(func(e JournalEntry) bool {
		return e.EventID != nil && *e.EventID == eventID
	}), nil
}

func (t *MemoryTx) delete(match func(JournalEntry) bool) []uuid.UUID {
	var ids []uuid.UUID
	for _, entry := range t.repo.filterLocked(match) {
		delete(t.repo.entries, entry.ID)
		delete(t.repo.seq, entry.ID)
		ids = append(ids, entry.ID)
	}
	return ids
}
