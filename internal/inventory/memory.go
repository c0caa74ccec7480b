package inventory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryRepository keeps inventory in process. Transactions are serialised,
// which stands in for the row lock, and rolled back on error.
type MemoryRepository struct {
	mu           sync.Mutex
	purchases    map[string]Purchase
	lines        map[string]PurchaseLine
	consumptions []Consumption
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{purchases: map[string]Purchase{}, lines: map[string]PurchaseLine{}}
}

type memoryTx struct {
	purchases    map[string]Purchase
	lines        map[string]PurchaseLine
	consumptions []Consumption
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{
		purchases:    make(map[string]Purchase, len(m.purchases)),
		lines:        make(map[string]PurchaseLine, len(m.lines)),
		consumptions: append([]Consumption(nil), m.consumptions...),
	}
	for k, v := range m.purchases {
		tx.purchases[k] = v
	}
	for k, v := range m.lines {
		tx.lines[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.purchases, m.lines, m.consumptions = tx.purchases, tx.lines, tx.consumptions
	return nil
}

func (m *MemoryRepository) GetPurchase(_ context.Context, id string) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return Purchase{}, ErrPurchaseNotFound
	}
	var lines []PurchaseLine
	for _, l := range m.lines {
		if l.PurchaseID == id {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].LineNo < lines[j].LineNo })
	p.Lines = lines
	return p, nil
}

func (m *MemoryRepository) ListConsumptions(_ context.Context, lineID string) ([]Consumption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Consumption
	for _, c := range m.consumptions {
		if c.PurchaseLineID == lineID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertPurchase(_ context.Context, p Purchase) error {
	p.Lines = nil
	t.purchases[p.ID] = p
	return nil
}

func (t *memoryTx) InsertPurchaseLines(_ context.Context, purchaseID string, lines []PurchaseLine) error {
	p := t.purchases[purchaseID]
	for _, l := range lines {
		l.PurchaseID, l.CompanyID, l.Currency = purchaseID, p.CompanyID, p.Currency
		l.QuantityConsumed = decimal.Zero
		t.lines[l.ID] = l
	}
	return nil
}

func (t *memoryTx) GetLineForUpdate(_ context.Context, lineID string) (PurchaseLine, error) {
	l, ok := t.lines[lineID]
	if !ok {
		return PurchaseLine{}, ErrLineNotFound
	}
	return l, nil
}

func (t *memoryTx) AddConsumed(_ context.Context, lineID string, qty decimal.Decimal) error {
	l, ok := t.lines[lineID]
	if !ok {
		return ErrLineNotFound
	}
	l.QuantityConsumed = l.QuantityConsumed.Add(qty)
	t.lines[lineID] = l
	return nil
}

func (t *memoryTx) InsertConsumption(_ context.Context, c Consumption) error {
	t.consumptions = append(t.consumptions, c)
	return nil
}
