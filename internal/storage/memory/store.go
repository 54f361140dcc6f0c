package memory

import (
	"context"
	"errors"
	"sync"

	"storeledger/internal/interfaces"
	"storeledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of
// interfaces.LedgerStore. It is safe for concurrent use; every method
// takes the store mutex, so RecordPurchase commits all of its effects
// in one critical section.
type MemoryLedgerStore struct {
	mu      sync.Mutex
	catalog map[uint64]models.CatalogEntry
	orders  map[string][]models.Order // per buyer, index i holds order number i+1
	counts  map[string]uint64
	custody uint64
}

// NewMemoryLedgerStore creates an empty store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		catalog: make(map[uint64]models.CatalogEntry),
		orders:  make(map[string][]models.Order),
		counts:  make(map[string]uint64),
	}
}

func (m *MemoryLedgerStore) PutCatalogEntry(ctx context.Context, entry models.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.catalog[entry.ID] = entry
	return nil
}

func (m *MemoryLedgerStore) GetCatalogEntry(ctx context.Context, id uint64) (models.CatalogEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, found := m.catalog[id]
	return entry, found, nil
}

func (m *MemoryLedgerStore) RecordPurchase(ctx context.Context, entry models.CatalogEntry, order models.Order, payment uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.Number != m.counts[order.Buyer]+1 {
		return errors.New("order number out of sequence")
	}

	m.catalog[entry.ID] = entry
	m.orders[order.Buyer] = append(m.orders[order.Buyer], order)
	m.counts[order.Buyer] = order.Number
	m.custody += payment
	return nil
}

func (m *MemoryLedgerStore) GetOrder(ctx context.Context, buyer string, number uint64) (models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.orders[buyer]
	if number == 0 || number > uint64(len(history)) {
		return models.Order{}, false, nil
	}
	return history[number-1], true, nil
}

func (m *MemoryLedgerStore) OrdersByBuyer(ctx context.Context, buyer string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// return a copy so callers cannot modify internal state
	copied := make([]models.Order, len(m.orders[buyer]))
	copy(copied, m.orders[buyer])
	return copied, nil
}

func (m *MemoryLedgerStore) OrderCount(ctx context.Context, buyer string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counts[buyer], nil
}

func (m *MemoryLedgerStore) CustodyBalance(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.custody, nil
}

func (m *MemoryLedgerStore) DebitCustody(ctx context.Context, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount > m.custody {
		return errors.New("debit exceeds custody balance")
	}
	m.custody -= amount
	return nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore.
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
