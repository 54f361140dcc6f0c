package interfaces

import (
	"context"

	"storeledger/internal/models"
)

// LedgerStore persists catalog entries, orders, per-buyer order counts
// and the custody balance. Implementations must make RecordPurchase and
// DebitCustody atomic: either every effect lands or none does.
type LedgerStore interface {
	// PutCatalogEntry upserts an entry, fully replacing any prior entry
	// with the same ID.
	PutCatalogEntry(ctx context.Context, entry models.CatalogEntry) error
	GetCatalogEntry(ctx context.Context, id uint64) (models.CatalogEntry, bool, error)

	// RecordPurchase commits one purchase as a unit: the decremented
	// catalog entry, the new order, the buyer's order count set to
	// order.Number, and payment added to custody.
	RecordPurchase(ctx context.Context, entry models.CatalogEntry, order models.Order, payment uint64) error
	GetOrder(ctx context.Context, buyer string, number uint64) (models.Order, bool, error)
	OrdersByBuyer(ctx context.Context, buyer string) ([]models.Order, error)
	OrderCount(ctx context.Context, buyer string) (uint64, error)

	CustodyBalance(ctx context.Context) (uint64, error)
	// DebitCustody reduces the custody balance by amount. The balance
	// must never go negative; debiting more than is held is an error.
	DebitCustody(ctx context.Context, amount uint64) error
}
