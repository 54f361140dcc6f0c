package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storeledger/internal/interfaces"
	"storeledger/internal/models"
	"storeledger/internal/models/events"
)

// OverpaymentPolicy controls what happens to payment in excess of the
// list price on a purchase.
type OverpaymentPolicy int

const (
	// OverpaymentRetain keeps the full payment in custody. This matches
	// the original contract behaviour: the excess is never refunded.
	OverpaymentRetain OverpaymentPolicy = iota
	// OverpaymentRefund keeps only the list price in custody; the excess
	// stays with the buyer.
	OverpaymentRefund
)

// Ledger is the store's state machine: one owner, a catalog, per-buyer
// order histories and a custody balance. All mutating calls are
// serialized by a single mutex, mirroring the run-to-completion
// execution model of the hosting platform.
type Ledger struct {
	owner       string
	store       interfaces.LedgerStore
	events      interfaces.EventPublisher
	funds       interfaces.FundsReceiver
	log         *slog.Logger
	now         func() time.Time
	overpayment OverpaymentPolicy

	mu sync.Mutex
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithOverpaymentPolicy overrides the default OverpaymentRetain policy.
func WithOverpaymentPolicy(p OverpaymentPolicy) Option {
	return func(l *Ledger) { l.overpayment = p }
}

// WithClock overrides the time source used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger overrides the logger used for notification failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// New constructs a Ledger owned by owner. The owner identity is fixed
// for the lifetime of the instance; there is no ownership transfer.
// events may be nil, in which case no notifications are emitted.
func New(owner string, store interfaces.LedgerStore, events interfaces.EventPublisher, funds interfaces.FundsReceiver, opts ...Option) *Ledger {
	l := &Ledger{
		owner:  owner,
		store:  store,
		events: events,
		funds:  funds,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Owner returns the fixed owner identity.
func (l *Ledger) Owner() string {
	return l.owner
}

// List upserts a catalog entry, fully replacing any prior entry with the
// same id. Only the owner may list. Re-listing an id does not reconcile
// against units already sold; historical orders keep their snapshots.
func (l *Ledger) List(ctx context.Context, caller string, entry models.CatalogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrUnauthorized
	}

	if err := l.store.PutCatalogEntry(ctx, entry); err != nil {
		return fmt.Errorf("save catalog entry: %w", err)
	}

	l.publish(events.TopicCatalogListed, events.CatalogListed{
		ItemID:     entry.ID,
		Name:       entry.Name,
		Price:      entry.Price,
		Stock:      entry.Stock,
		OccurredAt: l.now().UTC(),
	})
	return nil
}

// Purchase buys one unit of item id for buyer, escrowing payment into
// custody. Preconditions are checked in order: the item must have been
// listed, payment must cover the price, and stock must remain. On any
// failure no state changes and no funds are retained. On success the
// new per-buyer order number is returned, starting at 1.
func (l *Ledger) Purchase(ctx context.Context, buyer string, id uint64, payment uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, found, err := l.store.GetCatalogEntry(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load catalog entry: %w", err)
	}
	if !found {
		return 0, ErrUnknownItem
	}
	if payment < entry.Price {
		return 0, ErrInsufficientPayment
	}
	if entry.Stock == 0 {
		return 0, ErrOutOfStock
	}

	retained := payment
	if l.overpayment == OverpaymentRefund {
		retained = entry.Price
	}

	count, err := l.store.OrderCount(ctx, buyer)
	if err != nil {
		return 0, fmt.Errorf("load order count: %w", err)
	}
	number := count + 1

	// The order snapshots the entry before the decrement; the stored
	// catalog row gets the decremented stock.
	order := models.Order{
		Buyer:     buyer,
		Number:    number,
		CreatedAt: l.now().UTC(),
		Item:      entry,
	}
	updated := entry
	updated.Stock--

	if err := l.store.RecordPurchase(ctx, updated, order, retained); err != nil {
		return 0, fmt.Errorf("record purchase: %w", err)
	}

	l.publish(events.TopicOrderPurchased, events.OrderPurchased{
		Buyer:       buyer,
		OrderNumber: number,
		ItemID:      id,
		OccurredAt:  order.CreatedAt,
	})
	return number, nil
}

// Withdraw sweeps the entire custody balance to the owner's account.
// Only the owner may withdraw. Sweeping an empty balance is a valid
// no-op: no transfer is attempted and the call succeeds. If the
// receiver rejects the funds the operation fails with ErrTransferFailed
// and custody is unchanged.
func (l *Ledger) Withdraw(ctx context.Context, caller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrUnauthorized
	}

	amount, err := l.store.CustodyBalance(ctx)
	if err != nil {
		return fmt.Errorf("load custody balance: %w", err)
	}
	if amount == 0 {
		return nil
	}

	if err := l.funds.Credit(ctx, l.owner, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := l.store.DebitCustody(ctx, amount); err != nil {
		return fmt.Errorf("debit custody: %w", err)
	}
	return nil
}

// GetCatalogEntry returns the stored entry for id, or a zero-valued
// entry if id was never listed. Callable by anyone; no side effects.
func (l *Ledger) GetCatalogEntry(ctx context.Context, id uint64) (models.CatalogEntry, error) {
	entry, found, err := l.store.GetCatalogEntry(ctx, id)
	if err != nil {
		return models.CatalogEntry{}, fmt.Errorf("load catalog entry: %w", err)
	}
	if !found {
		return models.CatalogEntry{}, nil
	}
	return entry, nil
}

// GetOrder returns buyer's order with the given number.
func (l *Ledger) GetOrder(ctx context.Context, buyer string, number uint64) (models.Order, bool, error) {
	return l.store.GetOrder(ctx, buyer, number)
}

// OrdersByBuyer returns buyer's full order history in order-number order.
func (l *Ledger) OrdersByBuyer(ctx context.Context, buyer string) ([]models.Order, error) {
	return l.store.OrdersByBuyer(ctx, buyer)
}

// CustodyBalance returns the funds currently held pending withdrawal.
func (l *Ledger) CustodyBalance(ctx context.Context) (uint64, error) {
	return l.store.CustodyBalance(ctx)
}

// publish emits a notification. Notifications are non-blocking for
// callers: a publish failure is logged, never surfaced as an operation
// error, and never rolls back committed state.
func (l *Ledger) publish(topic string, event any) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(topic, event); err != nil {
		l.log.Error("publish event failed", "topic", topic, "error", err)
	}
}
