package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeledger/internal/models"
	"storeledger/internal/models/events"
	"storeledger/internal/storage/memory"
)

const testOwner = "owner-1"

type capturePublisher struct {
	topics  []string
	payload []any
	err     error
}

func (c *capturePublisher) Publish(topic string, event any) error {
	if c.err != nil {
		return c.err
	}
	c.topics = append(c.topics, topic)
	c.payload = append(c.payload, event)
	return nil
}

type fakeReceiver struct {
	credits []uint64
	err     error
}

func (f *fakeReceiver) Credit(ctx context.Context, account string, amount uint64) error {
	if f.err != nil {
		return f.err
	}
	f.credits = append(f.credits, amount)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
}

type fixture struct {
	ledger    *Ledger
	store     *memory.MemoryLedgerStore
	publisher *capturePublisher
	receiver  *fakeReceiver
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		store:     memory.NewMemoryLedgerStore(),
		publisher: &capturePublisher{},
		receiver:  &fakeReceiver{},
	}
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	f.ledger = New(testOwner, f.store, f.publisher, f.receiver, opts...)
	return f
}

func widget(stock uint64) models.CatalogEntry {
	return models.CatalogEntry{
		ID:          1,
		Name:        "Widget",
		Category:    "tools",
		Image:       "ipfs://widget.png",
		Description: "a widget",
		Price:       100,
		Rating:      4,
		Stock:       stock,
	}
}

func TestList_UpsertsEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	got, err := f.ledger.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, widget(5), got)
}

func TestList_ReplacesPriorEntryWholesale(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	// Re-list the same id with every field different; nothing from the
	// first listing may survive.
	replacement := models.CatalogEntry{ID: 1, Name: "Gadget", Price: 250, Stock: 2}
	require.NoError(t, f.ledger.List(ctx, testOwner, replacement))

	got, err := f.ledger.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, replacement, got)
	assert.Empty(t, got.Category, "fields absent from the replacement must not be merged in")
}

func TestList_Unauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	err := f.ledger.List(ctx, "mallory", widget(5))
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := f.ledger.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.CatalogEntry{}, got)
}

func TestList_EmitsListedEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	require.Len(t, f.publisher.topics, 1)
	assert.Equal(t, events.TopicCatalogListed, f.publisher.topics[0])
	listed, ok := f.publisher.payload[0].(events.CatalogListed)
	require.True(t, ok)
	assert.Equal(t, uint64(1), listed.ItemID)
	assert.Equal(t, "Widget", listed.Name)
	assert.Equal(t, uint64(100), listed.Price)
	assert.Equal(t, uint64(5), listed.Stock)
}

func TestGetCatalogEntry_ZeroValueWhenNeverListed(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	got, err := f.ledger.GetCatalogEntry(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.CatalogEntry{}, got)
}

func TestPurchase_Succeeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	number, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), number)

	got, err := f.ledger.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Stock)

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance)

	order, found, err := f.ledger.GetOrder(ctx, "alice", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, fixedClock(), order.CreatedAt)
	assert.Equal(t, widget(5), order.Item, "order snapshots the entry before the decrement")
}

func TestPurchase_UnknownItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.ledger.Purchase(ctx, "alice", 7, 100)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestPurchase_InsufficientPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	_, err := f.ledger.Purchase(ctx, "alice", 1, 99)
	assert.ErrorIs(t, err, ErrInsufficientPayment)
}

func TestPurchase_OutOfStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(0)))

	_, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestPurchase_PreconditionOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(0)))

	// Both payment and stock are wrong; payment is checked first.
	_, err := f.ledger.Purchase(ctx, "alice", 1, 1)
	assert.ErrorIs(t, err, ErrInsufficientPayment)
}

func TestPurchase_FailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))
	_, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)

	snapshotEntry, err := f.ledger.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	snapshotBalance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	snapshotOrders, err := f.ledger.OrdersByBuyer(ctx, "alice")
	require.NoError(t, err)

	for _, attempt := range []struct {
		name    string
		id      uint64
		payment uint64
		want    error
	}{
		{"unknown item", 9, 500, ErrUnknownItem},
		{"underpayment", 1, 10, ErrInsufficientPayment},
	} {
		_, err := f.ledger.Purchase(ctx, "alice", attempt.id, attempt.payment)
		require.ErrorIs(t, err, attempt.want, attempt.name)

		entry, err := f.ledger.GetCatalogEntry(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, snapshotEntry, entry, attempt.name)

		balance, err := f.ledger.CustodyBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshotBalance, balance, attempt.name)

		orders, err := f.ledger.OrdersByBuyer(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, snapshotOrders, orders, attempt.name)
	}
}

func TestPurchase_OrderNumberingPerBuyer(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(10)))

	// Interleave buyers; each keeps an independent gapless sequence.
	sequence := []struct {
		buyer string
		want  uint64
	}{
		{"alice", 1}, {"bob", 1}, {"alice", 2}, {"alice", 3}, {"bob", 2},
	}
	for _, step := range sequence {
		number, err := f.ledger.Purchase(ctx, step.buyer, 1, 100)
		require.NoError(t, err)
		assert.Equal(t, step.want, number, "buyer %s", step.buyer)
	}

	aliceOrders, err := f.ledger.OrdersByBuyer(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceOrders, 3)
	for i, order := range aliceOrders {
		assert.Equal(t, uint64(i+1), order.Number)
	}
}

func TestPurchase_SnapshotSurvivesRelisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))
	_, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)

	// Overwrite the listing; alice's receipt must still show the item
	// as it was sold.
	require.NoError(t, f.ledger.List(ctx, testOwner, models.CatalogEntry{ID: 1, Name: "Gadget", Price: 999, Stock: 1}))

	order, found, err := f.ledger.GetOrder(ctx, "alice", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Widget", order.Item.Name)
	assert.Equal(t, uint64(100), order.Item.Price)
}

func TestPurchase_OverpaymentRetainedByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	_, err := f.ledger.Purchase(ctx, "alice", 1, 130)
	require.NoError(t, err)

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(130), balance, "the excess is kept, not refunded")
}

func TestPurchase_OverpaymentRefundPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(WithOverpaymentPolicy(OverpaymentRefund))
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	_, err := f.ledger.Purchase(ctx, "alice", 1, 130)
	require.NoError(t, err)

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance, "only the list price is retained")
}

func TestPurchase_DrainsStockThenFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	for i := 0; i < 5; i++ {
		buyer := fmt.Sprintf("buyer-%d", i)
		_, err := f.ledger.Purchase(ctx, buyer, 1, 100)
		require.NoError(t, err)
	}

	entry, err := f.ledger.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), entry.Stock)

	_, err = f.ledger.Purchase(ctx, "buyer-5", 1, 100)
	assert.ErrorIs(t, err, ErrOutOfStock)

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance)
}

func TestPurchase_EmitsPurchasedEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	_, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)

	require.Len(t, f.publisher.topics, 2) // listed + purchased
	assert.Equal(t, events.TopicOrderPurchased, f.publisher.topics[1])
	purchased, ok := f.publisher.payload[1].(events.OrderPurchased)
	require.True(t, ok)
	assert.Equal(t, "alice", purchased.Buyer)
	assert.Equal(t, uint64(1), purchased.OrderNumber)
	assert.Equal(t, uint64(1), purchased.ItemID)
}

func TestPurchase_PublishFailureDoesNotFailCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))

	f.publisher.err = errors.New("broker unreachable")
	number, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), number)

	entry, err := f.ledger.GetCatalogEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), entry.Stock, "committed state stays committed")
}

func TestWithdraw_SweepsEntireBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))
	_, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)
	_, err = f.ledger.Purchase(ctx, "bob", 1, 150)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Withdraw(ctx, testOwner))

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
	assert.Equal(t, []uint64{250}, f.receiver.credits)
}

func TestWithdraw_EmptyBalanceIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.ledger.Withdraw(ctx, testOwner))
	assert.Empty(t, f.receiver.credits, "no transfer is attempted for an empty sweep")

	// Second immediate withdraw is equally fine.
	require.NoError(t, f.ledger.Withdraw(ctx, testOwner))
}

func TestWithdraw_Unauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))
	_, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)

	err = f.ledger.Withdraw(ctx, "mallory")
	assert.ErrorIs(t, err, ErrUnauthorized)

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance)
	assert.Empty(t, f.receiver.credits)
}

func TestWithdraw_TransferFailedKeepsCustody(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(5)))
	_, err := f.ledger.Purchase(ctx, "alice", 1, 100)
	require.NoError(t, err)

	f.receiver.err = errors.New("recipient rejected funds")
	err = f.ledger.Withdraw(ctx, testOwner)
	assert.ErrorIs(t, err, ErrTransferFailed)

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance, "a failed transfer must not move custody")
}

func TestCustodyConservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.ledger.List(ctx, testOwner, widget(10)))

	var received, withdrawn uint64
	payments := []uint64{100, 130, 100, 205}
	for i, payment := range payments {
		buyer := fmt.Sprintf("buyer-%d", i)
		_, err := f.ledger.Purchase(ctx, buyer, 1, payment)
		require.NoError(t, err)
		received += payment

		balance, err := f.ledger.CustodyBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, received-withdrawn, balance)
	}

	require.NoError(t, f.ledger.Withdraw(ctx, testOwner))
	withdrawn += received

	balance, err := f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, received-withdrawn, balance)

	// More purchases after the sweep keep the invariant.
	_, err = f.ledger.Purchase(ctx, "buyer-99", 1, 100)
	require.NoError(t, err)
	received += 100

	balance, err = f.ledger.CustodyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, received-withdrawn, balance)
}
