package events

import "time"

// Topics the ledger publishes to.
const (
	TopicCatalogListed  = "catalog_listed"
	TopicOrderPurchased = "order_purchased"
)

// CatalogListed is emitted after an owner lists (or re-lists) an item.
type CatalogListed struct {
	ItemID     uint64    `json:"item_id"`
	Name       string    `json:"name"`
	Price      uint64    `json:"price"`
	Stock      uint64    `json:"stock"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderPurchased is emitted after a purchase commits.
type OrderPurchased struct {
	Buyer       string    `json:"buyer"`
	OrderNumber uint64    `json:"order_number"`
	ItemID      uint64    `json:"item_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}
