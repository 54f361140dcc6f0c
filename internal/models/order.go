package models

import "time"

// Order is an immutable receipt for one completed purchase.
// Numbers are sequential per buyer starting at 1. Item is a full value
// copy of the catalog entry as it stood at purchase time, so later
// re-listings cannot rewrite history.
type Order struct {
	Buyer     string       `json:"buyer"`
	Number    uint64       `json:"number"`
	CreatedAt time.Time    `json:"created_at"`
	Item      CatalogEntry `json:"item"`
}
