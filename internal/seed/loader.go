package seed

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"storeledger/internal/models"
)

// Record is one row of a catalog seed file. Price is in display units
// (e.g. "12.99"); conversion to the smallest currency unit happens here,
// in the loader, never in the ledger core.
type Record struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Rating      uint64          `json:"rating"`
	Stock       uint64          `json:"stock"`
	Description string          `json:"description"`
}

// Load parses a JSON array of records from r.
func Load(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return records, nil
}

// CatalogEntry converts the record into a catalog entry, shifting the
// display-unit price by minorUnits decimal places (2 for cent-based
// currencies). The shifted price must be a whole non-negative number.
func (r Record) CatalogEntry(minorUnits int32) (models.CatalogEntry, error) {
	shifted := r.Price.Shift(minorUnits)
	if shifted.Sign() < 0 {
		return models.CatalogEntry{}, fmt.Errorf("record %d: negative price %s", r.ID, r.Price)
	}
	if !shifted.IsInteger() {
		return models.CatalogEntry{}, fmt.Errorf("record %d: price %s has sub-unit precision", r.ID, r.Price)
	}
	price := shifted.BigInt()
	if !price.IsUint64() {
		return models.CatalogEntry{}, fmt.Errorf("record %d: price %s out of range", r.ID, r.Price)
	}

	return models.CatalogEntry{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		Image:       r.Image,
		Description: r.Description,
		Price:       price.Uint64(),
		Rating:      r.Rating,
		Stock:       r.Stock,
	}, nil
}
