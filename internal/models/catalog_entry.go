package models

// CatalogEntry represents one listed item in the store catalog.
// IDs are assigned by the owner when listing, not generated here.
type CatalogEntry struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Image       string `json:"image"`       // opaque, carried but never interpreted
	Description string `json:"description"` // opaque, carried but never interpreted
	Price       uint64 `json:"price"`       // smallest currency unit
	Rating      uint64 `json:"rating"`
	Stock       uint64 `json:"stock"`
}
