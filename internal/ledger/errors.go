package ledger

import "errors"

var (
	// ErrUnauthorized indicates the caller is not the store owner.
	ErrUnauthorized = errors.New("caller is not the owner")
	// ErrUnknownItem indicates a purchase against an id that was never listed.
	ErrUnknownItem = errors.New("item was never listed")
	// ErrInsufficientPayment indicates the attached payment is below the item price.
	ErrInsufficientPayment = errors.New("payment below item price")
	// ErrOutOfStock indicates the item has no remaining stock.
	ErrOutOfStock = errors.New("item out of stock")
	// ErrTransferFailed indicates the funds release to the owner was rejected.
	ErrTransferFailed = errors.New("funds transfer to owner failed")
)
