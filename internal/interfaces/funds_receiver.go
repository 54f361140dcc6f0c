package interfaces

import "context"

// FundsReceiver is the external transfer leg of a withdrawal. A non-nil
// error means the recipient rejected the funds and the withdrawal must
// abort with custody unchanged.
type FundsReceiver interface {
	Credit(ctx context.Context, account string, amount uint64) error
}
