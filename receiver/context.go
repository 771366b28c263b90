package receiver

import (
	"context"

	"github.com/totegamma/ilp3"
)

type ctxKey string

const (
	accountCtxKey  ctxKey = "ilp3-account"
	transferCtxKey ctxKey = "ilp3-transfer"
)

// Account returns the identifier verified by the token stage.
func Account(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(accountCtxKey).(string)
	return account, ok
}

// TransferFrom returns the transfer produced by the extraction stage.
func TransferFrom(ctx context.Context) (*ilp3.Transfer, bool) {
	transfer, ok := ctx.Value(transferCtxKey).(*ilp3.Transfer)
	return transfer, ok
}
