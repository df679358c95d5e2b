package ledger

import (
	"context"
	"errors"

	"github.com/ledgergate/ledgergate/internal/codec"
)

// ErrUnavailable indicates the engine could not be reached or did not
// answer within the call deadline. Callers must not retry create
// operations on this error: the engine may have applied the batch.
var ErrUnavailable = errors.New("ledger engine unavailable")

// AccountEventResult reports a rejected account create event. Events
// absent from the result slice were applied.
type AccountEventResult struct {
	Index  uint32
	Result CreateAccountResult
}

// TransferEventResult reports a rejected transfer create event.
type TransferEventResult struct {
	Index  uint32
	Result CreateTransferResult
}

// Client is the narrow contract against the ledger engine. Create calls
// return per-item rejections only; lookup calls return slices aligned
// with the requested ids, nil marking an id the engine does not know.
// All calls are synchronous and honor the context deadline.
type Client interface {
	CreateAccounts(ctx context.Context, accounts []Account) ([]AccountEventResult, error)
	CreateTransfers(ctx context.Context, transfers []Transfer) ([]TransferEventResult, error)
	LookupAccounts(ctx context.Context, ids []codec.Uint128) ([]*Account, error)
	LookupTransfers(ctx context.Context, ids []codec.Uint128) ([]*Transfer, error)
	GetAccountBalances(ctx context.Context, filter AccountFilter) ([]AccountBalance, error)
	GetAccountTransfers(ctx context.Context, filter AccountFilter) ([]Transfer, error)
	QueryAccounts(ctx context.Context, filter QueryFilter) ([]Account, error)
	QueryTransfers(ctx context.Context, filter QueryFilter) ([]Transfer, error)
	Close() error
}
