// Package ledger defines the engine-facing data model and the client
// contract used to reach the ledger engine. The engine itself owns
// storage, consensus and durability; the gateway only speaks to it
// through Client.
package ledger

import (
	"github.com/ledgergate/ledgergate/internal/codec"
)

// DefaultBatchLimit is the engine's native cap on events per batch.
// Client batches larger than this must be split before submission.
const DefaultBatchLimit = 8189

// Account flags.
const (
	AccountFlagLinked                     uint16 = 1 << iota // chained to the next event in the batch
	AccountFlagCreditsMustNotExceedDebits                    // 2
	AccountFlagDebitsMustNotExceedCredits                    // 4
	AccountFlagHistory                                       // 8, record balance snapshots per transfer
	AccountFlagImported                                      // 16, caller supplies the timestamp
)

// Transfer flags.
const (
	TransferFlagLinked          uint16 = 1 << iota // chained to the next event in the batch
	TransferFlagPending                            // 2, reserve funds until posted or voided
	TransferFlagPostPending                        // 4, post a previously pending transfer
	TransferFlagVoidPending                        // 8, void a previously pending transfer
	TransferFlagImported                           // 16
	TransferFlagBalancingDebit                     // 32
	TransferFlagBalancingCredit                    // 64
)

// AccountFilter flags.
const (
	FilterFlagDebits   uint32 = 1 << iota // include transfers debiting the account
	FilterFlagCredits                     // include transfers crediting the account
	FilterFlagReversed                    // newest first
)

// Account is the engine's account record. Balance counters are
// maintained by the engine and must be zero on creation.
type Account struct {
	ID             codec.Uint128
	DebitsPending  codec.Uint128
	DebitsPosted   codec.Uint128
	CreditsPending codec.Uint128
	CreditsPosted  codec.Uint128
	UserData128    codec.Uint128
	UserData64     uint64
	UserData32     uint32
	Reserved       uint32
	Ledger         uint32
	Code           uint16
	Flags          uint16
	Timestamp      uint64
}

// Transfer is the engine's transfer record.
type Transfer struct {
	ID              codec.Uint128
	DebitAccountID  codec.Uint128
	CreditAccountID codec.Uint128
	Amount          codec.Uint128
	PendingID       codec.Uint128
	UserData128     codec.Uint128
	UserData64      uint64
	UserData32      uint32
	Timeout         uint32
	Ledger          uint32
	Code            uint16
	Flags           uint16
	Timestamp       uint64
}

// AccountBalance is a point-in-time balance snapshot, available for
// accounts created with the history flag.
type AccountBalance struct {
	DebitsPending  codec.Uint128
	DebitsPosted   codec.Uint128
	CreditsPending codec.Uint128
	CreditsPosted  codec.Uint128
	Timestamp      uint64
}

// AccountFilter scopes balance and transfer-history queries to a single
// account. Zero-valued fields are wildcards; TimestampMax zero means no
// upper bound.
type AccountFilter struct {
	AccountID    codec.Uint128
	UserData128  codec.Uint128
	UserData64   uint64
	UserData32   uint32
	Code         uint16
	TimestampMin uint64
	TimestampMax uint64
	Limit        uint32
	Flags        uint32
}

// QueryFilter matches accounts or transfers by indexed fields.
// Zero-valued fields are wildcards.
type QueryFilter struct {
	UserData128  codec.Uint128
	UserData64   uint64
	UserData32   uint32
	Ledger       uint32
	Code         uint16
	TimestampMin uint64
	TimestampMax uint64
	Limit        uint32
	Flags        uint32
}
