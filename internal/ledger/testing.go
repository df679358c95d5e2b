package ledger

import "github.com/ledgergate/ledgergate/internal/codec"

// NewTestEngine returns an engine with a fixed timestamp origin so test
// assertions on engine-assigned timestamps stay stable.
func NewTestEngine() *Engine {
	e := newEngine()
	e.clock = 1_000
	return e
}

// TestAccount builds a minimal valid account create event.
func TestAccount(id uint64) Account {
	return Account{ID: codec.U128From64(id), Ledger: 1, Code: 718}
}

// TestTransfer builds a minimal valid transfer create event.
func TestTransfer(id, debit, credit, amount uint64) Transfer {
	return Transfer{
		ID:              codec.U128From64(id),
		DebitAccountID:  codec.U128From64(debit),
		CreditAccountID: codec.U128From64(credit),
		Amount:          codec.U128From64(amount),
		Ledger:          1,
		Code:            1,
	}
}
