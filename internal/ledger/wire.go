package ledger

import (
	"encoding/json"
	"strconv"
)

// The wire encoding follows one rule throughout: 128-bit and 64-bit
// fields travel as decimal strings, 32-bit and narrower fields as plain
// JSON numbers.

type accountJSON struct {
	ID             string `json:"id"`
	UserData128    string `json:"user_data_128"`
	UserData64     string `json:"user_data_64"`
	UserData32     uint32 `json:"user_data_32"`
	Ledger         uint32 `json:"ledger"`
	Code           uint16 `json:"code"`
	Flags          uint16 `json:"flags"`
	DebitsPending  string `json:"debits_pending"`
	DebitsPosted   string `json:"debits_posted"`
	CreditsPending string `json:"credits_pending"`
	CreditsPosted  string `json:"credits_posted"`
	Timestamp      string `json:"timestamp"`
}

func (a Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountJSON{
		ID:             a.ID.String(),
		UserData128:    a.UserData128.String(),
		UserData64:     strconv.FormatUint(a.UserData64, 10),
		UserData32:     a.UserData32,
		Ledger:         a.Ledger,
		Code:           a.Code,
		Flags:          a.Flags,
		DebitsPending:  a.DebitsPending.String(),
		DebitsPosted:   a.DebitsPosted.String(),
		CreditsPending: a.CreditsPending.String(),
		CreditsPosted:  a.CreditsPosted.String(),
		Timestamp:      strconv.FormatUint(a.Timestamp, 10),
	})
}

type transferJSON struct {
	ID              string `json:"id"`
	DebitAccountID  string `json:"debit_account_id"`
	CreditAccountID string `json:"credit_account_id"`
	Amount          string `json:"amount"`
	PendingID       string `json:"pending_id"`
	UserData128     string `json:"user_data_128"`
	UserData64      string `json:"user_data_64"`
	UserData32      uint32 `json:"user_data_32"`
	Timeout         uint32 `json:"timeout"`
	Ledger          uint32 `json:"ledger"`
	Code            uint16 `json:"code"`
	Flags           uint16 `json:"flags"`
	Timestamp       string `json:"timestamp"`
}

func (t Transfer) MarshalJSON() ([]byte, error) {
	return json.Marshal(transferJSON{
		ID:              t.ID.String(),
		DebitAccountID:  t.DebitAccountID.String(),
		CreditAccountID: t.CreditAccountID.String(),
		Amount:          t.Amount.String(),
		PendingID:       t.PendingID.String(),
		UserData128:     t.UserData128.String(),
		UserData64:      strconv.FormatUint(t.UserData64, 10),
		UserData32:      t.UserData32,
		Timeout:         t.Timeout,
		Ledger:          t.Ledger,
		Code:            t.Code,
		Flags:           t.Flags,
		Timestamp:       strconv.FormatUint(t.Timestamp, 10),
	})
}

type accountBalanceJSON struct {
	DebitsPending  string `json:"debits_pending"`
	DebitsPosted   string `json:"debits_posted"`
	CreditsPending string `json:"credits_pending"`
	CreditsPosted  string `json:"credits_posted"`
	Timestamp      string `json:"timestamp"`
}

func (b AccountBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountBalanceJSON{
		DebitsPending:  b.DebitsPending.String(),
		DebitsPosted:   b.DebitsPosted.String(),
		CreditsPending: b.CreditsPending.String(),
		CreditsPosted:  b.CreditsPosted.String(),
		Timestamp:      strconv.FormatUint(b.Timestamp, 10),
	})
}
