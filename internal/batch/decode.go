// Package batch turns decoded JSON payloads into engine-native batches:
// per-item validation with index-addressed errors, linked-chain
// planning, chain-aware chunking to the engine's batch limit, and
// merging per-chunk results back into one ordered response.
package batch

import (
	"encoding/json"

	"github.com/ledgergate/ledgergate/internal/codec"
	"github.com/ledgergate/ledgergate/internal/ledger"
)

func errOf(field, reason string) codec.ValidationError {
	return codec.ValidationError{Field: field, Reason: reason}
}

// fieldSet decodes one object into raw field tokens, reporting unknown
// keys so typos fail loudly instead of silently dropping a filter.
func fieldSet(raw json.RawMessage, known map[string]bool) (map[string]json.RawMessage, []codec.ValidationError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, []codec.ValidationError{errOf("", "item is not a JSON object")}
	}
	var errs []codec.ValidationError
	for name := range fields {
		if !known[name] {
			errs = append(errs, errOf(name, "unknown field"))
		}
	}
	return fields, errs
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 4 && string(raw) == "null"
}

var accountFields = map[string]bool{
	"id": true, "debits_pending": true, "debits_posted": true,
	"credits_pending": true, "credits_posted": true,
	"user_data_128": true, "user_data_64": true, "user_data_32": true,
	"reserved": true, "ledger": true, "code": true, "flags": true,
	"timestamp": true,
}

// decodeAccount decodes a single account create object, collecting every
// field error instead of stopping at the first.
func decodeAccount(raw json.RawMessage) (ledger.Account, []codec.ValidationError) {
	fields, errs := fieldSet(raw, accountFields)
	if fields == nil {
		return ledger.Account{}, errs
	}

	var a ledger.Account
	u128 := func(name string, dst *codec.Uint128, required bool) {
		tok, ok := fields[name]
		if !ok || isNull(tok) {
			if required {
				errs = append(errs, errOf(name, "required"))
			}
			return
		}
		v, err := codec.DecodeU128(name, tok)
		if err != nil {
			errs = append(errs, err.(codec.ValidationError))
			return
		}
		*dst = v
	}
	u128("id", &a.ID, true)
	u128("debits_pending", &a.DebitsPending, false)
	u128("debits_posted", &a.DebitsPosted, false)
	u128("credits_pending", &a.CreditsPending, false)
	u128("credits_posted", &a.CreditsPosted, false)
	u128("user_data_128", &a.UserData128, false)

	if tok, ok := fields["user_data_64"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("user_data_64", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			a.UserData64 = v
		}
	}
	if tok, ok := fields["user_data_32"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("user_data_32", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			a.UserData32 = v
		}
	}
	if tok, ok := fields["reserved"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("reserved", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			a.Reserved = v
		}
	}
	if tok, ok := fields["ledger"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("ledger", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			a.Ledger = v
		}
	} else {
		errs = append(errs, errOf("ledger", "required"))
	}
	if tok, ok := fields["code"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU16("code", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			a.Code = v
		}
	} else {
		errs = append(errs, errOf("code", "required"))
	}
	if tok, ok := fields["flags"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU16("flags", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			a.Flags = v
		}
	}
	if tok, ok := fields["timestamp"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("timestamp", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			a.Timestamp = v
		}
	}

	errs = append(errs, validateAccount(a, len(errs) == 0)...)
	return a, errs
}

// validateAccount enforces structural rules the engine would reject
// anyway; catching them here keeps invalid items off the wire. The
// checks that depend on fully decoded values only run when decoding
// produced no errors.
func validateAccount(a ledger.Account, decodedClean bool) []codec.ValidationError {
	if !decodedClean {
		return nil
	}
	var errs []codec.ValidationError
	if a.ID.IsZero() {
		errs = append(errs, errOf("id", "must not be zero"))
	}
	if a.Ledger == 0 {
		errs = append(errs, errOf("ledger", "must not be zero"))
	}
	if a.Code == 0 {
		errs = append(errs, errOf("code", "must not be zero"))
	}
	if !a.DebitsPending.IsZero() || !a.DebitsPosted.IsZero() ||
		!a.CreditsPending.IsZero() || !a.CreditsPosted.IsZero() {
		errs = append(errs, errOf("debits_pending", "balance counters must be zero on creation"))
	}
	if a.Reserved != 0 {
		errs = append(errs, errOf("reserved", "must be zero"))
	}
	if a.Flags&ledger.AccountFlagImported == 0 && a.Timestamp != 0 {
		errs = append(errs, errOf("timestamp", "must be zero unless the imported flag is set"))
	}
	return errs
}

var transferFields = map[string]bool{
	"id": true, "debit_account_id": true, "credit_account_id": true,
	"amount": true, "pending_id": true, "user_data_128": true,
	"user_data_64": true, "user_data_32": true, "timeout": true,
	"ledger": true, "code": true, "flags": true, "timestamp": true,
}

// decodeTransfer decodes a single transfer create object.
func decodeTransfer(raw json.RawMessage) (ledger.Transfer, []codec.ValidationError) {
	fields, errs := fieldSet(raw, transferFields)
	if fields == nil {
		return ledger.Transfer{}, errs
	}

	var t ledger.Transfer
	u128 := func(name string, dst *codec.Uint128, required bool) {
		tok, ok := fields[name]
		if !ok || isNull(tok) {
			if required {
				errs = append(errs, errOf(name, "required"))
			}
			return
		}
		v, err := codec.DecodeU128(name, tok)
		if err != nil {
			errs = append(errs, err.(codec.ValidationError))
			return
		}
		*dst = v
	}
	u128("id", &t.ID, true)
	u128("debit_account_id", &t.DebitAccountID, false)
	u128("credit_account_id", &t.CreditAccountID, false)
	u128("amount", &t.Amount, false)
	u128("pending_id", &t.PendingID, false)
	u128("user_data_128", &t.UserData128, false)

	if tok, ok := fields["user_data_64"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("user_data_64", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			t.UserData64 = v
		}
	}
	if tok, ok := fields["user_data_32"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("user_data_32", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			t.UserData32 = v
		}
	}
	if tok, ok := fields["timeout"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("timeout", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			t.Timeout = v
		}
	}
	if tok, ok := fields["ledger"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("ledger", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			t.Ledger = v
		}
	}
	if tok, ok := fields["code"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU16("code", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			t.Code = v
		}
	}
	if tok, ok := fields["flags"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU16("flags", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			t.Flags = v
		}
	}
	if tok, ok := fields["timestamp"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("timestamp", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			t.Timestamp = v
		}
	}

	errs = append(errs, validateTransfer(t, len(errs) == 0)...)
	return t, errs
}

func validateTransfer(t ledger.Transfer, decodedClean bool) []codec.ValidationError {
	if !decodedClean {
		return nil
	}
	var errs []codec.ValidationError
	if t.ID.IsZero() {
		errs = append(errs, errOf("id", "must not be zero"))
	}
	if t.Flags&ledger.TransferFlagImported == 0 && t.Timestamp != 0 {
		errs = append(errs, errOf("timestamp", "must be zero unless the imported flag is set"))
	}

	post := t.Flags&ledger.TransferFlagPostPending != 0
	void := t.Flags&ledger.TransferFlagVoidPending != 0
	pend := t.Flags&ledger.TransferFlagPending != 0
	if (post && void) || (pend && (post || void)) {
		errs = append(errs, errOf("flags", "pending, post_pending and void_pending are mutually exclusive"))
		return errs
	}
	if t.Timeout != 0 && !pend {
		errs = append(errs, errOf("timeout", "only valid on pending transfers"))
	}

	if post || void {
		// Post/void events reference a pending transfer and inherit its
		// accounts, amount, ledger and code.
		if t.PendingID.IsZero() {
			errs = append(errs, errOf("pending_id", "required when posting or voiding"))
		}
		return errs
	}

	if !t.PendingID.IsZero() {
		errs = append(errs, errOf("pending_id", "only valid when posting or voiding"))
	}
	if t.DebitAccountID.IsZero() {
		errs = append(errs, errOf("debit_account_id", "must not be zero"))
	}
	if t.CreditAccountID.IsZero() {
		errs = append(errs, errOf("credit_account_id", "must not be zero"))
	}
	if !t.DebitAccountID.IsZero() && t.DebitAccountID == t.CreditAccountID {
		errs = append(errs, errOf("credit_account_id", "must differ from debit_account_id"))
	}
	const balancing = ledger.TransferFlagBalancingDebit | ledger.TransferFlagBalancingCredit
	if t.Amount.IsZero() && t.Flags&balancing == 0 {
		errs = append(errs, errOf("amount", "must be positive"))
	}
	if t.Ledger == 0 {
		errs = append(errs, errOf("ledger", "must not be zero"))
	}
	if t.Code == 0 {
		errs = append(errs, errOf("code", "must not be zero"))
	}
	return errs
}

// DecodeIDs decodes a lookup body, a plain ordered list of id strings.
func DecodeIDs(raws []json.RawMessage) ([]codec.Uint128, []ItemResult) {
	ids := make([]codec.Uint128, len(raws))
	var bad []ItemResult
	for i, raw := range raws {
		v, err := codec.DecodeU128("id", raw)
		if err != nil {
			bad = append(bad, invalidItem(i, []codec.ValidationError{err.(codec.ValidationError)}))
			continue
		}
		ids[i] = v
	}
	return ids, bad
}

var accountFilterFields = map[string]bool{
	"account_id": true, "user_data_128": true, "user_data_64": true,
	"user_data_32": true, "code": true, "timestamp_min": true,
	"timestamp_max": true, "limit": true, "flags": true,
}

// DecodeAccountFilter decodes the body of a balances or account-history
// query. The limit is defaulted, must be positive, and is capped.
func DecodeAccountFilter(body []byte, defaultLimit, maxLimit uint32) (ledger.AccountFilter, []codec.ValidationError) {
	fields, errs := fieldSet(body, accountFilterFields)
	if fields == nil {
		return ledger.AccountFilter{}, errs
	}

	f := ledger.AccountFilter{Limit: defaultLimit}
	if tok, ok := fields["account_id"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU128("account_id", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.AccountID = v
		}
	} else {
		errs = append(errs, errOf("account_id", "required"))
	}
	if tok, ok := fields["user_data_128"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU128("user_data_128", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.UserData128 = v
		}
	}
	if tok, ok := fields["user_data_64"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("user_data_64", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.UserData64 = v
		}
	}
	if tok, ok := fields["user_data_32"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("user_data_32", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.UserData32 = v
		}
	}
	if tok, ok := fields["code"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU16("code", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.Code = v
		}
	}
	if tok, ok := fields["timestamp_min"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("timestamp_min", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.TimestampMin = v
		}
	}
	if tok, ok := fields["timestamp_max"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("timestamp_max", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.TimestampMax = v
		}
	}
	if tok, ok := fields["flags"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("flags", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.Flags = v
		}
	}
	if tok, ok := fields["limit"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("limit", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.Limit = v
		}
	}
	if err := checkLimit(f.Limit, maxLimit); err != nil {
		errs = append(errs, *err)
	}
	if f.TimestampMax != 0 && f.TimestampMin > f.TimestampMax {
		errs = append(errs, errOf("timestamp_min", "must not exceed timestamp_max"))
	}
	return f, errs
}

var queryFilterFields = map[string]bool{
	"ledger": true, "code": true, "user_data_128": true,
	"user_data_64": true, "user_data_32": true, "timestamp_min": true,
	"timestamp_max": true, "limit": true, "flags": true,
}

// DecodeQueryFilter decodes the body of an advanced account or transfer
// query.
func DecodeQueryFilter(body []byte, defaultLimit, maxLimit uint32) (ledger.QueryFilter, []codec.ValidationError) {
	fields, errs := fieldSet(body, queryFilterFields)
	if fields == nil {
		return ledger.QueryFilter{}, errs
	}

	f := ledger.QueryFilter{Limit: defaultLimit}
	if tok, ok := fields["ledger"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("ledger", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.Ledger = v
		}
	}
	if tok, ok := fields["code"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU16("code", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.Code = v
		}
	}
	if tok, ok := fields["user_data_128"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU128("user_data_128", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.UserData128 = v
		}
	}
	if tok, ok := fields["user_data_64"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("user_data_64", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.UserData64 = v
		}
	}
	if tok, ok := fields["user_data_32"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("user_data_32", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.UserData32 = v
		}
	}
	if tok, ok := fields["timestamp_min"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("timestamp_min", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.TimestampMin = v
		}
	}
	if tok, ok := fields["timestamp_max"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU64("timestamp_max", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.TimestampMax = v
		}
	}
	if tok, ok := fields["flags"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("flags", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.Flags = v
		}
	}
	if tok, ok := fields["limit"]; ok && !isNull(tok) {
		if v, err := codec.DecodeU32("limit", tok); err != nil {
			errs = append(errs, err.(codec.ValidationError))
		} else {
			f.Limit = v
		}
	}
	if err := checkLimit(f.Limit, maxLimit); err != nil {
		errs = append(errs, *err)
	}
	if f.TimestampMax != 0 && f.TimestampMin > f.TimestampMax {
		errs = append(errs, errOf("timestamp_min", "must not exceed timestamp_max"))
	}
	return f, errs
}

func checkLimit(limit, max uint32) *codec.ValidationError {
	if limit == 0 {
		e := errOf("limit", "must be positive")
		return &e
	}
	if limit > max {
		e := errOf("limit", "exceeds the configured maximum")
		return &e
	}
	return nil
}
