package batch

import (
	"encoding/json"
	"testing"

	"github.com/ledgergate/ledgergate/internal/ledger"
)

func rawItems(t *testing.T, items ...string) []json.RawMessage {
	t.Helper()
	raws := make([]json.RawMessage, len(items))
	for i, s := range items {
		raws[i] = json.RawMessage(s)
	}
	return raws
}

const validAccount = `{"id":"1","ledger":1,"code":718}`

func TestPlanAccountsValid(t *testing.T) {
	p := PlanAccounts(rawItems(t,
		`{"id":"1","ledger":1,"code":718}`,
		`{"id":"2","ledger":1,"code":718,"flags":8}`,
	), ledger.DefaultBatchLimit)

	if p.HasValidationErrors() {
		t.Fatalf("unexpected validation errors: %+v", p.Results())
	}
	for i, r := range p.Results() {
		if r.Status != StatusOK || r.Index != i {
			t.Fatalf("item %d: %+v", i, r)
		}
	}
	chunks := p.Chunks(ledger.DefaultBatchLimit)
	if len(chunks) != 1 || len(chunks[0].Accounts) != 2 {
		t.Fatalf("expected one chunk of 2, got %+v", chunks)
	}
}

func TestPlanAccountsCollectsFieldErrors(t *testing.T) {
	p := PlanAccounts(rawItems(t,
		validAccount,
		`{"id":123,"ledger":1,"code":718}`,              // bare number for 128-bit field
		`{"id":"3","code":718}`,                         // missing ledger
		`{"id":"4","ledger":1,"code":718,"surprise":1}`, // unknown field
	), ledger.DefaultBatchLimit)

	if !p.HasValidationErrors() {
		t.Fatal("expected validation errors")
	}
	results := p.Results()
	if len(results) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(results))
	}
	if results[0].Status != StatusOK {
		t.Fatalf("item 0 should be valid: %+v", results[0])
	}
	for _, i := range []int{1, 2, 3} {
		if results[i].Status != StatusError || results[i].Error != "validation_failed" {
			t.Fatalf("item %d: %+v", i, results[i])
		}
		if len(results[i].Fields) == 0 {
			t.Fatalf("item %d: missing field errors", i)
		}
	}
	if results[2].Fields[0].Field != "ledger" {
		t.Fatalf("item 2: expected ledger error, got %+v", results[2].Fields)
	}

	// Only the valid item reaches the engine.
	chunks := p.Chunks(ledger.DefaultBatchLimit)
	if len(chunks) != 1 || len(chunks[0].Accounts) != 1 || chunks[0].Indices[0] != 0 {
		t.Fatalf("chunks: %+v", chunks)
	}
}

func TestPlanAccountsChainAbort(t *testing.T) {
	p := PlanAccounts(rawItems(t,
		`{"id":"1","ledger":1,"code":718,"flags":1}`, // linked
		`{"id":"0","ledger":1,"code":718,"flags":1}`, // invalid: zero id, linked
		`{"id":"3","ledger":1,"code":718}`,           // closes the chain
		`{"id":"4","ledger":1,"code":718}`,           // independent
	), ledger.DefaultBatchLimit)

	results := p.Results()
	if results[0].Error != "linked_event_failed" || results[0].ErrorCode != uint32(ledger.AccountLinkedEventFailed) {
		t.Fatalf("item 0 should be chain-aborted: %+v", results[0])
	}
	if results[1].Error != "validation_failed" {
		t.Fatalf("item 1 keeps its own error: %+v", results[1])
	}
	if results[2].Error != "linked_event_failed" {
		t.Fatalf("item 2 should be chain-aborted: %+v", results[2])
	}
	if results[3].Status != StatusOK {
		t.Fatalf("item 3 is outside the chain: %+v", results[3])
	}

	chunks := p.Chunks(ledger.DefaultBatchLimit)
	if len(chunks) != 1 || len(chunks[0].Indices) != 1 || chunks[0].Indices[0] != 3 {
		t.Fatalf("only item 3 may reach the engine: %+v", chunks)
	}
}

func TestPlanAccountsOpenChain(t *testing.T) {
	p := PlanAccounts(rawItems(t,
		validAccount,
		`{"id":"2","ledger":1,"code":718,"flags":1}`, // linked into nothing
	), ledger.DefaultBatchLimit)

	results := p.Results()
	if results[0].Status != StatusOK {
		t.Fatalf("item 0: %+v", results[0])
	}
	if results[1].Status != StatusError || results[1].Fields[0].Reason != "linked chain left open" {
		t.Fatalf("item 1: %+v", results[1])
	}
}

func TestPlanAccountsChainExceedingBatchLimit(t *testing.T) {
	raws := rawItems(t,
		`{"id":"1","ledger":1,"code":718,"flags":1}`,
		`{"id":"2","ledger":1,"code":718,"flags":1}`,
		`{"id":"3","ledger":1,"code":718}`,
	)
	p := PlanAccounts(raws, 2)
	for i, r := range p.Results() {
		if r.Status != StatusError {
			t.Fatalf("item %d should be rejected, chain cannot fit one engine call: %+v", i, r)
		}
	}
	if chunks := p.Chunks(2); len(chunks) != 0 {
		t.Fatalf("nothing may reach the engine: %+v", chunks)
	}
}

func TestChunksNeverSplitChains(t *testing.T) {
	raws := rawItems(t,
		`{"id":"1","ledger":1,"code":718}`,
		`{"id":"2","ledger":1,"code":718,"flags":1}`,
		`{"id":"3","ledger":1,"code":718}`,
		`{"id":"4","ledger":1,"code":718}`,
	)
	p := PlanAccounts(raws, ledger.DefaultBatchLimit)
	chunks := p.Chunks(2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %+v", chunks)
	}
	// The chain {2,3} must travel together even though item 1 left room
	// for only one more event in the first chunk.
	if len(chunks[0].Indices) != 1 || chunks[0].Indices[0] != 0 {
		t.Fatalf("chunk 0: %+v", chunks[0])
	}
	if len(chunks[1].Indices) != 2 || chunks[1].Indices[0] != 1 || chunks[1].Indices[1] != 2 {
		t.Fatalf("chunk 1: %+v", chunks[1])
	}
	if len(chunks[2].Indices) != 1 || chunks[2].Indices[0] != 3 {
		t.Fatalf("chunk 2: %+v", chunks[2])
	}
}

func TestPlanTransfersStructuralRules(t *testing.T) {
	p := PlanTransfers(rawItems(t,
		`{"id":"1","debit_account_id":"10","credit_account_id":"11","amount":"5","ledger":1,"code":1}`,
		`{"id":"2","debit_account_id":"10","credit_account_id":"10","amount":"5","ledger":1,"code":1}`,
		`{"id":"3","debit_account_id":"10","credit_account_id":"11","amount":"0","ledger":1,"code":1}`,
		`{"id":"4","debit_account_id":"10","credit_account_id":"11","amount":"5","ledger":1,"code":1,"timeout":30}`,
		`{"id":"5","pending_id":"1","flags":4}`,
		`{"id":"6","flags":4}`,
	), ledger.DefaultBatchLimit)

	results := p.Results()
	if results[0].Status != StatusOK {
		t.Fatalf("item 0: %+v", results[0])
	}
	expectField := func(i int, field string) {
		t.Helper()
		if results[i].Status != StatusError {
			t.Fatalf("item %d should fail: %+v", i, results[i])
		}
		for _, f := range results[i].Fields {
			if f.Field == field {
				return
			}
		}
		t.Fatalf("item %d: expected error on %s, got %+v", i, field, results[i].Fields)
	}
	expectField(1, "credit_account_id") // same account both sides
	expectField(2, "amount")            // zero amount
	expectField(3, "timeout")           // timeout without pending flag
	if results[4].Status != StatusOK {
		t.Fatalf("post-pending item is valid: %+v", results[4])
	}
	expectField(5, "pending_id") // post without pending id
}

func TestPlanTransfersPendingFlags(t *testing.T) {
	p := PlanTransfers(rawItems(t,
		`{"id":"1","debit_account_id":"10","credit_account_id":"11","amount":"5","ledger":1,"code":1,"flags":2,"timeout":60}`,
		`{"id":"2","debit_account_id":"10","credit_account_id":"11","amount":"5","ledger":1,"code":1,"flags":6}`,
	), ledger.DefaultBatchLimit)

	results := p.Results()
	if results[0].Status != StatusOK {
		t.Fatalf("pending with timeout is valid: %+v", results[0])
	}
	if results[1].Status != StatusError {
		t.Fatalf("pending+post flags are mutually exclusive: %+v", results[1])
	}
}

func TestDecodeIDs(t *testing.T) {
	ids, bad := DecodeIDs(rawItems(t, `"1"`, `"999"`, `"2"`))
	if len(bad) != 0 {
		t.Fatalf("unexpected errors: %+v", bad)
	}
	if len(ids) != 3 || ids[1].Lo != 999 {
		t.Fatalf("ids: %+v", ids)
	}

	_, bad = DecodeIDs(rawItems(t, `"1"`, `17`, `"x"`))
	if len(bad) != 2 {
		t.Fatalf("expected 2 errors, got %+v", bad)
	}
	if bad[0].Index != 1 || bad[1].Index != 2 {
		t.Fatalf("error indices: %+v", bad)
	}
}

func TestDecodeAccountFilter(t *testing.T) {
	f, errs := DecodeAccountFilter([]byte(`{"account_id":"7","limit":5,"timestamp_min":10,"timestamp_max":20,"flags":4}`), 10, 100)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if f.AccountID.Lo != 7 || f.Limit != 5 || f.TimestampMin != 10 || f.TimestampMax != 20 || f.Flags != 4 {
		t.Fatalf("filter: %+v", f)
	}

	f, errs = DecodeAccountFilter([]byte(`{"account_id":"7"}`), 10, 100)
	if len(errs) != 0 || f.Limit != 10 {
		t.Fatalf("default limit: %+v %+v", f, errs)
	}

	if _, errs = DecodeAccountFilter([]byte(`{"account_id":"7","limit":0}`), 10, 100); len(errs) == 0 {
		t.Fatal("limit zero must fail")
	}
	if _, errs = DecodeAccountFilter([]byte(`{"account_id":"7","limit":101}`), 10, 100); len(errs) == 0 {
		t.Fatal("limit above the cap must fail")
	}
	if _, errs = DecodeAccountFilter([]byte(`{"limit":5}`), 10, 100); len(errs) == 0 {
		t.Fatal("missing account_id must fail")
	}
	if _, errs = DecodeAccountFilter([]byte(`{"account_id":"7","nope":1}`), 10, 100); len(errs) == 0 {
		t.Fatal("unknown filter field must fail")
	}
	if _, errs = DecodeAccountFilter([]byte(`{"account_id":"7","timestamp_min":30,"timestamp_max":20}`), 10, 100); len(errs) == 0 {
		t.Fatal("inverted timestamp range must fail")
	}
}

func TestDecodeQueryFilter(t *testing.T) {
	f, errs := DecodeQueryFilter([]byte(`{"ledger":1,"code":718,"user_data_32":42,"limit":5}`), 10, 100)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if f.Ledger != 1 || f.Code != 718 || f.UserData32 != 42 || f.Limit != 5 {
		t.Fatalf("filter: %+v", f)
	}
	if _, errs = DecodeQueryFilter([]byte(`{"account_id":"7"}`), 10, 100); len(errs) == 0 {
		t.Fatal("account_id is not a query filter field")
	}
}

func TestSetEngineResultPreservesOrder(t *testing.T) {
	p := PlanAccounts(rawItems(t, validAccount, `{"id":"2","ledger":1,"code":718}`), ledger.DefaultBatchLimit)
	p.SetEngineResult(1, uint32(ledger.AccountExists), ledger.AccountExists.String())
	results := p.Results()
	if results[0].Status != StatusOK {
		t.Fatalf("item 0: %+v", results[0])
	}
	if results[1].Error != "exists" || results[1].ErrorCode != uint32(ledger.AccountExists) {
		t.Fatalf("item 1: %+v", results[1])
	}
}
