package batch

import (
	"encoding/json"

	"github.com/ledgergate/ledgergate/internal/codec"
	"github.com/ledgergate/ledgergate/internal/ledger"
)

// Item statuses in a create response.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ItemResult is one entry of a create response. The response always has
// exactly one entry per input item, in input order.
type ItemResult struct {
	Index     int                     `json:"index"`
	Status    string                  `json:"status"`
	ErrorCode uint32                  `json:"error_code,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Fields    []codec.ValidationError `json:"fields,omitempty"`
}

func okItem(i int) ItemResult {
	return ItemResult{Index: i, Status: StatusOK}
}

func invalidItem(i int, errs []codec.ValidationError) ItemResult {
	return ItemResult{Index: i, Status: StatusError, Error: "validation_failed", Fields: errs}
}

// plan tracks per-item validity and pre-computed response entries for a
// create batch. Valid items are the ones that will reach the engine.
type plan struct {
	valid    []bool
	linked   []bool
	results  []ItemResult
	invalids int
}

func (p *plan) markInvalid(i int, errs []codec.ValidationError) {
	if p.valid[i] {
		p.invalids++
	}
	p.valid[i] = false
	p.results[i] = invalidItem(i, errs)
}

func (p *plan) markAborted(i int, code uint32, name string) {
	p.valid[i] = false
	p.results[i] = ItemResult{Index: i, Status: StatusError, ErrorCode: code, Error: name}
}

// planChains applies linked-chain policy after per-item validation:
// a chain with any invalid member sends nothing to the engine, a chain
// that outgrows one engine batch cannot be submitted atomically, and a
// chain left open at the end of the input is malformed.
func (p *plan) planChains(batchLimit int, abortCode uint32, abortName string) {
	n := len(p.valid)
	for start := 0; start < n; {
		end := start
		for end < n && p.linked[end] {
			end++
		}
		if end == n {
			for i := start; i < n; i++ {
				if p.valid[i] {
					p.markInvalid(i, []codec.ValidationError{errOf("flags", "linked chain left open")})
				}
			}
			return
		}
		size := end - start + 1
		if size > 1 {
			switch {
			case size > batchLimit:
				for i := start; i <= end; i++ {
					if p.valid[i] {
						p.markInvalid(i, []codec.ValidationError{errOf("flags", "linked chain exceeds the engine batch limit")})
					}
				}
			case p.anyInvalid(start, end):
				for i := start; i <= end; i++ {
					if p.valid[i] {
						p.markAborted(i, abortCode, abortName)
					}
				}
			}
		}
		start = end + 1
	}
}

func (p *plan) anyInvalid(start, end int) bool {
	for i := start; i <= end; i++ {
		if !p.valid[i] {
			return true
		}
	}
	return false
}

// Results returns the ordered response entries, one per input item.
func (p *plan) Results() []ItemResult {
	return p.results
}

// HasValidationErrors reports whether any item failed client-side
// validation (chain aborts do not count: the aborted items themselves
// were well-formed).
func (p *plan) HasValidationErrors() bool {
	return p.invalids > 0
}

// SetEngineResult records an engine rejection for an item by its
// original input index.
func (p *plan) SetEngineResult(i int, code uint32, name string) {
	p.results[i] = ItemResult{Index: i, Status: StatusError, ErrorCode: code, Error: name}
}

// chunkGroups partitions the valid items into engine batches of at most
// limit items, keeping each linked chain inside a single batch.
func (p *plan) chunkGroups(limit int) [][]int {
	var chunks [][]int
	var current []int
	n := len(p.valid)
	for i := 0; i < n; {
		if !p.valid[i] {
			i++
			continue
		}
		group := []int{i}
		for p.linked[i] {
			i++
			group = append(group, i)
		}
		i++
		if len(current)+len(group) > limit && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
		}
		current = append(current, group...)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// AccountPlan is the validated create-accounts batch.
type AccountPlan struct {
	plan
	accounts []ledger.Account
}

// AccountChunk is one engine call worth of account events plus the
// original input index of each event.
type AccountChunk struct {
	Accounts []ledger.Account
	Indices  []int
}

// PlanAccounts decodes and validates a create-accounts payload.
func PlanAccounts(raws []json.RawMessage, batchLimit int) *AccountPlan {
	n := len(raws)
	p := &AccountPlan{
		plan: plan{
			valid:   make([]bool, n),
			linked:  make([]bool, n),
			results: make([]ItemResult, n),
		},
		accounts: make([]ledger.Account, n),
	}
	for i, raw := range raws {
		a, errs := decodeAccount(raw)
		p.accounts[i] = a
		p.linked[i] = a.Flags&ledger.AccountFlagLinked != 0
		if len(errs) > 0 {
			p.results[i] = invalidItem(i, errs)
			p.invalids++
		} else {
			p.valid[i] = true
			p.results[i] = okItem(i)
		}
	}
	p.planChains(batchLimit, uint32(ledger.AccountLinkedEventFailed), ledger.AccountLinkedEventFailed.String())
	return p
}

// Chunks returns the engine batches for the valid items.
func (p *AccountPlan) Chunks(limit int) []AccountChunk {
	groups := p.chunkGroups(limit)
	chunks := make([]AccountChunk, 0, len(groups))
	for _, idx := range groups {
		c := AccountChunk{
			Accounts: make([]ledger.Account, len(idx)),
			Indices:  idx,
		}
		for j, i := range idx {
			c.Accounts[j] = p.accounts[i]
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// TransferPlan is the validated create-transfers batch.
type TransferPlan struct {
	plan
	transfers []ledger.Transfer
}

// TransferChunk is one engine call worth of transfer events plus the
// original input index of each event.
type TransferChunk struct {
	Transfers []ledger.Transfer
	Indices   []int
}

// PlanTransfers decodes and validates a create-transfers payload.
func PlanTransfers(raws []json.RawMessage, batchLimit int) *TransferPlan {
	n := len(raws)
	p := &TransferPlan{
		plan: plan{
			valid:   make([]bool, n),
			linked:  make([]bool, n),
			results: make([]ItemResult, n),
		},
		transfers: make([]ledger.Transfer, n),
	}
	for i, raw := range raws {
		t, errs := decodeTransfer(raw)
		p.transfers[i] = t
		p.linked[i] = t.Flags&ledger.TransferFlagLinked != 0
		if len(errs) > 0 {
			p.results[i] = invalidItem(i, errs)
			p.invalids++
		} else {
			p.valid[i] = true
			p.results[i] = okItem(i)
		}
	}
	p.planChains(batchLimit, uint32(ledger.TransferLinkedEventFailed), ledger.TransferLinkedEventFailed.String())
	return p
}

// Chunks returns the engine batches for the valid items.
func (p *TransferPlan) Chunks(limit int) []TransferChunk {
	groups := p.chunkGroups(limit)
	chunks := make([]TransferChunk, 0, len(groups))
	for _, idx := range groups {
		c := TransferChunk{
			Transfers: make([]ledger.Transfer, len(idx)),
			Indices:   idx,
		}
		for j, i := range idx {
			c.Transfers[j] = p.transfers[i]
		}
		chunks = append(chunks, c)
	}
	return chunks
}
