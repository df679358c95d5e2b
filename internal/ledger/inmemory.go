package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ledgergate/ledgergate/internal/codec"
)

var maxID = codec.Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}

const (
	pendingOpen = iota
	pendingPosted
	pendingVoided
)

type pendingState struct {
	status   int
	expireAt uint64 // wall-clock nanoseconds, 0 = never
}

// Engine is an in-memory ledger engine implementing Client. It enforces
// the engine's create semantics (linked-chain atomicity, duplicate
// detection, balance limits, pending transfer lifecycle) and serves as
// the development backend and test double.
type Engine struct {
	mu            sync.Mutex
	clock         uint64
	now           func() time.Time
	accounts      map[codec.Uint128]Account
	accountOrder  []codec.Uint128
	transfers     map[codec.Uint128]Transfer
	transferOrder []codec.Uint128
	pending       map[codec.Uint128]pendingState
	history       map[codec.Uint128][]AccountBalance
}

// NewEngine creates an empty in-memory engine.
func NewEngine() *Engine {
	e := newEngine()
	e.clock = uint64(time.Now().UnixNano())
	return e
}

func newEngine() *Engine {
	return &Engine{
		now:       time.Now,
		accounts:  make(map[codec.Uint128]Account),
		transfers: make(map[codec.Uint128]Transfer),
		pending:   make(map[codec.Uint128]pendingState),
		history:   make(map[codec.Uint128][]AccountBalance),
	}
}

// tick assigns the next strictly increasing engine timestamp.
func (e *Engine) tick() uint64 {
	e.clock++
	return e.clock
}

// Close implements Client.
func (e *Engine) Close() error { return nil }

// CreateAccounts validates and applies account create events. Linked
// chains commit or fail as a unit; the result slice carries rejections
// only.
func (e *Engine) CreateAccounts(ctx context.Context, accounts []Account) ([]AccountEventResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var results []AccountEventResult
	for start := 0; start < len(accounts); {
		end := start
		for end < len(accounts) && accounts[end].Flags&AccountFlagLinked != 0 {
			end++
		}
		if end == len(accounts) {
			// The final event still carries the linked flag: the chain
			// never closed, so none of it applies.
			for i := start; i < end; i++ {
				results = append(results, AccountEventResult{Index: uint32(i), Result: AccountLinkedEventChainOpen})
			}
			break
		}
		chain := accounts[start : end+1]
		failedAt := -1
		var failure CreateAccountResult
		staged := make([]Account, 0, len(chain))
		for i, a := range chain {
			if res := e.validateAccount(a, staged); res != AccountOK {
				failedAt, failure = i, res
				break
			}
			staged = append(staged, a)
		}
		if failedAt >= 0 {
			for i := range chain {
				res := AccountLinkedEventFailed
				if i == failedAt {
					res = failure
				}
				results = append(results, AccountEventResult{Index: uint32(start + i), Result: res})
			}
		} else {
			for _, a := range chain {
				e.applyAccount(a)
			}
		}
		start = end + 1
	}
	return results, nil
}

func (e *Engine) validateAccount(a Account, staged []Account) CreateAccountResult {
	const exclusive = AccountFlagCreditsMustNotExceedDebits | AccountFlagDebitsMustNotExceedCredits
	if a.Flags&exclusive == exclusive {
		return AccountFlagsAreMutuallyExclusive
	}
	if a.Flags&AccountFlagImported == 0 && a.Timestamp != 0 {
		return AccountTimestampMustBeZero
	}
	if a.Reserved != 0 {
		return AccountReservedField
	}
	if a.ID.IsZero() {
		return AccountIDMustNotBeZero
	}
	if a.ID == maxID {
		return AccountIDMustNotBeIntMax
	}
	if !a.DebitsPending.IsZero() {
		return AccountDebitsPendingMustBeZero
	}
	if !a.DebitsPosted.IsZero() {
		return AccountDebitsPostedMustBeZero
	}
	if !a.CreditsPending.IsZero() {
		return AccountCreditsPendingMustBeZero
	}
	if !a.CreditsPosted.IsZero() {
		return AccountCreditsPostedMustBeZero
	}
	if a.Ledger == 0 {
		return AccountLedgerMustNotBeZero
	}
	if a.Code == 0 {
		return AccountCodeMustNotBeZero
	}
	if existing, ok := e.accounts[a.ID]; ok {
		return accountExistsResult(existing, a)
	}
	for _, s := range staged {
		if s.ID == a.ID {
			return accountExistsResult(s, a)
		}
	}
	return AccountOK
}

func accountExistsResult(existing, a Account) CreateAccountResult {
	if existing.Flags != a.Flags {
		return AccountExistsWithDifferentFlags
	}
	return AccountExists
}

func (e *Engine) applyAccount(a Account) {
	if a.Flags&AccountFlagImported != 0 && a.Timestamp != 0 {
		if a.Timestamp > e.clock {
			e.clock = a.Timestamp
		}
	} else {
		a.Timestamp = e.tick()
	}
	e.accounts[a.ID] = a
	e.accountOrder = append(e.accountOrder, a.ID)
}

// CreateTransfers validates and applies transfer create events with the
// same chain semantics as CreateAccounts. Multi-event chains run against
// a snapshot so a mid-chain failure leaves no partial balance effects.
func (e *Engine) CreateTransfers(ctx context.Context, transfers []Transfer) ([]TransferEventResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var results []TransferEventResult
	for start := 0; start < len(transfers); {
		end := start
		for end < len(transfers) && transfers[end].Flags&TransferFlagLinked != 0 {
			end++
		}
		if end == len(transfers) {
			for i := start; i < end; i++ {
				results = append(results, TransferEventResult{Index: uint32(i), Result: TransferLinkedEventChainOpen})
			}
			break
		}
		chain := transfers[start : end+1]
		var snap *engineSnapshot
		if len(chain) > 1 {
			snap = e.snapshot()
		}
		failedAt := -1
		var failure CreateTransferResult
		for i, t := range chain {
			if res := e.validateTransfer(t); res != TransferOK {
				failedAt, failure = i, res
				break
			}
			e.applyTransfer(t)
		}
		if failedAt >= 0 {
			if snap != nil {
				e.restore(snap)
			}
			for i := range chain {
				res := TransferLinkedEventFailed
				if i == failedAt {
					res = failure
				}
				results = append(results, TransferEventResult{Index: uint32(start + i), Result: res})
			}
		}
		start = end + 1
	}
	return results, nil
}

func (e *Engine) validateTransfer(t Transfer) CreateTransferResult {
	post := t.Flags&TransferFlagPostPending != 0
	void := t.Flags&TransferFlagVoidPending != 0
	pend := t.Flags&TransferFlagPending != 0
	if (post && void) || (pend && (post || void)) {
		return TransferFlagsAreMutuallyExclusive
	}
	if t.Flags&TransferFlagImported == 0 && t.Timestamp != 0 {
		return TransferTimestampMustBeZero
	}
	if t.Timeout != 0 && !pend {
		return TransferTimeoutReservedForPendingTransfer
	}
	if t.ID.IsZero() {
		return TransferIDMustNotBeZero
	}
	if t.ID == maxID {
		return TransferIDMustNotBeIntMax
	}
	if existing, ok := e.transfers[t.ID]; ok {
		if existing.Flags != t.Flags {
			return TransferExistsWithDifferentFlags
		}
		return TransferExists
	}

	if post || void {
		if t.PendingID.IsZero() {
			return TransferPendingIDMustNotBeZero
		}
		p, ok := e.transfers[t.PendingID]
		if !ok {
			return TransferPendingTransferNotFound
		}
		if p.Flags&TransferFlagPending == 0 {
			return TransferPendingTransferNotPending
		}
		switch st := e.pending[t.PendingID]; {
		case st.status == pendingPosted:
			return TransferPendingTransferAlreadyPosted
		case st.status == pendingVoided:
			return TransferPendingTransferAlreadyVoided
		case st.expireAt != 0 && uint64(e.now().UnixNano()) >= st.expireAt:
			return TransferPendingTransferExpired
		}
		// A partial post may release at most the amount the pending
		// transfer reserved.
		if post && !t.Amount.IsZero() && t.Amount.Cmp(p.Amount) > 0 {
			return TransferExceedsPendingTransferAmount
		}
		return TransferOK
	}

	if !t.PendingID.IsZero() {
		return TransferPendingIDMustBeZero
	}
	if t.DebitAccountID.IsZero() {
		return TransferDebitAccountIDMustNotBeZero
	}
	if t.CreditAccountID.IsZero() {
		return TransferCreditAccountIDMustNotBeZero
	}
	if t.DebitAccountID == t.CreditAccountID {
		return TransferAccountsMustBeDifferent
	}
	const balancing = TransferFlagBalancingDebit | TransferFlagBalancingCredit
	if t.Amount.IsZero() && t.Flags&balancing == 0 {
		return TransferAmountMustNotBeZero
	}
	if t.Ledger == 0 {
		return TransferLedgerMustNotBeZero
	}
	if t.Code == 0 {
		return TransferCodeMustNotBeZero
	}
	debit, ok := e.accounts[t.DebitAccountID]
	if !ok {
		return TransferDebitAccountNotFound
	}
	credit, ok := e.accounts[t.CreditAccountID]
	if !ok {
		return TransferCreditAccountNotFound
	}
	if debit.Ledger != credit.Ledger {
		return TransferAccountsMustHaveTheSameLedger
	}
	if t.Ledger != debit.Ledger {
		return TransferMustHaveTheSameLedgerAsAccounts
	}
	if debit.Flags&AccountFlagDebitsMustNotExceedCredits != 0 {
		total, _ := debit.DebitsPosted.Add(debit.DebitsPending)
		total, _ = total.Add(t.Amount)
		if total.Cmp(debit.CreditsPosted) > 0 {
			return TransferExceedsCredits
		}
	}
	if credit.Flags&AccountFlagCreditsMustNotExceedDebits != 0 {
		total, _ := credit.CreditsPosted.Add(credit.CreditsPending)
		total, _ = total.Add(t.Amount)
		if total.Cmp(credit.DebitsPosted) > 0 {
			return TransferExceedsDebits
		}
	}
	return TransferOK
}

// applyTransfer mutates engine state for an already validated transfer.
func (e *Engine) applyTransfer(t Transfer) {
	stored := t
	if t.Flags&TransferFlagImported != 0 && t.Timestamp != 0 {
		if t.Timestamp > e.clock {
			e.clock = t.Timestamp
		}
	} else {
		stored.Timestamp = e.tick()
	}

	post := t.Flags&TransferFlagPostPending != 0
	void := t.Flags&TransferFlagVoidPending != 0

	switch {
	case post || void:
		p := e.transfers[t.PendingID]
		amount := p.Amount
		if post && !t.Amount.IsZero() {
			amount = t.Amount // partial post
		}
		debit := e.accounts[p.DebitAccountID]
		credit := e.accounts[p.CreditAccountID]
		debit.DebitsPending, _ = debit.DebitsPending.Sub(p.Amount)
		credit.CreditsPending, _ = credit.CreditsPending.Sub(p.Amount)
		status := pendingVoided
		if post {
			debit.DebitsPosted, _ = debit.DebitsPosted.Add(amount)
			credit.CreditsPosted, _ = credit.CreditsPosted.Add(amount)
			status = pendingPosted
		}
		e.accounts[debit.ID] = debit
		e.accounts[credit.ID] = credit
		st := e.pending[t.PendingID]
		st.status = status
		e.pending[t.PendingID] = st

		// Post and void events inherit the identity of the pending
		// transfer they resolve.
		stored.DebitAccountID = p.DebitAccountID
		stored.CreditAccountID = p.CreditAccountID
		stored.Amount = amount
		if stored.Ledger == 0 {
			stored.Ledger = p.Ledger
		}
		if stored.Code == 0 {
			stored.Code = p.Code
		}
		e.recordHistory(debit.ID, stored.Timestamp)
		e.recordHistory(credit.ID, stored.Timestamp)

	case t.Flags&TransferFlagPending != 0:
		debit := e.accounts[t.DebitAccountID]
		credit := e.accounts[t.CreditAccountID]
		debit.DebitsPending, _ = debit.DebitsPending.Add(t.Amount)
		credit.CreditsPending, _ = credit.CreditsPending.Add(t.Amount)
		e.accounts[debit.ID] = debit
		e.accounts[credit.ID] = credit
		var expireAt uint64
		if t.Timeout != 0 {
			expireAt = uint64(e.now().UnixNano()) + uint64(t.Timeout)*uint64(time.Second)
		}
		e.pending[t.ID] = pendingState{status: pendingOpen, expireAt: expireAt}
		e.recordHistory(debit.ID, stored.Timestamp)
		e.recordHistory(credit.ID, stored.Timestamp)

	default:
		debit := e.accounts[t.DebitAccountID]
		credit := e.accounts[t.CreditAccountID]
		debit.DebitsPosted, _ = debit.DebitsPosted.Add(t.Amount)
		credit.CreditsPosted, _ = credit.CreditsPosted.Add(t.Amount)
		e.accounts[debit.ID] = debit
		e.accounts[credit.ID] = credit
		e.recordHistory(debit.ID, stored.Timestamp)
		e.recordHistory(credit.ID, stored.Timestamp)
	}

	e.transfers[stored.ID] = stored
	e.transferOrder = append(e.transferOrder, stored.ID)
}

func (e *Engine) recordHistory(id codec.Uint128, timestamp uint64) {
	a := e.accounts[id]
	if a.Flags&AccountFlagHistory == 0 {
		return
	}
	e.history[id] = append(e.history[id], AccountBalance{
		DebitsPending:  a.DebitsPending,
		DebitsPosted:   a.DebitsPosted,
		CreditsPending: a.CreditsPending,
		CreditsPosted:  a.CreditsPosted,
		Timestamp:      timestamp,
	})
}

type engineSnapshot struct {
	clock         uint64
	accounts      map[codec.Uint128]Account
	accountOrder  int
	transfers     map[codec.Uint128]Transfer
	transferOrder int
	pending       map[codec.Uint128]pendingState
	historyLens   map[codec.Uint128]int
}

func (e *Engine) snapshot() *engineSnapshot {
	s := &engineSnapshot{
		clock:         e.clock,
		accounts:      make(map[codec.Uint128]Account, len(e.accounts)),
		accountOrder:  len(e.accountOrder),
		transfers:     make(map[codec.Uint128]Transfer, len(e.transfers)),
		transferOrder: len(e.transferOrder),
		pending:       make(map[codec.Uint128]pendingState, len(e.pending)),
		historyLens:   make(map[codec.Uint128]int, len(e.history)),
	}
	for k, v := range e.accounts {
		s.accounts[k] = v
	}
	for k, v := range e.transfers {
		s.transfers[k] = v
	}
	for k, v := range e.pending {
		s.pending[k] = v
	}
	for k, v := range e.history {
		s.historyLens[k] = len(v)
	}
	return s
}

func (e *Engine) restore(s *engineSnapshot) {
	e.clock = s.clock
	e.accounts = s.accounts
	e.accountOrder = e.accountOrder[:s.accountOrder]
	e.transfers = s.transfers
	e.transferOrder = e.transferOrder[:s.transferOrder]
	e.pending = s.pending
	for k := range e.history {
		if n, ok := s.historyLens[k]; ok {
			e.history[k] = e.history[k][:n]
		} else {
			delete(e.history, k)
		}
	}
}

// LookupAccounts returns accounts aligned with ids, nil for unknown ids.
func (e *Engine) LookupAccounts(ctx context.Context, ids []codec.Uint128) ([]*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Account, len(ids))
	for i, id := range ids {
		if a, ok := e.accounts[id]; ok {
			copied := a
			out[i] = &copied
		}
	}
	return out, nil
}

// LookupTransfers returns transfers aligned with ids, nil for unknown ids.
func (e *Engine) LookupTransfers(ctx context.Context, ids []codec.Uint128) ([]*Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Transfer, len(ids))
	for i, id := range ids {
		if t, ok := e.transfers[id]; ok {
			copied := t
			out[i] = &copied
		}
	}
	return out, nil
}

// GetAccountBalances returns historical balance snapshots for an account
// created with the history flag.
func (e *Engine) GetAccountBalances(ctx context.Context, filter AccountFilter) ([]AccountBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshots := e.history[filter.AccountID]
	out := make([]AccountBalance, 0)
	forEach(len(snapshots), filter.Flags&FilterFlagReversed != 0, func(i int) bool {
		b := snapshots[i]
		if !timestampInRange(b.Timestamp, filter.TimestampMin, filter.TimestampMax) {
			return true
		}
		out = append(out, b)
		return filter.Limit == 0 || uint32(len(out)) < filter.Limit
	})
	return out, nil
}

// GetAccountTransfers returns transfers debiting or crediting an account.
func (e *Engine) GetAccountTransfers(ctx context.Context, filter AccountFilter) ([]Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	debits := filter.Flags&FilterFlagDebits != 0
	credits := filter.Flags&FilterFlagCredits != 0
	if !debits && !credits {
		debits, credits = true, true
	}
	out := make([]Transfer, 0)
	forEach(len(e.transferOrder), filter.Flags&FilterFlagReversed != 0, func(i int) bool {
		t := e.transfers[e.transferOrder[i]]
		involved := (debits && t.DebitAccountID == filter.AccountID) ||
			(credits && t.CreditAccountID == filter.AccountID)
		if !involved {
			return true
		}
		if !filter.UserData128.IsZero() && t.UserData128 != filter.UserData128 {
			return true
		}
		if filter.UserData64 != 0 && t.UserData64 != filter.UserData64 {
			return true
		}
		if filter.UserData32 != 0 && t.UserData32 != filter.UserData32 {
			return true
		}
		if filter.Code != 0 && t.Code != filter.Code {
			return true
		}
		if !timestampInRange(t.Timestamp, filter.TimestampMin, filter.TimestampMax) {
			return true
		}
		out = append(out, t)
		return filter.Limit == 0 || uint32(len(out)) < filter.Limit
	})
	return out, nil
}

// QueryAccounts returns accounts matching the filter in creation order.
func (e *Engine) QueryAccounts(ctx context.Context, filter QueryFilter) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Account, 0)
	forEach(len(e.accountOrder), filter.Flags&FilterFlagReversed != 0, func(i int) bool {
		a := e.accounts[e.accountOrder[i]]
		if !matchesQuery(filter, a.Ledger, a.Code, a.UserData128, a.UserData64, a.UserData32, a.Timestamp) {
			return true
		}
		out = append(out, a)
		return filter.Limit == 0 || uint32(len(out)) < filter.Limit
	})
	return out, nil
}

// QueryTransfers returns transfers matching the filter in creation order.
func (e *Engine) QueryTransfers(ctx context.Context, filter QueryFilter) ([]Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Transfer, 0)
	forEach(len(e.transferOrder), filter.Flags&FilterFlagReversed != 0, func(i int) bool {
		t := e.transfers[e.transferOrder[i]]
		if !matchesQuery(filter, t.Ledger, t.Code, t.UserData128, t.UserData64, t.UserData32, t.Timestamp) {
			return true
		}
		out = append(out, t)
		return filter.Limit == 0 || uint32(len(out)) < filter.Limit
	})
	return out, nil
}

func matchesQuery(f QueryFilter, ledger uint32, code uint16, ud128 codec.Uint128, ud64 uint64, ud32 uint32, ts uint64) bool {
	if f.Ledger != 0 && ledger != f.Ledger {
		return false
	}
	if f.Code != 0 && code != f.Code {
		return false
	}
	if !f.UserData128.IsZero() && ud128 != f.UserData128 {
		return false
	}
	if f.UserData64 != 0 && ud64 != f.UserData64 {
		return false
	}
	if f.UserData32 != 0 && ud32 != f.UserData32 {
		return false
	}
	return timestampInRange(ts, f.TimestampMin, f.TimestampMax)
}

func timestampInRange(ts, min, max uint64) bool {
	if ts < min {
		return false
	}
	if max != 0 && ts > max {
		return false
	}
	return true
}

// forEach walks indices 0..n-1 (or reversed) until fn returns false.
func forEach(n int, reversed bool, fn func(i int) bool) {
	if reversed {
		for i := n - 1; i >= 0; i-- {
			if !fn(i) {
				return
			}
		}
		return
	}
	for i := 0; i < n; i++ {
		if !fn(i) {
			return
		}
	}
}
