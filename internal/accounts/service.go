// Package accounts exposes the account endpoints: create, lookup,
// balance history, transfer history and query.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ledgergate/ledgergate/internal/batch"
	"github.com/ledgergate/ledgergate/internal/codec"
	"github.com/ledgergate/ledgergate/internal/ledger"
)

// Recorder receives the time spent on each engine round trip.
type Recorder func(time.Duration)

// Service orchestrates account operations against the ledger engine.
// Client batches larger than the engine limit are split into
// sequential engine calls, invisible to the caller except via latency.
type Service struct {
	client       ledger.Client
	batchLimit   int
	defaultLimit uint32
	maxLimit     uint32
	timeout      time.Duration
}

// NewService builds the account service.
func NewService(client ledger.Client, batchLimit int, defaultLimit, maxLimit uint32, timeout time.Duration) *Service {
	return &Service{
		client:       client,
		batchLimit:   batchLimit,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		timeout:      timeout,
	}
}

// CreateOutcome is a processed create batch: one result per input
// item, in input order, plus the flags the handler maps to an HTTP
// status.
type CreateOutcome struct {
	Results       []batch.ItemResult
	HasValidation bool
	EngineErrors  bool
}

// Create validates, chunks and submits an account create batch. Items
// failing validation never reach the engine; the remaining items are
// still submitted.
func (s *Service) Create(ctx context.Context, items []json.RawMessage, record Recorder) (CreateOutcome, error) {
	p := batch.PlanAccounts(items, s.batchLimit)

	engineErrs := false
	for _, chunk := range p.Chunks(s.batchLimit) {
		res, err := s.createChunk(ctx, chunk.Accounts, record)
		if err != nil {
			return CreateOutcome{}, err
		}
		for _, r := range res {
			if r.Result == ledger.AccountOK {
				continue
			}
			p.SetEngineResult(chunk.Indices[r.Index], uint32(r.Result), r.Result.String())
			engineErrs = true
		}
	}
	return CreateOutcome{
		Results:       p.Results(),
		HasValidation: p.HasValidationErrors(),
		EngineErrors:  engineErrs,
	}, nil
}

func (s *Service) createChunk(ctx context.Context, accounts []ledger.Account, record Recorder) ([]ledger.AccountEventResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.client.CreateAccounts(cctx, accounts)
	record(time.Since(start))
	return res, s.mapEngineErr(ctx, err)
}

// Lookup resolves a list of ids to accounts, null-aligned: position i
// of the result corresponds to ids[i], nil when the engine does not
// know the id.
func (s *Service) Lookup(ctx context.Context, items []json.RawMessage, record Recorder) ([]*ledger.Account, []batch.ItemResult, error) {
	ids, bad := batch.DecodeIDs(items)
	if len(bad) > 0 {
		return nil, bad, nil
	}

	out := make([]*ledger.Account, 0, len(ids))
	for start := 0; start < len(ids); start += s.batchLimit {
		end := min(start+s.batchLimit, len(ids))

		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		t0 := time.Now()
		res, err := s.client.LookupAccounts(cctx, ids[start:end])
		record(time.Since(t0))
		cancel()
		if err != nil {
			return nil, nil, s.mapEngineErr(ctx, err)
		}
		out = append(out, res...)
	}
	return out, nil, nil
}

// Balances returns the recorded balance history for one account.
func (s *Service) Balances(ctx context.Context, body []byte, record Recorder) ([]ledger.AccountBalance, []codec.ValidationError, error) {
	filter, errs := batch.DecodeAccountFilter(body, s.defaultLimit, s.maxLimit)
	if len(errs) > 0 {
		return nil, errs, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	t0 := time.Now()
	res, err := s.client.GetAccountBalances(cctx, filter)
	record(time.Since(t0))
	return res, nil, s.mapEngineErr(ctx, err)
}

// Transfers returns the transfers touching one account.
func (s *Service) Transfers(ctx context.Context, body []byte, record Recorder) ([]ledger.Transfer, []codec.ValidationError, error) {
	filter, errs := batch.DecodeAccountFilter(body, s.defaultLimit, s.maxLimit)
	if len(errs) > 0 {
		return nil, errs, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	t0 := time.Now()
	res, err := s.client.GetAccountTransfers(cctx, filter)
	record(time.Since(t0))
	return res, nil, s.mapEngineErr(ctx, err)
}

// Query runs an advanced account query.
func (s *Service) Query(ctx context.Context, body []byte, record Recorder) ([]ledger.Account, []codec.ValidationError, error) {
	filter, errs := batch.DecodeQueryFilter(body, s.defaultLimit, s.maxLimit)
	if len(errs) > 0 {
		return nil, errs, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	t0 := time.Now()
	res, err := s.client.QueryAccounts(cctx, filter)
	record(time.Since(t0))
	return res, nil, s.mapEngineErr(ctx, err)
}

// mapEngineErr normalizes engine failures. A deadline on the engine
// call becomes ErrUnavailable; a cancelled request context stays a
// cancellation.
func (s *Service) mapEngineErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ledger.ErrUnavailable
	}
	return err
}
