// Package transfers exposes the transfer endpoints: create, lookup and
// query.
package transfers

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

// Service orchestrates transfer operations against the ledger engine.
type Service struct {
	client       ledger.Client
	batchLimit   int
	defaultLimit uint32
	maxLimit     uint32
	timeout      time.Duration
}

// NewService builds the transfer service.
func NewService(client ledger.Client, batchLimit int, defaultLimit, maxLimit uint32, timeout time.Duration) *Service {
	return &Service{
		client:       client,
		batchLimit:   batchLimit,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		timeout:      timeout,
	}
}

// CreateOutcome is a processed create batch, one result per input item
// in input order.
type CreateOutcome struct {
	Results       []batch.ItemResult
	HasValidation bool
	EngineErrors  bool
}

// Create validates, chunks and submits a transfer create batch.
// Linked chains never straddle an engine call, so each chain still
// commits or fails as a unit after splitting.
func (s *Service) Create(ctx context.Context, items []json.RawMessage, record Recorder) (CreateOutcome, error) {
	p := batch.PlanTransfers(items, s.batchLimit)

	engineErrs := false
	for _, chunk := range p.Chunks(s.batchLimit) {
		res, err := s.createChunk(ctx, chunk.Transfers, record)
		if err != nil {
			return CreateOutcome{}, err
		}
		for _, r := range res {
			if r.Result == ledger.TransferOK {
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

func (s *Service) createChunk(ctx context.Context, transfers []ledger.Transfer, record Recorder) ([]ledger.TransferEventResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.client.CreateTransfers(cctx, transfers)
	record(time.Since(start))
	return res, s.mapEngineErr(ctx, err)
}

// Lookup resolves a list of ids to transfers, null-aligned with the
// requested order.
func (s *Service) Lookup(ctx context.Context, items []json.RawMessage, record Recorder) ([]*ledger.Transfer, []batch.ItemResult, error) {
	ids, bad := batch.DecodeIDs(items)
	if len(bad) > 0 {
		return nil, bad, nil
	}

	out := make([]*ledger.Transfer, 0, len(ids))
	for start := 0; start < len(ids); start += s.batchLimit {
		end := min(start+s.batchLimit, len(ids))

		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		t0 := time.Now()
		res, err := s.client.LookupTransfers(cctx, ids[start:end])
		record(time.Since(t0))
		cancel()
		if err != nil {
			return nil, nil, s.mapEngineErr(ctx, err)
		}
		out = append(out, res...)
	}
	return out, nil, nil
}

// Query runs an advanced transfer query.
func (s *Service) Query(ctx context.Context, body []byte, record Recorder) ([]ledger.Transfer, []codec.ValidationError, error) {
	filter, errs := batch.DecodeQueryFilter(body, s.defaultLimit, s.maxLimit)
	if len(errs) > 0 {
		return nil, errs, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	t0 := time.Now()
	res, err := s.client.QueryTransfers(cctx, filter)
	record(time.Since(t0))
	return res, nil, s.mapEngineErr(ctx, err)
}

func (s *Service) mapEngineErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ledger.ErrUnavailable
	}
	return err
}
