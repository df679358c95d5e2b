package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgergate/ledgergate/internal/api"
	"github.com/ledgergate/ledgergate/internal/ledger"
	"github.com/ledgergate/ledgergate/internal/middleware"
)

// Handler exposes the account endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs an account HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func recorder(c *fiber.Ctx) Recorder {
	return func(d time.Duration) { middleware.RecordEngineTime(c, d) }
}

func parseItems(c *fiber.Ctx) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(c.Body(), &items); err != nil {
		return nil, api.BadRequest("request body must be a JSON array", nil)
	}
	return items, nil
}

func engineError(err error) error {
	if errors.Is(err, ledger.ErrUnavailable) {
		return api.Unavailable("ledger engine unavailable")
	}
	return err
}

// Create submits a batch of account create events.
func (h *Handler) Create(c *fiber.Ctx) error {
	items, err := parseItems(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Create(c.UserContext(), items, recorder(c))
	if err != nil {
		return engineError(err)
	}
	switch {
	case out.HasValidation:
		return api.Fail(c, http.StatusBadRequest, "validation failed", out.Results, nil)
	case out.EngineErrors:
		return api.Fail(c, http.StatusUnprocessableEntity, "some items were rejected", out.Results, nil)
	}
	return api.Success(c, http.StatusOK, "accounts created", out.Results)
}

// Lookup resolves account ids, preserving order and marking unknown
// ids with null.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	items, err := parseItems(c)
	if err != nil {
		return err
	}
	found, bad, err := h.svc.Lookup(c.UserContext(), items, recorder(c))
	if err != nil {
		return engineError(err)
	}
	if len(bad) > 0 {
		return api.Fail(c, http.StatusBadRequest, "validation failed", nil, bad)
	}
	return api.Success(c, http.StatusOK, "accounts", found)
}

// Balances returns balance history snapshots for one account.
func (h *Handler) Balances(c *fiber.Ctx) error {
	res, errs, err := h.svc.Balances(c.UserContext(), c.Body(), recorder(c))
	if err != nil {
		return engineError(err)
	}
	if len(errs) > 0 {
		return api.Fail(c, http.StatusBadRequest, "validation failed", nil, errs)
	}
	return api.Success(c, http.StatusOK, "account balances", res)
}

// Transfers returns the transfers touching one account.
func (h *Handler) Transfers(c *fiber.Ctx) error {
	res, errs, err := h.svc.Transfers(c.UserContext(), c.Body(), recorder(c))
	if err != nil {
		return engineError(err)
	}
	if len(errs) > 0 {
		return api.Fail(c, http.StatusBadRequest, "validation failed", nil, errs)
	}
	return api.Success(c, http.StatusOK, "account transfers", res)
}

// Query runs an advanced account query.
func (h *Handler) Query(c *fiber.Ctx) error {
	res, errs, err := h.svc.Query(c.UserContext(), c.Body(), recorder(c))
	if err != nil {
		return engineError(err)
	}
	if len(errs) > 0 {
		return api.Fail(c, http.StatusBadRequest, "validation failed", nil, errs)
	}
	return api.Success(c, http.StatusOK, "accounts", res)
}
