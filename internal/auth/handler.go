package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgergate/ledgergate/internal/api"
)

// Handler exposes registration, the token endpoint and the admin user
// management endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	Superuser bool   `json:"superuser"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Active:    u.Active,
		Superuser: u.Superuser,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// Register creates a new inactive user account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return api.BadRequest("invalid request body", nil)
	}
	user, err := h.svc.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return api.BadRequest(err.Error(), nil)
	}
	return api.Success(c, http.StatusCreated, "registered", toUserResponse(user))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token exchanges form credentials for a bearer token. The endpoint
// accepts the password-grant form fields `username` and `password`.
func (h *Handler) Token(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		return api.BadRequest("username and password are required", nil)
	}

	token, err := h.svc.Issue(c.UserContext(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return api.Unauthorized(err.Error())
		case errors.Is(err, ErrInactive):
			return api.Forbidden(err.Error())
		}
		return err
	}
	return api.Success(c, http.StatusOK, "token issued", tokenResponse{
		AccessToken: token.Value,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.svc.TokenTTL().Seconds()),
	})
}

// requireSuperuser resolves the authenticated subject and checks the
// superuser bit.
func (h *Handler) requireSuperuser(c *fiber.Ctx) error {
	subject, _ := c.Locals(api.SubjectKey).(string)
	if subject == "" {
		return api.Unauthorized("authentication required")
	}
	user, err := h.svc.Find(c.UserContext(), subject)
	if err != nil {
		return api.Unauthorized("authentication required")
	}
	if !user.Superuser {
		return api.Forbidden("superuser required")
	}
	return nil
}

// ListUsers returns all users. Superuser only.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	if err := h.requireSuperuser(c); err != nil {
		return err
	}
	users, err := h.svc.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	return api.Success(c, http.StatusOK, "users", out)
}

// Activate enables a user account. Superuser only.
func (h *Handler) Activate(c *fiber.Ctx) error {
	return h.setActive(c, true, "user activated")
}

// Deactivate disables a user account and revokes its tokens.
// Superuser only.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	return h.setActive(c, false, "user deactivated")
}

func (h *Handler) setActive(c *fiber.Ctx, active bool, message string) error {
	if err := h.requireSuperuser(c); err != nil {
		return err
	}
	id := c.Params("id")
	if err := h.svc.SetActive(c.UserContext(), id, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &api.Error{Status: http.StatusNotFound, Message: err.Error()}
		}
		return err
	}
	user, err := h.svc.Find(c.UserContext(), id)
	if err != nil {
		return err
	}
	return api.Success(c, http.StatusOK, message, toUserResponse(user))
}
