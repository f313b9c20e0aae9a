package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
)

// Handler exposes registration, login and profile endpoints.
type Handler struct {
	ids    *identity.Service
	tokens *TokenService
	ledger ledger.Ledger
}

func NewHandler(ids *identity.Service, tokens *TokenService, l ledger.Ledger) *Handler {
	return &Handler{ids: ids, tokens: tokens, ledger: l}
}

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"full_name"`
	PassportNumber string `json:"passport_number"`
	Phone          string `json:"phone"`
}

type userResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	PassportNumber string `json:"passport_number"`
	Phone          string `json:"phone,omitempty"`
	KYCStatus      string `json:"kyc_status"`
	CreatedAt      string `json:"created_at"`
}

func toUserResponse(user identity.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Email:          user.Email,
		FullName:       user.FullName,
		PassportNumber: user.PassportNumber,
		Phone:          user.Phone,
		KYCStatus:      string(user.KYCStatus),
		CreatedAt:      user.CreatedAt.Format(time.RFC3339),
	}
}

// Register creates a user and provisions an empty wallet for it.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Register(c.UserContext(), identity.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		PassportNumber: req.PassportNumber,
		Phone:          req.Phone,
	})
	if err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.EnsureWallet(c.UserContext(), user.ID); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	User        userResponse `json:"user"`
}

// Login checks credentials and issues an access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	token, err := h.tokens.Issue(user.ID, RoleUser)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		AccessToken: token,
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
		User:        toUserResponse(user),
	})
}

// Profile returns the authenticated user.
func (h *Handler) Profile(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.ids.Profile(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toUserResponse(user))
}
