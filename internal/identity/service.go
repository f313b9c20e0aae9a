package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists indicates the email or passport number is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials indicates a failed email/password check.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	passportPattern = regexp.MustCompile(`^[A-Z0-9]{6,15}$`)
)

// Service manages the user lifecycle: registration, credential checks and KYC
// status transitions driven by the verification provider.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a user with a hashed password, balance-less until a wallet
// is provisioned, and KYC status PENDING.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	passport := strings.ToUpper(strings.TrimSpace(input.PassportNumber))

	if !emailPattern.MatchString(email) {
		return User{}, errors.New("invalid email format")
	}
	if !passportPattern.MatchString(passport) {
		return User{}, errors.New("invalid passport number format")
	}
	if input.FullName == "" {
		return User{}, errors.New("full name is required")
	}
	if len(input.Password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}

	if _, err := s.repo.FindByIdentifier(ctx, email); err == nil {
		return User{}, ErrUserExists
	}
	if _, err := s.repo.FindByIdentifier(ctx, passport); err == nil {
		return User{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:             uuid.NewString(),
		Email:          email,
		PassportNumber: passport,
		FullName:       input.FullName,
		Phone:          input.Phone,
		PasswordHash:   hash,
		KYCStatus:      KYCPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies the email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Profile fetches a user by id.
func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	return s.repo.FindByID(ctx, userID)
}

// ApplyKYCResult transitions the user's KYC status from a verification
// provider event. The identifier may be the email or the passport number.
func (s *Service) ApplyKYCResult(ctx context.Context, identifier, kycID, status string) (User, error) {
	user, err := s.repo.FindByIdentifier(ctx, normalizeIdentifier(identifier))
	if err != nil {
		return User{}, err
	}

	next := KYCPending
	switch strings.ToLower(status) {
	case "approved":
		next = KYCApproved
	case "rejected":
		next = KYCRejected
	}

	if err := s.repo.UpdateKYC(ctx, user.ID, next, kycID); err != nil {
		return User{}, err
	}
	user.KYCStatus = next
	user.KYCRef = kycID
	return user, nil
}

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier)
	}
	return strings.ToUpper(identifier)
}
