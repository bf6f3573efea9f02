package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"golang.org/x/crypto/bcrypt"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// Accounts is the slice of storage.UserStore the authenticators need.
type Accounts interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordAuthenticator stores bcrypt hashes and checks passwords against them.
type PasswordAuthenticator struct {
	accounts Accounts
	cost     int
}

func NewPasswordAuthenticator(accounts Accounts) *PasswordAuthenticator {
	return &PasswordAuthenticator{accounts: accounts, cost: bcrypt.DefaultCost}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address format only; no MX lookup.
func ValidateEmail(email string) error {
	if checkmail.ValidateFormat(email) != nil {
		return ErrInvalidEmail
	}
	return nil
}

func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential string) (*models.User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	switch taken, err := a.accounts.GetUserByEmail(ctx, email); {
	case err != nil:
		return nil, fmt.Errorf("look up %s: %w", email, err)
	case taken != nil:
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser(email, strings.TrimSpace(displayName), string(hash))
	if err := a.accounts.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	return user, nil
}

// Authenticate returns ErrInvalidCredentials for an unknown email, a wrong
// password, or an account that only signs in through a federated provider.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	user, err := a.accounts.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil || user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
