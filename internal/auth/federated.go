package auth

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

var (
	ErrFederationDisabled = errors.New("federated sign-in is not configured")
	ErrUnverifiedEmail    = errors.New("federated account email is not verified")
)

// TokenValidator verifies an ID token issued for audience.
// *idtoken.Validator satisfies it.
type TokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// FederatedAuthenticator signs users in with Google ID tokens and creates an
// account on first sign-in.
type FederatedAuthenticator struct {
	validator TokenValidator
	audience  string
	storage   Accounts
}

// NewFederatedAuthenticator creates an authenticator that accepts tokens
// issued for audience (the OAuth client ID).
func NewFederatedAuthenticator(validator TokenValidator, audience string, storage Accounts) *FederatedAuthenticator {
	return &FederatedAuthenticator{
		validator: validator,
		audience:  audience,
		storage:   storage,
	}
}

// NewGoogleValidator returns a validator backed by Google's public keys.
func NewGoogleValidator(ctx context.Context) (TokenValidator, error) {
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}
	return v, nil
}

// AuthenticateToken validates idToken and returns the matching user, creating
// one if this email has never signed in.
func (a *FederatedAuthenticator) AuthenticateToken(ctx context.Context, idToken string) (*models.User, error) {
	if a == nil || a.validator == nil || a.audience == "" {
		return nil, ErrFederationDisabled
	}

	payload, err := a.validator.Validate(ctx, idToken, a.audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: token has no email claim", ErrInvalidToken)
	}
	// A missing or non-boolean email_verified claim counts as unverified.
	if verified, _ := payload.Claims["email_verified"].(bool); !verified {
		return nil, ErrUnverifiedEmail
	}

	user, err := a.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	name, _ := payload.Claims["name"].(string)
	user = models.NewUser(email, name, "")
	if err := a.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
