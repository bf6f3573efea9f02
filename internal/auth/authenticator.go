package auth

import (
	"context"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// Authenticator owns email/password accounts. Federated sign-in has no
// registration step and lives in FederatedAuthenticator instead.
type Authenticator interface {
	// Register fails with ErrEmailExists, ErrWeakPassword or ErrInvalidEmail
	// when the account cannot be created.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)
	ValidateCredential(credential string) error
}
