package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/auth"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/middleware"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/storage"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/api"
)

// AuthService serves budget.v1.AuthService. Every successful sign-in path
// returns the account together with a fresh session token.
type AuthService struct {
	passwords auth.Authenticator
	federated *auth.FederatedAuthenticator
	tokens    *auth.JWTManager
	accounts  storage.UserStore
	log       *slog.Logger
}

// NewAuthService wires the sign-in methods. With a nil federated
// authenticator FederatedLogin answers CodeUnimplemented.
func NewAuthService(passwords auth.Authenticator, federated *auth.FederatedAuthenticator, tokens *auth.JWTManager, accounts storage.UserStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		passwords: passwords,
		federated: federated,
		tokens:    tokens,
		accounts:  accounts,
		log:       logger.With("service", "auth"),
	}
}

// authError builds a connect error tagged with a reason clients can map back.
func authError(code connect.Code, reason string, err error) *connect.Error {
	connectErr := connect.NewError(code, err)
	connectErr.Meta().Set(api.AuthReasonHeader, reason)
	return connectErr
}

func toAPIUser(user *models.User) *api.User {
	return &api.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}
}

// issue signs a session token for user. method names the sign-in path in logs.
func (s *AuthService) issue(user *models.User, method string) (*api.User, string, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		s.log.Error("Could not sign session token", "method", method, "user_id", user.ID, "error", err)
		return nil, "", connect.NewError(connect.CodeInternal, err)
	}
	s.log.Info("Session issued", "method", method, "user_id", user.ID)
	return toAPIUser(user), token, nil
}

func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	user, err := s.passwords.Register(ctx, req.Msg.Email, req.Msg.DisplayName, req.Msg.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrEmailExists):
		return nil, authError(connect.CodeAlreadyExists, api.AuthReasonEmailInUse, err)
	case errors.Is(err, auth.ErrWeakPassword):
		return nil, authError(connect.CodeInvalidArgument, api.AuthReasonWeakPassword, err)
	case errors.Is(err, auth.ErrInvalidEmail):
		return nil, authError(connect.CodeInvalidArgument, api.AuthReasonInvalidEmail, err)
	default:
		s.log.Error("Account creation failed", "email", req.Msg.Email, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	u, token, err := s.issue(user, "register")
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.RegisterResponse{User: u, Token: token}), nil
}

// Login never says whether the email or the password was wrong.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	rejected := authError(connect.CodeUnauthenticated, api.AuthReasonInvalidCredential, auth.ErrInvalidCredentials)
	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, rejected
	}

	user, err := s.passwords.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		s.log.Warn("Password sign-in rejected", "email", req.Msg.Email)
		return nil, rejected
	}

	u, token, err := s.issue(user, "password")
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.LoginResponse{User: u, Token: token}), nil
}

// FederatedLogin exchanges a Google ID token for a session, creating the
// account on first use.
func (s *AuthService) FederatedLogin(ctx context.Context, req *connect.Request[api.FederatedLoginRequest]) (*connect.Response[api.FederatedLoginResponse], error) {
	if req.Msg.IDToken == "" {
		return nil, authError(connect.CodeInvalidArgument, api.AuthReasonPopupClosed, errors.New("sign-in was cancelled"))
	}

	user, err := s.federated.AuthenticateToken(ctx, req.Msg.IDToken)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrFederationDisabled):
		return nil, connect.NewError(connect.CodeUnimplemented, err)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnverifiedEmail):
		s.log.Warn("Google sign-in rejected", "error", err)
		return nil, authError(connect.CodeUnauthenticated, api.AuthReasonInvalidCredential, err)
	default:
		s.log.Error("Google sign-in failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	u, token, err := s.issue(user, "google")
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.FederatedLoginResponse{User: u, Token: token}), nil
}

// Logout has nothing to revoke; the client drops its token.
func (s *AuthService) Logout(ctx context.Context, req *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error) {
	s.log.Info("Signed out", "user_id", middleware.GetUserID(ctx))
	return connect.NewResponse(&api.LogoutResponse{}), nil
}

// GetCurrentUser resolves the caller's token to its account. A token whose
// account no longer exists is rejected like any other bad token.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	callerID := middleware.GetUserID(ctx)
	if callerID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.accounts.GetUserByID(ctx, callerID)
	switch {
	case err != nil:
		s.log.Error("Account lookup failed", "user_id", callerID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	case user == nil:
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}
	return connect.NewResponse(&api.GetCurrentUserResponse{User: toAPIUser(user)}), nil
}
