package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/auth"
)

type callerKey struct{}

// caller is the identity a verified session token grants to a request.
type caller struct {
	userID string
	email  string
}

// WithUser returns ctx carrying the given user ID and email.
func WithUser(ctx context.Context, userID, email string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller{userID: userID, email: email})
}

func callerFrom(ctx context.Context) caller {
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}

// GetUserID is "" for anonymous requests.
func GetUserID(ctx context.Context) string { return callerFrom(ctx).userID }

func GetEmail(ctx context.Context) string { return callerFrom(ctx).email }

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}

// authenticate resolves the Authorization header into a context with the
// caller attached.
func authenticate(ctx context.Context, jwtManager *auth.JWTManager, header string) (context.Context, error) {
	if header == "" {
		return ctx, auth.ErrMissingToken
	}
	token, ok := bearerToken(header)
	if !ok {
		return ctx, auth.ErrInvalidToken
	}
	claims, err := jwtManager.Validate(token)
	if err != nil {
		return ctx, err
	}
	return WithUser(ctx, claims.UserID, claims.Email), nil
}

// RequireAuth rejects requests without a valid session token with
// CodeUnauthenticated.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			ctx, err := authenticate(ctx, jwtManager, req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(ctx, req)
		}
	}
}

// OptionalAuth attaches the caller when the token verifies and otherwise
// lets the request through anonymously.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if authed, err := authenticate(ctx, jwtManager, req.Header().Get("Authorization")); err == nil {
				ctx = authed
			}
			return next(ctx, req)
		}
	}
}
