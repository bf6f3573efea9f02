// Package client talks to the budget server on behalf of the CLI. It adapts
// the AuthService to a session identity provider and the RecordService to the
// collection engine's remote store.
package client

import (
	"context"
	"log/slog"
	"sync"

	"connectrpc.com/connect"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/api"
)

// IdentityClient signs users in against the AuthService and keeps the
// resulting token. It restores a saved session on first subscription.
type IdentityClient struct {
	auth   *api.AuthServiceClient
	tokens *TokenFile
	logger *slog.Logger

	mu       sync.Mutex
	token    string
	identity *models.Identity
	restored bool
	subs     map[int]func(*models.Identity)
	nextSub  int

	restoreOnce sync.Once
	// notifyMu serializes callbacks so subscribers see changes in order.
	notifyMu sync.Mutex
}

// NewIdentityClient creates a client for the server at baseURL.
func NewIdentityClient(httpClient connect.HTTPClient, baseURL string, tokens *TokenFile, logger *slog.Logger) *IdentityClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &IdentityClient{
		tokens: tokens,
		logger: logger.With("component", "identity"),
		subs:   make(map[int]func(*models.Identity)),
	}
	c.auth = api.NewAuthServiceClient(httpClient, baseURL, connect.WithInterceptors(c.Interceptor()))
	return c
}

// Token returns the current session token, or "".
func (c *IdentityClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Interceptor attaches the session token to outgoing requests.
func (c *IdentityClient) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token := c.Token(); token != "" && req.Header().Get("Authorization") == "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

// SubscribeToSession registers onChange. The first callback arrives once the
// saved session, if any, has been checked with the server.
func (c *IdentityClient) SubscribeToSession(onChange func(*models.Identity)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = onChange
	restored := c.restored
	c.mu.Unlock()

	if restored {
		go c.notifyOne(id)
	} else {
		c.restoreOnce.Do(func() { go c.restore() })
	}

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// restore loads the saved token and asks the server who it belongs to.
func (c *IdentityClient) restore() {
	token, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("Ignoring unreadable session file", "error", err)
	}

	var identity *models.Identity
	if token != "" {
		req := connect.NewRequest(&api.GetCurrentUserRequest{})
		req.Header().Set("Authorization", "Bearer "+token)

		resp, err := c.auth.GetCurrentUser(context.Background(), req)
		switch {
		case err == nil:
			restored := toIdentity(resp.Msg.User)
			identity = &restored
		case isTransport(err):
			// Keep the token for the next run; this one starts signed out.
			c.logger.Warn("Could not reach server to restore session", "error", err)
		default:
			c.logger.Info("Saved session is no longer valid", "error", err)
			if err := c.tokens.Clear(); err != nil {
				c.logger.Warn("Failed to clear session file", "error", err)
			}
		}
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.restored {
		// A sign-in or sign-out finished first and already notified.
		c.mu.Unlock()
		return
	}
	if identity != nil {
		c.token = token
	}
	c.identity = identity
	c.restored = true
	callbacks := c.callbacksLocked()
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(copyIdentity(identity))
	}
}

// set replaces the session and notifies every subscriber.
func (c *IdentityClient) set(identity *models.Identity, token string) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.token = token
	c.identity = copyIdentity(identity)
	c.restored = true
	callbacks := c.callbacksLocked()
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(copyIdentity(identity))
	}
}

func (c *IdentityClient) callbacksLocked() []func(*models.Identity) {
	callbacks := make([]func(*models.Identity), 0, len(c.subs))
	for _, fn := range c.subs {
		callbacks = append(callbacks, fn)
	}
	return callbacks
}

func (c *IdentityClient) notifyOne(id int) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	fn, ok := c.subs[id]
	current := c.identity
	c.mu.Unlock()

	if ok {
		fn(copyIdentity(current))
	}
}

func copyIdentity(identity *models.Identity) *models.Identity {
	if identity == nil {
		return nil
	}
	copied := *identity
	return &copied
}

func toIdentity(user *api.User) models.Identity {
	if user == nil {
		return models.Identity{}
	}
	return models.Identity{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
}

// signedIn stores the token and announces the new identity.
func (c *IdentityClient) signedIn(user *api.User, token string) models.Identity {
	identity := toIdentity(user)
	if err := c.tokens.Save(token); err != nil {
		c.logger.Warn("Failed to persist session", "error", err)
	}
	c.set(&identity, token)
	c.logger.Info("Signed in", "user_id", identity.ID)
	return identity
}

// SignInWithPassword signs in with email and password.
func (c *IdentityClient) SignInWithPassword(ctx context.Context, email, password string) (models.Identity, error) {
	resp, err := c.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: email, Password: password}))
	if err != nil {
		return models.Identity{}, authErr(err)
	}
	return c.signedIn(resp.Msg.User, resp.Msg.Token), nil
}

// SignInWithFederatedProvider exchanges a Google ID token for a session. An
// empty token means the user closed the sign-in flow.
func (c *IdentityClient) SignInWithFederatedProvider(ctx context.Context, idToken string) (models.Identity, error) {
	if idToken == "" {
		return models.Identity{}, &models.AuthError{Kind: models.ErrPopupClosed}
	}
	resp, err := c.auth.FederatedLogin(ctx, connect.NewRequest(&api.FederatedLoginRequest{IDToken: idToken}))
	if err != nil {
		return models.Identity{}, authErr(err)
	}
	return c.signedIn(resp.Msg.User, resp.Msg.Token), nil
}

// CreateAccount registers a new account and signs it in.
func (c *IdentityClient) CreateAccount(ctx context.Context, email, password, displayName string) (models.Identity, error) {
	resp, err := c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}))
	if err != nil {
		return models.Identity{}, authErr(err)
	}
	return c.signedIn(resp.Msg.User, resp.Msg.Token), nil
}

// SignOut ends the session locally. The server is told on a best-effort basis.
func (c *IdentityClient) SignOut(ctx context.Context) error {
	if c.Token() != "" {
		if _, err := c.auth.Logout(ctx, connect.NewRequest(&api.LogoutRequest{})); err != nil {
			c.logger.Debug("Logout call failed", "error", err)
		}
	}
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	c.set(nil, "")
	c.logger.Info("Signed out")
	return nil
}
