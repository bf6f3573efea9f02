// Package session tracks who is signed in.
//
// The Manager holds exactly one subscription to the identity provider for the
// lifetime of the process. Its state only changes when the provider calls back;
// sign-in and sign-out calls are relayed to the provider and their effect is
// observed through Subscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

var (
	ErrAlreadyStarted = errors.New("session manager already started")
	ErrClosed         = errors.New("session manager closed")
)

// State is the identity state of the session.
type State int

const (
	// StateUnknown is the initial state, before the provider's first callback.
	// It never recurs once left.
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Provider is the external identity provider.
type Provider interface {
	// SubscribeToSession registers onChange to be called whenever the signed-in
	// identity changes; nil means signed out. The first call may happen before
	// or after SubscribeToSession returns.
	SubscribeToSession(onChange func(*models.Identity)) (unsubscribe func())

	SignInWithPassword(ctx context.Context, email, password string) (models.Identity, error)
	SignInWithFederatedProvider(ctx context.Context, idToken string) (models.Identity, error)
	CreateAccount(ctx context.Context, email, password, displayName string) (models.Identity, error)
	SignOut(ctx context.Context) error
}

// Event is delivered to subscribers on every provider callback.
type Event struct {
	State    State
	Identity *models.Identity
	// Epoch increases whenever the owner of the session changes.
	Epoch uint64
}

// subscriberBuffer is the number of events a slow subscriber may lag behind
// before the oldest undelivered event is dropped.
const subscriberBuffer = 8

// Manager owns the session state machine.
type Manager struct {
	provider Provider
	logger   *slog.Logger

	mu          sync.RWMutex
	state       State
	identity    *models.Identity
	epoch       uint64
	started     bool
	closed      bool
	unsubscribe func()
	subs        map[int]chan Event
	nextSub     int
	onEpoch     []func(epoch uint64)

	ready     chan struct{}
	readyOnce sync.Once
}

// NewManager creates a manager in the Unknown state. Call Start to subscribe.
func NewManager(provider Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		provider: provider,
		logger:   logger.With("component", "session"),
		subs:     make(map[int]chan Event),
		ready:    make(chan struct{}),
	}
}

// Start subscribes to the identity provider. It may be called once.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	// The provider may call back synchronously, so no lock is held here.
	unsubscribe := m.provider.SubscribeToSession(m.handle)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	m.logger.Debug("Subscribed to identity provider")
	return nil
}

// Close drops the provider subscription and closes every subscriber channel.
// The manager cannot be restarted.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.logger.Debug("Session manager closed")
}

func (m *Manager) handle(identity *models.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	var next *models.Identity
	state := StateUnauthenticated
	if identity != nil {
		copied := *identity
		next = &copied
		state = StateAuthenticated
	}

	changed := ownerID(m.identity) != ownerID(next) || m.state == StateUnknown
	if changed {
		m.epoch++
	}
	m.state = state
	m.identity = next

	// Readers of the new identity wait on mu, so hooks finish first.
	if changed {
		for _, fn := range m.onEpoch {
			fn(m.epoch)
		}
	}

	m.readyOnce.Do(func() { close(m.ready) })

	m.logger.Info("Session changed", "state", state, "user_id", ownerID(next), "epoch", m.epoch)

	ev := m.eventLocked()
	for _, ch := range m.subs {
		deliver(ch, ev)
	}
}

func ownerID(identity *models.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}

// deliver sends ev without blocking, dropping the oldest queued event when the
// subscriber is full.
func deliver(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (m *Manager) eventLocked() Event {
	ev := Event{State: m.state, Epoch: m.epoch}
	if m.identity != nil {
		copied := *m.identity
		ev.Identity = &copied
	}
	return ev
}

// OnEpochChange registers fn to run inside every owner change, before any
// caller can observe the new identity. fn must not call back into m.
// Register hooks before Start.
func (m *Manager) OnEpochChange(fn func(epoch uint64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEpoch = append(m.onEpoch, fn)
}

// Subscribe returns a channel of session events and a function that cancels
// the subscription. A subscriber that joins after the session is ready
// receives the current state immediately.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	if m.state != StateUnknown {
		ch <- m.eventLocked()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := m.subs[id]; ok {
				close(sub)
				delete(m.subs, id)
			}
		})
	}
	return ch, cancel
}

// Current returns the state and a copy of the identity, nil unless authenticated.
func (m *Manager) Current() (State, *models.Identity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev := m.eventLocked()
	return ev.State, ev.Identity
}

// Identity returns a copy of the signed-in identity, or nil.
func (m *Manager) Identity() *models.Identity {
	_, identity := m.Current()
	return identity
}

// Epoch returns the current session epoch.
func (m *Manager) Epoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Ready reports whether the provider has called back at least once.
// Once true it stays true.
func (m *Manager) Ready() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the session is ready or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignIn asks the provider to sign in with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) (models.Identity, error) {
	identity, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.logger.Warn("Sign-in failed", "email", email, "error", err)
		return models.Identity{}, err
	}
	return identity, nil
}

// SignInFederated asks the provider to sign in with a federated ID token.
func (m *Manager) SignInFederated(ctx context.Context, idToken string) (models.Identity, error) {
	identity, err := m.provider.SignInWithFederatedProvider(ctx, idToken)
	if err != nil {
		m.logger.Warn("Federated sign-in failed", "error", err)
		return models.Identity{}, err
	}
	return identity, nil
}

// Register asks the provider to create an account; on success the provider
// signs the new user in.
func (m *Manager) Register(ctx context.Context, email, password, displayName string) (models.Identity, error) {
	identity, err := m.provider.CreateAccount(ctx, email, password, displayName)
	if err != nil {
		m.logger.Warn("Registration failed", "email", email, "error", err)
		return models.Identity{}, err
	}
	return identity, nil
}

// SignOut asks the provider to end the session.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("Sign-out failed", "error", err)
		return err
	}
	return nil
}
