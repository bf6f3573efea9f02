package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// fakeProvider records subscriptions and lets the test fire callbacks.
type fakeProvider struct {
	mu            sync.Mutex
	onChange      func(*models.Identity)
	subscriptions int
	unsubscribed  int
	signInErr     error
	signOutCalls  int
}

func (p *fakeProvider) SubscribeToSession(onChange func(*models.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions++
	p.onChange = onChange
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.unsubscribed++
	}
}

func (p *fakeProvider) emit(identity *models.Identity) {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	fn(identity)
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (models.Identity, error) {
	if p.signInErr != nil {
		return models.Identity{}, p.signInErr
	}
	return models.Identity{ID: "u1", Email: email}, nil
}

func (p *fakeProvider) SignInWithFederatedProvider(ctx context.Context, idToken string) (models.Identity, error) {
	if idToken == "" {
		return models.Identity{}, models.ErrPopupClosed
	}
	return models.Identity{ID: "g1", Email: "g@example.com"}, nil
}

func (p *fakeProvider) CreateAccount(ctx context.Context, email, password, displayName string) (models.Identity, error) {
	return models.Identity{ID: "new", Email: email, DisplayName: displayName}, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	return nil
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
		return Event{}
	}
}

func TestReadinessLatch(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)

	if state, _ := m.Current(); state != StateUnknown {
		t.Fatalf("initial state = %v, want unknown", state)
	}
	if m.Ready() {
		t.Fatal("ready before first callback")
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	u1 := &models.Identity{ID: "u1", Email: "u1@example.com"}
	provider.emit(u1)

	state, identity := m.Current()
	if state != StateAuthenticated || identity == nil || identity.ID != "u1" {
		t.Fatalf("state = %v identity = %+v, want authenticated u1", state, identity)
	}
	if !m.Ready() {
		t.Fatal("expected ready after first callback")
	}

	provider.emit(nil)

	state, identity = m.Current()
	if state != StateUnauthenticated || identity != nil {
		t.Fatalf("state = %v identity = %+v, want unauthenticated", state, identity)
	}
	if !m.Ready() {
		t.Error("readiness reverted after sign-out")
	}
}

func TestIdentityReplacedWholesale(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	original := &models.Identity{ID: "u1", Email: "a@example.com", DisplayName: "Asha"}
	provider.emit(original)

	// Mutating the provider's value or the returned copy must not leak in.
	original.DisplayName = "Mutated"
	got := m.Identity()
	got.Email = "changed@example.com"

	again := m.Identity()
	if again.DisplayName != "Asha" || again.Email != "a@example.com" {
		t.Errorf("identity was partially mutated: %+v", again)
	}
}

func TestStartOnlyOnce(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start error = %v, want ErrAlreadyStarted", err)
	}
	if provider.subscriptions != 1 {
		t.Errorf("subscriptions = %d, want 1", provider.subscriptions)
	}

	m.Close()
	if provider.unsubscribed != 1 {
		t.Errorf("unsubscribed = %d, want 1", provider.unsubscribed)
	}
	if err := m.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close error = %v, want ErrClosed", err)
	}
}

func TestSubscribeDeliversEvents(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)
	events, cancel := m.Subscribe()
	defer cancel()

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	provider.emit(&models.Identity{ID: "u1"})
	ev := recv(t, events)
	if ev.State != StateAuthenticated || ev.Identity.ID != "u1" {
		t.Errorf("unexpected event %+v", ev)
	}
	firstEpoch := ev.Epoch

	provider.emit(nil)
	ev = recv(t, events)
	if ev.State != StateUnauthenticated || ev.Identity != nil {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Epoch <= firstEpoch {
		t.Errorf("epoch did not advance on owner change: %d -> %d", firstEpoch, ev.Epoch)
	}
}

func TestEpochStableForSameOwner(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	provider.emit(&models.Identity{ID: "u1", DisplayName: "Old"})
	epoch := m.Epoch()
	provider.emit(&models.Identity{ID: "u1", DisplayName: "New"})

	if m.Epoch() != epoch {
		t.Errorf("epoch changed for same owner: %d -> %d", epoch, m.Epoch())
	}
	if m.Identity().DisplayName != "New" {
		t.Error("identity not replaced")
	}
}

func TestEpochHooksRunInsideTransition(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)

	var epochs []uint64
	m.OnEpochChange(func(epoch uint64) {
		if m.mu.TryRLock() {
			m.mu.RUnlock()
			t.Error("new identity readable while the hook runs")
		}
		epochs = append(epochs, epoch)
	})
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	provider.emit(&models.Identity{ID: "u1"})
	provider.emit(&models.Identity{ID: "u1", DisplayName: "Renamed"})
	provider.emit(&models.Identity{ID: "u2"})
	provider.emit(nil)

	want := []uint64{1, 2, 3}
	if len(epochs) != len(want) {
		t.Fatalf("hook epochs = %v, want %v", epochs, want)
	}
	for i := range want {
		if epochs[i] != want[i] {
			t.Errorf("hook %d saw epoch %d, want %d", i, epochs[i], want[i])
		}
	}
	if m.Epoch() != 3 {
		t.Errorf("Epoch() = %d, want 3", m.Epoch())
	}
}

func TestLateSubscriberGetsCurrentState(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	provider.emit(nil)

	events, cancel := m.Subscribe()
	defer cancel()

	ev := recv(t, events)
	if ev.State != StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", ev.State)
	}
}

func TestCancelAndCloseCloseChannels(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)

	events, cancel := m.Subscribe()
	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("expected channel closed after cancel")
	}

	other, _ := m.Subscribe()
	m.Close()
	if _, ok := <-other; ok {
		t.Error("expected channel closed after Close")
	}
}

func TestWaitReady(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.WaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitReady error = %v, want deadline exceeded", err)
	}

	go provider.emit(nil)
	if err := m.WaitReady(context.Background()); err != nil {
		t.Errorf("WaitReady failed: %v", err)
	}
}

func TestSignInIsRelayedOnly(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	provider.emit(nil)

	if _, err := m.SignIn(context.Background(), "u1@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	// No provider callback yet, so the state is unchanged.
	if state, _ := m.Current(); state != StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated until provider calls back", state)
	}

	provider.signInErr = models.ErrInvalidCredential
	if _, err := m.SignIn(context.Background(), "u1@example.com", "wrong"); !errors.Is(err, models.ErrInvalidCredential) {
		t.Errorf("SignIn error = %v, want ErrInvalidCredential", err)
	}

	if _, err := m.SignInFederated(context.Background(), ""); !errors.Is(err, models.ErrPopupClosed) {
		t.Errorf("SignInFederated error = %v, want ErrPopupClosed", err)
	}

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if provider.signOutCalls != 1 {
		t.Errorf("sign-out calls = %d, want 1", provider.signOutCalls)
	}
}
