package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

type memRemote struct {
	mu     sync.Mutex
	docs   map[string][]models.Record // key: owner/collection
	nextID int
	calls  int
}

func newMemRemote() *memRemote {
	return &memRemote{docs: make(map[string][]models.Record)}
}

func key(owner string, coll models.Collection) string {
	return owner + "/" + string(coll)
}

func (m *memRemote) ListAll(ctx context.Context, ownerID string, coll models.Collection) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return append([]models.Record(nil), m.docs[key(ownerID, coll)]...), nil
}

func (m *memRemote) Create(ctx context.Context, ownerID string, coll models.Collection, draft models.Draft) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.nextID++
	r := models.Record{
		ID:        fmt.Sprintf("r%d", m.nextID),
		Label:     draft.Label,
		Amount:    draft.Amount,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	k := key(ownerID, coll)
	m.docs[k] = append(m.docs[k], r)
	return r, nil
}

func (m *memRemote) Update(ctx context.Context, ownerID string, coll models.Collection, id string, patch models.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	k := key(ownerID, coll)
	for i, r := range m.docs[k] {
		if r.ID == id {
			m.docs[k][i] = patch.Apply(r)
			return nil
		}
	}
	return &models.StoreError{Op: "update", Reason: models.ReasonNotFound, Err: errors.New(id)}
}

func (m *memRemote) Delete(ctx context.Context, ownerID string, coll models.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	k := key(ownerID, coll)
	out := m.docs[k][:0]
	for _, r := range m.docs[k] {
		if r.ID != id {
			out = append(out, r)
		}
	}
	m.docs[k] = out
	return nil
}

func (m *memRemote) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type stubProvider struct {
	mu       sync.Mutex
	onChange func(*models.Identity)
}

func (p *stubProvider) SubscribeToSession(onChange func(*models.Identity)) func() {
	p.mu.Lock()
	p.onChange = onChange
	p.mu.Unlock()
	return func() {}
}

func (p *stubProvider) emit(identity *models.Identity) {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	fn(identity)
}

func (p *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (models.Identity, error) {
	id := models.Identity{ID: email, Email: email}
	p.emit(&id)
	return id, nil
}

func (p *stubProvider) SignInWithFederatedProvider(ctx context.Context, idToken string) (models.Identity, error) {
	return models.Identity{}, models.ErrPopupClosed
}

func (p *stubProvider) CreateAccount(ctx context.Context, email, password, displayName string) (models.Identity, error) {
	return models.Identity{}, models.ErrEmailInUse
}

func (p *stubProvider) SignOut(ctx context.Context) error {
	p.emit(nil)
	return nil
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T) (*App, *stubProvider, *memRemote) {
	t.Helper()
	provider := &stubProvider{}
	remote := newMemRemote()
	a := New(provider, remote, nil)
	if err := a.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a, provider, remote
}

func waitSynced(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.WaitSynced(ctx); err != nil {
		t.Fatalf("WaitSynced failed: %v", err)
	}
}

func TestSignInTriggersInitialFetch(t *testing.T) {
	a, provider, remote := setup(t)
	remote.docs[key("u1", models.CollectionItems)] = []models.Record{{ID: "i1", Label: "Cement", Amount: money("100")}}
	remote.docs[key("u1", models.CollectionCosts)] = []models.Record{{ID: "c1", Label: "Permit", Amount: money("50")}}

	provider.emit(&models.Identity{ID: "u1", Email: "u1@example.com"})
	waitSynced(t, a)

	if a.Items.Len() != 1 || a.Costs.Len() != 1 {
		t.Fatalf("items=%d costs=%d, want 1/1", a.Items.Len(), a.Costs.Len())
	}

	view := a.Dashboard()
	if !view.GrandTotal.Equal(money("150")) {
		t.Errorf("grand total = %s, want 150", view.GrandTotal)
	}
}

func TestSignOutClearsCollections(t *testing.T) {
	a, provider, remote := setup(t)
	remote.docs[key("u1", models.CollectionItems)] = []models.Record{{ID: "i1", Label: "Cement", Amount: money("100")}}

	provider.emit(&models.Identity{ID: "u1"})
	waitSynced(t, a)
	if a.Items.Len() != 1 {
		t.Fatalf("items = %d, want 1", a.Items.Len())
	}

	if err := a.Session.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	waitSynced(t, a)

	if a.Items.Len() != 0 || a.Costs.Len() != 0 {
		t.Errorf("collections not cleared after sign-out: items=%d costs=%d", a.Items.Len(), a.Costs.Len())
	}
	if !a.Session.Ready() {
		t.Error("readiness reverted after sign-out")
	}
}

func TestValidationHappensBeforeDispatch(t *testing.T) {
	a, provider, remote := setup(t)
	provider.emit(&models.Identity{ID: "u1"})
	waitSynced(t, a)

	before := remote.callCount()
	_, err := a.AddItem(context.Background(), models.Draft{Label: "", Amount: money("5")})
	if !models.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if remote.callCount() != before {
		t.Error("remote store was called for an invalid draft")
	}
	if a.Items.Len() != 0 {
		t.Error("collection changed after rejected draft")
	}

	err = a.UpdateCost(context.Background(), "c1", models.Patch{Amount: models.AmountPtr(money("-5"))})
	if !models.IsValidationError(err) {
		t.Errorf("expected validation error for negative amount, got %v", err)
	}
}

func TestCRUDThroughApp(t *testing.T) {
	a, provider, _ := setup(t)
	provider.emit(&models.Identity{ID: "u1"})
	waitSynced(t, a)
	ctx := context.Background()

	item, err := a.AddItem(ctx, models.Draft{Label: "Cement", Amount: money("120.00")})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if item.ID == "" {
		t.Error("expected generated id")
	}

	cost, err := a.AddCost(ctx, models.Draft{Label: "Permit", Amount: money("30")})
	if err != nil {
		t.Fatalf("AddCost failed: %v", err)
	}
	if _, err := a.AddCost(ctx, models.Draft{Label: "Transport", Amount: money("20")}); err != nil {
		t.Fatalf("AddCost failed: %v", err)
	}

	if err := a.UpdateItem(ctx, item.ID, models.Patch{Amount: models.AmountPtr(money("100"))}); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	filtered := a.CostsView("PERMIT")
	if len(filtered.Records) != 1 || !filtered.Subtotal.Equal(money("30")) {
		t.Errorf("filtered view = %+v", filtered)
	}

	view := a.Dashboard()
	if !view.ItemsTotal.Equal(money("100")) || !view.CostsTotal.Equal(money("50")) {
		t.Errorf("totals = %s/%s, want 100/50", view.ItemsTotal, view.CostsTotal)
	}

	if err := a.RemoveCost(ctx, cost.ID); err != nil {
		t.Fatalf("RemoveCost failed: %v", err)
	}
	if err := a.RemoveItem(ctx, item.ID); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if a.Items.Len() != 0 || a.Costs.Len() != 1 {
		t.Errorf("items=%d costs=%d, want 0/1", a.Items.Len(), a.Costs.Len())
	}

	// Full refetch yields the same state.
	if err := a.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if a.Costs.Len() != 1 {
		t.Errorf("costs after refresh = %d, want 1", a.Costs.Len())
	}
}

func TestOperationsRequireSession(t *testing.T) {
	a, provider, _ := setup(t)
	provider.emit(nil)
	waitSynced(t, a)

	_, err := a.AddItem(context.Background(), models.Draft{Label: "Cement", Amount: money("1")})
	if !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("AddItem error = %v, want ErrNotSignedIn", err)
	}
	if err := a.RemoveCost(context.Background(), "x"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("RemoveCost error = %v, want ErrNotSignedIn", err)
	}
	if err := a.Refresh(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Refresh error = %v, want ErrNotSignedIn", err)
	}
}

func TestOwnerChangeSwapsCollections(t *testing.T) {
	a, provider, remote := setup(t)
	remote.docs[key("u1", models.CollectionItems)] = []models.Record{{ID: "a", Label: "Mine", Amount: money("1")}}
	remote.docs[key("u2", models.CollectionItems)] = []models.Record{
		{ID: "b", Label: "Theirs", Amount: money("2")},
		{ID: "c", Label: "Theirs too", Amount: money("3")},
	}

	provider.emit(&models.Identity{ID: "u1"})
	waitSynced(t, a)
	provider.emit(&models.Identity{ID: "u2"})
	waitSynced(t, a)

	records := a.Items.Records()
	if len(records) != 2 || records[0].ID != "b" {
		t.Errorf("expected u2's records, got %+v", records)
	}
}

func TestOwnerChangeClearsBeforeNewOwnerIsVisible(t *testing.T) {
	a, provider, remote := setup(t)
	remote.docs[key("u1", models.CollectionItems)] = []models.Record{{ID: "a", Label: "Mine", Amount: money("1")}}

	provider.emit(&models.Identity{ID: "u1"})
	waitSynced(t, a)
	if a.Items.Len() != 1 {
		t.Fatalf("items = %d, want 1", a.Items.Len())
	}

	// No waiting: by the time the callback returns the old owner's records are gone.
	provider.emit(&models.Identity{ID: "u2"})
	if a.Items.Len() != 0 || a.Costs.Len() != 0 {
		t.Errorf("u1's records still cached after switching to u2: items=%d costs=%d", a.Items.Len(), a.Costs.Len())
	}
	if owner, _ := a.owner(); owner != "u2" {
		t.Errorf("owner = %q, want u2", owner)
	}
}
