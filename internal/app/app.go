// Package app wires the session manager and both record collections into one
// context object that is built once at process start.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/calculator"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/collection"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/session"
)

// ErrNotSignedIn is returned by record operations when no user is signed in.
var ErrNotSignedIn = errors.New("not signed in")

// App is the client-side state of the budget: who is signed in and the two
// synchronized collections.
type App struct {
	Session *session.Manager
	Items   *collection.Engine[collection.Items]
	Costs   *collection.Engine[collection.Costs]

	logger *slog.Logger

	mu         sync.Mutex
	current    *syncRun
	syncNotify chan struct{}
	started    bool
	cancelSub  func()
	loopDone   chan struct{}
}

// syncRun tracks the initial fetch for one session epoch.
type syncRun struct {
	epoch uint64
	done  chan struct{}
	err   error
}

// New builds an App around an identity provider and a remote store.
func New(provider session.Provider, remote collection.RemoteStore, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		Session:    session.NewManager(provider, logger),
		Items:      collection.NewEngine[collection.Items](remote, logger),
		Costs:      collection.NewEngine[collection.Costs](remote, logger),
		logger:     logger.With("component", "app"),
		syncNotify: make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// Start subscribes to session changes and then starts the session manager.
// Every owner change clears both collections before the new owner becomes
// visible and, when someone is signed in, fetches both of theirs.
func (a *App) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return session.ErrAlreadyStarted
	}
	a.started = true
	a.Session.OnEpochChange(func(uint64) {
		a.Items.Reset()
		a.Costs.Reset()
	})
	events, cancel := a.Session.Subscribe()
	a.cancelSub = cancel
	a.mu.Unlock()

	go a.watch(events)

	if err := a.Session.Start(); err != nil {
		cancel()
		return err
	}
	return nil
}

// Close stops the session subscription and waits for the watcher to exit.
func (a *App) Close() {
	a.mu.Lock()
	started := a.started
	cancel := a.cancelSub
	a.mu.Unlock()

	a.Session.Close()
	if cancel != nil {
		cancel()
	}
	if started {
		<-a.loopDone
	}
}

func (a *App) watch(events <-chan session.Event) {
	defer close(a.loopDone)

	var epoch uint64
	for ev := range events {
		if ev.Epoch == epoch {
			continue
		}
		epoch = ev.Epoch

		// Both engines were reset inside the session transition.
		run := &syncRun{epoch: ev.Epoch, done: make(chan struct{})}
		a.setSync(run)

		if ev.State != session.StateAuthenticated {
			close(run.done)
			continue
		}

		ownerID := ev.Identity.ID
		go func() {
			// In-flight fetches are never cancelled; a newer session simply
			// discards their results.
			run.err = a.fetchBoth(context.Background(), ownerID)
			close(run.done)
		}()
	}
}

func (a *App) setSync(run *syncRun) {
	a.mu.Lock()
	a.current = run
	close(a.syncNotify)
	a.syncNotify = make(chan struct{})
	a.mu.Unlock()
}

func (a *App) fetchBoth(ctx context.Context, ownerID string) error {
	var g errgroup.Group
	g.Go(func() error { return a.Items.FetchAll(ctx, ownerID) })
	g.Go(func() error { return a.Costs.FetchAll(ctx, ownerID) })
	if err := g.Wait(); err != nil {
		a.logger.Warn("Initial fetch failed", "user_id", ownerID, "error", err)
		return err
	}
	a.logger.Debug("Initial fetch completed", "user_id", ownerID,
		"items", a.Items.Len(), "costs", a.Costs.Len())
	return nil
}

// WaitSynced blocks until the session is ready and the initial fetch for the
// current session has completed. It returns the fetch error, if any.
func (a *App) WaitSynced(ctx context.Context) error {
	if err := a.Session.WaitReady(ctx); err != nil {
		return err
	}
	for {
		a.mu.Lock()
		run := a.current
		notify := a.syncNotify
		a.mu.Unlock()

		if run != nil && run.epoch == a.Session.Epoch() {
			select {
			case <-run.done:
				return run.err
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Refresh fetches both collections again for the signed-in user.
func (a *App) Refresh(ctx context.Context) error {
	owner, err := a.owner()
	if err != nil {
		return err
	}
	return a.fetchBoth(ctx, owner)
}

func (a *App) owner() (string, error) {
	identity := a.Session.Identity()
	if identity == nil {
		return "", ErrNotSignedIn
	}
	return identity.ID, nil
}

// AddItem validates draft and creates it in the items collection.
func (a *App) AddItem(ctx context.Context, draft models.Draft) (models.Record, error) {
	return create(ctx, a, a.Items, draft)
}

// UpdateItem validates patch and applies it to an item.
func (a *App) UpdateItem(ctx context.Context, id string, patch models.Patch) error {
	return replace(ctx, a, a.Items, id, patch)
}

// RemoveItem deletes an item.
func (a *App) RemoveItem(ctx context.Context, id string) error {
	return remove(ctx, a, a.Items, id)
}

// AddCost validates draft and creates it in the other-costs collection.
func (a *App) AddCost(ctx context.Context, draft models.Draft) (models.Record, error) {
	return create(ctx, a, a.Costs, draft)
}

// UpdateCost validates patch and applies it to a cost.
func (a *App) UpdateCost(ctx context.Context, id string, patch models.Patch) error {
	return replace(ctx, a, a.Costs, id, patch)
}

// RemoveCost deletes a cost.
func (a *App) RemoveCost(ctx context.Context, id string) error {
	return remove(ctx, a, a.Costs, id)
}

func create[K collection.Kind](ctx context.Context, a *App, e *collection.Engine[K], draft models.Draft) (models.Record, error) {
	if err := draft.Validate(); err != nil {
		return models.Record{}, err
	}
	owner, err := a.owner()
	if err != nil {
		return models.Record{}, err
	}
	return e.Create(ctx, owner, draft)
}

func replace[K collection.Kind](ctx context.Context, a *App, e *collection.Engine[K], id string, patch models.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	owner, err := a.owner()
	if err != nil {
		return err
	}
	return e.Replace(ctx, owner, id, patch)
}

func remove[K collection.Kind](ctx context.Context, a *App, e *collection.Engine[K], id string) error {
	owner, err := a.owner()
	if err != nil {
		return err
	}
	return e.Remove(ctx, owner, id)
}

// Dashboard computes the aggregate view over both full collections.
func (a *App) Dashboard() calculator.AggregateView {
	return calculator.Aggregate(a.Items.Records(), a.Costs.Records())
}

// CostsView returns the costs matching query with their own subtotal.
func (a *App) CostsView(query string) calculator.FilteredView {
	return calculator.FilterByLabel(a.Costs.Records(), query)
}
