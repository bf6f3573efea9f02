package collection

import (
	"context"
	"log/slog"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// RemoteStore is the remote per-user document store.
// Every method fails with a *models.StoreError.
type RemoteStore interface {
	ListAll(ctx context.Context, ownerID string, coll models.Collection) ([]models.Record, error)
	Create(ctx context.Context, ownerID string, coll models.Collection, draft models.Draft) (models.Record, error)
	Update(ctx context.Context, ownerID string, coll models.Collection, id string, patch models.Patch) error
	Delete(ctx context.Context, ownerID string, coll models.Collection, id string) error
}

// Kind selects the collection an Engine works on.
type Kind interface {
	Collection() models.Collection
}

// Items is the Kind of the line-item collection.
type Items struct{}

// Collection implements Kind.
func (Items) Collection() models.Collection { return models.CollectionItems }

// Costs is the Kind of the other-costs collection.
type Costs struct{}

// Collection implements Kind.
func (Costs) Collection() models.Collection { return models.CollectionCosts }

// Engine synchronizes one Store with the remote store.
//
// The cache is only written after the remote store confirms an operation.
// Concurrent calls are neither serialized nor deduplicated; their outcomes are
// applied in the order they complete. The engine does not validate input.
type Engine[K Kind] struct {
	*Store

	remote RemoteStore
	logger *slog.Logger
}

// NewEngine creates an engine with an empty store.
func NewEngine[K Kind](remote RemoteStore, logger *slog.Logger) *Engine[K] {
	if logger == nil {
		logger = slog.Default()
	}
	var k K
	return &Engine[K]{
		Store:  NewStore(),
		remote: remote,
		logger: logger.With("collection", string(k.Collection())),
	}
}

// Collection returns the remote collection name the engine syncs.
func (e *Engine[K]) Collection() models.Collection {
	var k K
	return k.Collection()
}

// FetchAll replaces the cached collection with the remote contents for ownerID.
func (e *Engine[K]) FetchAll(ctx context.Context, ownerID string) error {
	gen := e.begin()

	records, err := e.remote.ListAll(ctx, ownerID, e.Collection())
	applied := e.complete(gen, err, func() {
		e.replaceAll(records)
	})
	e.logOutcome("fetch", ownerID, "", applied, err, "count", len(records))
	return err
}

// Create sends draft to the remote store and appends the confirmed record.
func (e *Engine[K]) Create(ctx context.Context, ownerID string, draft models.Draft) (models.Record, error) {
	gen := e.begin()

	record, err := e.remote.Create(ctx, ownerID, e.Collection(), draft)
	applied := e.complete(gen, err, func() {
		e.put(record)
	})
	e.logOutcome("create", ownerID, record.ID, applied, err)
	if err != nil {
		return models.Record{}, err
	}
	return record, nil
}

// Replace sends a partial update and overwrites the patched fields of the
// cached record. A record missing from the cache stays missing.
func (e *Engine[K]) Replace(ctx context.Context, ownerID, id string, patch models.Patch) error {
	gen := e.begin()

	err := e.remote.Update(ctx, ownerID, e.Collection(), id, patch)
	applied := e.complete(gen, err, func() {
		e.patch(id, patch)
	})
	e.logOutcome("replace", ownerID, id, applied, err)
	return err
}

// Remove deletes the remote record and drops it from the cache if present.
func (e *Engine[K]) Remove(ctx context.Context, ownerID, id string) error {
	gen := e.begin()

	err := e.remote.Delete(ctx, ownerID, e.Collection(), id)
	applied := e.complete(gen, err, func() {
		e.delete(id)
	})
	e.logOutcome("remove", ownerID, id, applied, err)
	return err
}

func (e *Engine[K]) logOutcome(op, ownerID, id string, applied bool, err error, attrs ...any) {
	args := append([]any{"op", op, "owner_id", ownerID}, attrs...)
	if id != "" {
		args = append(args, "id", id)
	}
	switch {
	case !applied:
		e.logger.Debug("Discarded stale completion", args...)
	case err != nil:
		e.logger.Warn("Sync operation failed", append(args, "error", err)...)
	default:
		e.logger.Debug("Sync operation completed", args...)
	}
}
