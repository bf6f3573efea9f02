package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/events"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/middleware"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/storage"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/api"
)

var errForeignOwner = errors.New("records belong to another user")

// RecordService implements the RecordService RPC interface. Every request
// addresses one collection of one owner, and only that owner may touch it.
type RecordService struct {
	store     storage.RecordStore
	publisher events.Publisher
	logger    *slog.Logger
}

// NewRecordService creates a record service. A nil publisher drops events.
func NewRecordService(store storage.RecordStore, publisher events.Publisher, logger *slog.Logger) *RecordService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordService{store: store, publisher: publisher, logger: logger}
}

// authorize checks that the caller owns ownerID and resolves the collection name.
func authorize(ctx context.Context, ownerID, collection string) (models.Collection, error) {
	callerID := middleware.GetUserID(ctx)
	if callerID == "" || ownerID == "" || callerID != ownerID {
		return "", connect.NewError(connect.CodePermissionDenied, errForeignOwner)
	}
	coll, err := models.ParseCollection(collection)
	if err != nil {
		return "", connect.NewError(connect.CodeInvalidArgument, err)
	}
	return coll, nil
}

func toAPIRecord(r models.Record) *api.Record {
	return &api.Record{
		ID:        r.ID,
		Label:     r.Label,
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt,
	}
}

func (s *RecordService) publish(ctx context.Context, ev events.RecordEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish record event",
			"type", ev.Type,
			"record_id", ev.RecordID,
			"error", err)
	}
}

// List returns every record of the collection in creation order.
func (s *RecordService) List(ctx context.Context, req *connect.Request[api.ListRecordsRequest]) (*connect.Response[api.ListRecordsResponse], error) {
	coll, err := authorize(ctx, req.Msg.OwnerID, req.Msg.Collection)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListRecords(ctx, req.Msg.OwnerID, coll)
	if err != nil {
		s.logger.Error("List failed", "owner_id", req.Msg.OwnerID, "collection", coll, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]*api.Record, len(records))
	for i, r := range records {
		out[i] = toAPIRecord(r)
	}

	s.logger.Debug("List successful", "owner_id", req.Msg.OwnerID, "collection", coll, "count", len(out))
	return connect.NewResponse(&api.ListRecordsResponse{Records: out}), nil
}

// Create stores a new record and returns it with its assigned ID.
func (s *RecordService) Create(ctx context.Context, req *connect.Request[api.CreateRecordRequest]) (*connect.Response[api.CreateRecordResponse], error) {
	coll, err := authorize(ctx, req.Msg.OwnerID, req.Msg.Collection)
	if err != nil {
		return nil, err
	}

	draft := models.Draft{Label: req.Msg.Label, Amount: req.Msg.Amount}
	if err := draft.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	record, err := s.store.CreateRecord(ctx, req.Msg.OwnerID, coll, draft)
	if errors.Is(err, storage.ErrInvalidAmount) {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err != nil {
		s.logger.Error("Create failed", "owner_id", req.Msg.OwnerID, "collection", coll, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Record created", "owner_id", req.Msg.OwnerID, "collection", coll, "record_id", record.ID)
	s.publish(ctx, events.NewRecordEvent(events.RecordCreated, req.Msg.OwnerID, coll, record))

	return connect.NewResponse(&api.CreateRecordResponse{Record: toAPIRecord(record)}), nil
}

// Update applies a partial update to an existing record.
func (s *RecordService) Update(ctx context.Context, req *connect.Request[api.UpdateRecordRequest]) (*connect.Response[api.UpdateRecordResponse], error) {
	coll, err := authorize(ctx, req.Msg.OwnerID, req.Msg.Collection)
	if err != nil {
		return nil, err
	}

	patch := models.Patch{Label: req.Msg.Label, Amount: req.Msg.Amount}
	if err := patch.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	record, err := s.store.UpdateRecord(ctx, req.Msg.OwnerID, coll, req.Msg.ID, patch)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrInvalidAmount):
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	case err != nil:
		s.logger.Error("Update failed", "owner_id", req.Msg.OwnerID, "record_id", req.Msg.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Record updated", "owner_id", req.Msg.OwnerID, "collection", coll, "record_id", record.ID)
	s.publish(ctx, events.NewRecordEvent(events.RecordUpdated, req.Msg.OwnerID, coll, record))

	return connect.NewResponse(&api.UpdateRecordResponse{}), nil
}

// Delete removes a record. Deleting a record that does not exist succeeds.
func (s *RecordService) Delete(ctx context.Context, req *connect.Request[api.DeleteRecordRequest]) (*connect.Response[api.DeleteRecordResponse], error) {
	coll, err := authorize(ctx, req.Msg.OwnerID, req.Msg.Collection)
	if err != nil {
		return nil, err
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("record id is required"))
	}

	if err := s.store.DeleteRecord(ctx, req.Msg.OwnerID, coll, req.Msg.ID); err != nil {
		s.logger.Error("Delete failed", "owner_id", req.Msg.OwnerID, "record_id", req.Msg.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Record deleted", "owner_id", req.Msg.OwnerID, "collection", coll, "record_id", req.Msg.ID)
	s.publish(ctx, events.NewRecordEvent(events.RecordDeleted, req.Msg.OwnerID, coll, models.Record{ID: req.Msg.ID}))

	return connect.NewResponse(&api.DeleteRecordResponse{}), nil
}
