package client

import (
	"context"

	"connectrpc.com/connect"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/api"
)

// DocumentClient reads and writes records through the RecordService.
type DocumentClient struct {
	records *api.RecordServiceClient
}

// NewDocumentClient creates a record client that authenticates with the
// session held by identity.
func NewDocumentClient(httpClient connect.HTTPClient, baseURL string, identity *IdentityClient) *DocumentClient {
	return &DocumentClient{
		records: api.NewRecordServiceClient(httpClient, baseURL, connect.WithInterceptors(identity.Interceptor())),
	}
}

func fromAPIRecord(r *api.Record) models.Record {
	return models.Record{
		ID:        r.ID,
		Label:     r.Label,
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt,
	}
}

// ListAll fetches the whole collection.
func (c *DocumentClient) ListAll(ctx context.Context, ownerID string, coll models.Collection) ([]models.Record, error) {
	resp, err := c.records.List(ctx, connect.NewRequest(&api.ListRecordsRequest{
		OwnerID:    ownerID,
		Collection: string(coll),
	}))
	if err != nil {
		return nil, storeErr("list", err)
	}

	records := make([]models.Record, 0, len(resp.Msg.Records))
	for _, r := range resp.Msg.Records {
		if r != nil {
			records = append(records, fromAPIRecord(r))
		}
	}
	return records, nil
}

// Create stores draft and returns the record the server assigned.
func (c *DocumentClient) Create(ctx context.Context, ownerID string, coll models.Collection, draft models.Draft) (models.Record, error) {
	resp, err := c.records.Create(ctx, connect.NewRequest(&api.CreateRecordRequest{
		OwnerID:    ownerID,
		Collection: string(coll),
		Label:      draft.Label,
		Amount:     draft.Amount,
	}))
	if err != nil {
		return models.Record{}, storeErr("create", err)
	}
	if resp.Msg.Record == nil {
		return models.Record{}, &models.StoreError{Op: "create", Reason: models.ReasonTransport, Err: errEmptyResponse}
	}
	return fromAPIRecord(resp.Msg.Record), nil
}

// Update applies patch to the record with id.
func (c *DocumentClient) Update(ctx context.Context, ownerID string, coll models.Collection, id string, patch models.Patch) error {
	_, err := c.records.Update(ctx, connect.NewRequest(&api.UpdateRecordRequest{
		OwnerID:    ownerID,
		Collection: string(coll),
		ID:         id,
		Label:      patch.Label,
		Amount:     patch.Amount,
	}))
	if err != nil {
		return storeErr("update", err)
	}
	return nil
}

// Delete removes the record with id.
func (c *DocumentClient) Delete(ctx context.Context, ownerID string, coll models.Collection, id string) error {
	_, err := c.records.Delete(ctx, connect.NewRequest(&api.DeleteRecordRequest{
		OwnerID:    ownerID,
		Collection: string(coll),
		ID:         id,
	}))
	if err != nil {
		return storeErr("delete", err)
	}
	return nil
}
