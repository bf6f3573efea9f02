package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
)

const (
	// RecordServiceName is the fully-qualified name of the RecordService service.
	RecordServiceName = "budget.v1.RecordService"

	RecordServiceListProcedure   = "/budget.v1.RecordService/List"
	RecordServiceCreateProcedure = "/budget.v1.RecordService/Create"
	RecordServiceUpdateProcedure = "/budget.v1.RecordService/Update"
	RecordServiceDeleteProcedure = "/budget.v1.RecordService/Delete"
)

// Record is a stored item or cost. Amount is encoded as a decimal string.
type Record struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt string          `json:"createdAt"`
}

// Every record request addresses one collection of one owner.

type ListRecordsRequest struct {
	OwnerID    string `json:"ownerId"`
	Collection string `json:"collection"`
}

type ListRecordsResponse struct {
	Records []*Record `json:"records"`
}

type CreateRecordRequest struct {
	OwnerID    string          `json:"ownerId"`
	Collection string          `json:"collection"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
}

type CreateRecordResponse struct {
	Record *Record `json:"record"`
}

// UpdateRecordRequest is a partial update; omitted fields are left unchanged.
type UpdateRecordRequest struct {
	OwnerID    string           `json:"ownerId"`
	Collection string           `json:"collection"`
	ID         string           `json:"id"`
	Label      *string          `json:"label,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
}

type UpdateRecordResponse struct{}

type DeleteRecordRequest struct {
	OwnerID    string `json:"ownerId"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type DeleteRecordResponse struct{}

// RecordServiceHandler is implemented by the server.
type RecordServiceHandler interface {
	List(context.Context, *connect.Request[ListRecordsRequest]) (*connect.Response[ListRecordsResponse], error)
	Create(context.Context, *connect.Request[CreateRecordRequest]) (*connect.Response[CreateRecordResponse], error)
	Update(context.Context, *connect.Request[UpdateRecordRequest]) (*connect.Response[UpdateRecordResponse], error)
	Delete(context.Context, *connect.Request[DeleteRecordRequest]) (*connect.Response[DeleteRecordResponse], error)
}

// NewRecordServiceHandler builds an HTTP handler for svc. It returns the path
// to mount the handler on.
func NewRecordServiceHandler(svc RecordServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	list := connect.NewUnaryHandler(RecordServiceListProcedure, svc.List, opts...)
	create := connect.NewUnaryHandler(RecordServiceCreateProcedure, svc.Create, opts...)
	update := connect.NewUnaryHandler(RecordServiceUpdateProcedure, svc.Update, opts...)
	del := connect.NewUnaryHandler(RecordServiceDeleteProcedure, svc.Delete, opts...)

	return "/" + RecordServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case RecordServiceListProcedure:
			list.ServeHTTP(w, r)
		case RecordServiceCreateProcedure:
			create.ServeHTTP(w, r)
		case RecordServiceUpdateProcedure:
			update.ServeHTTP(w, r)
		case RecordServiceDeleteProcedure:
			del.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// RecordServiceClient calls RecordService over connect.
type RecordServiceClient struct {
	list   *connect.Client[ListRecordsRequest, ListRecordsResponse]
	create *connect.Client[CreateRecordRequest, CreateRecordResponse]
	update *connect.Client[UpdateRecordRequest, UpdateRecordResponse]
	del    *connect.Client[DeleteRecordRequest, DeleteRecordResponse]
}

// NewRecordServiceClient creates a client for the service at baseURL.
func NewRecordServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RecordServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &RecordServiceClient{
		list:   connect.NewClient[ListRecordsRequest, ListRecordsResponse](httpClient, baseURL+RecordServiceListProcedure, opts...),
		create: connect.NewClient[CreateRecordRequest, CreateRecordResponse](httpClient, baseURL+RecordServiceCreateProcedure, opts...),
		update: connect.NewClient[UpdateRecordRequest, UpdateRecordResponse](httpClient, baseURL+RecordServiceUpdateProcedure, opts...),
		del:    connect.NewClient[DeleteRecordRequest, DeleteRecordResponse](httpClient, baseURL+RecordServiceDeleteProcedure, opts...),
	}
}

func (c *RecordServiceClient) List(ctx context.Context, req *connect.Request[ListRecordsRequest]) (*connect.Response[ListRecordsResponse], error) {
	return c.list.CallUnary(ctx, req)
}

func (c *RecordServiceClient) Create(ctx context.Context, req *connect.Request[CreateRecordRequest]) (*connect.Response[CreateRecordResponse], error) {
	return c.create.CallUnary(ctx, req)
}

func (c *RecordServiceClient) Update(ctx context.Context, req *connect.Request[UpdateRecordRequest]) (*connect.Response[UpdateRecordResponse], error) {
	return c.update.CallUnary(ctx, req)
}

func (c *RecordServiceClient) Delete(ctx context.Context, req *connect.Request[DeleteRecordRequest]) (*connect.Response[DeleteRecordResponse], error) {
	return c.del.CallUnary(ctx, req)
}
