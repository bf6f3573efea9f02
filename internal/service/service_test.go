package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"google.golang.org/api/idtoken"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/auth"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/events"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/middleware"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/storage/sqlite"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/api"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.RecordEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// fakeValidator accepts the token "good" and rejects everything else.
type fakeValidator struct{}

func (fakeValidator) Validate(_ context.Context, idToken, audience string) (*idtoken.Payload, error) {
	if idToken != "good" || audience != "client-id" {
		return nil, errors.New("bad token")
	}
	return &idtoken.Payload{
		Audience: audience,
		Subject:  "google-sub",
		Claims: map[string]interface{}{
			"email":          "fed@example.com",
			"email_verified": true,
			"name":           "Fed User",
		},
	}, nil
}

type testEnv struct {
	auth      *api.AuthServiceClient
	records   *api.RecordServiceClient
	publisher *recordingPublisher
}

// setupTestServer serves both services over a temp database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	publisher := &recordingPublisher{}

	authSvc := NewAuthService(
		auth.NewPasswordAuthenticator(store),
		auth.NewFederatedAuthenticator(fakeValidator{}, "client-id", store),
		jwtManager, store, nil)
	recordSvc := NewRecordService(store, publisher, nil)

	authPath, authHandler := api.NewAuthServiceHandler(authSvc,
		connect.WithInterceptors(middleware.OptionalAuth(jwtManager)))
	recordPath, recordHandler := api.NewRecordServiceHandler(recordSvc,
		connect.WithInterceptors(middleware.RequireAuth(jwtManager)))

	mux := http.NewServeMux()
	mux.Handle(authPath, authHandler)
	mux.Handle(recordPath, recordHandler)

	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	})

	return &testEnv{
		auth:      api.NewAuthServiceClient(http.DefaultClient, server.URL),
		records:   api.NewRecordServiceClient(http.DefaultClient, server.URL),
		publisher: publisher,
	}
}

func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return req
}

// register signs up a user and returns its ID and token.
func (e *testEnv) register(t *testing.T, email string) (string, string) {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		Password:    "secret123",
		DisplayName: "Tester",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return resp.Msg.User.ID, resp.Msg.Token
}

func reasonOf(err error) string {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Meta().Get(api.AuthReasonHeader)
	}
	return ""
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	userID, _ := env.register(t, "Alice@Example.com")

	resp, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "alice@example.com", Password: "secret123"}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Msg.User.ID != userID {
		t.Errorf("login user = %s, want %s", resp.Msg.User.ID, userID)
	}
	if resp.Msg.Token == "" {
		t.Error("expected token")
	}

	current, err := env.auth.GetCurrentUser(ctx, withToken(&api.GetCurrentUserRequest{}, resp.Msg.Token))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if current.Msg.User.DisplayName != "Tester" || current.Msg.User.Email != "alice@example.com" {
		t.Errorf("unexpected current user %+v", current.Msg.User)
	}
}

func TestAuthErrors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	env.register(t, "taken@example.com")

	tests := []struct {
		name       string
		call       func() error
		wantCode   connect.Code
		wantReason string
	}{
		{
			name: "email in use",
			call: func() error {
				_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "taken@example.com", Password: "secret123"}))
				return err
			},
			wantCode:   connect.CodeAlreadyExists,
			wantReason: api.AuthReasonEmailInUse,
		},
		{
			name: "weak password",
			call: func() error {
				_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "new@example.com", Password: "123"}))
				return err
			},
			wantCode:   connect.CodeInvalidArgument,
			wantReason: api.AuthReasonWeakPassword,
		},
		{
			name: "invalid email",
			call: func() error {
				_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "not-an-email", Password: "secret123"}))
				return err
			},
			wantCode:   connect.CodeInvalidArgument,
			wantReason: api.AuthReasonInvalidEmail,
		},
		{
			name: "wrong password",
			call: func() error {
				_, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "taken@example.com", Password: "wrong-password"}))
				return err
			},
			wantCode:   connect.CodeUnauthenticated,
			wantReason: api.AuthReasonInvalidCredential,
		},
		{
			name: "unknown user",
			call: func() error {
				_, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "ghost@example.com", Password: "secret123"}))
				return err
			},
			wantCode:   connect.CodeUnauthenticated,
			wantReason: api.AuthReasonInvalidCredential,
		},
		{
			name: "cancelled federated sign-in",
			call: func() error {
				_, err := env.auth.FederatedLogin(ctx, connect.NewRequest(&api.FederatedLoginRequest{}))
				return err
			},
			wantCode:   connect.CodeInvalidArgument,
			wantReason: api.AuthReasonPopupClosed,
		},
		{
			name: "rejected id token",
			call: func() error {
				_, err := env.auth.FederatedLogin(ctx, connect.NewRequest(&api.FederatedLoginRequest{IDToken: "forged"}))
				return err
			},
			wantCode:   connect.CodeUnauthenticated,
			wantReason: api.AuthReasonInvalidCredential,
		},
		{
			name: "current user without token",
			call: func() error {
				_, err := env.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
				return err
			},
			wantCode: connect.CodeUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if connect.CodeOf(err) != tt.wantCode {
				t.Fatalf("code = %v, want %v (err %v)", connect.CodeOf(err), tt.wantCode, err)
			}
			if got := reasonOf(err); got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestFederatedLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	first, err := env.auth.FederatedLogin(ctx, connect.NewRequest(&api.FederatedLoginRequest{IDToken: "good"}))
	if err != nil {
		t.Fatalf("FederatedLogin failed: %v", err)
	}
	if first.Msg.User.Email != "fed@example.com" || first.Msg.User.DisplayName != "Fed User" {
		t.Errorf("unexpected user %+v", first.Msg.User)
	}

	second, err := env.auth.FederatedLogin(ctx, connect.NewRequest(&api.FederatedLoginRequest{IDToken: "good"}))
	if err != nil {
		t.Fatalf("second FederatedLogin failed: %v", err)
	}
	if second.Msg.User.ID != first.Msg.User.ID {
		t.Error("second sign-in should reuse the account")
	}

	// Federated accounts have no password.
	_, err = env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "fed@example.com", Password: "anything"}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("password login code = %v, want unauthenticated", connect.CodeOf(err))
	}
}

func TestRecordLifecycle(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	ownerID, token := env.register(t, "owner@example.com")

	created, err := env.records.Create(ctx, withToken(&api.CreateRecordRequest{
		OwnerID:    ownerID,
		Collection: string(models.CollectionItems),
		Label:      "Cement",
		Amount:     decimal.RequireFromString("120.50"),
	}, token))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rec := created.Msg.Record
	if rec.ID == "" || rec.CreatedAt == "" {
		t.Fatalf("expected ID and CreatedAt, got %+v", rec)
	}

	_, err = env.records.Create(ctx, withToken(&api.CreateRecordRequest{
		OwnerID:    ownerID,
		Collection: string(models.CollectionItems),
		Label:      "Bricks",
		Amount:     decimal.NewFromInt(80),
	}, token))
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	_, err = env.records.Update(ctx, withToken(&api.UpdateRecordRequest{
		OwnerID:    ownerID,
		Collection: string(models.CollectionItems),
		ID:         rec.ID,
		Amount:     models.AmountPtr(decimal.RequireFromString("99.99")),
	}, token))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	list, err := env.records.List(ctx, withToken(&api.ListRecordsRequest{
		OwnerID:    ownerID,
		Collection: string(models.CollectionItems),
	}, token))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list.Msg.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list.Msg.Records))
	}
	first := list.Msg.Records[0]
	if first.ID != rec.ID || first.Label != "Cement" || !first.Amount.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("unexpected first record %+v", first)
	}
	if list.Msg.Records[1].Label != "Bricks" {
		t.Errorf("records out of creation order: %+v", list.Msg.Records)
	}

	_, err = env.records.Delete(ctx, withToken(&api.DeleteRecordRequest{
		OwnerID:    ownerID,
		Collection: string(models.CollectionItems),
		ID:         rec.ID,
	}, token))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// Deleting again is not an error.
	_, err = env.records.Delete(ctx, withToken(&api.DeleteRecordRequest{
		OwnerID:    ownerID,
		Collection: string(models.CollectionItems),
		ID:         rec.ID,
	}, token))
	if err != nil {
		t.Fatalf("repeated Delete failed: %v", err)
	}

	costs, err := env.records.List(ctx, withToken(&api.ListRecordsRequest{
		OwnerID:    ownerID,
		Collection: string(models.CollectionCosts),
	}, token))
	if err != nil {
		t.Fatalf("List costs failed: %v", err)
	}
	if len(costs.Msg.Records) != 0 {
		t.Errorf("collections leaked into each other: %+v", costs.Msg.Records)
	}

	want := []events.Type{events.RecordCreated, events.RecordCreated, events.RecordUpdated, events.RecordDeleted, events.RecordDeleted}
	got := env.publisher.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRecordErrors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	ownerID, token := env.register(t, "owner@example.com")
	otherID, _ := env.register(t, "other@example.com")

	created, err := env.records.Create(ctx, withToken(&api.CreateRecordRequest{OwnerID: ownerID, Collection: "items", Label: "Cement", Amount: decimal.NewFromInt(10)}, token))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	existing := created.Msg.Record
	publishedBefore := len(env.publisher.types())

	tests := []struct {
		name     string
		call     func() error
		wantCode connect.Code
	}{
		{
			name: "no token",
			call: func() error {
				_, err := env.records.List(ctx, connect.NewRequest(&api.ListRecordsRequest{OwnerID: ownerID, Collection: "items"}))
				return err
			},
			wantCode: connect.CodeUnauthenticated,
		},
		{
			name: "another owner's records",
			call: func() error {
				_, err := env.records.List(ctx, withToken(&api.ListRecordsRequest{OwnerID: otherID, Collection: "items"}, token))
				return err
			},
			wantCode: connect.CodePermissionDenied,
		},
		{
			name: "unknown collection",
			call: func() error {
				_, err := env.records.List(ctx, withToken(&api.ListRecordsRequest{OwnerID: ownerID, Collection: "invoices"}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "blank label",
			call: func() error {
				_, err := env.records.Create(ctx, withToken(&api.CreateRecordRequest{OwnerID: ownerID, Collection: "items", Label: "  ", Amount: decimal.NewFromInt(5)}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "non-positive amount",
			call: func() error {
				_, err := env.records.Create(ctx, withToken(&api.CreateRecordRequest{OwnerID: ownerID, Collection: "otherCosts", Label: "Permit", Amount: decimal.NewFromInt(-5)}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "fraction of a cent",
			call: func() error {
				_, err := env.records.Create(ctx, withToken(&api.CreateRecordRequest{OwnerID: ownerID, Collection: "items", Label: "Nails", Amount: decimal.RequireFromString("0.004")}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "amount beyond storable range",
			call: func() error {
				_, err := env.records.Create(ctx, withToken(&api.CreateRecordRequest{OwnerID: ownerID, Collection: "items", Label: "Tower", Amount: decimal.RequireFromString("184467440737095517.16")}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "update to negative amount",
			call: func() error {
				_, err := env.records.Update(ctx, withToken(&api.UpdateRecordRequest{OwnerID: ownerID, Collection: "items", ID: existing.ID, Amount: models.AmountPtr(decimal.NewFromInt(-5))}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "update with fraction of a cent",
			call: func() error {
				_, err := env.records.Update(ctx, withToken(&api.UpdateRecordRequest{OwnerID: ownerID, Collection: "items", ID: existing.ID, Amount: models.AmountPtr(decimal.RequireFromString("12.345"))}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "empty patch",
			call: func() error {
				_, err := env.records.Update(ctx, withToken(&api.UpdateRecordRequest{OwnerID: ownerID, Collection: "items", ID: "x"}, token))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "update missing record",
			call: func() error {
				_, err := env.records.Update(ctx, withToken(&api.UpdateRecordRequest{OwnerID: ownerID, Collection: "items", ID: "missing", Label: models.LabelPtr("x")}, token))
				return err
			},
			wantCode: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if connect.CodeOf(err) != tt.wantCode {
				t.Errorf("code = %v, want %v (err %v)", connect.CodeOf(err), tt.wantCode, err)
			}
		})
	}

	if n := len(env.publisher.types()) - publishedBefore; n != 0 {
		t.Errorf("rejected calls published %d events", n)
	}

	list, err := env.records.List(ctx, withToken(&api.ListRecordsRequest{OwnerID: ownerID, Collection: "items"}, token))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list.Msg.Records) != 1 || !list.Msg.Records[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("rejected calls changed the collection: %+v", list.Msg.Records)
	}
}
