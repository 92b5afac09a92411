// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/authz"
	"github.com/tomtom215/tabline/internal/catalog"
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/fanout"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/models"
	"github.com/tomtom215/tabline/internal/payment"
	"github.com/tomtom215/tabline/internal/tasks"
	"github.com/tomtom215/tabline/internal/wal"
	ws "github.com/tomtom215/tabline/internal/websocket"
)

const (
	testSecret   = "api-test-secret-with-at-least-32-characters"
	venue        = "v1"
	terminalPass = "correct-horse-battery"
)

var (
	serverActor  = models.Actor{VenueID: venue, TerminalID: "term-1", EmployeeID: "e1", Role: models.RoleServer}
	kitchenActor = models.Actor{VenueID: venue, TerminalID: "kds-1", Role: models.RoleKitchen}
	managerActor = models.Actor{VenueID: venue, TerminalID: "office", EmployeeID: "m1", Role: models.RoleManager}
	edgeActor    = models.Actor{VenueID: venue, TerminalID: "edge-1", Role: models.RoleEdge}
	adminActor   = models.Actor{VenueID: venue, TerminalID: "console", Role: models.RoleAdmin}
	otherVenue   = models.Actor{VenueID: "v2", TerminalID: "term-9", Role: models.RoleServer}
)

type inlineQueue struct{}

func (inlineQueue) Submit(_ string, fn tasks.Func) bool {
	return fn(context.Background()) == nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	commands []*models.FleetCommand
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload interface{}, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic == models.TopicFleetCommands {
		p.commands = append(p.commands, payload.(*models.FleetCommand))
	}
	return nil
}

type fixture struct {
	handler   *Handler
	router    http.Handler
	jwt       *auth.JWTManager
	ledger    *ledger.Ledger
	proc      *payment.SimulatedProcessor
	audit     *audit.Logger
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Role: config.RoleCloud},
		Security: config.SecurityConfig{
			AuthMode:          auth.ModeJWT,
			JWTSecret:         testSecret,
			TokenTTL:          time.Hour,
			RateLimitDisabled: true,
		},
	}

	db, err := wal.Open(wal.TestConfig())
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.NewStatic(map[string][]catalog.Product{
		venue: {
			{SKU: "burger", Name: "Burger", Price: 1200, Available: true, StationTag: "grill"},
			{SKU: "fries", Name: "Fries", Price: 400, Available: true, StationTag: "fryer"},
			{SKU: "soup", Name: "Soup of the day", Price: 700, Available: false},
		},
	})
	idem := ledger.NewMemoryIdempotencyStore(time.Hour)
	t.Cleanup(idem.Close)

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(enforcer.Close)

	f := &fixture{
		proc:      payment.NewSimulatedProcessor(),
		audit:     audit.NewLogger(audit.NewMemoryStore(1000), inlineQueue{}, audit.DefaultConfig()),
		publisher: &recordingPublisher{},
	}
	authorizer := authz.NewAuthorizer(enforcer, f.audit)

	lcfg := ledger.DefaultConfig()
	lcfg.LockTimeout = 200 * time.Millisecond
	f.ledger = ledger.New(ledger.NewMemoryStore(), idem, cat, lcfg, ledger.WithAuthorizer(authorizer))
	t.Cleanup(f.ledger.Close)

	payments := payment.NewService(payment.Config{LockTimeout: 200 * time.Millisecond}, f.ledger, f.proc, payment.NewStore(db))
	payments.SetAuditLogger(f.audit)

	f.jwt, err = auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(terminalPass), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	registry := auth.NewTerminalRegistry([]config.TerminalEnrolment{
		{VenueID: venue, TerminalID: "term-1", SecretHash: string(hash), Role: models.RoleServer},
	}, f.jwt, auth.NewLockoutManager(auth.DefaultLockoutConfig()), f.audit)

	f.handler = NewHandler(cfg, f.ledger, payments, ws.NewHub(fanout.NewRegistry(), nil))
	f.handler.SetTerminalRegistry(registry)
	f.handler.SetAuditLogger(f.audit)
	f.handler.SetCommandPublisher(f.publisher)

	authMW := auth.NewMiddleware(f.jwt, cfg.Security.AuthMode, "")
	chiMW := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	f.router = NewRouter(f.handler, authMW, authorizer, chiMW).SetupChi()
	return f
}

func (f *fixture) token(t *testing.T, actor models.Actor) string {
	t.Helper()
	token, _, err := f.jwt.GenerateToken(actor)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

// do sends a request as actor; a zero actor sends no token.
func (f *fixture) do(t *testing.T, actor models.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor.VenueID != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, actor))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// envelope is the decoded response with Data left raw for the caller.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

// createOrder creates id and adds a burger and two fries (2000 due).
func (f *fixture) createOrder(t *testing.T, id string) *models.Order {
	t.Helper()
	rec := f.do(t, serverActor, http.MethodPost, "/api/v1/orders", CreateOrderRequest{OrderID: id, IdempotencyKey: "create-" + id})
	expectStatus(t, rec, http.StatusCreated)

	version := int64(1)
	var res ledger.Result
	for i, m := range []models.Mutation{
		{Kind: models.MutationAddItem, SKU: "burger", ItemID: id + "-1", Quantity: 1},
		{Kind: models.MutationAddItem, SKU: "fries", ItemID: id + "-2", Quantity: 2},
	} {
		rec = f.do(t, serverActor, http.MethodPost, "/api/v1/orders/"+id+"/mutations", MutationRequest{
			ExpectedVersion: version,
			IdempotencyKey:  id + "-add-" + string(rune('a'+i)),
			Mutation:        m,
		})
		expectStatus(t, rec, http.StatusOK)
		decode(t, rec, &res)
		version = res.Version
	}
	return res.Order
}
