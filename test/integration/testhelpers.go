// Package integration runs the catalog end to end: HTTP API, container
// wiring, SQLite storage and webhook delivery.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/container"
	"github.com/williamsiker/practicas/internal/httpserver"
	"github.com/williamsiker/practicas/internal/infrastructure/webhook"
	"github.com/williamsiker/practicas/internal/observability"
)

const (
	publisherKey = "integration-publisher-key-01"
	adminKey     = "integration-admin-key-000001"
	hookSecret   = "integration-hook-secret"
)

// Stack is a running catalog backed by a SQLite file.
type Stack struct {
	t      testing.TB
	DBPath string
	App    *container.App
	API    *httptest.Server
}

// NewStack starts the catalog on dbPath. Events are sent to hookURL when it
// is not empty.
func NewStack(t testing.TB, dbPath, hookURL string) *Stack {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.Path = dbPath
	cfg.Server.RateLimit.Enabled = false
	cfg.Server.APIKeys = []config.APIKeyConfig{
		{Key: publisherKey, ActorID: 7, Role: "publisher", Name: "mesa"},
		{Key: adminKey, ActorID: 99, Role: "admin", Name: "admin"},
	}
	if hookURL != "" {
		cfg.Webhooks = []config.WebhookConfig{{
			Name:       "audit",
			URL:        hookURL,
			Secret:     hookSecret,
			RetryDelay: time.Millisecond,
		}}
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("invalid config: %v", err)
	}

	app, err := container.New(cfg)
	if err != nil {
		t.Fatalf("container.New failed: %v", err)
	}
	app.WithMetrics(observability.NewMetrics("integration"))
	if err := app.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	server := httpserver.NewServer(httpserver.ServerDeps{
		Config:   cfg.Server,
		UseCases: app.UseCases(),
		Metrics:  app.Metrics(),
		Ping:     app.Ping,
		Version:  "integration",
	})

	s := &Stack{t: t, DBPath: dbPath, App: app, API: httptest.NewServer(server.Handler())}
	t.Cleanup(s.Stop)
	return s
}

// NewTempStack starts the catalog on a fresh database file.
func NewTempStack(t testing.TB, hookURL string) *Stack {
	t.Helper()
	return NewStack(t, filepath.Join(t.TempDir(), "catalog.db"), hookURL)
}

// Stop shuts the API down and closes the container. It is safe to call twice.
func (s *Stack) Stop() {
	s.API.Close()
	if err := s.App.Close(); err != nil {
		s.t.Errorf("closing app: %v", err)
	}
}

// Do sends a JSON request with the given API key and decodes the response
// into out when out is not nil. It returns the status code.
func (s *Stack) Do(method, path, key string, body, out any) int {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("encoding body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.API.URL+path, reader)
	if err != nil {
		s.t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := s.API.Client().Do(req)
	if err != nil {
		s.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			s.t.Fatalf("decoding %s %s response %q: %v", method, path, data, err)
		}
	}
	return resp.StatusCode
}

// RequestPayload returns a valid submission named name.
func RequestPayload(name string) map[string]any {
	return map[string]any{
		"name":           name,
		"description":    "Recepcion digital de documentos",
		"url":            "https://origen.gob.pe/api/tramites",
		"method":         "post",
		"version":        "1.0.0",
		"documentation":  strings.Repeat("Documentacion del servicio de tramites. ", 4),
		"base_price":     "12.50",
		"justification":  strings.Repeat("Necesario para la atencion ciudadana. ", 2),
		"terms_accepted": true,
	}
}

// HookSink collects verified webhook deliveries.
type HookSink struct {
	*httptest.Server

	mu     sync.Mutex
	events []webhook.Payload
	bad    int
}

// NewHookSink starts a webhook receiver that checks signatures.
func NewHookSink(t testing.TB) *HookSink {
	t.Helper()
	h := &HookSink{}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		h.mu.Lock()
		defer h.mu.Unlock()
		if !webhook.VerifySignature(body, r.Header.Get("X-Catalog-Signature"), hookSecret) {
			h.bad++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var p webhook.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			h.bad++
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.events = append(h.events, p)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(h.Close)
	return h
}

// Events returns the names of the verified deliveries received so far.
func (h *HookSink) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.events))
	for _, p := range h.events {
		names = append(names, p.Event)
	}
	return names
}

// Rejected returns the number of deliveries that failed verification.
func (h *HookSink) Rejected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bad
}
