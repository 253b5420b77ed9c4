package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/domain/endpoint"
	"github.com/williamsiker/practicas/internal/httpserver/dto"
	"github.com/williamsiker/practicas/internal/infrastructure/persistence"
	"github.com/williamsiker/practicas/internal/observability"
)

const (
	publisherKey = "publisher-key-0123456789"
	otherKey     = "other-publisher-key-0123"
	adminKey     = "admin-key-0123456789abcd"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Address: ":0",
		APIKeys: []config.APIKeyConfig{
			{Key: publisherKey, ActorID: 7, Role: "publisher", Name: "mesa"},
			{Key: otherKey, ActorID: 8, Role: "publisher", Name: "otra"},
			{Key: adminKey, ActorID: 99, Role: "admin", Name: "admin"},
		},
	}
}

type testServer struct {
	server  *Server
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()
	store := persistence.NewMemoryStore(persistence.NewNoOpEventPublisher())
	retry := catalogapp.RetryPolicy{Attempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	metrics := observability.NewMetrics("test")
	server := NewServer(ServerDeps{
		Config:   cfg,
		UseCases: catalogapp.NewUseCases(store, endpoint.NewAllocator(0), retry),
		Metrics:  metrics,
		Version:  "test",
	})
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })
	return &testServer{server: server, metrics: metrics}
}

func (ts *testServer) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func payload(name string) map[string]any {
	return map[string]any{
		"name":           name,
		"description":    "Recepcion digital de documentos",
		"url":            "https://origen.gob.pe/api/tramites",
		"method":         "post",
		"documentation":  strings.Repeat("Documentacion del servicio. ", 5),
		"base_price":     "12.50",
		"justification":  strings.Repeat("Necesario para la atencion ciudadana. ", 2),
		"terms_accepted": true,
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "test", resp["version"])
}

func TestHealthEndpoint_StorageDown(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.NewNoOpEventPublisher())
	server := NewServer(ServerDeps{
		Config:   testConfig(),
		UseCases: catalogapp.NewUseCases(store, nil, catalogapp.DefaultRetryPolicy()),
		Ping:     func(context.Context) error { return assert.AnError },
	})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"unknown key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"api key header", "X-API-Key", publisherKey, http.StatusOK},
		{"bearer token", "Authorization", "Bearer " + adminKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			ts.server.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestApprovalAndPublicationFlow(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(t, http.MethodPost, "/api/v1/requests", publisherKey, payload("Mesa de partes digital"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decode[dto.RequestDTO](t, rec)
	assert.Equal(t, "pending_review", submitted.Status)
	assert.Equal(t, "revision", submitted.StatusLabel)
	assert.Equal(t, "POST", submitted.Method)
	assert.Equal(t, "/api/v1/requests/1", rec.Header().Get("Location"))

	// Publishers cannot review.
	rec = ts.do(t, http.MethodPost, "/api/v1/admin/requests/1/review", publisherKey,
		map[string]any{"decision": "approve"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/admin/requests/pending-count", adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[dto.PendingCountDTO](t, rec).Pending)

	rec = ts.do(t, http.MethodPost, "/api/v1/admin/requests/1/review", adminKey,
		map[string]any{"decision": "approve", "review_notes": "Cumple los requisitos"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decode[dto.ReviewResponse](t, rec)
	assert.Equal(t, "approved", reviewed.Request.Status)
	assert.Equal(t, "aprobado", reviewed.Request.StatusLabel)
	require.NotNil(t, reviewed.Service)
	svc := reviewed.Service
	assert.Equal(t, svc.URL, svc.ManagedEndpoint)
	assert.True(t, strings.HasPrefix(svc.URL, "/servicio"), svc.URL)
	assert.True(t, strings.HasSuffix(svc.URL, "/mesa-de-partes-digital"), svc.URL)
	assert.Equal(t, "ready_to_publish", svc.Status)
	assert.Equal(t, "https://origen.gob.pe/api/tramites", svc.OperationalConfig["original_url"])

	// A second review is a state conflict.
	rec = ts.do(t, http.MethodPost, "/api/v1/admin/requests/1/review", adminKey,
		map[string]any{"decision": "reject", "rejection_reason": "La solicitud ya no corresponde al area"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "state", decode[dto.ErrorResponse](t, rec).Code)

	servicePath := "/api/v1/services/" + itoa(svc.ID)
	rec = ts.do(t, http.MethodPut, servicePath+"/configuration", publisherKey,
		map[string]any{"rate_limits": map[string]any{"requests_per_minute": 60}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	configured := decode[dto.ServiceDTO](t, rec)
	assert.Contains(t, configured.OperationalConfig, "rate_limits")
	assert.Equal(t, svc.URL, configured.OperationalConfig["managed_endpoint"])

	// The public catalog lists ready services without a key.
	rec = ts.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[dto.PageResponse[dto.CatalogEntryDTO]](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, svc.URL, page.Data[0].URL)

	rec = ts.do(t, http.MethodPost, servicePath+"/publish", publisherKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "published", decode[dto.ServiceDTO](t, rec).Status)

	rec = ts.do(t, http.MethodPost, servicePath+"/unpublish", publisherKey,
		map[string]any{"reason": "corto"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, servicePath, publisherKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "published", decode[dto.ServiceDTO](t, rec).Status)

	// Other publishers cannot see the service.
	rec = ts.do(t, http.MethodGet, servicePath, otherKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitRequest_ValidationFields(t *testing.T) {
	ts := newTestServer(t, testConfig())

	body := payload("Consulta")
	body["documentation"] = "corta"
	delete(body, "terms_accepted")

	rec := ts.do(t, http.MethodPost, "/api/v1/requests", publisherKey, body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[dto.ErrorResponse](t, rec)
	assert.Equal(t, "validation", resp.Code)
	assert.Contains(t, resp.Fields, "documentation")
	assert.Contains(t, resp.Fields, "terms_accepted")
}

func TestSubmitRequest_MalformedBody(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(`{"name":`))
	req.Header.Set("X-API-Key", publisherKey)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := payload("Consulta")
	body["unexpected"] = true
	rec = ts.do(t, http.MethodPost, "/api/v1/requests", publisherKey, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitRequest_KeepsLargeIntegers(t *testing.T) {
	ts := newTestServer(t, testConfig())

	body := payload("Padron electoral")
	body["error_codes"] = map[string]any{"E1": json.Number("9007199254740993")}
	rec := ts.do(t, http.MethodPost, "/api/v1/requests", publisherKey, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/requests/1", publisherKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "9007199254740993")
	assert.NotContains(t, rec.Body.String(), "9007199254740992")
}

func TestRequestLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(t, http.MethodPost, "/api/v1/requests", publisherKey, payload("Registro civil"))
	require.Equal(t, http.StatusCreated, rec.Code)

	edited := payload("Registro civil en linea")
	rec = ts.do(t, http.MethodPut, "/api/v1/requests/1", publisherKey, edited)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Registro civil en linea", decode[dto.RequestDTO](t, rec).Name)

	rec = ts.do(t, http.MethodPost, "/api/v1/requests/1/duplicate", publisherKey, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dup := decode[dto.RequestDTO](t, rec)
	assert.NotEqual(t, int64(1), dup.ID)
	assert.Equal(t, "pending_review", dup.Status)

	rec = ts.do(t, http.MethodGet, "/api/v1/requests/stats", publisherKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[dto.StatsDTO](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus["pending_review"])

	rec = ts.do(t, http.MethodGet, "/api/v1/requests?status=pending_review&limit=1", publisherKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[dto.PageResponse[dto.RequestDTO]](t, rec)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.Limit)

	rec = ts.do(t, http.MethodGet, "/api/v1/requests?status=bogus", publisherKey, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/requests?all=true", publisherKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/requests/1", otherKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/requests/1", publisherKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/requests/1", publisherKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/requests/abc", publisherKey, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateEndpointEndpoint(t *testing.T) {
	ts := newTestServer(t, testConfig())

	for _, name := range []string{"Agenda de citas", "Agenda de turnos"} {
		rec := ts.do(t, http.MethodPost, "/api/v1/requests", publisherKey, payload(name))
		require.Equal(t, http.StatusCreated, rec.Code)
		id := decode[dto.RequestDTO](t, rec).ID
		rec = ts.do(t, http.MethodPost, "/api/v1/admin/requests/"+itoa(id)+"/review", adminKey,
			map[string]any{"decision": "approve"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	override := map[string]any{"endpoint_base": "citas", "endpoint_slug": "agenda"}
	rec := ts.do(t, http.MethodPut, "/api/v1/admin/services/1/endpoint", adminKey, override)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[dto.EndpointResponse](t, rec)
	assert.Equal(t, "/citas/agenda", first.Service.URL)

	rec = ts.do(t, http.MethodPut, "/api/v1/admin/services/2/endpoint", adminKey, override)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[dto.EndpointResponse](t, rec)
	assert.Equal(t, "/citas/agenda-2", second.Service.URL)
	assert.Equal(t, "agenda-2", second.Slug)

	rec = ts.do(t, http.MethodPut, "/api/v1/admin/services/2/endpoint", publisherKey, override)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 1, Interval: time.Minute}
	ts := newTestServer(t, cfg)

	rec := ts.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Another key has its own bucket.
	rec = ts.do(t, http.MethodGet, "/api/v1/requests", adminKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, testConfig())

	ts.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	ts.do(t, http.MethodPost, "/api/v1/requests", publisherKey, payload("Consulta de deudas"))

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `catalog_http_requests_total{method="GET",route="/api/v1/catalog",status="2xx"} 1`)
	assert.Contains(t, body, `catalog_operations_total{operation="submit_request",outcome="ok"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, testConfig())

	rec := ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode[dto.ErrorResponse](t, rec).Error)
}

func TestServerStartAndShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Address = "127.0.0.1:0"
	ts := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.Start(ctx) }()

	require.Eventually(t, func() bool {
		return ts.server.Address() != cfg.Address
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + ts.server.Address() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
