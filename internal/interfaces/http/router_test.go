package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NERRecon/internal/infrastructure/storage/file"
	"github.com/turtacn/NERRecon/internal/interfaces/http/handlers"
	"github.com/turtacn/NERRecon/internal/interfaces/http/middleware"
	"github.com/turtacn/NERRecon/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newTestRouter(t *testing.T, maxBody int64) (*gin.Engine, *testutil.MockLogger) {
	t.Helper()
	log := testutil.NewMockLogger()
	svc, err := reconciliation.NewService(reconciliation.Dependencies{
		Store:  file.NewStore(t.TempDir(), nil),
		Logger: log,
	}, reconciliation.Options{})
	require.NoError(t, err)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "nerrecon"}, log)
	require.NoError(t, err)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://ui.example.com"}
	return NewRouter(RouterConfig{
		ReconcileHandler: handlers.NewReconcileHandler(svc),
		HealthHandler: handlers.NewHealthHandler("test", handlers.CheckFunc{
			Component: "store", Fn: func(context.Context) error { return nil },
		}),
		CORS:             &cors,
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      maxBody,
		Logger:           log,
		Metrics:          prometheus.NewAppMetrics(collector),
		MetricsCollector: collector,
	}), log
}

func TestNewRouter_Routes(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/v1/policies", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/v1/runs", "").Code)

	w := serve(r, http.MethodGet, "/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":"COMMON_005","message":"resource not found"}`, w.Body.String())

	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodDelete, "/v1/policies", "").Code)
}

func TestNewRouter_GlobalMiddleware(t *testing.T) {
	r, log := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/policies", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "https://ui.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, log.HasMessage("info", "HTTP request completed"))

	metrics := serve(r, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metrics, `nerrecon_http_requests_total{method="GET",path="/v1/policies",status_code="200"} 1`)
}

func TestNewRouter_MaxBodySize(t *testing.T) {
	r, _ := newTestRouter(t, 16)
	w := serve(r, http.MethodPost, "/v1/combine", `{"sources":{"recall":{"1":{"entities":[]}}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewRouter_NilHandlers(t *testing.T) {
	r := NewRouter(RouterConfig{})
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/v1/policies", "").Code)
}

//Personal.AI order the ending
