package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/checkout"
	"github.com/fatflowers/membership/internal/app/service/entitlement"
	"github.com/fatflowers/membership/internal/app/service/eventlog"
	"github.com/fatflowers/membership/internal/app/service/reconciler"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	subsvc "github.com/fatflowers/membership/internal/app/service/subscription"
	"github.com/fatflowers/membership/internal/platform/auth"
	"github.com/fatflowers/membership/internal/platform/db/dbtest"
	cfgpkg "github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRoutes(t *testing.T, cfg *cfgpkg.Config) (*gin.Engine, *MetricsServer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	log := zap.NewNop().Sugar()
	m := metrics.NewNopBilling()
	store := subsvc.NewService(db, log)
	resolver := billingconfig.NewResolver(db, cfg, log, m)
	reg := prometheus.NewRegistry()

	r := newEngine()
	ms := registerRoutes(RouteParams{
		Engine:        r,
		Log:           log,
		Cfg:           cfg,
		Registerer:    reg,
		Gatherer:      reg,
		Ingress:       reconciler.NewIngress(reconciler.IngressParams{Secrets: resolver, Log: log, Metrics: m}),
		Checkout:      checkout.NewService(nil, store, cfg, log, m),
		Entitlements:  entitlement.NewService(store),
		Verifier:      auth.NewVerifier(cfg),
		Subscriptions: store,
		Stats:         statistics.New(db),
		Config:        resolver,
		Events:        eventlog.New(db, log),
	})
	return r, ms
}

func TestRegisterRoutes_RegistersEndpoints(t *testing.T) {
	r, ms := testRoutes(t, &cfgpkg.Config{Auth: cfgpkg.AuthConfig{JWTSecret: "s"}})
	assert.Nil(t, ms)

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"POST /api/v1/billing/webhook",
		"POST /api/v1/billing/checkout",
		"GET /api/v1/entitlement",
		"GET /api/v1/entitlement/check",
		"POST /api/v1/admin/list_subscriptions",
		"POST /api/v1/admin/list_payment_transactions",
		"POST /api/v1/admin/get_billing_statistic",
		"GET /api/v1/admin/entitlement/:user_id",
		"POST /api/v1/admin/invalidate_billing_config",
	} {
		assert.True(t, contains(want), want)
	}
}

func TestRoutes_Guards(t *testing.T) {
	r, _ := testRoutes(t, &cfgpkg.Config{Auth: cfgpkg.AuthConfig{JWTSecret: "s"}})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodPost, "/api/v1/billing/checkout", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/entitlement", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/admin/list_subscriptions", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/billing/webhook", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRegisterRoutes_DedicatedMetricsListener(t *testing.T) {
	r, ms := testRoutes(t, &cfgpkg.Config{MetricsAddr: ":9191"})
	require.NotNil(t, ms)
	assert.Equal(t, ":9191", ms.Addr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	ms.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "req_total")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
