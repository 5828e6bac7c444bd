package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/storefront/pkg/admin"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/store/storetest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("database is down") }

func newTestGateway(t *testing.T) (*Gateway, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	st := storetest.New(t)
	site := admin.NewSite(logger)
	require.NoError(t, admin.RegisterModels(site, st))
	return NewGateway(&config.GatewayConfig{Port: 8080}, logger, st, site), logs
}

func serve(g *Gateway, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	g.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	g, _ := newTestGateway(t)
	w := serve(g, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthDatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := NewGateway(&config.GatewayConfig{}, zap.NewNop(), downPinger{}, admin.NewSite(zap.NewNop()))
	w := serve(g, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminMounted(t *testing.T) {
	g, logs := newTestGateway(t)

	w := serve(g, http.MethodGet, "/admin/hashtags")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"page":1,"page_size":20}`, w.Body.String())

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/admin/hashtags", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestShutdownBeforeStart(t *testing.T) {
	g, _ := newTestGateway(t)
	assert.NoError(t, g.Shutdown(context.Background()))
}
