package probes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

func TestHTTPEndpointHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := HTTPEndpoint(srv.Client(), srv.URL, time.Second)
	res := probe.Check(context.Background(), "")
	assert.Equal(t, model.StatusHealthy, res.Status)
	assert.Equal(t, 200, res.Details["status_code"])
}

func TestHTTPEndpointBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	probe := HTTPEndpoint(srv.Client(), srv.URL, time.Second)
	res := probe.Check(context.Background(), "")
	assert.Equal(t, model.StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "503")
}

func TestHTTPEndpointTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	probe := HTTPEndpoint(srv.Client(), srv.URL, 50*time.Millisecond)
	res := probe.Check(context.Background(), "")
	assert.Equal(t, model.StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error, "timeout must surface as an explanatory error")
}

func TestHTTPEndpointUnconfigured(t *testing.T) {
	probe := HTTPEndpoint(nil, "", time.Second)
	res := probe.Check(context.Background(), "")
	assert.Equal(t, model.StatusUnknown, res.Status)
}

func TestTenantHTTPEndpointSubstitutesTenant(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := TenantHTTPEndpoint(srv.Client(), srv.URL+"/shops/{tenant}/up", time.Second)
	res := probe.Check(context.Background(), "tenant-a")
	assert.Equal(t, model.StatusHealthy, res.Status)
	assert.Equal(t, "/shops/tenant-a/up", gotPath)
	assert.Equal(t, "tenant-a", res.Details["tenant_id"])
}

func TestTenantHTTPEndpointRequiresTenant(t *testing.T) {
	probe := TenantHTTPEndpoint(nil, "http://example.invalid/{tenant}", time.Second)
	res := probe.Check(context.Background(), "")
	assert.Equal(t, model.StatusUnknown, res.Status)
}

func TestDefaultMonitorsSkipsUnconfigured(t *testing.T) {
	monitors := DefaultMonitors(Deps{
		Endpoints: Endpoints{
			APIGateway: "http://gateway.internal/up",
			Storefront: "http://{tenant}.shops.internal/up",
		},
	})
	require.Len(t, monitors, 2)

	byName := map[string]bool{}
	for _, m := range monitors {
		byName[m.Name] = m.RequiresTenant
	}
	requiresTenant, ok := byName["storefront"]
	require.True(t, ok)
	assert.True(t, requiresTenant)
	requiresTenant, ok = byName["api-gateway"]
	require.True(t, ok)
	assert.False(t, requiresTenant)
}
