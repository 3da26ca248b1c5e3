package probes

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftport/opsmon/internal/monitoring/database"
	"github.com/craftport/opsmon/internal/monitoring/model"
	"github.com/craftport/opsmon/internal/monitoring/service/registry"
)

// Endpoints holds the probe targets for the fixed monitor set. Tenant-scoped
// entries are templates containing {tenant}. Empty entries are skipped at
// registration so a deployment only monitors what it configures.
type Endpoints struct {
	APIGateway    string `json:"apiGateway"`
	Storefront    string `json:"storefront"`    // tenant template
	CreatorPortal string `json:"creatorPortal"` // tenant template
	Payments      string `json:"payments"`      // tenant template
	TaxService    string `json:"taxService"`
	EmailDelivery string `json:"emailDelivery"`
	StatusPage    string `json:"statusPage"`
	CDN           string `json:"cdn"`
}

// Deps carries the clients the default monitor table probes against.
type Deps struct {
	DB        *database.Database
	Redis     *redis.Client
	Client    *http.Client
	Timeout   time.Duration
	Endpoints Endpoints
}

// DefaultMonitors builds the deployment's fixed monitor table. The service
// set is closed and known at startup; there is no runtime registration.
func DefaultMonitors(d Deps) []registry.Monitor {
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	if d.Client == nil {
		d.Client = &http.Client{Timeout: d.Timeout}
	}

	var monitors []registry.Monitor
	add := func(name string, tier model.ServiceTier, requiresTenant bool, probe registry.Probe) {
		monitors = append(monitors, registry.Monitor{Name: name, Tier: tier, RequiresTenant: requiresTenant, Probe: probe})
	}

	if d.DB != nil {
		add("postgres", model.TierCritical, false, Postgres(d.DB, d.Timeout))
	}
	if d.Redis != nil {
		add("redis", model.TierCritical, false, Redis(d.Redis, d.Timeout))
	}
	if d.Endpoints.APIGateway != "" {
		add("api-gateway", model.TierCritical, false, HTTPEndpoint(d.Client, d.Endpoints.APIGateway, d.Timeout))
	}
	if d.Endpoints.Storefront != "" {
		add("storefront", model.TierCore, true, TenantHTTPEndpoint(d.Client, d.Endpoints.Storefront, d.Timeout))
	}
	if d.Endpoints.CreatorPortal != "" {
		add("creator-portal", model.TierCore, true, TenantHTTPEndpoint(d.Client, d.Endpoints.CreatorPortal, d.Timeout))
	}
	if d.Endpoints.Payments != "" {
		add("payments", model.TierIntegrations, true, TenantHTTPEndpoint(d.Client, d.Endpoints.Payments, d.Timeout))
	}
	if d.Endpoints.TaxService != "" {
		add("tax-service", model.TierIntegrations, false, HTTPEndpoint(d.Client, d.Endpoints.TaxService, d.Timeout))
	}
	if d.Endpoints.EmailDelivery != "" {
		add("email-delivery", model.TierIntegrations, false, HTTPEndpoint(d.Client, d.Endpoints.EmailDelivery, d.Timeout))
	}
	if d.Endpoints.StatusPage != "" {
		add("status-page", model.TierExternal, false, HTTPEndpoint(d.Client, d.Endpoints.StatusPage, d.Timeout))
	}
	if d.Endpoints.CDN != "" {
		add("cdn", model.TierExternal, false, HTTPEndpoint(d.Client, d.Endpoints.CDN, d.Timeout))
	}
	return monitors
}
