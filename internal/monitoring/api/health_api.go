package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// RunAllChecks force-runs every tier immediately, bypassing the tier cadence.
// The run uses the same per-check pipeline as scheduled runs, so failure
// counters and escalation behave identically.
func (api *Api) RunAllChecks(c *gin.Context) {
	api.scheduler.RunAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// RunTenantChecks runs every check applicable to one tenant and returns the
// full diagnostics report, platform dependencies included.
func (api *Api) RunTenantChecks(c *gin.Context) {
	tenantID := c.Param("tenantID")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_ARGUMENT", "tenantID is required"))
		return
	}
	report := api.scheduler.RunTenant(c.Request.Context(), tenantID)
	c.JSON(http.StatusOK, report)
}

// GetServiceStatus returns the cached latest record for one service, scoped
// to a tenant via ?tenant=. A missing cache entry reports unknown rather
// than triggering a probe.
func (api *Api) GetServiceStatus(c *gin.Context) {
	service := c.Param("service")
	tenantID := c.Query("tenant")

	rec, ok, err := api.state.GetResult(c.Request.Context(), service, tenantID)
	if err != nil {
		log.Error().Err(err).Str("service", service).Msg("failed to read cached check result")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to read cached result"))
		return
	}
	if !ok {
		rec = model.HealthCheckRecord{
			Service:  service,
			TenantID: tenantID,
			Status:   model.StatusUnknown,
		}
	}
	c.JSON(http.StatusOK, rec)
}

// ListTenantSummaries returns one aggregated row per active tenant.
func (api *Api) ListTenantSummaries(c *gin.Context) {
	ctx := c.Request.Context()
	tenantIDs, err := api.tenants.ActiveTenants(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load active tenants")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to load active tenants"))
		return
	}
	summaries, err := api.matrix.TenantSummaries(ctx, tenantIDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to build tenant summaries")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to build tenant summaries"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": summaries, "total": len(summaries)})
}

// ListServiceSummaries returns one aggregated row per registered service.
func (api *Api) ListServiceSummaries(c *gin.Context) {
	summaries, err := api.matrix.ServiceSummaries(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build service summaries")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to build service summaries"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": summaries, "total": len(summaries)})
}

// GetMatrix returns the full service x tenant health grid.
func (api *Api) GetMatrix(c *gin.Context) {
	ctx := c.Request.Context()
	tenantIDs, err := api.tenants.ActiveTenants(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load active tenants")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to load active tenants"))
		return
	}
	m, err := api.matrix.Matrix(ctx, tenantIDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to build health matrix")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to build health matrix"))
		return
	}
	c.JSON(http.StatusOK, m)
}

// GetPlatformSummary reduces the cache snapshot to one overall status plus a
// per-tier breakdown.
func (api *Api) GetPlatformSummary(c *gin.Context) {
	overall, tiers, err := api.matrix.PlatformStatus(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to compute platform status")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to compute platform status"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": overall, "tiers": tiers})
}
