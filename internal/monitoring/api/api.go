package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftport/opsmon/internal/monitoring/model"
	"github.com/craftport/opsmon/internal/monitoring/service/matrix"
	"github.com/craftport/opsmon/internal/monitoring/service/scheduler"
	"github.com/craftport/opsmon/internal/monitoring/service/state"
)

// AlertStore is the alert persistence surface the API needs.
type AlertStore interface {
	GetAlert(ctx context.Context, id string) (*model.Alert, error)
	ListAlerts(ctx context.Context, status model.AlertStatus, limit int) ([]*model.Alert, error)
	Acknowledge(ctx context.Context, id, by string, at time.Time) error
	Resolve(ctx context.Context, id, by, notes string, at time.Time) error
}

type Api struct {
	scheduler *scheduler.Scheduler
	matrix    *matrix.Builder
	state     state.Store
	alerts    AlertStore
	tenants   scheduler.TenantSource
}

type Deps struct {
	Scheduler *scheduler.Scheduler
	Matrix    *matrix.Builder
	State     state.Store
	Alerts    AlertStore
	Tenants   scheduler.TenantSource
}

func NewApi(router *gin.Engine, deps Deps) *Api {
	api := &Api{
		scheduler: deps.Scheduler,
		matrix:    deps.Matrix,
		state:     deps.State,
		alerts:    deps.Alerts,
		tenants:   deps.Tenants,
	}
	api.setupRouters(router)
	return api
}

func (api *Api) setupRouters(router *gin.Engine) {
	router.POST("/v1/health/checks/run", api.RunAllChecks)
	router.POST("/v1/health/tenants/:tenantID/checks/run", api.RunTenantChecks)
	router.GET("/v1/health/services/:service", api.GetServiceStatus)
	router.GET("/v1/health/services", api.ListServiceSummaries)
	router.GET("/v1/health/tenants", api.ListTenantSummaries)
	router.GET("/v1/health/matrix", api.GetMatrix)
	router.GET("/v1/health/summary", api.GetPlatformSummary)

	// alert routes need persistence; a store-less deployment has no alerts
	if api.alerts != nil {
		router.GET("/v1/alerts", api.ListAlerts)
		router.GET("/v1/alerts/:alertID", api.GetAlert)
		router.POST("/v1/alerts/:alertID/acknowledge", api.AcknowledgeAlert)
		router.POST("/v1/alerts/:alertID/resolve", api.ResolveAlert)
	}
}

func errorBody(code, message string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": message}}
}
