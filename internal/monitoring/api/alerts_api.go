package api

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

const defaultAlertLimit = 100

type alertActionRequest struct {
	By    string `json:"by"`
	Notes string `json:"notes"`
}

// ListAlerts returns alerts newest-first, optionally filtered by ?status=.
func (api *Api) ListAlerts(c *gin.Context) {
	var status model.AlertStatus
	if raw := c.Query("status"); raw != "" {
		status = model.AlertStatus(raw)
		switch status {
		case model.AlertOpen, model.AlertAcknowledged, model.AlertResolved:
		default:
			c.JSON(http.StatusBadRequest, errorBody("INVALID_ARGUMENT", "status must be one of open, acknowledged, resolved"))
			return
		}
	}
	limit := defaultAlertLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorBody("INVALID_ARGUMENT", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	alerts, err := api.alerts.ListAlerts(c.Request.Context(), status, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list alerts")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to list alerts"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
}

// GetAlert returns one alert by id.
func (api *Api) GetAlert(c *gin.Context) {
	alert, err := api.alerts.GetAlert(c.Request.Context(), c.Param("alertID"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, errorBody("NOT_FOUND", "alert not found"))
			return
		}
		log.Error().Err(err).Str("alert_id", c.Param("alertID")).Msg("failed to load alert")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to load alert"))
		return
	}
	c.JSON(http.StatusOK, alert)
}

// AcknowledgeAlert transitions an open alert to acknowledged. Acknowledging
// an alert in any other state is a conflict, not a no-op.
func (api *Api) AcknowledgeAlert(c *gin.Context) {
	alertID := c.Param("alertID")
	var req alertActionRequest
	// body is optional; an absent body means an anonymous acknowledgement
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_ARGUMENT", "invalid request body"))
		return
	}

	ctx := c.Request.Context()
	err := api.alerts.Acknowledge(ctx, alertID, req.By, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.replyTransitionFailure(c, alertID)
			return
		}
		log.Error().Err(err).Str("alert_id", alertID).Msg("failed to acknowledge alert")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to acknowledge alert"))
		return
	}
	api.replyAlert(c, alertID)
}

// ResolveAlert transitions an open or acknowledged alert to resolved.
func (api *Api) ResolveAlert(c *gin.Context) {
	alertID := c.Param("alertID")
	var req alertActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_ARGUMENT", "invalid request body"))
		return
	}

	ctx := c.Request.Context()
	err := api.alerts.Resolve(ctx, alertID, req.By, req.Notes, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			api.replyTransitionFailure(c, alertID)
			return
		}
		log.Error().Err(err).Str("alert_id", alertID).Msg("failed to resolve alert")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to resolve alert"))
		return
	}
	api.replyAlert(c, alertID)
}

// replyTransitionFailure distinguishes a missing alert from one already past
// the requested state.
func (api *Api) replyTransitionFailure(c *gin.Context, alertID string) {
	_, err := api.alerts.GetAlert(c.Request.Context(), alertID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, errorBody("NOT_FOUND", "alert not found"))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("alert_id", alertID).Msg("failed to load alert")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to load alert"))
		return
	}
	c.JSON(http.StatusConflict, errorBody("CONFLICT", "alert is not in a state that allows this transition"))
}

func (api *Api) replyAlert(c *gin.Context, alertID string) {
	alert, err := api.alerts.GetAlert(c.Request.Context(), alertID)
	if err != nil {
		log.Error().Err(err).Str("alert_id", alertID).Msg("failed to reload alert after transition")
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "failed to load alert"))
		return
	}
	c.JSON(http.StatusOK, alert)
}
