package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"montisprint/internal/common"
	"montisprint/internal/models"
	"montisprint/internal/services"

	"github.com/labstack/echo/v4"
)

// JobHandlers handles the print job queue endpoints. GET /jobs is the
// hybrid entry point: an agent's read of pending jobs is a claim, an
// administrator's read is a plain list.
type JobHandlers struct {
	jobService      services.PrintJobService
	livenessService services.LivenessService
}

// NewJobHandlers creates a new job handlers instance
func NewJobHandlers(jobService services.PrintJobService, livenessService services.LivenessService) *JobHandlers {
	return &JobHandlers{jobService: jobService, livenessService: livenessService}
}

// Create handles POST /print/jobs (administrative / integrations).
func (h *JobHandlers) Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	var req struct {
		PrinterID  string         `json:"printerId"`
		ExternalID string         `json:"externalId"`
		Type       string         `json:"type"`
		Payload    map[string]any `json:"payload"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	printerID, err := common.ValidateUUID(req.PrinterID, "printerId")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if err := common.ValidateRequiredString(req.ExternalID, "externalId"); err != nil {
		return common.SendValidationError(c, "externalId", err.Error())
	}
	if err := common.ValidateRequiredString(req.Type, "type"); err != nil {
		return common.SendValidationError(c, "type", err.Error())
	}
	if req.Payload == nil {
		return common.SendValidationError(c, "payload", "payload is required")
	}

	result, err := h.jobService.Enqueue(ctx, tenantID, printerID, req.ExternalID, req.Type, req.Payload)
	if err != nil {
		if errors.Is(err, services.ErrPrinterNotFound) {
			return common.SendNotFoundError(c, "Printer")
		}
		return common.SendServerError(c, "Failed to create print job")
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// ListOrClaim handles GET /print/jobs for both caller identities.
func (h *JobHandlers) ListOrClaim(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.GetIdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	status := c.QueryParam("status")
	if status == "" {
		status = models.JobStatusPending
	}
	if !models.ValidJobStatus(status) {
		return common.SendValidationError(c, "status", "status must be one of: pending, processing, done, failed")
	}

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return common.SendValidationError(c, "limit", "limit must be an integer")
		}
		limit = parsed
	}

	if identity.IsAgent() {
		// For an agent, reading pending jobs means taking them.
		if status == models.JobStatusPending {
			jobs, err := h.jobService.Claim(ctx, identity.PrinterID, limit)
			if err != nil {
				return common.SendServerError(c, "Failed to claim print jobs")
			}
			return c.JSON(http.StatusOK, map[string]any{"success": true, "jobs": jobs})
		}

		// Any other status is a read-only view of the agent's own queue.
		filter := &models.PrintJobFilter{
			TenantID:  &identity.TenantID,
			PrinterID: &identity.PrinterID,
			Status:    &status,
			Limit:     limit,
		}
		jobs, err := h.jobService.List(ctx, filter)
		if err != nil {
			return common.SendServerError(c, "Failed to list print jobs")
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "jobs": jobs})
	}

	filter := &models.PrintJobFilter{
		TenantID: &identity.TenantID,
		Status:   &status,
		Limit:    limit,
	}
	if printerIDStr := c.QueryParam("printerId"); printerIDStr != "" {
		printerID, err := common.ValidateUUID(printerIDStr, "printerId")
		if err != nil {
			return common.SendClientError(c, err.Error())
		}
		filter.PrinterID = &printerID
	}

	jobs, err := h.jobService.List(ctx, filter)
	if err != nil {
		return common.SendServerError(c, "Failed to list print jobs")
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "jobs": jobs})
}

// Acknowledge handles POST /print/jobs/:id/ack (agent only).
func (h *JobHandlers) Acknowledge(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.GetIdentityFromContext(ctx)
	if !ok || !identity.IsAgent() {
		return echo.NewHTTPError(http.StatusUnauthorized, "API key required")
	}

	jobID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Status    string  `json:"status"`
		Info      *string `json:"info"`
		Reason    *string `json:"reason"`
		PrintedAt *string `json:"printedAt"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Status != models.JobStatusDone && req.Status != models.JobStatusFailed {
		return common.SendValidationError(c, "status", "status must be done or failed")
	}

	var printedAt *time.Time
	if req.PrintedAt != nil && *req.PrintedAt != "" {
		parsed, err := time.Parse(time.RFC3339, *req.PrintedAt)
		if err != nil {
			return common.SendValidationError(c, "printedAt", "printedAt must be RFC3339")
		}
		printedAt = &parsed
	}

	acked, err := h.jobService.Acknowledge(ctx, identity.PrinterID, jobID, req.Status, req.Info, req.Reason, printedAt)
	if err != nil {
		return common.SendServerError(c, "Failed to acknowledge print job")
	}
	if !acked {
		return common.SendNotFoundError(c, "Job")
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// Heartbeat handles POST /print/printers/:id/heartbeat (agent only).
func (h *JobHandlers) Heartbeat(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := common.GetIdentityFromContext(ctx)
	if !ok || !identity.IsAgent() {
		return echo.NewHTTPError(http.StatusUnauthorized, "API key required")
	}

	// The path id is advisory; the credential decides which printer this
	// is. A mismatch is an attempt to report as someone else.
	if idParam := c.Param("id"); idParam != "" && idParam != identity.PrinterID.String() {
		return c.JSON(http.StatusForbidden, common.CreateErrorResponse("PRINTER_MISMATCH", "Printer not authorized", nil))
	}

	var req struct {
		Status *string        `json:"status"`
		Uptime *float64       `json:"uptime"`
		Meta   map[string]any `json:"meta"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := h.livenessService.Heartbeat(ctx, identity.TenantID, identity.PrinterID, req.Status, req.Uptime, req.Meta); err != nil {
		return common.SendServerError(c, "Failed to record heartbeat")
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
