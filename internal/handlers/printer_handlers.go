package handlers

import (
	"net/http"

	"montisprint/internal/common"
	"montisprint/internal/services"

	"github.com/labstack/echo/v4"
)

// PrinterHandlers handles the administrative printer endpoints.
type PrinterHandlers struct {
	printerService services.PrinterService
}

// NewPrinterHandlers creates a new printer handlers instance
func NewPrinterHandlers(printerService services.PrinterService) *PrinterHandlers {
	return &PrinterHandlers{printerService: printerService}
}

// Register handles POST /print/printers/register
func (h *PrinterHandlers) Register(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	var req struct {
		Name      string         `json:"name"`
		Meta      map[string]any `json:"meta"`
		IsDefault bool           `json:"isDefault"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}

	result, err := h.printerService.Register(ctx, tenantID, req.Name, req.Meta, req.IsDefault)
	if err != nil {
		return common.SendServerError(c, "Failed to register printer")
	}

	return c.JSON(http.StatusCreated, result)
}

// List handles GET /print/printers
func (h *PrinterHandlers) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	printers, err := h.printerService.List(ctx, tenantID)
	if err != nil {
		return common.SendServerError(c, "Failed to list printers")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"printers": printers,
	})
}

// UpdateConfig handles PATCH /print/printers/:id/config. The body is an
// opaque configuration document (paper width, font size, whatever the
// agent understands); unknown fields pass through unmodified.
func (h *PrinterHandlers) UpdateConfig(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	printerID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var config map[string]any
	if err := c.Bind(&config); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if len(config) == 0 {
		return common.SendValidationError(c, "config", "at least one configuration field is required")
	}

	updated, err := h.printerService.UpdateConfig(ctx, tenantID, printerID, config)
	if err != nil {
		return common.SendServerError(c, "Failed to update printer config")
	}
	if !updated {
		return common.SendNotFoundError(c, "Printer")
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// Delete handles DELETE /print/printers/:id
func (h *PrinterHandlers) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	printerID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	deleted, err := h.printerService.Delete(ctx, tenantID, printerID)
	if err != nil {
		return common.SendServerError(c, "Failed to delete printer")
	}
	if !deleted {
		return common.SendNotFoundError(c, "Printer")
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
