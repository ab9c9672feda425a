package handlers

import (
	"errors"
	"net/http"
	"time"

	"montisprint/internal/caching"
	"montisprint/internal/common"
	"montisprint/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Redemption attempts per client IP per window. Activation codes are short,
// so brute-force pressure is throttled at the door.
const (
	pairRateLimit  = 10
	pairRateWindow = time.Minute
)

// PairingHandlers handles activation-code issuance and redemption.
type PairingHandlers struct {
	pairingService services.PairingService
	cacheSvc       caching.CacheService
}

// NewPairingHandlers creates a new pairing handlers instance
func NewPairingHandlers(pairingService services.PairingService, cacheSvc caching.CacheService) *PairingHandlers {
	return &PairingHandlers{pairingService: pairingService, cacheSvc: cacheSvc}
}

// CreateToken handles POST /print/pairing-token (administrative).
func (h *PairingHandlers) CreateToken(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	var req struct {
		Alias      *string `json:"alias"`
		TTLMinutes int     `json:"ttlMinutes"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	var createdBy *uuid.UUID
	if userID, ok := common.GetUserIDFromContext(ctx); ok {
		createdBy = &userID
	}

	result, err := h.pairingService.IssueToken(ctx, tenantID, createdBy, req.Alias, req.TTLMinutes)
	if err != nil {
		return common.SendServerError(c, "Failed to create pairing token")
	}

	return c.JSON(http.StatusCreated, result)
}

// Pair handles POST /print/pair. The route is unauthenticated by design:
// the activation code itself is the credential being exchanged.
func (h *PairingHandlers) Pair(c echo.Context) error {
	ctx := c.Request().Context()

	// Best-effort throttle: a broken cache never blocks legitimate pairing.
	limited, err := h.cacheSvc.IsRateLimited(ctx, "pair:"+c.RealIP(), pairRateLimit, pairRateWindow)
	if err != nil {
		c.Logger().Warnf("pairing rate limit check failed: %v", err)
	} else if limited {
		return c.JSON(http.StatusTooManyRequests, common.CreateErrorResponse("RATE_LIMITED", "Too many pairing attempts, try again later", nil))
	}

	var req struct {
		PairingToken string  `json:"pairingToken"`
		Fingerprint  string  `json:"fingerprint"`
		Hostname     *string `json:"hostname"`
		OS           *string `json:"os"`
		PrinterName  *string `json:"printerName"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.PairingToken, "pairingToken"); err != nil {
		return common.SendValidationError(c, "pairingToken", err.Error())
	}
	if err := common.ValidateRequiredString(req.Fingerprint, "fingerprint"); err != nil {
		return common.SendValidationError(c, "fingerprint", err.Error())
	}

	result, err := h.pairingService.Redeem(ctx, &services.PairPrinterInput{
		ActivationCode: req.PairingToken,
		Fingerprint:    req.Fingerprint,
		Hostname:       req.Hostname,
		OSName:         req.OS,
		PrinterName:    req.PrinterName,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenInvalid),
			errors.Is(err, services.ErrTokenAlreadyUsed),
			errors.Is(err, services.ErrTokenExpired):
			return common.SendClientError(c, err.Error())
		default:
			return common.SendServerError(c, "Failed to complete pairing")
		}
	}

	return c.JSON(http.StatusOK, result)
}
