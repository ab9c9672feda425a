package middleware

import (
	"net/http"
	"strings"

	"montisprint/internal/common"
	"montisprint/internal/repositories"
	"montisprint/internal/secrets"

	"github.com/labstack/echo/v4"
)

// Headers carrying the agent credentials.
const (
	HeaderAPIKey            = "X-API-Key"
	HeaderDeviceFingerprint = "X-Device-Fingerprint"
)

func extractAPIKey(c echo.Context, allowBearer bool) string {
	if key := strings.TrimSpace(c.Request().Header.Get(HeaderAPIKey)); key != "" {
		return key
	}
	if allowBearer {
		authHeader := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			return strings.TrimSpace(authHeader[len("bearer "):])
		}
	}
	return ""
}

func authenticateAgent(c echo.Context, printerRepo repositories.PrinterRepository, apiKey string) error {
	apiKeyHash := secrets.HashSecret(apiKey)

	printer, err := printerRepo.GetByAPIKeyHash(c.Request().Context(), apiKeyHash)
	if err != nil {
		c.Logger().Errorf("agent auth lookup failed: %v", err)
		return common.SendServerError(c, "Failed to validate API key")
	}
	if printer == nil || !secrets.SecureCompare(printer.APIKeyHash, apiKeyHash) || !printer.Active {
		return common.SendUnauthorizedError(c, "API_KEY_INVALID", "API key invalid or printer deactivated")
	}

	// Once a device binding exists, a leaked secret alone is not enough:
	// the request must also present the bound fingerprint.
	if printer.DeviceFingerprint != nil {
		incoming := strings.TrimSpace(c.Request().Header.Get(HeaderDeviceFingerprint))
		if !secrets.SecureCompare(incoming, *printer.DeviceFingerprint) {
			return common.SendUnauthorizedError(c, "DEVICE_FINGERPRINT_MISMATCH", "Device not authorized for this printer")
		}
	}

	identity := &common.Identity{
		Kind:      common.IdentityAgent,
		TenantID:  printer.TenantID,
		PrinterID: printer.ID,
	}
	c.SetRequest(c.Request().WithContext(common.WithIdentity(c.Request().Context(), identity)))
	return nil
}

// AgentAuth authenticates a printing agent by its API key. Endpoints that
// only agents may call (ack, heartbeat) use this; those also accept the key
// as a bearer token.
func AgentAuth(printerRepo repositories.PrinterRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := extractAPIKey(c, true)
			if apiKey == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "API key required")
			}
			if err := authenticateAgent(c, printerRepo, apiKey); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalAgentAuth authenticates the agent when the API key header is
// present and otherwise passes through so admin JWT auth can apply. The
// Authorization header is deliberately not consulted here to avoid
// swallowing admin bearer tokens.
func OptionalAgentAuth(printerRepo repositories.PrinterRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := extractAPIKey(c, false)
			if apiKey == "" {
				return next(c)
			}
			if err := authenticateAgent(c, printerRepo, apiKey); err != nil {
				return err
			}
			return next(c)
		}
	}
}
