package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
	UserIDKey   contextKey = "user_id"
	TenantIDKey contextKey = "tenant_id"
)

// IdentityKind tags an authenticated caller as either a tenant-scoped
// administrative user or a single-printer agent.
type IdentityKind string

const (
	IdentityAdmin IdentityKind = "admin"
	IdentityAgent IdentityKind = "agent"
)

// Identity is the capability-tagged caller identity produced by the access
// gate. Admin identities carry a tenant and user; agent identities carry a
// tenant and exactly one printer, and every downstream operation must stay
// inside that printer's scope.
type Identity struct {
	Kind      IdentityKind
	TenantID  uuid.UUID
	UserID    uuid.UUID
	PrinterID uuid.UUID
}

// IsAgent reports whether the identity is a single-printer agent.
func (i *Identity) IsAgent() bool {
	return i != nil && i.Kind == IdentityAgent
}

// WithIdentity stores the caller identity in the request context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	ctx = context.WithValue(ctx, IdentityKey, identity)
	ctx = context.WithValue(ctx, TenantIDKey, identity.TenantID)
	if identity.Kind == IdentityAdmin {
		ctx = context.WithValue(ctx, UserIDKey, identity.UserID)
	}
	return ctx
}

// GetIdentityFromContext extracts the caller identity from the request context.
func GetIdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*Identity)
	return identity, ok
}

// GetTenantIDFromContext extracts the tenant ID from the request context.
func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response. Missing and
// not-owned-by-caller are deliberately the same response so tenants cannot
// probe for each other's resources.
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context, code, message string) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse(code, message, nil))
}

// ValidateUUID validates UUID format
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s has invalid UUID format", fieldName)
	}
	return id, nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// SafeString safely handles string pointer operations
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ClampLimit clamps a caller-supplied page size into [1, max], applying the
// default when the value is missing or non-positive.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// SecureErrorMessage hides persistence-layer detail from callers. The full
// error is expected to be logged by the caller before wrapping.
func SecureErrorMessage(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: operation could not be completed", operation)
}
