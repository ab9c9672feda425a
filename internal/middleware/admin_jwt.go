package middleware

import (
	"net/http"

	"montisprint/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// AdminAuthConfig configures administrative JWT validation. When JWKSURL is
// set the signing keys come from the identity provider's JWKS endpoint;
// otherwise HS256 with the shared secret applies.
type AdminAuthConfig struct {
	JWTSecret string
	JWKSURL   string
}

// NewAdminAuth builds the administrative half of the access gate. Requests
// already carrying an agent identity (from OptionalAgentAuth on hybrid
// routes) skip JWT validation entirely.
func NewAdminAuth(cfg AdminAuthConfig) (echo.MiddlewareFunc, error) {
	jwtConfig := echojwt.Config{
		Skipper: func(c echo.Context) bool {
			identity, ok := common.GetIdentityFromContext(c.Request().Context())
			return ok && identity.IsAgent()
		},
		SuccessHandler: func(c echo.Context) {
			identity, ok := adminIdentityFromToken(c.Get("user"))
			if !ok {
				return
			}
			c.SetRequest(c.Request().WithContext(common.WithIdentity(c.Request().Context(), identity)))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}

	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{})
		if err != nil {
			return nil, err
		}
		jwtConfig.KeyFunc = jwks.Keyfunc
	} else {
		jwtConfig.SigningKey = []byte(cfg.JWTSecret)
	}

	return echojwt.WithConfig(jwtConfig), nil
}

// adminIdentityFromToken maps session-token claims to a tenant-scoped admin
// identity. Tokens lacking a subject or tenant produce no identity; the
// handlers reject such requests when they look the tenant up.
func adminIdentityFromToken(raw any) (*common.Identity, bool) {
	token, ok := raw.(*jwt.Token)
	if !ok {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, false
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, false
	}

	tenantStr, ok := claims["tenant_id"].(string)
	if !ok {
		return nil, false
	}
	tenantID, err := uuid.Parse(tenantStr)
	if err != nil {
		return nil, false
	}

	return &common.Identity{
		Kind:     common.IdentityAdmin,
		TenantID: tenantID,
		UserID:   userID,
	}, true
}
