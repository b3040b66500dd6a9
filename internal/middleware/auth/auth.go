// Package auth gates protected routes on a bearer access token. It only
// authenticates: roles are attached to the request context for handlers, no
// role check happens here.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"technotes/internal/tokens"
)

const (
	CtxUsername = "username"
	CtxRoles    = "roles"
)

const bearerPrefix = "Bearer "

func RequireAuth(accessSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Proxies occasionally deliver Authorization as a list; the
			// first value wins.
			values := c.Request().Header.Values(echo.HeaderAuthorization)
			if len(values) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			header := values[0]

			if !strings.HasPrefix(header, bearerPrefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			raw := strings.TrimPrefix(header, bearerPrefix)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			claims, err := tokens.AccessClaimsFromToken(raw, accessSecret)
			if err != nil {
				if errors.Is(err, tokens.ErrMissingSecret) {
					return echo.NewHTTPError(http.StatusInternalServerError, "ACCESS_TOKEN_SECRET not defined")
				}
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			}

			c.Set(CtxUsername, claims.UserInfo.Username)
			c.Set(CtxRoles, claims.UserInfo.Roles)

			return next(c)
		}
	}
}
