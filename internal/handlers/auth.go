package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"technotes/internal/events"
	"technotes/internal/hash"
	"technotes/internal/logging"
	"technotes/internal/repo"
	"technotes/internal/tokens"
)

// RefreshCookieName is the cookie that carries the refresh token. The
// access token never travels in a cookie: clients read it from the response
// body and send it back in the Authorization header.
const RefreshCookieName = "jwt"

type AuthHandler struct {
	Repo          *repo.Repo
	AccessSecret  []byte
	RefreshSecret []byte
	Producer      *events.Producer
}

func refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicAuth, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

// Login exchanges username/password for an access token in the body and a
// refresh token in the jwt cookie. Unknown, inactive and wrong-password
// users all get the same 401 so the response leaks nothing about which
// check failed.
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	user, err := h.Repo.UserByUsername(c.Request().Context(), req.Username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !user.Active {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	accessToken, err := tokens.SignAccessToken(user.Username, user.Roles, h.AccessSecret)
	if err != nil {
		return misconfigOr500(err)
	}

	refreshToken, err := tokens.SignRefreshToken(user.Username, h.RefreshSecret)
	if err != nil {
		return misconfigOr500(err)
	}

	c.SetCookie(refreshCookie(refreshToken, int(tokens.RefreshTokenTTL.Seconds())))

	h.publish(c, user.Username, map[string]any{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{"accessToken": accessToken})
}

// Refresh mints a new access token from the refresh cookie. Roles are
// re-read from the store, so a role change takes effect on the next refresh
// rather than living on in stale access tokens. The refresh token itself is
// not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	claims, err := tokens.RefreshClaimsFromToken(cookie.Value, h.RefreshSecret)
	if err != nil {
		if errors.Is(err, tokens.ErrMissingSecret) {
			return misconfigOr500(err)
		}
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}

	// The user may have been deleted since the token was issued.
	user, err := h.Repo.UserByUsername(c.Request().Context(), claims.Username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	accessToken, err := tokens.SignAccessToken(user.Username, user.Roles, h.AccessSecret)
	if err != nil {
		return misconfigOr500(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"accessToken": accessToken})
}

// Logout clears the refresh cookie. Without a cookie there is nothing to do
// and the call is a 204 no-op.
func (h *AuthHandler) Logout(c echo.Context) error {
	if _, err := c.Cookie(RefreshCookieName); err != nil {
		return c.NoContent(http.StatusNoContent)
	}

	c.SetCookie(refreshCookie("", -1))

	h.publish(c, "", map[string]any{"type": "user_logged_out"})

	return c.JSON(http.StatusOK, echo.Map{"message": "Cookie cleared"})
}

func misconfigOr500(err error) *echo.HTTPError {
	if errors.Is(err, tokens.ErrMissingSecret) {
		return echo.NewHTTPError(http.StatusInternalServerError, "ACCESS_TOKEN_SECRET or REFRESH_TOKEN_SECRET are not defined")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
