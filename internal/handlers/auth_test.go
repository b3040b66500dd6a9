package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"technotes/internal/models"
	"technotes/internal/repo"
	"technotes/internal/tokens"
)

func newAuthHandler(r *repo.Repo) *AuthHandler {
	return &AuthHandler{
		Repo:          r,
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
	}
}

func loginCookie(t *testing.T, h *AuthHandler, username, password string) *http.Cookie {
	t.Helper()

	c, rec := newContext(t, http.MethodPost, "/auth", map[string]string{
		"username": username,
		"password": password,
	})
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == RefreshCookieName {
			return cookie
		}
	}
	t.Fatal("login did not set the jwt cookie")
	return nil
}

func TestLogin(t *testing.T) {
	r := initTestRepo(t)
	seedUser(t, r, "hank", "password", true, "Employee")
	h := newAuthHandler(r)

	c, rec := newContext(t, http.MethodPost, "/auth", map[string]string{
		"username": "hank",
		"password": "password",
	})
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	accessToken, ok := body["accessToken"].(string)
	require.True(t, ok, "expected accessToken in response body")

	claims, err := tokens.AccessClaimsFromToken(accessToken, testAccessSecret)
	require.NoError(t, err)
	require.Equal(t, "hank", claims.UserInfo.Username)
	require.Equal(t, []string{"Employee"}, claims.UserInfo.Roles)

	cookie := loginCookie(t, h, "hank", "password")
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	require.Equal(t, int(tokens.RefreshTokenTTL.Seconds()), cookie.MaxAge)

	refreshClaims, err := tokens.RefreshClaimsFromToken(cookie.Value, testRefreshSecret)
	require.NoError(t, err)
	require.Equal(t, "hank", refreshClaims.Username)
}

func TestLoginMissingFields(t *testing.T) {
	r := initTestRepo(t)
	h := newAuthHandler(r)

	c, _ := newContext(t, http.MethodPost, "/auth", map[string]string{"username": "hank"})
	requireHTTPError(t, h.Login(c), http.StatusBadRequest)

	c, _ = newContext(t, http.MethodPost, "/auth", map[string]string{"password": "password"})
	requireHTTPError(t, h.Login(c), http.StatusBadRequest)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	r := initTestRepo(t)
	seedUser(t, r, "hank", "password", true)
	seedUser(t, r, "dormant", "password", false)
	h := newAuthHandler(r)

	cases := []map[string]string{
		{"username": "nobody", "password": "password"},
		{"username": "dormant", "password": "password"},
		{"username": "hank", "password": "wrong"},
	}
	for _, payload := range cases {
		c, rec := newContext(t, http.MethodPost, "/auth", payload)
		he := requireHTTPError(t, h.Login(c), http.StatusUnauthorized)
		require.Equal(t, "Unauthorized", he.Message)
		require.Empty(t, rec.Result().Cookies(), "no cookie may be set on failed login")
	}
}

func TestRefresh(t *testing.T) {
	r := initTestRepo(t)
	user := seedUser(t, r, "hank", "password", true, "Employee")
	h := newAuthHandler(r)

	cookie := loginCookie(t, h, "hank", "password")

	c, rec := newContext(t, http.MethodGet, "/auth/refresh", nil)
	c.Request().AddCookie(cookie)
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	accessToken, ok := body["accessToken"].(string)
	require.True(t, ok)

	claims, err := tokens.AccessClaimsFromToken(accessToken, testAccessSecret)
	require.NoError(t, err)
	require.Equal(t, "hank", claims.UserInfo.Username)

	// Refresh reflects live role state, not the snapshot from login.
	user.Roles = models.RoleList{"Employee", "Manager"}
	require.NoError(t, r.SaveUser(t.Context(), user))

	c, rec = newContext(t, http.MethodGet, "/auth/refresh", nil)
	c.Request().AddCookie(cookie)
	require.NoError(t, h.Refresh(c))

	claims, err = tokens.AccessClaimsFromToken(decodeBody(t, rec)["accessToken"].(string), testAccessSecret)
	require.NoError(t, err)
	require.Equal(t, []string{"Employee", "Manager"}, claims.UserInfo.Roles)
}

func TestRefreshWithoutCookie(t *testing.T) {
	h := newAuthHandler(initTestRepo(t))

	c, _ := newContext(t, http.MethodGet, "/auth/refresh", nil)
	he := requireHTTPError(t, h.Refresh(c), http.StatusUnauthorized)
	require.Equal(t, "Unauthorized", he.Message)
}

func TestRefreshWithInvalidToken(t *testing.T) {
	r := initTestRepo(t)
	seedUser(t, r, "hank", "password", true)
	h := newAuthHandler(r)

	c, _ := newContext(t, http.MethodGet, "/auth/refresh", nil)
	c.Request().AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "garbage"})
	he := requireHTTPError(t, h.Refresh(c), http.StatusForbidden)
	require.Equal(t, "Forbidden", he.Message)
}

func TestRefreshWithExpiredToken(t *testing.T) {
	r := initTestRepo(t)
	seedUser(t, r, "hank", "password", true)
	h := newAuthHandler(r)

	claims := tokens.RefreshClaims{
		Username: "hank",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testRefreshSecret)
	require.NoError(t, err)

	c, _ := newContext(t, http.MethodGet, "/auth/refresh", nil)
	c.Request().AddCookie(&http.Cookie{Name: RefreshCookieName, Value: expired})
	he := requireHTTPError(t, h.Refresh(c), http.StatusForbidden)
	require.Equal(t, "Forbidden", he.Message)
}

func TestRefreshAfterUserDeleted(t *testing.T) {
	r := initTestRepo(t)
	user := seedUser(t, r, "hank", "password", true)
	h := newAuthHandler(r)

	cookie := loginCookie(t, h, "hank", "password")
	require.NoError(t, r.DeleteUser(t.Context(), user.ID))

	c, _ := newContext(t, http.MethodGet, "/auth/refresh", nil)
	c.Request().AddCookie(cookie)
	requireHTTPError(t, h.Refresh(c), http.StatusUnauthorized)
}

func TestLoginThenRefreshYieldsTwoValidTokens(t *testing.T) {
	r := initTestRepo(t)
	seedUser(t, r, "hank", "password", true)
	h := newAuthHandler(r)

	c, rec := newContext(t, http.MethodPost, "/auth", map[string]string{
		"username": "hank",
		"password": "password",
	})
	require.NoError(t, h.Login(c))
	first := decodeBody(t, rec)["accessToken"].(string)

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == RefreshCookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)

	c, rec = newContext(t, http.MethodGet, "/auth/refresh", nil)
	c.Request().AddCookie(cookie)
	require.NoError(t, h.Refresh(c))
	second := decodeBody(t, rec)["accessToken"].(string)

	for _, token := range []string{first, second} {
		_, err := tokens.AccessClaimsFromToken(token, testAccessSecret)
		require.NoError(t, err)
	}
}

func TestLogout(t *testing.T) {
	r := initTestRepo(t)
	seedUser(t, r, "hank", "password", true)
	h := newAuthHandler(r)

	// Without a cookie logout is an idempotent no-op.
	c, rec := newContext(t, http.MethodPost, "/auth/logout", nil)
	require.NoError(t, h.Logout(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	cookie := loginCookie(t, h, "hank", "password")

	c, rec = newContext(t, http.MethodPost, "/auth/logout", nil)
	c.Request().AddCookie(cookie)
	require.NoError(t, h.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Cookie cleared", decodeBody(t, rec)["message"])

	var cleared *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == RefreshCookieName {
			cleared = ck
		}
	}
	require.NotNil(t, cleared, "logout must clear the jwt cookie")
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
	require.True(t, cleared.HttpOnly)
	require.True(t, cleared.Secure)
}
