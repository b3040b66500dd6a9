package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"technotes/internal/tokens"
)

var secret = []byte("test-access-secret")

func invoke(t *testing.T, authorization ...string) (echo.Context, error, bool) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	for _, v := range authorization {
		req.Header.Add(echo.HeaderAuthorization, v)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	called := false
	next := func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}
	err := RequireAuth(secret)(next)(c)
	return c, err, called
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
}

func TestMissingHeader(t *testing.T) {
	_, err, called := invoke(t)
	requireHTTPError(t, err, http.StatusUnauthorized)
	require.False(t, called)
}

func TestNonBearerHeader(t *testing.T) {
	_, err, called := invoke(t, "Basic aGFuazpwYXNzd29yZA==")
	requireHTTPError(t, err, http.StatusUnauthorized)
	require.False(t, called)
}

func TestEmptyToken(t *testing.T) {
	_, err, called := invoke(t, "Bearer ")
	requireHTTPError(t, err, http.StatusUnauthorized)
	require.False(t, called)
}

func TestInvalidToken(t *testing.T) {
	_, err, called := invoke(t, "Bearer garbage")
	requireHTTPError(t, err, http.StatusForbidden)
	require.False(t, called)
}

func TestTokenSignedWithOtherSecret(t *testing.T) {
	other, err := tokens.SignAccessToken("hank", []string{"Employee"}, []byte("other-secret"))
	require.NoError(t, err)

	_, err, called := invoke(t, "Bearer "+other)
	requireHTTPError(t, err, http.StatusForbidden)
	require.False(t, called)
}

func TestValidTokenAttachesIdentity(t *testing.T) {
	token, err := tokens.SignAccessToken("hank", []string{"Employee", "Manager"}, secret)
	require.NoError(t, err)

	c, err, called := invoke(t, "Bearer "+token)
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "hank", c.Get(CtxUsername))
	require.Equal(t, []string{"Employee", "Manager"}, c.Get(CtxRoles))
}

func TestFirstHeaderValueWins(t *testing.T) {
	token, err := tokens.SignAccessToken("hank", []string{"Employee"}, secret)
	require.NoError(t, err)

	c, err, called := invoke(t, "Bearer "+token, "Bearer garbage")
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "hank", c.Get(CtxUsername))
}
