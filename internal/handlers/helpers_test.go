package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"technotes/internal/hash"
	"technotes/internal/models"
	"technotes/internal/repo"
)

var (
	testAccessSecret  = []byte("test-access-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

func initTestRepo(t *testing.T) *repo.Repo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to connect to in-memory db")

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Note{}, &models.Counter{}))

	return repo.New(db)
}

func seedUser(t *testing.T, r *repo.Repo, username, password string, active bool, roles ...string) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)

	if len(roles) == 0 {
		roles = []string{"Employee"}
	}
	user := models.User{
		Username:     username,
		PasswordHash: pwHash,
		Roles:        models.RoleList(roles),
		Active:       active,
	}
	require.NoError(t, r.CreateUser(t.Context(), &user))
	return &user
}

func seedNote(t *testing.T, r *repo.Repo, owner *models.User, title, text string) *models.Note {
	t.Helper()

	note := models.Note{UserID: owner.ID, Title: title, Text: text}
	require.NoError(t, r.CreateNote(t.Context(), &note))
	return &note
}

// newContext builds an echo context carrying an optional JSON body, the way
// handlers see real requests.
func newContext(t *testing.T, method, target string, payload any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var req *http.Request
	if payload != nil {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return c, rec
}

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	return he
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
