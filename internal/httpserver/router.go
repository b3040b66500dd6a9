package httpserver

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"technotes/internal/handlers"
	authmw "technotes/internal/middleware/auth"
)

type Deps struct {
	AuthHandler  *handlers.AuthHandler
	UserHandler  *handlers.UserHandler
	NoteHandler  *handlers.NoteHandler
	AccessSecret []byte

	// WebRoot holds index.html and 404.html. Empty disables static pages.
	WebRoot string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	if d.WebRoot != "" {
		index := filepath.Join(d.WebRoot, "index.html")
		e.File("/", index)
		e.File("/index.html", index)
	}

	auth := e.Group("/auth")
	auth.POST("", d.AuthHandler.Login)
	auth.GET("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)

	protected := authmw.RequireAuth(d.AccessSecret)

	users := e.Group("/users", protected)
	users.GET("", d.UserHandler.GetUsers)
	users.POST("", d.UserHandler.CreateUser)
	users.PATCH("", d.UserHandler.UpdateUser)
	users.DELETE("", d.UserHandler.DeleteUser)

	notes := e.Group("/notes", protected)
	notes.GET("", d.NoteHandler.GetNotes)
	notes.POST("", d.NoteHandler.CreateNote)
	notes.PATCH("", d.NoteHandler.UpdateNote)
	notes.DELETE("", d.NoteHandler.DeleteNote)
	notes.GET("/search", d.NoteHandler.SearchNotes)

	e.RouteNotFound("/*", notFound(d.WebRoot))
}

// notFound negotiates the 404 body from the Accept header: an html page for
// browsers, {"message": ...} for API clients, plain text otherwise.
func notFound(webRoot string) echo.HandlerFunc {
	return func(c echo.Context) error {
		accept := c.Request().Header.Get(echo.HeaderAccept)
		switch {
		case strings.Contains(accept, echo.MIMETextHTML):
			if webRoot != "" {
				if page, err := os.ReadFile(filepath.Join(webRoot, "404.html")); err == nil {
					return c.HTMLBlob(http.StatusNotFound, page)
				}
			}
			return c.HTML(http.StatusNotFound, "<h1>404 Not Found</h1>")
		case strings.Contains(accept, echo.MIMEApplicationJSON), accept == "", accept == "*/*":
			return c.JSON(http.StatusNotFound, echo.Map{"message": "404 Not Found"})
		default:
			return c.String(http.StatusNotFound, "404 Not Found")
		}
	}
}
