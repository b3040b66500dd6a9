package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"technotes/internal/events"
	"technotes/internal/logging"
	"technotes/internal/models"
	"technotes/internal/repo"
	"technotes/internal/search"
)

// OrphanOwner is reported as the owner of a note whose user is gone.
const OrphanOwner = "User not found"

type NoteHandler struct {
	Repo     *repo.Repo
	Producer *events.Producer
	ES       *elasticsearch.Client
}

// NoteWithOwner is a list/search item: the note joined with its owner's
// username.
type NoteWithOwner struct {
	models.Note
	Username string `json:"username"`
}

func (h *NoteHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicNotes, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *NoteHandler) index(c echo.Context, note *models.Note) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexNote(ctx, h.ES, note); err != nil {
		logging.FromContext(c.Request().Context()).Error("search index error", "note", note.ID, "error", err)
	}
}

func (h *NoteHandler) deindex(c echo.Context, id uuid.UUID) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.DeleteNote(ctx, h.ES, id.String()); err != nil {
		logging.FromContext(c.Request().Context()).Error("search deindex error", "note", id, "error", err)
	}
}

func (h *NoteHandler) withOwner(ctx context.Context, note models.Note) NoteWithOwner {
	username := OrphanOwner
	if owner, err := h.Repo.UserByID(ctx, note.UserID); err == nil {
		username = owner.Username
	}
	return NoteWithOwner{Note: note, Username: username}
}

func (h *NoteHandler) GetNotes(c echo.Context) error {
	ctx := c.Request().Context()

	notes, err := h.Repo.ListNotes(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(notes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No notes found")
	}

	out := make([]NoteWithOwner, len(notes))
	for i, note := range notes {
		out[i] = h.withOwner(ctx, note)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *NoteHandler) CreateNote(c echo.Context) error {
	var req struct {
		User  string `json:"user"`
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := c.Bind(&req); err != nil || req.User == "" || req.Title == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	userID, err := uuid.Parse(req.User)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	ctx := c.Request().Context()

	if _, err := h.Repo.NoteByTitleFold(ctx, req.Title); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Duplicate note title")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	note := models.Note{
		UserID: userID,
		Title:  req.Title,
		Text:   req.Text,
	}
	if err := h.Repo.CreateNote(ctx, &note); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, &note)
	h.publish(c, note.ID.String(), map[string]any{
		"type":   "note_created",
		"noteID": note.ID,
		"ticket": note.Ticket,
		"title":  note.Title,
	})

	return c.JSON(http.StatusCreated, echo.Map{"message": "New note created"})
}

func (h *NoteHandler) UpdateNote(c echo.Context) error {
	var req struct {
		ID        string `json:"id"`
		User      string `json:"user"`
		Title     string `json:"title"`
		Text      string `json:"text"`
		Completed *bool  `json:"completed"`
	}
	if err := c.Bind(&req); err != nil || req.ID == "" || req.User == "" || req.Title == "" || req.Text == "" || req.Completed == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid note ID")
	}
	userID, err := uuid.Parse(req.User)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	ctx := c.Request().Context()

	note, err := h.Repo.NoteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "Note not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Keeping the note's own title is not a conflict.
	if dup, err := h.Repo.NoteByTitleFold(ctx, req.Title); err == nil && dup.ID != note.ID {
		return echo.NewHTTPError(http.StatusConflict, "Duplicate note title")
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	note.UserID = userID
	note.Title = req.Title
	note.Text = req.Text
	note.Completed = *req.Completed

	if err := h.Repo.SaveNote(ctx, note); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, note)
	h.publish(c, note.ID.String(), map[string]any{
		"type":   "note_updated",
		"noteID": note.ID,
		"ticket": note.Ticket,
		"title":  note.Title,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("'%s' updated", note.Title)})
}

func (h *NoteHandler) DeleteNote(c echo.Context) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.Bind(&req); err != nil || req.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Note ID required")
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid note ID")
	}

	ctx := c.Request().Context()

	note, err := h.Repo.NoteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "Note not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.Repo.DeleteNote(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.deindex(c, id)
	h.publish(c, note.ID.String(), map[string]any{
		"type":   "note_deleted",
		"noteID": note.ID,
		"ticket": note.Ticket,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Note %s with ID %s deleted", note.Title, note.ID),
	})
}

// SearchNotes is a fuzzy full-text search over titles and bodies, available
// only when elasticsearch is configured.
func (h *NoteHandler) SearchNotes(c echo.Context) error {
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Search is not configured")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query parameter q is required")
	}

	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, err := strconv.Atoi(c.QueryParam("size"))
	if err != nil || size <= 0 || size > 100 {
		size = 20
	}
	if from < 0 {
		from = 0
	}

	ctx := c.Request().Context()

	total, notes, err := search.Notes(ctx, h.ES, q, from, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	out := make([]NoteWithOwner, len(notes))
	for i, note := range notes {
		out[i] = h.withOwner(ctx, note)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "notes": out})
}
