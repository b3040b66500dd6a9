package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"technotes/internal/events"
	"technotes/internal/hash"
	"technotes/internal/logging"
	"technotes/internal/models"
	"technotes/internal/repo"
)

type UserHandler struct {
	Repo     *repo.Repo
	Producer *events.Producer
}

// DefaultRoles is assigned when a new user is created without any.
var DefaultRoles = models.RoleList{"Employee"}

func (h *UserHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicUsers, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.Repo.ListUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// An empty collection is an error here, not an empty success.
	if len(users) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No users found")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	var req struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Roles    []string `json:"roles"`
	}
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	ctx := c.Request().Context()

	if _, err := h.Repo.UserByUsernameFold(ctx, req.Username); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Duplicate username")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	roles := models.RoleList(req.Roles)
	if len(roles) == 0 {
		roles = DefaultRoles
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		Roles:        roles,
		Active:       true,
	}
	if err := h.Repo.CreateUser(ctx, &user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, user.ID.String(), map[string]any{
		"type":     "user_created",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{"message": fmt.Sprintf("New user %s created", user.Username)})
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	var req struct {
		ID       string   `json:"id"`
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
		Active   *bool    `json:"active"`
		Password string   `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.ID == "" || req.Username == "" || len(req.Roles) == 0 || req.Active == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	ctx := c.Request().Context()

	user, err := h.Repo.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Renaming to the user's own (case-insensitively unchanged) name is fine.
	if dup, err := h.Repo.UserByUsernameFold(ctx, req.Username); err == nil && dup.ID != user.ID {
		return echo.NewHTTPError(http.StatusConflict, "Duplicate username")
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	user.Username = req.Username
	user.Roles = models.RoleList(req.Roles)
	user.Active = *req.Active

	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		user.PasswordHash = pwHash
	}

	if err := h.Repo.SaveUser(ctx, user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, user.ID.String(), map[string]any{
		"type":     "user_updated",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("%s updated", user.Username)})
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.Bind(&req); err != nil || req.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "User ID required")
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	ctx := c.Request().Context()

	hasNotes, err := h.Repo.UserHasNotes(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hasNotes {
		return echo.NewHTTPError(http.StatusBadRequest, "User has assigned notes")
	}

	user, err := h.Repo.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.Repo.DeleteUser(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, user.ID.String(), map[string]any{
		"type":     "user_deleted",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Username %s with ID %s deleted", user.Username, user.ID),
	})
}
