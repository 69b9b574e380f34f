package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/userdirectory/core/internal/domain/entities"
	"github.com/userdirectory/core/internal/infrastructure/logger"
	"github.com/userdirectory/core/internal/ports"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the uniform wrapper of every users API response
type Envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    interface{}    `json:"data,omitempty"`
	Count   *int           `json:"count,omitempty"`
	Meta    *entities.Meta `json:"meta,omitempty"`
	Code    int            `json:"code,omitempty"`
}

// ErrorEnvelope builds an error envelope. The code is echoed in the body only
// for router-level failures.
func ErrorEnvelope(message string, code int) Envelope {
	return Envelope{Status: StatusError, Message: message, Code: code}
}

// UserHandler handles users resource requests
type UserHandler struct {
	userService ports.UserService
	logger      *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService ports.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.WithComponent("user_handler"),
	}
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {object} Envelope
// @Router /api/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, meta := h.userService.ListUsers(c.Request().Context())

	return c.JSON(http.StatusOK, Envelope{
		Status: StatusSuccess,
		Data:   users,
		Meta:   &meta,
	})
}

// GetUser godoc
// @Summary Get a user by ID
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} Envelope
// @Failure 404 {object} Envelope
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	user, err := h.userService.GetUser(c.Request().Context(), id)
	if errors.Is(err, entities.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, ErrorEnvelope("User not found", 0))
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, Envelope{Status: StatusSuccess, Data: user})
}

// UsersByCity godoc
// @Summary List users living in a city
// @Description Case-insensitive exact match on city
// @Tags users
// @Produce json
// @Param city path string true "City"
// @Success 200 {object} Envelope
// @Router /api/users/city/{city} [get]
func (h *UserHandler) UsersByCity(c echo.Context) error {
	city, err := pathParam(c, "city")
	if err != nil {
		return err
	}

	users := h.userService.UsersByCity(c.Request().Context(), city)
	return c.JSON(http.StatusOK, listEnvelope(users))
}

// UsersByJob godoc
// @Summary List users by occupation
// @Description Case-insensitive substring match on occupation
// @Tags users
// @Produce json
// @Param job path string true "Occupation fragment"
// @Success 200 {object} Envelope
// @Router /api/users/job/{job} [get]
func (h *UserHandler) UsersByJob(c echo.Context) error {
	job, err := pathParam(c, "job")
	if err != nil {
		return err
	}

	users := h.userService.UsersByOccupation(c.Request().Context(), job)
	return c.JSON(http.StatusOK, listEnvelope(users))
}

// CreateUser godoc
// @Summary Create a user
// @Description Requires name, email, age, city, occupation and hobbies
// @Tags users
// @Accept json
// @Produce json
// @Success 201 {object} Envelope
// @Failure 400 {object} Envelope
// @Failure 500 {object} Envelope
// @Router /api/users [post]
func (h *UserHandler) CreateUser(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		h.logger.Warnw("Create user rejected", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorEnvelope("Error creating user: "+entities.ErrMalformedBody.Error(), 0))
	}

	req := ports.NewCreateUserRequest(fields)
	if err := c.Validate(&req); err != nil {
		return h.validationFailed(c, err)
	}

	user, err := h.userService.CreateUser(c.Request().Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, entities.ErrPersistence):
		return c.JSON(http.StatusInternalServerError, ErrorEnvelope("Failed to save user", 0))
	default:
		return err
	}

	return c.JSON(http.StatusCreated, Envelope{
		Status:  StatusSuccess,
		Message: "User created successfully",
		Data:    user,
	})
}

// UpdateUser godoc
// @Summary Update a user
// @Description Merges the given fields into the user; id can not be changed
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} Envelope
// @Failure 404 {object} Envelope
// @Failure 500 {object} Envelope
// @Router /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	patch, err := readFields(c)
	if err != nil {
		h.logger.Warnw("Update user rejected", "user_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorEnvelope("Error updating user: "+entities.ErrMalformedBody.Error(), 0))
	}

	user, err := h.userService.UpdateUser(c.Request().Context(), id, patch)
	switch {
	case err == nil:
	case errors.Is(err, entities.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, ErrorEnvelope("User not found", 0))
	case errors.Is(err, entities.ErrPersistence):
		return c.JSON(http.StatusInternalServerError, ErrorEnvelope("Failed to update user", 0))
	default:
		return err
	}

	return c.JSON(http.StatusOK, Envelope{
		Status:  StatusSuccess,
		Message: "User updated successfully",
		Data:    user,
	})
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} Envelope
// @Failure 404 {object} Envelope
// @Failure 500 {object} Envelope
// @Router /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	user, err := h.userService.DeleteUser(c.Request().Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, entities.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, ErrorEnvelope("User not found", 0))
	case errors.Is(err, entities.ErrPersistence):
		return c.JSON(http.StatusInternalServerError, ErrorEnvelope("Failed to delete user", 0))
	default:
		return err
	}

	return c.JSON(http.StatusOK, Envelope{
		Status:  StatusSuccess,
		Message: "User deleted successfully",
		Data:    user,
	})
}

// validationFailed answers 400 for a missing field and hands anything else to
// the Echo error handler.
func (h *UserHandler) validationFailed(c echo.Context, err error) error {
	var verr *entities.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, ErrorEnvelope(verr.Error(), 0))
	}
	return err
}

func listEnvelope(users []entities.User) Envelope {
	count := len(users)
	return Envelope{Status: StatusSuccess, Data: users, Count: &count}
}

func readFields(c echo.Context) (entities.Fields, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	return entities.DecodeFields(body)
}

// userID parses the id path parameter. A non-integer id does not match the
// route, so it is answered like any unknown endpoint.
func userID(c echo.Context) (int, error) {
	raw := c.Param("id")
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, echo.ErrNotFound
		}
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

func pathParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
	}
	if value == "" {
		return "", echo.ErrNotFound
	}
	return value, nil
}
