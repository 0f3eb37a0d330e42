package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roamly/tours-api/internal/apperr"
	"github.com/roamly/tours-api/internal/middleware"
	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/repository"
)

// UserHandler serves the self-service endpoints and embeds the generic
// admin resource for /users.
type UserHandler struct {
	Users    *repository.UserRepo
	Resource Resource[model.User]
}

func NewUserHandler(users *repository.UserRepo) *UserHandler {
	return &UserHandler{
		Users:    users,
		Resource: Resource[model.User]{Name: "user", Store: users},
	}
}

// GetMe returns the authenticated user's own profile.
func (h *UserHandler) GetMe(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return apperr.Unauthorized("you are not logged in, please log in to get access")
	}
	return respond(c, http.StatusOK, "", echo.Map{"user": u})
}

// UpdateMe edits the caller's own profile.  Password fields are rejected
// outright instead of silently dropped: the password has its own endpoint
// with current-password verification, and a request mixing the two almost
// certainly expected that check to run.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return apperr.Unauthorized("you are not logged in, please log in to get access")
	}
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return apperr.BadRequest("invalid body")
	}
	if _, has := body["password"]; has {
		return apperr.BadRequest("this route is not for password updates, please use /updateMyPassword")
	}
	if _, has := body["passwordConfirm"]; has {
		return apperr.BadRequest("this route is not for password updates, please use /updateMyPassword")
	}
	fields := filterFields(body, "name", "email", "photo")
	if len(fields) == 0 {
		return apperr.BadRequest("nothing to update")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	updated, err := h.Users.UpdateProfile(ctx, u.ID, fields)
	if err != nil {
		return storeErr(err, "user")
	}
	return respond(c, http.StatusOK, "Profile updated successfully", echo.Map{"user": updated})
}

// DeleteMe soft-deletes: the row stays for referential integrity but the
// account disappears from every active-scoped lookup and can no longer
// authenticate.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return apperr.Unauthorized("you are not logged in, please log in to get access")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Deactivate(ctx, u.ID); err != nil {
		return storeErr(err, "user")
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateUser exists so POST /users answers deliberately instead of 404.
// Account creation goes through signup, which hashes the password and
// pins the role.
func (h *UserHandler) CreateUser(c echo.Context) error {
	return apperr.New(http.StatusInternalServerError, "this route is not defined, please use /signup instead")
}
