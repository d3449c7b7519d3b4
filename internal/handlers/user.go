package handlers

import (
	"net/http"

	"github.com/andriansyah/digistore/internal/apperr"
	authmw "github.com/andriansyah/digistore/internal/middleware/auth"
	"github.com/andriansyah/digistore/internal/repo"
	"github.com/andriansyah/digistore/internal/util"
	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	Users *repo.UserRepo
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	page := parseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, limit)

	users, err := h.Users.List(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return respondOK(c, users)
}

// Me returns the caller's own record.
func (h *UserHandler) Me(c echo.Context) error {
	user := authmw.CurrentUser(c)
	if user == nil {
		return apperr.Unauthorized("login required")
	}
	return respondOK(c, user)
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return apperr.Validation("invalid request body")
	}

	email := c.Param("email")
	if err := h.Users.Edit(c.Request().Context(), email, updates); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user updated", nil)
}

// DeleteUser removes an account. The primary administrator is
// undeletable; the repo refuses it.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	if err := h.Users.Delete(c.Request().Context(), c.Param("email")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user deleted", nil)
}
