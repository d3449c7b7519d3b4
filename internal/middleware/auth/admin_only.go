package auth

import (
	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/labstack/echo/v4"
)

// RequireAdmin rejects with 401 when unauthenticated and 403 when the
// caller is authenticated but not the administrator.
func (g *Gate) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := g.resolve(c)
		if err != nil {
			return err
		}
		if user.Role != models.RoleAdmin {
			return apperr.Forbidden("admin access only")
		}
		setUserContext(c, user)
		return next(c)
	}
}
