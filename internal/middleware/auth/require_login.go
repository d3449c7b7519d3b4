package auth

import (
	"github.com/labstack/echo/v4"
)

// RequireAuth rejects with 401 before the handler runs if the request
// carries no valid identity.
func (g *Gate) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := g.resolve(c)
		if err != nil {
			return err
		}
		setUserContext(c, user)
		return next(c)
	}
}
