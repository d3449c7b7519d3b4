package auth

import (
	"strings"

	idauth "github.com/andriansyah/digistore/internal/auth"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/andriansyah/digistore/internal/repo"
	"github.com/labstack/echo/v4"
)

// Gate authenticates requests against the identity provider and keeps
// the local user record in step with it.
type Gate struct {
	Verifier idauth.Verifier
	Users    *repo.UserRepo
}

// TokenFromRequest pulls the bearer token from the Authorization header
// or, failing that, the session cookies the login endpoint sets.
func TokenFromRequest(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	for _, name := range []string{"token", "firebase_token"} {
		if ck, err := c.Cookie(name); err == nil && ck.Value != "" {
			return ck.Value
		}
	}
	return ""
}

func setUserContext(c echo.Context, user *models.User) {
	c.Set("user", user)
	c.Set("email", user.Email)
	c.Set("role", user.Role)
}

// CurrentUser returns the user the middleware placed into the request
// context, or nil outside a gated route.
func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get("user").(*models.User); ok {
		return u
	}
	return nil
}

func (g *Gate) resolve(c echo.Context) (*models.User, error) {
	token := TokenFromRequest(c)
	identity, err := g.Verifier.Verify(c.Request().Context(), token)
	if err != nil {
		return nil, err
	}
	// Auto-provision on first sight of a verified identity.
	return g.Users.UpsertOnLogin(c.Request().Context(), identity.UID, identity.Email, identity.Name)
}
