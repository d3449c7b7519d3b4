package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	idauth "github.com/andriansyah/digistore/internal/auth"
	"github.com/andriansyah/digistore/internal/events"
	"github.com/andriansyah/digistore/internal/repo"
	"github.com/labstack/echo/v4"
)

const sessionTTL = 7 * 24 * time.Hour

type AuthHandler struct {
	Verifier idauth.Verifier
	Users    *repo.UserRepo
	Producer *events.Producer
}

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login verifies the provider-issued ID token, provisions the user
// record on first sight, and stores the token in session cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.IDToken == "" {
		return apperr.Validation("idToken is required")
	}

	identity, err := h.Verifier.Verify(c.Request().Context(), req.IDToken)
	if err != nil {
		return err
	}

	user, err := h.Users.UpsertOnLogin(c.Request().Context(), identity.UID, identity.Email, identity.Name)
	if err != nil {
		return err
	}

	now := time.Now()
	expires := now.Add(sessionTTL)
	c.SetCookie(CreateCookie("token", req.IDToken, "/", expires))
	c.SetCookie(CreateCookie("firebase_token", req.IDToken, "/", expires))

	h.publish(c, map[string]any{
		"type":  "user_logged_in",
		"email": user.Email,
		"role":  user.Role,
	})

	return respond(c, http.StatusOK, "login successful", echo.Map{
		"token":      req.IDToken,
		"type":       user.Role,
		"created_at": now.Unix(),
		"expired_at": expires.Unix(),
	})
}

// Logout clears the session cookies. The provider token itself stays
// valid until it expires; there is nothing to revoke server-side.
func (h *AuthHandler) Logout(c echo.Context) error {
	expired := time.Now().Add(-time.Hour)
	c.SetCookie(CreateCookie("token", "", "/", expired))
	c.SetCookie(CreateCookie("firebase_token", "", "/", expired))
	return respond(c, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	key, _ := event["email"].(string)
	if err := h.Producer.PublishEvent(ctx, events.TopicUserEvents, key, event); err != nil {
		c.Logger().Errorf("event publish error: %v", err)
	}
}
