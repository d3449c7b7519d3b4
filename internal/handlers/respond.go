package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respond(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, Response{Status: true, Message: message, Data: data})
}

func respondOK(c echo.Context, data any) error {
	return respond(c, http.StatusOK, "", data)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
