// Package handler implements the HTTP endpoints of the API.  Handlers bind
// and validate input, call repositories and services, and answer with the
// common envelope; every failure is returned as an error and rendered by
// the central apperr handler.
package handler

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/roamly/tours-api/internal/apperr"
)

// envelope is the success response shape: {status, message?, token?,
// results?, data}.  results carries the window cardinality on listings.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respond(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, envelope{Status: "success", Message: message, Data: data})
}

func respondList(c echo.Context, results int, data any) error {
	return c.JSON(200, envelope{Status: "success", Results: &results, Data: data})
}

// respondToken answers an authentication endpoint: a fresh access token at
// the top level plus the user document, never the password.
func respondToken(c echo.Context, code int, token string, data any) error {
	return c.JSON(code, envelope{Status: "success", Token: token, Data: data})
}

// idParam parses the :id route parameter.
func idParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("invalid id")
	}
	return id, nil
}
