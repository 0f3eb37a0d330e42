// Package apperr defines the error taxonomy shared by handlers and the
// single translation point that maps an error to its HTTP response.  Errors
// are raised where they are detected and travel unchanged up to Echo's
// error handler; nothing in between rewrites or swallows them.
package apperr

import (
    "errors"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"
)

// Error carries an HTTP status code, a client-safe message and, optionally,
// the underlying cause for logging.  The cause is never serialized.
type Error struct {
    Code     int
    Message  string
    Internal error
}

func (e *Error) Error() string {
    if e.Internal != nil {
        return e.Message + ": " + e.Internal.Error()
    }
    return e.Message
}

func (e *Error) Unwrap() error { return e.Internal }

// New builds an Error with an arbitrary status code.
func New(code int, message string) *Error { return &Error{Code: code, Message: message} }

// BadRequest flags malformed or missing input (400).
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// Unauthorized flags a missing, invalid, expired or stale credential (401).
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden flags a role that is not permitted to perform the action (403).
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

// NotFound flags a lookup that matched no entity (404).
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// Conflict flags a uniqueness violation (409).
func Conflict(message string) *Error { return New(http.StatusConflict, message) }

// Internal wraps an unexpected failure (500).  The cause is kept for logs;
// clients see only the message.
func Internal(message string, cause error) *Error {
    return &Error{Code: http.StatusInternalServerError, Message: message, Internal: cause}
}

// errorBody is the failure envelope: {status:"fail"|"error", message}.
// 4xx errors report "fail" (the client can correct the request), 5xx report
// "error" (the server misbehaved).
type errorBody struct {
    Status  string `json:"status"`
    Message string `json:"message"`
}

func statusWord(code int) string {
    if code >= 500 {
        return "error"
    }
    return "fail"
}

// Handler returns the Echo error handler used application-wide.  It maps
// *Error and *echo.HTTPError to the failure envelope; anything else becomes
// a 500.  In production mode a 500 never leaks internal detail.
func Handler(isProd bool) echo.HTTPErrorHandler {
    return func(err error, c echo.Context) {
        if c.Response().Committed {
            return
        }

        code := http.StatusInternalServerError
        message := "something went very wrong"

        var ae *Error
        var he *echo.HTTPError
        switch {
        case errors.As(err, &ae):
            code = ae.Code
            message = ae.Message
            if ae.Internal != nil {
                log.Printf("apperr: %s %s -> %d: %v", c.Request().Method, c.Path(), code, ae.Internal)
            }
        case errors.As(err, &he):
            code = he.Code
            if s, ok := he.Message.(string); ok {
                message = s
            } else {
                message = http.StatusText(code)
            }
        default:
            log.Printf("apperr: %s %s -> unexpected: %v", c.Request().Method, c.Path(), err)
            if !isProd {
                message = err.Error()
            }
        }

        if c.Request().Method == http.MethodHead {
            _ = c.NoContent(code)
            return
        }
        _ = c.JSON(code, errorBody{Status: statusWord(code), Message: message})
    }
}
