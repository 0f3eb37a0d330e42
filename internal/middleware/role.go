package middleware // middleware provides shared request processing for handlers

import (
    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/roamly/tours-api/internal/apperr"
)

// RestrictTo returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  It is a pure
// role-membership check against the principal Protect already resolved,
// kept separate from Protect so each gate stays independently testable and
// routes can chain zero or more of them.  If the user's role is not in the
// allowed set, the request is aborted with a 403 Forbidden response.
func RestrictTo(roles ...string) echo.MiddlewareFunc {
    // Build a set of allowed roles for constant-time lookups.
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, ok := CurrentUser(c)
            if !ok || !allowed[u.Role] {
                return apperr.Forbidden("you do not have permission to perform this action")
            }
            return next(c)
        }
    }
}
