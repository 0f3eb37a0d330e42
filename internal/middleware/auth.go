package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"
    "errors"
    "log"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/roamly/tours-api/internal/apperr"
    "github.com/roamly/tours-api/internal/config"
    "github.com/roamly/tours-api/internal/model"
    "github.com/roamly/tours-api/internal/repository"
    "github.com/roamly/tours-api/internal/utils"
)

// principalKey is the context key under which Protect stores the resolved
// user.  Handlers read it through CurrentUser.
const principalKey = "user"

// PrincipalStore resolves the principal a verified token points at.
// Implemented by repository.UserRepo; declared here so middleware tests can
// substitute a stub.
type PrincipalStore interface {
    FindByID(ctx context.Context, id uint64) (model.User, error)
}

// Protect returns the authentication gate applied to every protected
// route.  Per request it walks a fixed sequence with terminal outcomes
// authorized(principal) or rejected:
//
//  1. extract the bearer token from the Authorization header
//  2. verify signature and expiry
//  3. re-resolve the principal from storage (a deleted or deactivated
//     account invalidates all of its tokens immediately)
//  4. compare the token's issue time against password_changed_at (a token
//     issued before a password change is stale)
//  5. attach the principal to the request context
//
// Every rejection is the same 401 to the client; the precise reason goes
// to the log only.
func Protect(cfg config.Config, users PrincipalStore) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return apperr.Unauthorized("you are not logged in, please log in to get access")
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims, err := utils.ParseAccess(cfg.JWTSecret, raw)
            if err != nil {
                // Expired and tampered tokens are distinguishable here but
                // must look identical to the caller.
                if errors.Is(err, utils.ErrTokenExpired) {
                    log.Printf("auth: expired access token on %s", c.Path())
                } else {
                    log.Printf("auth: invalid access token on %s", c.Path())
                }
                return apperr.Unauthorized("invalid or expired token, please log in again")
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()

            u, err := users.FindByID(ctx, claims.UserID)
            if err != nil {
                if errors.Is(err, repository.ErrNotFound) {
                    return apperr.Unauthorized("the user belonging to this token no longer exists")
                }
                return apperr.Internal("could not resolve user", err)
            }

            if u.ChangedPasswordAfter(claims.IssuedAt) {
                return apperr.Unauthorized("user recently changed password, please log in again")
            }

            c.Set(principalKey, u)
            return next(c)
        }
    }
}

// CurrentUser returns the principal attached by Protect.  The boolean is
// false on routes that never passed through the guard.
func CurrentUser(c echo.Context) (model.User, bool) {
    u, ok := c.Get(principalKey).(model.User)
    return u, ok
}
