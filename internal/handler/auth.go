package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roamly/tours-api/internal/apperr"
	"github.com/roamly/tours-api/internal/config"
	"github.com/roamly/tours-api/internal/middleware"
	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/queue"
	"github.com/roamly/tours-api/internal/repository"
	"github.com/roamly/tours-api/internal/utils"
)

// refreshCookieName is the cookie carrying the refresh token.  HTTP-only
// and SameSite=None: the SPA frontend lives on another origin.
const refreshCookieName = "jwt"

// resetTokenTTL bounds how long a password-reset token stays redeemable.
const resetTokenTTL = 10 * time.Minute

// Mailer dispatches the password-reset mail.  Implemented by
// service.QueueMailer; declared here so tests can substitute a stub.
type Mailer interface {
	SendPasswordReset(ctx context.Context, ev queue.PasswordResetMailEvent) error
}

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
	Mail  Mailer
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, mail Mailer) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Mail: mail}
}

// ----- DTOs -----

type signupReq struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Role            string `json:"role"` // accepted but ignored, see SignUp
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}
type updatePasswordReq struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func validPassword(pw string) error {
	if len(pw) < 8 {
		return apperr.BadRequest("password must be at least 8 characters")
	}
	return nil
}

// sendTokens issues a fresh access token for the user and answers with the
// standard auth envelope.  When withRefresh is set a refresh cookie is
// attached as well; the refresh token itself never appears in the body.
func (h *AuthHandler) sendTokens(c echo.Context, code int, u model.User, withRefresh bool) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u, h.Cfg.AccessTTLMin)
	if err != nil {
		return apperr.Internal("could not issue access token", err)
	}
	if withRefresh {
		refresh, err := utils.NewRefreshToken(h.Cfg.RefreshSecret, u.Email, h.Cfg.RefreshTTLDays)
		if err != nil {
			return apperr.Internal("could not issue refresh token", err)
		}
		h.setRefreshCookie(c, refresh.Token, refresh.Exp)
	}
	return respondToken(c, code, access.Token, echo.Map{"user": u})
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
		Secure:   h.Cfg.IsProd(),
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
		Secure:   h.Cfg.IsProd(),
	})
}

// SignUp creates a user and logs them in immediately.  The stored role is
// always "user" no matter what the client sent; elevated roles are only
// granted through the admin user routes.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" {
		return apperr.BadRequest("please tell us your name")
	}
	if !validEmail(req.Email) {
		return apperr.BadRequest("please provide a valid email address")
	}
	if err := validPassword(req.Password); err != nil {
		return err
	}
	if req.Password != req.PasswordConfirm {
		return apperr.BadRequest("passwords do not match")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.Conflict("email already exists")
		}
		return apperr.Internal("could not create user", err)
	}
	return h.sendTokens(c, http.StatusCreated, u, true)
}

// Login verifies credentials and issues a fresh token pair.  Unknown
// email, wrong password and deactivated account all answer the identical
// 401 so the endpoint cannot be used as a user-existence oracle.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid body")
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperr.BadRequest("please provide email and password")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Unauthorized("incorrect email or password")
		}
		return apperr.Internal("could not query user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.Unauthorized("incorrect email or password")
	}
	return h.sendTokens(c, http.StatusOK, u, true)
}

// Logout clears the refresh cookie.  A missing cookie means the client is
// already logged out, which is a 204 rather than an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	if _, err := c.Cookie(refreshCookieName); err != nil {
		return c.NoContent(http.StatusNoContent)
	}
	h.clearRefreshCookie(c)
	return respond(c, http.StatusOK, "logged out", nil)
}

// RefreshToken redeems the refresh cookie for a new access token.  The
// principal is re-resolved by email so a deactivated account cannot keep a
// session alive, and the refresh cookie is not rotated here.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return apperr.Unauthorized("unauthorized, please log in")
	}
	email, err := utils.ParseRefresh(h.Cfg.RefreshSecret, cookie.Value)
	if err != nil {
		return apperr.Unauthorized("unauthorized, please log in")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Unauthorized("unauthorized, please log in")
		}
		return apperr.Internal("could not query user", err)
	}
	return h.sendTokens(c, http.StatusOK, u, false)
}

// ForgotPassword starts the reset flow: generate a one-time token, store
// only its hash with a short expiry, and dispatch the plaintext token by
// mail.  When dispatch fails the stored reset state is rolled back before
// the error surfaces; a token the user never received must not linger.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil || normalizeEmail(req.Email) == "" {
		return apperr.BadRequest("please provide an email address")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("no user found with that email")
		}
		return apperr.Internal("could not query user", err)
	}

	raw, hash, err := utils.NewResetToken()
	if err != nil {
		return apperr.Internal("could not generate reset token", err)
	}
	expires := time.Now().UTC().Add(resetTokenTTL)
	if err := h.Users.SetResetToken(ctx, u.ID, hash, expires); err != nil {
		return apperr.Internal("could not store reset token", err)
	}

	resetURL := fmt.Sprintf("%s://%s/api/v1/users/resetPassword/%s", c.Scheme(), c.Request().Host, raw)
	ev := queue.PasswordResetMailEvent{
		Email:       u.Email,
		Name:        u.Name,
		ResetURL:    resetURL,
		ExpiresAt:   expires.Format(time.RFC3339),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Mail.SendPasswordReset(ctx, ev); err != nil {
		// Roll back so the stored hash cannot outlive the failed dispatch.
		_ = h.Users.ClearResetToken(ctx, u.ID)
		return apperr.Internal("there was an error sending the email, please try again later", err)
	}
	return respond(c, http.StatusOK, "token sent to email", nil)
}

// ResetPassword consumes a reset token.  The presented token is hashed the
// same way as the stored one; only a non-expired match on the latest
// issued token passes.  A reset to the current password is rejected as a
// no-op.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	rawToken := strings.TrimSpace(c.Param("token"))
	var req resetReq
	if err := c.Bind(&req); err != nil || rawToken == "" {
		return apperr.BadRequest("invalid body")
	}
	if err := validPassword(req.Password); err != nil {
		return err
	}
	if req.Password != req.PasswordConfirm {
		return apperr.BadRequest("passwords do not match")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.FindByResetToken(ctx, utils.HashResetRaw(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.BadRequest("token is invalid or has expired")
		}
		return apperr.Internal("could not query user", err)
	}
	if utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.BadRequest("new password cannot be the same as the old password")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("could not hash password", err)
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return apperr.Internal("could not update password", err)
	}
	return h.sendTokens(c, http.StatusOK, u, false)
}

// UpdatePassword changes the password of the authenticated user after
// verifying the current one.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		return apperr.Unauthorized("you are not logged in, please log in to get access")
	}
	var req updatePasswordReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// Re-fetch: the context copy may predate a concurrent password change.
	u, err := h.Users.FindByID(ctx, principal.ID)
	if err != nil {
		return apperr.Unauthorized("the user belonging to this token no longer exists")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return apperr.Unauthorized("current password is incorrect")
	}
	if err := validPassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return apperr.BadRequest("new passwords do not match")
	}
	if utils.VerifyPassword(u.PasswordHash, req.NewPassword) {
		return apperr.BadRequest("new password cannot be the same as the old password")
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("could not hash password", err)
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return apperr.Internal("could not update password", err)
	}
	return h.sendTokens(c, http.StatusOK, u, false)
}
