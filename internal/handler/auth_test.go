package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/tours-api/internal/apperr"
	"github.com/roamly/tours-api/internal/config"
	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/queue"
	"github.com/roamly/tours-api/internal/repository"
	"github.com/roamly/tours-api/internal/utils"
)

type stubMailer struct {
	events []queue.PasswordResetMailEvent
	err    error
}

func (m *stubMailer) SendPasswordReset(_ context.Context, ev queue.PasswordResetMailEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		JWTSecret:      "access-secret",
		RefreshSecret:  "refresh-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
	}
}

func newAuthApp(t *testing.T) (*echo.Echo, sqlmock.Sqlmock, *stubMailer) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mailer := &stubMailer{}
	h := NewAuthHandler(testConfig(), repository.NewUserRepo(db), mailer)

	e := echo.New()
	e.HTTPErrorHandler = apperr.Handler(false)
	g := e.Group("/api/v1/users")
	g.POST("/signup", h.SignUp)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.POST("/refreshToken", h.RefreshToken)
	g.POST("/forgotPassword", h.ForgotPassword)
	g.PATCH("/resetPassword/:token", h.ResetPassword)
	return e, mock, mailer
}

var authUserCols = []string{
	"id", "name", "email", "photo", "role", "password_hash", "password_changed_at",
	"password_reset_token", "password_reset_expires", "active", "created_at", "updated_at",
}

func authUserRow(t *testing.T, id uint64, email, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := utils.HashPassword(password, 4)
	require.NoError(t, err)
	now := time.Now().UTC()
	return sqlmock.NewRows(authUserCols).
		AddRow(id, "Rosa", email, nil, model.RoleUser, hash, nil, nil, nil, true, now, now)
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "jwt" {
			return ck
		}
	}
	return nil
}

func TestSignUpForcesUserRole(t *testing.T) {
	e, mock, _ := newAuthApp(t)

	// The client asks for admin; the INSERT must carry "user".
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Rosa", "rosa@example.com", sqlmock.AnyArg(), model.RoleUser).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("FROM users WHERE id=").
		WithArgs(uint64(5)).
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))

	rec := doJSON(e, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Rosa","email":"Rosa@Example.com","password":"pass1234","passwordConfirm":"pass1234","role":"admin"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["token"])

	// The stored document comes back without secrets and a refresh cookie
	// is attached.
	userDoc := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, model.RoleUser, userDoc["role"])
	assert.NotContains(t, rec.Body.String(), "password")

	ck := refreshCookie(rec)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpPasswordMismatch(t *testing.T) {
	e, _, _ := newAuthApp(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Rosa","email":"rosa@example.com","password":"pass1234","passwordConfirm":"different1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignUpShortPassword(t *testing.T) {
	e, _, _ := newAuthApp(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Rosa","email":"rosa@example.com","password":"short","passwordConfirm":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSuccess(t *testing.T) {
	e, mock, _ := newAuthApp(t)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("rosa@example.com").
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))

	rec := doJSON(e, http.MethodPost, "/api/v1/users/login",
		`{"email":"rosa@example.com","password":"pass1234"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := utils.ParseAccess("access-secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), claims.UserID)
	assert.NotNil(t, refreshCookie(rec))
}

func TestLoginIsNoExistenceOracle(t *testing.T) {
	e, mock, _ := newAuthApp(t)

	// Unknown email and wrong password must be byte-identical rejections.
	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	recUnknown := doJSON(e, http.MethodPost, "/api/v1/users/login",
		`{"email":"ghost@example.com","password":"pass1234"}`)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("rosa@example.com").
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))
	recWrong := doJSON(e, http.MethodPost, "/api/v1/users/login",
		`{"email":"rosa@example.com","password":"wrongpass"}`)

	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, recUnknown.Body.String(), recWrong.Body.String())
}

func TestLogout(t *testing.T) {
	e, _, _ := newAuthApp(t)

	// No cookie: already logged out.
	rec := doJSON(e, http.MethodPost, "/api/v1/users/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// With cookie: cleared and confirmed.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "whatever"})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	ck := refreshCookie(rec)
	require.NotNil(t, ck)
	assert.Less(t, ck.MaxAge, 0)
}

func TestRefreshToken(t *testing.T) {
	e, mock, _ := newAuthApp(t)

	refresh, err := utils.NewRefreshToken("refresh-secret", "rosa@example.com", 7)
	require.NoError(t, err)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("rosa@example.com").
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refreshToken", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: refresh.Token})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	claims, err := utils.ParseAccess("access-secret", body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "rosa@example.com", claims.Email)
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	e, _, _ := newAuthApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refreshToken", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "not-a-token"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	e, mock, mailer := newAuthApp(t)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	rec := doJSON(e, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, mailer.events)
}

func TestForgotPasswordDispatchesResetMail(t *testing.T) {
	e, mock, mailer := newAuthApp(t)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("rosa@example.com").
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_reset_token=?, password_reset_expires=? WHERE id=?")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(e, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"rosa@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, mailer.events, 1)
	ev := mailer.events[0]
	assert.Equal(t, "rosa@example.com", ev.Email)
	require.Contains(t, ev.ResetURL, "/api/v1/users/resetPassword/")

	// The mailed URL carries the raw token; the database only ever saw its
	// hash, so the raw one must be usable exactly as mailed.
	raw := ev.ResetURL[strings.LastIndexByte(ev.ResetURL, '/')+1:]
	assert.Len(t, raw, 64)
	require.NoError(t, mock.ExpectationsWereMet())
}

// argCaptor records the driver value sqlmock matched so a test can inspect
// what was actually written.
type argCaptor struct{ got driver.Value }

func (a *argCaptor) Match(v driver.Value) bool { a.got = v; return true }

func TestForgotPasswordRotationInvalidatesPriorToken(t *testing.T) {
	e, mock, mailer := newAuthApp(t)

	var first, second argCaptor
	for _, captor := range []*argCaptor{&first, &second} {
		mock.ExpectQuery("FROM users WHERE email=").
			WithArgs("rosa@example.com").
			WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))
		mock.ExpectExec("UPDATE users SET password_reset_token=").
			WithArgs(captor, sqlmock.AnyArg(), uint64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	for i := 0; i < 2; i++ {
		rec := doJSON(e, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"rosa@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	require.Len(t, mailer.events, 2)
	rawOf := func(ev queue.PasswordResetMailEvent) string {
		return ev.ResetURL[strings.LastIndexByte(ev.ResetURL, '/')+1:]
	}

	// Each request stores the hash of the token it mailed, and the second
	// write overwrites the first, so only the latest token can ever match.
	assert.Equal(t, utils.HashResetRaw(rawOf(mailer.events[0])), first.got)
	assert.Equal(t, utils.HashResetRaw(rawOf(mailer.events[1])), second.got)
	assert.NotEqual(t, first.got, second.got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForgotPasswordRollsBackOnMailFailure(t *testing.T) {
	e, mock, mailer := newAuthApp(t)
	mailer.err = assert.AnError

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("rosa@example.com").
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))
	mock.ExpectExec("UPDATE users SET password_reset_token=").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_reset_token=NULL, password_reset_expires=NULL WHERE id=?")).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(e, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"rosa@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordInvalidToken(t *testing.T) {
	e, mock, _ := newAuthApp(t)

	mock.ExpectQuery("password_reset_token=").
		WillReturnError(sql.ErrNoRows)

	rec := doJSON(e, http.MethodPatch, "/api/v1/users/resetPassword/deadbeef",
		`{"password":"newpass123","passwordConfirm":"newpass123"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "token is invalid or has expired")
}

func TestResetPasswordRejectsReusedPassword(t *testing.T) {
	e, mock, _ := newAuthApp(t)

	mock.ExpectQuery("password_reset_token=").
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))

	rec := doJSON(e, http.MethodPatch, "/api/v1/users/resetPassword/deadbeef",
		`{"password":"pass1234","passwordConfirm":"pass1234"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "same as the old password")
}

func TestResetPasswordSuccess(t *testing.T) {
	e, mock, _ := newAuthApp(t)

	mock.ExpectQuery("password_reset_token=").
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?, password_changed_at=?, password_reset_token=NULL, password_reset_expires=NULL WHERE id=?")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(e, http.MethodPatch, "/api/v1/users/resetPassword/deadbeef",
		`{"password":"newpass123","passwordConfirm":"newpass123"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody(t, rec)["token"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewAuthHandler(testConfig(), repository.NewUserRepo(db), &stubMailer{})
	e := echo.New()
	e.HTTPErrorHandler = apperr.Handler(false)
	e.PATCH("/updateMyPassword", h.UpdatePassword, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user", model.User{ID: 5, Email: "rosa@example.com"})
			return next(c)
		}
	})

	mock.ExpectQuery("FROM users WHERE id=").
		WithArgs(uint64(5)).
		WillReturnRows(authUserRow(t, 5, "rosa@example.com", "pass1234"))

	rec := doJSON(e, http.MethodPatch, "/updateMyPassword",
		`{"currentPassword":"wrong","newPassword":"newpass123","newPasswordConfirm":"newpass123"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "current password is incorrect")
}
