package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roamly/tours-api/internal/model"
	"github.com/roamly/tours-api/internal/query"
	"github.com/roamly/tours-api/internal/utils"
)

// userCols is the fixed scan column list for users.  The password hash and
// reset columns are selected here but never serialized; the model's json
// tags strip them from every response.
const userCols = "id,name,email,photo,role,password_hash,password_changed_at," +
	"password_reset_token,password_reset_expires,active,created_at,updated_at"

// UserColumns is the query-engine whitelist for user listings.
var UserColumns = query.Columns{
	"id":        "id",
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
}

// ScopeActiveUsers is the standing filter applied to every user read:
// deactivated accounts are invisible to lookups and listings.
var ScopeActiveUsers = query.Scope{Name: "exclude-inactive-users", Where: "active = 1"}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var photo, resetToken sql.NullString
	var changedAt, resetExpires sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &photo, &u.Role, &u.PasswordHash,
		&changedAt, &resetToken, &resetExpires, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if photo.Valid {
		u.Photo = photo.String
	}
	if changedAt.Valid {
		t := changedAt.Time
		u.PasswordChangedAt = &t
	}
	if resetToken.Valid {
		s := resetToken.String
		u.ResetTokenHash = &s
	}
	if resetExpires.Valid {
		t := resetExpires.Time
		u.ResetExpiresAt = &t
	}
	return u, nil
}

// Create inserts a user with a freshly hashed password and returns the
// stored row.  The password confirmation is checked by the signup handler
// before this point and is never persisted.  Role is whatever the handler
// decided; signup always passes model.RoleUser.
func (r *UserRepo) Create(ctx context.Context, name, email, password, role string, cost int) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,?)",
		name, email, hash, role)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// FindByID fetches an active user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? AND "+ScopeActiveUsers.Where+" LIMIT 1", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// FindByEmail fetches an active user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? AND "+ScopeActiveUsers.Where+" LIMIT 1", email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// FindByResetToken fetches the active user holding the given reset-token
// hash with an expiry still in the future.  Only the latest issued token
// can match because SetResetToken overwrites the stored hash.
func (r *UserRepo) FindByResetToken(ctx context.Context, tokenHash string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE password_reset_token=? AND password_reset_expires > UTC_TIMESTAMP() AND "+
			ScopeActiveUsers.Where+" LIMIT 1", tokenHash)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// FindAll lists active users according to the query spec.
func (r *UserRepo) FindAll(ctx context.Context, spec query.Spec) ([]model.User, error) {
	sqlText, args := spec.SelectSQL(userCols, "users", UserColumns, ScopeActiveUsers)
	rows, err := r.DB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// userUpdatable maps the fields an admin may patch onto columns.  Password
// mutations go through UpdatePassword exclusively so password_changed_at
// can never be skipped.
var userUpdatable = map[string]string{
	"name":   "name",
	"email":  "email",
	"photo":  "photo",
	"role":   "role",
	"active": "active",
}

// UpdateByID patches the whitelisted fields of a user and returns the
// fresh row.  Unknown fields are rejected, unknown ids yield ErrNotFound.
func (r *UserRepo) UpdateByID(ctx context.Context, id uint64, fields map[string]any) (model.User, error) {
	if len(fields) == 0 {
		return model.User{}, fmt.Errorf("%w: no updatable fields provided", ErrValidation)
	}
	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for f, v := range fields {
		col, ok := userUpdatable[f]
		if !ok {
			return model.User{}, fmt.Errorf("%w: field %q is not updatable", ErrValidation, f)
		}
		switch f {
		case "role":
			s, _ := v.(string)
			if !model.ValidRole(s) {
				return model.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
			}
		case "active":
			if _, ok := v.(bool); !ok {
				return model.User{}, fmt.Errorf("%w: active must be a boolean", ErrValidation)
			}
		case "email":
			s, ok := v.(string)
			if !ok {
				return model.User{}, fmt.Errorf("%w: email must be a string", ErrValidation)
			}
			v = strings.ToLower(strings.TrimSpace(s))
		default:
			if _, ok := v.(string); !ok {
				return model.User{}, fmt.Errorf("%w: %s must be a string", ErrValidation, f)
			}
		}
		set = append(set, col+"=?")
		args = append(args, v)
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ",")+" WHERE id=?", args...)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish "no such user" from "nothing changed".
		if _, err := r.FindByID(ctx, id); err != nil {
			return model.User{}, err
		}
	}
	return r.FindByID(ctx, id)
}

// UpdateProfile applies the self-service subset (name, email, photo) for
// /updateMe.  Callers filter the payload before this point.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fields map[string]any) (model.User, error) {
	filtered := make(map[string]any, len(fields))
	for _, f := range []string{"name", "email", "photo"} {
		if v, ok := fields[f]; ok {
			filtered[f] = v
		}
	}
	return r.UpdateByID(ctx, id, filtered)
}

// Deactivate soft-deletes a user.  The row stays for referential integrity
// but disappears from every scoped read.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET active=0 WHERE id=?", id)
	return err
}

// DeleteByID removes a user permanently.  Admin-only; everyone else soft
// deletes through Deactivate.
func (r *UserRepo) DeleteByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if _, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// UpdatePassword stores a new password hash, clears any pending reset
// token and stamps password_changed_at one second in the past.  The skew
// guarantees that a token issued in the same instant as the change still
// compares as stale in the auth guard.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, newHash string) error {
	changedAt := time.Now().UTC().Add(-1 * time.Second)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_changed_at=?, password_reset_token=NULL, password_reset_expires=NULL WHERE id=?",
		newHash, changedAt, id)
	return err
}

// SetResetToken stores the hash and expiry of a freshly issued reset
// token, replacing any previous one: requesting a second reset
// invalidates the first.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=?, password_reset_expires=? WHERE id=?",
		tokenHash, expires.UTC(), id)
	return err
}

// ClearResetToken rolls back a pending reset, used when the reset mail
// cannot be dispatched.
func (r *UserRepo) ClearResetToken(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=NULL, password_reset_expires=NULL WHERE id=?", id)
	return err
}
