package model

import "time"

// Roles assignable to a user.  Signup always produces RoleUser; the other
// roles are granted by an administrator through the user admin endpoints.
const (
    RoleUser      = "user"
    RoleGuide     = "guide"
    RoleLeadGuide = "lead-guide"
    RoleAdmin     = "admin"
)

// ValidRole reports whether s names one of the known roles.
func ValidRole(s string) bool {
    switch s {
    case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
        return true
    }
    return false
}

// User represents an application user record as stored in the `users`
// table.  The password hash and the reset-token columns are write-only from
// the API's point of view: json tags of "-" guarantee they can never leak
// into a response, no matter which handler serializes the struct.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Name              – display name.
//  Email             – unique email address, stored lowercased.
//  Photo             – optional avatar path.
//  Role              – one of user/guide/lead-guide/admin.
//  PasswordHash      – bcrypt hashed password.
//  PasswordChangedAt – set whenever the password is mutated after creation;
//                      nil for accounts that never changed their password.
//  ResetTokenHash    – SHA-256 hex digest of the active reset token, if any.
//  ResetExpiresAt    – expiry of the active reset token, if any.
//  Active            – soft-delete flag; inactive users are excluded from
//                      lookups and cannot authenticate.
type User struct {
    ID                uint64     `json:"id"`
    Name              string     `json:"name"`
    Email             string     `json:"email"`
    Photo             string     `json:"photo,omitempty"`
    Role              string     `json:"role"`
    PasswordHash      string     `json:"-"`
    PasswordChangedAt *time.Time `json:"-"`
    ResetTokenHash    *string    `json:"-"`
    ResetExpiresAt    *time.Time `json:"-"`
    Active            bool       `json:"-"`
    CreatedAt         time.Time  `json:"createdAt"`
    UpdatedAt         time.Time  `json:"-"`
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token issue time (seconds since epoch).  Tokens issued before the
// change are stale and must be rejected.
func (u *User) ChangedPasswordAfter(issuedAtUnix int64) bool {
    if u.PasswordChangedAt == nil {
        return false
    }
    return issuedAtUnix < u.PasswordChangedAt.Unix()
}
