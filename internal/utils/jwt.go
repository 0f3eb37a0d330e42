package utils // package utils provides helper functions for token creation and hashing

import (
    "errors" // sentinel errors distinguishing expiry from tampering
    "time"   // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

    "github.com/roamly/tours-api/internal/model"
)

// Token verification failures.  Both surface to clients as the same 401 so
// the API gives no oracle about why a credential was rejected, but callers
// log the distinction.
var (
    ErrTokenExpired = errors.New("token expired")
    ErrTokenInvalid = errors.New("token invalid")
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are short-lived and encoded
// in the Authorization header when calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// AccessClaims is the decoded claim set of an access token.
type AccessClaims struct {
    UserID   uint64 // "id" claim
    Email    string // "email" claim
    Username string // "username" claim
    Role     string // "role" claim
    IssuedAt int64  // "iat" claim, seconds since epoch
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The claim set
// is minimal: id, email, username and role, plus the standard exp/iat
// pair.  Expiry is controlled by ttlMin (minutes).
func NewAccessToken(secret string, u model.User, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "id":       u.ID,
        "email":    u.Email,
        "username": u.Name,
        "role":     u.Role,
        "exp":      exp.Unix(),
        "iat":      now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken builds and signs the long-lived refresh JWT.  It carries
// only the user's email; everything else is re-resolved from the database
// when the token is redeemed.  Refresh tokens travel exclusively in an
// HTTP-only cookie, never in response bodies, and are signed with their own
// secret so they cannot be replayed as access tokens.
func NewRefreshToken(secret, email string, ttlDays int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlDays) * 24 * time.Hour)
    claims := jwt.MapClaims{
        "email": email,
        "exp":   exp.Unix(),
        "iat":   now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccess verifies the signature and expiry of an access token and
// returns its claims.  Expired tokens yield ErrTokenExpired; any other
// failure (tampered signature, wrong algorithm, malformed claims) yields
// ErrTokenInvalid.
func ParseAccess(secret, raw string) (AccessClaims, error) {
    claims, err := parseHS256(secret, raw)
    if err != nil {
        return AccessClaims{}, err
    }
    out := AccessClaims{
        Email:    claimString(claims, "email"),
        Username: claimString(claims, "username"),
        Role:     claimString(claims, "role"),
    }
    id, ok := claimUint(claims, "id")
    if !ok || out.Email == "" {
        return AccessClaims{}, ErrTokenInvalid
    }
    out.UserID = id
    if iat, ok := claims["iat"].(float64); ok {
        out.IssuedAt = int64(iat)
    }
    return out, nil
}

// ParseRefresh verifies a refresh token and returns the email it carries.
func ParseRefresh(secret, raw string) (string, error) {
    claims, err := parseHS256(secret, raw)
    if err != nil {
        return "", err
    }
    email := claimString(claims, "email")
    if email == "" {
        return "", ErrTokenInvalid
    }
    return email, nil
}

// parseHS256 parses a token enforcing the HMAC signing method and maps the
// library's error space onto our two sentinels.
func parseHS256(secret, raw string) (jwt.MapClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenInvalid
        }
        return []byte(secret), nil
    })
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return nil, ErrTokenExpired
        }
        return nil, ErrTokenInvalid
    }
    if !tok.Valid {
        return nil, ErrTokenInvalid
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return nil, ErrTokenInvalid
    }
    return claims, nil
}

func claimString(claims jwt.MapClaims, key string) string {
    s, _ := claims[key].(string)
    return s
}

func claimUint(claims jwt.MapClaims, key string) (uint64, bool) {
    // JSON numbers decode as float64.
    if f, ok := claims[key].(float64); ok && f >= 0 {
        return uint64(f), true
    }
    return 0, false
}
