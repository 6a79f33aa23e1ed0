// Package token mints and verifies the signed access/refresh token pair
// backing a login session. Both kinds are HS256 JWTs carrying the subject id,
// the session id, and a type discriminator so one can never be replayed as
// the other. Refresh tokens additionally embed the session's token version,
// which is how rotation revokes the previous pair.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// Kind discriminates the two token types.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the decoded, validated content of a token.
type Claims struct {
	UserID    string
	SessionID string
	Version   int64 // refresh tokens only; 0 for access tokens
	Kind      Kind
}

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer builds an Issuer. Zero TTLs fall back to 30 minutes for access
// and 7 days for refresh tokens.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessTTL is exposed so handlers can report expires_in to clients.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// Access mints a short-lived access token for the session.
func (i *Issuer) Access(userID, sessionID string) (string, error) {
	return i.sign(jwt.MapClaims{
		"sub": userID,
		"sid": sessionID,
		"typ": string(KindAccess),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(i.accessTTL).Unix(),
	})
}

// Refresh mints a refresh token bound to the session's current token version.
func (i *Issuer) Refresh(userID, sessionID string, version int64) (string, error) {
	return i.sign(jwt.MapClaims{
		"sub": userID,
		"sid": sessionID,
		"ver": version,
		"typ": string(KindRefresh),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(i.refreshTTL).Unix(),
	})
}

func (i *Issuer) sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(i.secret)
}

// Verify parses the token, checks the signature and expiry, and enforces the
// expected kind. Every failure collapses into domain.ErrUnauthorized; the
// caller learns nothing about which check tripped.
func (i *Issuer) Verify(tok string, want Kind) (*Claims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthorized
	}

	typ, _ := claims["typ"].(string)
	if Kind(typ) != want {
		return nil, domain.ErrUnauthorized
	}

	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	if sub == "" || sid == "" {
		return nil, domain.ErrUnauthorized
	}

	out := &Claims{UserID: sub, SessionID: sid, Kind: want}
	if ver, ok := claims["ver"].(float64); ok {
		out.Version = int64(ver)
	}
	return out, nil
}
