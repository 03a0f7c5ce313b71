package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"

	"finanzas/internal/core"
)

const (
	tokenSubject = "session"
	// implicit assertion bound into every signature; changing it invalidates
	// issued tokens.
	tokenImplicit = "finanzas session v1"
)

var (
	ErrInvalidToken = errors.New("Invalid token")
	ErrNoUserID     = errors.New("Token contains no user_id")
	ErrUserNotFound = errors.New("User not found")
)

// Claims are the verified contents of a session token.
type Claims struct {
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

// Tokens issues and verifies v4.public session tokens.
type Tokens struct {
	secret paseto.V4AsymmetricSecretKey
	parser paseto.Parser
	ttl    time.Duration
	now    func() time.Time
}

// NewSecretKeyHex generates a fresh signing key.
func NewSecretKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

// NewTokens loads the signing key from hex. An empty key generates an
// ephemeral one, so tokens do not survive a restart.
func NewTokens(secretHex string, ttl time.Duration) (*Tokens, error) {
	var secret paseto.V4AsymmetricSecretKey
	if secretHex == "" {
		secret = paseto.NewV4AsymmetricSecretKey()
	} else {
		var err error
		secret, err = paseto.NewV4AsymmetricSecretKeyFromHex(secretHex)
		if err != nil {
			return nil, fmt.Errorf("load token secret: %w", err)
		}
	}
	return &Tokens{
		secret: secret,
		parser: paseto.MakeParser([]paseto.Rule{
			paseto.NotExpired(),
			paseto.Subject(tokenSubject),
		}),
		ttl: ttl,
		now: time.Now,
	}, nil
}

// TTL returns the token lifetime.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for user.
func (t *Tokens) Issue(u core.User) (string, time.Time, error) {
	if u.ID <= 0 {
		return "", time.Time{}, ErrNoUserID
	}
	now := t.now()
	exp := now.Add(t.ttl)

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(exp)
	token.SetSubject(tokenSubject)
	token.SetString("id", strconv.FormatInt(u.ID, 10))
	token.SetString("email", u.Email)

	return token.V4Sign(t.secret, []byte(tokenImplicit)), exp, nil
}

// Verify checks the signature, expiry and subject of a token.
func (t *Tokens) Verify(signed string) (Claims, error) {
	token, err := t.parser.ParseV4Public(t.secret.Public(), signed, []byte(tokenImplicit))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	raw, err := token.GetString("id")
	if err != nil || raw == "" {
		return Claims{}, ErrNoUserID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Claims{}, ErrNoUserID
	}

	var c Claims
	c.UserID = id
	c.Email, _ = token.GetString("email")
	c.ExpiresAt, _ = token.GetExpiration()
	return c, nil
}
