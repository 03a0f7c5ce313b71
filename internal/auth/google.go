package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var ErrGoogleToken = errors.New("invalid google id token")

// GoogleIdentity is the verified identity carried by a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleVerifier verifies Google sign-in credentials.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (GoogleIdentity, error)
}

// IDTokenVerifier validates Google ID tokens against the OAuth client ID.
type IDTokenVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

// NewGoogleVerifier returns a verifier for tokens issued to clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*IDTokenVerifier, error) {
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}
	return &IDTokenVerifier{clientID: clientID, validator: v}, nil
}

func (v *IDTokenVerifier) Verify(ctx context.Context, credential string) (GoogleIdentity, error) {
	if strings.TrimSpace(credential) == "" {
		return GoogleIdentity{}, ErrGoogleToken
	}
	payload, err := v.validator.Validate(ctx, credential, v.clientID)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: %v", ErrGoogleToken, err)
	}
	return identityFromClaims(payload.Subject, payload.Claims)
}

func identityFromClaims(subject string, claims map[string]interface{}) (GoogleIdentity, error) {
	id := GoogleIdentity{Subject: subject}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	id.EmailVerified, _ = claims["email_verified"].(bool)
	if id.Subject == "" || id.Email == "" {
		return GoogleIdentity{}, fmt.Errorf("%w: missing subject or email", ErrGoogleToken)
	}
	return id, nil
}

// StaticVerifier accepts a fixed set of credentials. It backs development
// setups without a Google client ID, and tests.
type StaticVerifier map[string]GoogleIdentity

func (s StaticVerifier) Verify(_ context.Context, credential string) (GoogleIdentity, error) {
	id, ok := s[credential]
	if !ok {
		return GoogleIdentity{}, ErrGoogleToken
	}
	return id, nil
}
