package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"finanzas/internal/amqp"
	"finanzas/internal/auth"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

var (
	ErrFieldsRequired = errors.New("required fields missing")
	ErrGoogleDisabled = errors.New("google sign-in is not configured")
)

// Session is the result of a successful sign-in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      core.User
}

// AccountService registers users and signs them in.
type AccountService struct {
	users      storage.UserStore
	tokens     *auth.Tokens
	google     auth.GoogleVerifier
	publisher  Publisher
	logger     *log.Logger
	bcryptCost int
}

// AccountOption configures an AccountService.
type AccountOption func(*AccountService)

// WithGoogle enables Google sign-in.
func WithGoogle(v auth.GoogleVerifier) AccountOption {
	return func(s *AccountService) { s.google = v }
}

// WithPublisher sets where account events are sent.
func WithPublisher(p Publisher) AccountOption {
	return func(s *AccountService) { s.publisher = p }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) AccountOption {
	return func(s *AccountService) { s.bcryptCost = cost }
}

func NewAccountService(users storage.UserStore, tokens *auth.Tokens, logger *log.Logger, opts ...AccountOption) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &AccountService{users: users, tokens: tokens, logger: logger.WithComponent(log.ComponentAccounts)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GoogleEnabled reports whether Google sign-in is available.
func (s *AccountService) GoogleEnabled() bool {
	return s.google != nil
}

// Register creates a local account. A missing field yields
// ErrFieldsRequired, an e-mail already in use core.ErrConflict, and any
// other problem core.ValidationErrors.
func (s *AccountService) Register(ctx context.Context, in core.Registration) (core.User, error) {
	in = in.Normalize()
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return core.User{}, ErrFieldsRequired
	}

	if _, err := s.users.UserByEmail(ctx, in.Email); err == nil {
		return core.User{}, fmt.Errorf("register %s: %w", in.Email, core.ErrConflict)
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := in.Validate(); err != nil {
		return core.User{}, err
	}
	taken, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return core.User{}, fmt.Errorf("lookup username: %w", err)
	}
	if taken {
		return core.User{}, core.ValidationErrors{"username": core.MsgUsernameTaken}
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return core.User{}, err
	}

	u, err := s.users.CreateUser(ctx, core.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Provider:     core.ProviderLocal,
	})
	if err != nil {
		return core.User{}, fmt.Errorf("register: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, log.FieldOperation, log.OpRegister)
	publish(ctx, s.publisher, s.logger, amqp.NewEvent(amqp.EventUserRegistered, u.ID, u.ID, u.Username).
		With("provider", string(u.Provider)))
	return u, nil
}

// Login checks e-mail and password and issues a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrFieldsRequired
	}

	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, core.ErrInvalidCredential
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if !u.HasPassword() && u.Provider == core.ProviderGoogle {
		return Session{}, core.ErrProviderAccount
	}
	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		s.logger.WarnContext(ctx, "Failed login", log.FieldUserID, u.ID)
		return Session{}, core.ErrInvalidCredential
	}

	return s.session(ctx, u)
}

// GoogleAuth signs in with a Google ID token, creating the account on first
// use. It reports whether the account was created.
func (s *AccountService) GoogleAuth(ctx context.Context, credential string) (Session, bool, error) {
	if s.google == nil {
		return Session{}, false, ErrGoogleDisabled
	}
	id, err := s.google.Verify(ctx, credential)
	if err != nil {
		return Session{}, false, err
	}
	if !id.EmailVerified {
		s.logger.WarnContext(ctx, "Google sign-in with unverified e-mail refused")
		return Session{}, false, fmt.Errorf("%w: email not verified", auth.ErrGoogleToken)
	}
	email := strings.ToLower(id.Email)

	u, err := s.users.UserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.ProviderID != "" && u.ProviderID != id.Subject {
			s.logger.WarnContext(ctx, "Google sign-in for an account linked to another subject", log.FieldUserID, u.ID)
			return Session{}, false, fmt.Errorf("%w: account linked to another google identity", auth.ErrGoogleToken)
		}
		if u.ProviderID == "" {
			u.ProviderID = id.Subject
			if u, err = s.users.UpdateUser(ctx, u); err != nil {
				return Session{}, false, fmt.Errorf("link google account: %w", err)
			}
			publish(ctx, s.publisher, s.logger, amqp.NewEvent(amqp.EventUserGoogleLinked, u.ID, u.ID, u.Username))
		}
		sess, err := s.session(ctx, u)
		return sess, false, err
	case !errors.Is(err, core.ErrNotFound):
		return Session{}, false, fmt.Errorf("lookup user: %w", err)
	}

	username, err := s.uniqueUsername(ctx, id.Name, email)
	if err != nil {
		return Session{}, false, err
	}
	u, err = s.users.CreateUser(ctx, core.User{
		Username:   username,
		Email:      email,
		Provider:   core.ProviderGoogle,
		ProviderID: id.Subject,
	})
	if err != nil {
		return Session{}, false, fmt.Errorf("create google user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered with Google", log.FieldUserID, u.ID)
	publish(ctx, s.publisher, s.logger, amqp.NewEvent(amqp.EventUserRegistered, u.ID, u.ID, u.Username).
		With("provider", string(u.Provider)))

	sess, err := s.session(ctx, u)
	return sess, true, err
}

func (s *AccountService) session(ctx context.Context, u core.User) (Session, error) {
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, u.ID, log.FieldOperation, log.OpLogin)
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// uniqueUsername derives a valid, unused username from a display name,
// falling back to the e-mail local part.
func (s *AccountService) uniqueUsername(ctx context.Context, name, email string) (string, error) {
	base := sanitizeUsername(name)
	if len(base) < core.UsernameMinLength {
		local, _, _ := strings.Cut(email, "@")
		base = sanitizeUsername(local)
	}
	for len(base) < core.UsernameMinLength {
		base += "_"
	}

	candidate := base
	for i := 2; ; i++ {
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("lookup username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		suffix := "_" + strconv.Itoa(i)
		trimmed := base
		if len(trimmed)+len(suffix) > core.UsernameMaxLength {
			trimmed = trimmed[:core.UsernameMaxLength-len(suffix)]
		}
		candidate = trimmed + suffix
	}
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-':
			b.WriteByte('_')
		}
		if b.Len() >= core.UsernameMaxLength {
			break
		}
	}
	return b.String()
}
