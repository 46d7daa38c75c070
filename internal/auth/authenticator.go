// Package auth issues and checks admin session tokens and guards the login
// endpoint against password guessing.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrLocked is matched by *LockedError
	ErrLocked = errors.New("too many failed login attempts")
)

// LockedError reports that a client is temporarily locked out
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrLocked, e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// Lockout defaults: 3 failures within 30 seconds lock the client for 30 seconds
const (
	DefaultMaxFailures = 3
	DefaultWindow      = 30 * time.Second
	DefaultLockFor     = 30 * time.Second
)

// Config configures an Authenticator
type Config struct {
	AdminEmail   string
	Password     string
	PasswordHash string
	MaxFailures  int
	Window       time.Duration
	LockFor      time.Duration
}

// Authenticator checks admin credentials and issues tokens
type Authenticator struct {
	email    string
	hash     []byte
	tokens   *TokenIssuer
	attempts AttemptStore
	max      int
	window   time.Duration
	lockFor  time.Duration
	logger   *zap.Logger
}

// NewAuthenticator creates an Authenticator. A plain password is hashed once
// here so every comparison goes through bcrypt.
func NewAuthenticator(cfg Config, tokens *TokenIssuer, attempts AttemptStore, logger *zap.Logger) (*Authenticator, error) {
	a := &Authenticator{
		email:    strings.ToLower(strings.TrimSpace(cfg.AdminEmail)),
		tokens:   tokens,
		attempts: attempts,
		max:      cfg.MaxFailures,
		window:   cfg.Window,
		lockFor:  cfg.LockFor,
		logger:   logger,
	}

	if a.max <= 0 {
		a.max = DefaultMaxFailures
	}
	if a.window <= 0 {
		a.window = DefaultWindow
	}
	if a.lockFor <= 0 {
		a.lockFor = DefaultLockFor
	}

	switch {
	case cfg.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
		a.hash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		a.hash = hash
	default:
		logger.Warn("no admin password configured, admin login is disabled")
	}

	return a, nil
}

// Login verifies credentials for the client identified by key
func (a *Authenticator) Login(ctx context.Context, key, email, password string) (*Token, error) {
	remaining, err := a.attempts.LockedFor(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check lockout: %w", err)
	}
	if remaining > 0 {
		return nil, &LockedError{RetryAfter: remaining}
	}

	if !a.matches(email, password) {
		locked, err := a.attempts.Fail(ctx, key, a.max, a.window, a.lockFor)
		if err != nil {
			a.logger.Error("[Auth] failed to record login failure", zap.String("key", key), zap.Error(err))
		}
		if locked {
			a.logger.Warn("[Auth] admin login locked", zap.String("key", key), zap.Duration("for", a.lockFor))
		}
		return nil, ErrInvalidCredentials
	}

	if err := a.attempts.Reset(ctx, key); err != nil {
		a.logger.Error("[Auth] failed to reset login failures", zap.String("key", key), zap.Error(err))
	}

	token, err := a.tokens.Issue(a.email)
	if err != nil {
		return nil, err
	}

	a.logger.Info("[Auth] admin logged in", zap.String("key", key))
	return token, nil
}

// Verify checks an admin token
func (a *Authenticator) Verify(raw string) (*Claims, error) {
	return a.tokens.Verify(raw)
}

func (a *Authenticator) matches(email, password string) bool {
	if len(a.hash) == 0 || a.email == "" {
		return false
	}

	given := strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(given), []byte(a.email)) == 1

	// Always run bcrypt so a wrong email costs the same as a wrong password
	passwordOK := bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil

	return emailOK && passwordOK
}
