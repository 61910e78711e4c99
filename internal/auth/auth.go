// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeranaias/rigrun-chat/internal/backend"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// ExpirySkew is how long before its expiry a token is already treated as
// expired.
const ExpirySkew = 5 * time.Minute

var (
	// ErrNotAuthenticated is returned when no usable token is available.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token.
type Static string

// Token returns the token, or ErrNotAuthenticated when it is empty.
func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNotAuthenticated
	}
	return string(s), nil
}

// =============================================================================
// MANAGER
// =============================================================================

// Backend is the part of the backend client the manager needs.
type Backend interface {
	RefreshToken(ctx context.Context, user backend.User) (backend.User, error)
	AnonymousLogin(ctx context.Context) (backend.User, error)
}

// Manager owns the stored login user.
type Manager struct {
	mu     sync.Mutex
	path   string
	user   *backend.User
	client Backend
	logger *slog.Logger
	now    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager persisting the user at path. An empty path
// keeps the user in memory only.
func NewManager(path string, client Backend, opts ...ManagerOption) *Manager {
	m := &Manager{
		path:   path,
		client: client,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the file the user is stored in.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the stored user. A missing file is not an error.
func (m *Manager) Load() error {
	if m.path == "" {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read user file: %w", err)
	}

	var user backend.User
	if err := json.Unmarshal(data, &user); err != nil {
		return fmt.Errorf("failed to parse user file %s: %w", m.path, err)
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()
	return nil
}

// User returns the current user.
func (m *Manager) User() (backend.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return backend.User{}, false
	}
	return *m.user, true
}

// SetUser replaces and stores the current user.
func (m *Manager) SetUser(user backend.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(user)
}

// Logout forgets the user and removes the stored file.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	if m.path == "" {
		return nil
	}
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove user file: %w", err)
	}
	return nil
}

// LoginAnonymous creates an anonymous user and makes it current.
func (m *Manager) LoginAnonymous(ctx context.Context) (backend.User, error) {
	if m.client == nil {
		return backend.User{}, errors.New("no backend configured")
	}
	user, err := m.client.AnonymousLogin(ctx)
	if err != nil {
		return backend.User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setLocked(user); err != nil {
		return backend.User{}, err
	}
	m.logger.Info("anonymous user created", "user", string(user.UserID))
	return user, nil
}

// Token returns a valid access token, refreshing it first when it is about
// to expire.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil || m.user.Token == "" {
		return "", ErrNotAuthenticated
	}
	if !m.expiredLocked(*m.user) {
		return m.user.Token, nil
	}

	if m.user.RefreshToken == "" || m.client == nil {
		return "", fmt.Errorf("%w: token expired", ErrNotAuthenticated)
	}

	refreshed, err := m.client.RefreshToken(ctx, *m.user)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	if err := m.setLocked(refreshed); err != nil {
		m.logger.Warn("failed to store refreshed user", "error", err)
	}
	m.logger.Debug("access token refreshed")

	if refreshed.Token == "" {
		return "", ErrNotAuthenticated
	}
	return refreshed.Token, nil
}

// Expired reports whether the current token needs a refresh.
func (m *Manager) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user == nil || m.expiredLocked(*m.user)
}

func (m *Manager) expiredLocked(user backend.User) bool {
	exp, ok := Expiry(user)
	if !ok {
		return false
	}
	return !m.now().Add(ExpirySkew).Before(exp)
}

func (m *Manager) setLocked(user backend.User) error {
	m.user = &user
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := util.AtomicWriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}
	return nil
}

// Expiry returns when the user's access token expires. expires_in wins;
// without it the JWT exp claim is used. The token signature is not checked.
func Expiry(user backend.User) (time.Time, bool) {
	if user.ExpiresIn > 0 {
		return time.Unix(user.ExpiresIn, 0), true
	}
	if user.Token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(user.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
