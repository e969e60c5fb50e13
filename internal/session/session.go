// Package session holds the client's single bearer credential.
//
// A Store is created once per process and injected into everything that
// needs identity; nothing reads the credential from ambient state. Only
// Establish and Clear change it. Everything else reads.
//
// The credential is the access token returned by POST /auth/login. The store
// never verifies its signature (the server does that on every request); it
// only peeks at the "sub" and "exp" claims so the client knows who is logged
// in and when the session lapses.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/sakif/sprintium/internal/apperror"
)

var _ oauth2.TokenSource = (*Store)(nil)

// Store owns the active credential. The zero value is not usable; call New.
type Store struct {
	mu         sync.RWMutex
	credential string
	path       string // "" keeps the session in memory only
	now        func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithFile persists the credential at path so that separate CLI
// invocations share one session. The file is written 0600.
func WithFile(path string) Option {
	return func(s *Store) { s.path = path }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// fileContents is the on-disk format of a persisted session.
type fileContents struct {
	AccessToken string `json:"access_token"`
}

// New creates a Store. With WithFile, a previously persisted credential is
// loaded; a missing file just means "logged out".
func New(opts ...Option) (*Store, error) {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.path == "" {
		return s, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", s.path, err)
	}

	var fc fileContents
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("session: parsing %s: %w", s.path, err)
	}
	s.credential = fc.AccessToken
	return s, nil
}

// Establish stores credential, replacing any previous one.
func (s *Store) Establish(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return apperror.ValidationFailed("credential", "credential must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		if err := s.persist(credential); err != nil {
			return err
		}
	}
	s.credential = credential
	return nil
}

// Current returns the active credential, or apperror.ErrUnauthenticated when
// there is none or its exp claim has passed.
func (s *Store) Current() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.credential == "" {
		return "", apperror.Unauthenticated("not logged in")
	}
	if claims, ok := peek(s.credential); ok && claims.ExpiresAt != nil &&
		!s.now().Before(claims.ExpiresAt.Time) {
		return "", apperror.Unauthenticated("session expired, please log in again")
	}
	return s.credential, nil
}

// Clear forgets the credential. It always succeeds, even when nothing was
// stored; a persisted file that cannot be removed is left behind.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credential = ""
	if s.path != "" {
		_ = os.Remove(s.path)
	}
}

// Subject returns the e-mail the active credential was issued to.
func (s *Store) Subject() (string, error) {
	cred, err := s.Current()
	if err != nil {
		return "", err
	}
	claims, ok := peek(cred)
	if !ok || claims.Subject == "" {
		return "", apperror.Unauthenticated("stored credential does not identify a user")
	}
	return claims.Subject, nil
}

// Token implements oauth2.TokenSource so the API client can attach the
// credential with oauth2.Transport.
func (s *Store) Token() (*oauth2.Token, error) {
	cred, err := s.Current()
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: cred, TokenType: "Bearer"}
	if claims, ok := peek(cred); ok && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return tok, nil
}

// persist writes credential atomically: temp file, then rename.
func (s *Store) persist(credential string) error {
	data, err := json.Marshal(fileContents{AccessToken: credential})
	if err != nil {
		return fmt.Errorf("session: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: writing: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: closing: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("session: saving %s: %w", s.path, err)
	}
	return nil
}

// peek decodes the claims of a JWT without verifying it. ok is false for
// anything that is not a JWT.
func peek(credential string) (*jwt.RegisteredClaims, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return nil, false
	}
	return &claims, true
}
