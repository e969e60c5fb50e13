package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/auth"
	"github.com/sakif/sprintium/internal/metrics"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/repository"
	"github.com/sakif/sprintium/internal/sanitize"
)

const MaxUsernameLength = 50

// errBadCredentials is shared by every login failure so the response never
// reveals whether the e-mail exists.
var errBadCredentials = apperror.Unauthenticated("invalid email or password")

// AuthService handles registration, login, logout and password reset.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ TokenService (access / reset JWTs)
//	                               ↘ TokenDenylist (logout, single-use reset)
type AuthService struct {
	users     repository.UserRepository
	denylist  repository.TokenDenylist
	access    *auth.TokenService
	reset     *auth.TokenService
	passwords *auth.PasswordService
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// AuthDeps bundles AuthService's collaborators.
type AuthDeps struct {
	Users     repository.UserRepository
	Denylist  repository.TokenDenylist
	Access    *auth.TokenService
	Reset     *auth.TokenService
	Passwords *auth.PasswordService
	Metrics   metrics.Recorder
}

func NewAuthService(deps AuthDeps, logger *slog.Logger) *AuthService {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthService{
		users:     deps.Users,
		denylist:  deps.Denylist,
		access:    deps.Access,
		reset:     deps.Reset,
		passwords: deps.Passwords,
		metrics:   rec,
		logger:    logger,
	}
}

// LoginResult is what a successful login hands back.
type LoginResult struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Register creates an account. E-mails are unique (case-insensitive);
// a duplicate is apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (user *model.User, err error) {
	defer func() { s.metrics.RecordAuthEvent("register", outcome(err)) }()

	username = sanitize.Text(username)
	email = model.NormalizeEmail(email)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if err := s.passwords.CheckPolicy(password); err != nil {
		return nil, apperror.ValidationFailed("password", strings.TrimPrefix(err.Error(), "auth: "))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", email, err)
	}

	user = &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		logFailure(s.logger, "failed to create user", err, slog.String("email", email))
		return nil, err
	}

	s.logger.Info("user registered", slog.String("id", user.ID), slog.String("email", user.Email))
	return user, nil
}

// Login checks the password and issues an access token whose subject is
// the user's e-mail.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	defer func() { s.metrics.RecordAuthEvent("login", outcome(err)) }()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	token, err := s.access.Generate(user.Email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.logger.Info("user logged in", slog.String("email", user.Email))
	return &LoginResult{AccessToken: token, ExpiresIn: s.access.TTL()}, nil
}

// Logout revokes the presented access token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) (err error) {
	defer func() { s.metrics.RecordAuthEvent("logout", outcome(err)) }()

	if claims == nil {
		return apperror.Unauthenticated("valid authentication required")
	}
	if err := s.denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("user logged out", slog.String("email", claims.Subject))
	return nil
}

// ForgotPassword returns a short-lived reset token for a registered e-mail.
// For an unknown e-mail it returns "" and no error, so the caller cannot
// probe which addresses have accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (token string, err error) {
	defer func() { s.metrics.RecordAuthEvent("forgot_password", outcome(err)) }()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return "", nil
		}
		return "", fmt.Errorf("forgot password: %w", err)
	}

	token, err = s.reset.Generate(user.Email)
	if err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}

	s.logger.Info("password reset token issued", slog.String("email", user.Email))
	return token, nil
}

// ResetPassword sets a new password using a token from ForgotPassword.
// Each token works once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.metrics.RecordAuthEvent("reset_password", outcome(err)) }()

	invalid := apperror.ValidationFailed("token", "reset token is invalid or has expired")

	claims, err := s.reset.Validate(token)
	if err != nil {
		return invalid
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if revoked {
		return invalid
	}

	if err := s.passwords.CheckPolicy(newPassword); err != nil {
		return apperror.ValidationFailed("new_password", strings.TrimPrefix(err.Error(), "auth: "))
	}
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, claims.Subject, hash); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return invalid
		}
		return fmt.Errorf("reset password: %w", err)
	}
	if err := s.denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.logger.Info("password reset", slog.String("email", claims.Subject))
	return nil
}

// Me returns the authenticated user's record.
func (s *AuthService) Me(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// token outlived its account
			return nil, apperror.Unauthenticated("account no longer exists")
		}
		return nil, fmt.Errorf("fetching user %s: %w", email, err)
	}
	return user, nil
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
