package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"authcore/internal/auth"
	"authcore/internal/cache"
	apperrors "authcore/internal/errors"
	"authcore/internal/mail"
	"authcore/internal/model"
	"authcore/internal/repository"
)

const profileCacheTTL = 5 * time.Minute

// AuthService handles the credential and token lifecycle: registration,
// login, profile lookup, and the password-reset flow.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, string, error)
	Login(ctx context.Context, username, password string) (*model.User, string, error)
	CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, secret, newPassword string) (*model.User, string, error)
}

type authService struct {
	users   repository.UserRepository
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	mailer  mail.Mailer
	cache   *cache.Client
	baseURL string
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenService,
	mailer mail.Mailer,
	cacheClient *cache.Client,
	baseURL string,
) AuthService {
	return &authService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		mailer:  mailer,
		cache:   cacheClient,
		baseURL: baseURL,
	}
}

// Register creates a new user with a hashed password and signs them in.
// Uniqueness of username and email is enforced by the store at insert, so a
// concurrent register on the same name yields exactly one success.
func (s *authService) Register(ctx context.Context, username, email, password string) (*model.User, string, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEmail) || errors.Is(err, apperrors.ErrDuplicateUsername) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login authenticates by username and returns a fresh session token. Unknown
// usernames and wrong passwords produce the same error.
func (s *authService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// CurrentUser returns the profile for an already-verified user ID, reading
// through a short-lived cache. The cached record carries only the public
// fields because the sensitive ones are excluded from JSON.
func (s *authService) CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	key := profileCacheKey(userID)
	if data, _ := s.cache.Get(ctx, key); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, key, payload, profileCacheTTL)
	}
	return user, nil
}

// RequestPasswordReset issues a one-time reset secret for the account with
// the given email and mails a link embedding it. Only the digest is stored.
// If the mail cannot be delivered the pending state is cleared again, so no
// secret the user never saw stays live.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	reset, err := auth.NewResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	// A still-pending secret is simply overwritten; at most one is live.
	user.ResetTokenDigest = &reset.Digest
	user.ResetTokenExpiresAt = &reset.ExpiresAt
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.baseURL, reset.Secret)
	body := fmt.Sprintf(`<h1>You requested a password reset</h1>
<p>Click the link below to set a new password:</p>
<a href="%s" target="_blank">Reset password</a>
<p>If you did not request this, you can ignore this message.</p>`, resetURL)

	if err := s.mailer.Send(ctx, user.Email, "Password reset request", body); err != nil {
		user.ClearResetToken()
		if saveErr := s.users.Save(ctx, user); saveErr != nil {
			return fmt.Errorf("clear reset token: %w", saveErr)
		}
		return apperrors.ErrDeliveryFailed
	}
	return nil
}

// ResetPassword consumes a reset secret: the new password hash is written in
// the same save that clears the digest and expiry, and a fresh session token
// is issued so the user is signed in immediately. A wrong or expired secret
// changes nothing.
func (s *authService) ResetPassword(ctx context.Context, secret, newPassword string) (*model.User, string, error) {
	digest := auth.ResetTokenDigest(secret)
	user, err := s.users.FindByValidResetDigest(ctx, digest, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.ErrInvalidResetToken
		}
		return nil, "", fmt.Errorf("find reset token: %w", err)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hashed
	user.ClearResetToken()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, "", fmt.Errorf("save user: %w", err)
	}
	_ = s.cache.Delete(ctx, profileCacheKey(user.ID))

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

func profileCacheKey(id uuid.UUID) string {
	return "user:profile:" + id.String()
}
