package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"authcore/internal/auth"
	apperrors "authcore/internal/errors"
	"authcore/internal/model"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	args := m.Called(ctx, username, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByValidResetDigest(ctx context.Context, digest string, now time.Time) (*model.User, error) {
	args := m.Called(ctx, digest, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockMailer records sent mail.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, html string) error {
	args := m.Called(ctx, to, subject, html)
	return args.Error(0)
}

func newTestService(repo *MockUserRepository, mailer *MockMailer) (AuthService, *auth.TokenService) {
	tokens := auth.NewTokenService("test-secret", 15*time.Minute)
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	return NewAuthService(repo, hasher, tokens, mailer, nil, "http://localhost:3000"), tokens
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		email         string
		password      string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:     "successful registration",
			username: "alice",
			email:    "alice@x.com",
			password: "secret1",
			setupMock: func(m *MockUserRepository) {
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
			expectedError: nil,
		},
		{
			name:     "duplicate username",
			username: "alice",
			email:    "other@x.com",
			password: "secret2",
			setupMock: func(m *MockUserRepository) {
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(apperrors.ErrDuplicateUsername)
			},
			expectedError: apperrors.ErrDuplicateUsername,
		},
		{
			name:     "duplicate email",
			username: "bob",
			email:    "alice@x.com",
			password: "secret2",
			setupMock: func(m *MockUserRepository) {
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(apperrors.ErrDuplicateEmail)
			},
			expectedError: apperrors.ErrDuplicateEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)
			svc, tokens := newTestService(mockRepo, new(MockMailer))

			user, token, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				assert.Empty(t, token)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.username, user.Username)
				assert.Equal(t, tt.email, user.Email)
				assert.NotEmpty(t, user.PasswordHash)
				assert.NotEqual(t, tt.password, user.PasswordHash)

				claims, verifyErr := tokens.Verify(token)
				assert.NoError(t, verifyErr)
				assert.Equal(t, tt.username, claims.Username)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	existing := &model.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: string(hashed),
	}

	tests := []struct {
		name          string
		username      string
		password      string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:     "successful login",
			username: "alice",
			password: "secret1",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "alice").Return(existing, nil)
			},
			expectedError: nil,
		},
		{
			name:     "unknown username",
			username: "nobody",
			password: "secret1",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "nobody").Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "wrong password",
			username: "alice",
			password: "wrong",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "alice").Return(existing, nil)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)
			svc, tokens := newTestService(mockRepo, new(MockMailer))

			user, token, err := svc.Login(context.Background(), tt.username, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				assert.Empty(t, token)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.username, user.Username)

				claims, verifyErr := tokens.Verify(token)
				assert.NoError(t, verifyErr)
				assert.Equal(t, existing.ID.String(), claims.UserID)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

// Unknown-user and wrong-password failures must be indistinguishable.
func TestAuthService_LoginFailuresAreUniform(t *testing.T) {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByUsername", mock.Anything, "alice").Return(&model.User{
		ID: uuid.New(), Username: "alice", PasswordHash: string(hashed),
	}, nil)
	mockRepo.On("FindByUsername", mock.Anything, "ghost").Return(nil, gorm.ErrRecordNotFound)

	svc, _ := newTestService(mockRepo, new(MockMailer))

	_, _, wrongPassErr := svc.Login(context.Background(), "alice", "wrong")
	_, _, noUserErr := svc.Login(context.Background(), "ghost", "whatever")

	assert.Equal(t, wrongPassErr, noUserErr)
}

func TestAuthService_CurrentUser(t *testing.T) {
	user := &model.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: "hash",
	}

	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	svc, _ := newTestService(mockRepo, new(MockMailer))

	got, err := svc.CurrentUser(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.Equal(t, user.Username, got.Username)
	assert.Equal(t, user.Email, got.Email)

	mockRepo.On("FindByID", mock.Anything, uuid.Nil).Return(nil, gorm.ErrRecordNotFound)
	_, err = svc.CurrentUser(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	t.Run("issues a secret and mails the link", func(t *testing.T) {
		user := &model.User{ID: uuid.New(), Username: "alice", Email: "alice@x.com", PasswordHash: "hash"}

		mockRepo := new(MockUserRepository)
		mockRepo.On("FindByEmail", mock.Anything, "alice@x.com").Return(user, nil)
		mockRepo.On("Save", mock.Anything, user).Return(nil)

		var mailedBody string
		mockMailer := new(MockMailer)
		mockMailer.On("Send", mock.Anything, "alice@x.com", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { mailedBody = args.String(3) }).
			Return(nil)

		svc, _ := newTestService(mockRepo, mockMailer)

		err := svc.RequestPasswordReset(context.Background(), "alice@x.com")
		assert.NoError(t, err)

		// Pending state was persisted: digest and expiry set together.
		assert.True(t, user.HasPendingReset())
		assert.WithinDuration(t, time.Now().Add(auth.ResetTokenLifetime), *user.ResetTokenExpiresAt, time.Minute)

		// The mail carries the plaintext secret, the store only its digest.
		start := strings.Index(mailedBody, "/reset-password/")
		assert.GreaterOrEqual(t, start, 0)
		secret := mailedBody[start+len("/reset-password/"):]
		secret = secret[:strings.IndexAny(secret, "\"")]
		assert.Len(t, secret, 40)
		assert.Equal(t, auth.ResetTokenDigest(secret), *user.ResetTokenDigest)
		assert.NotContains(t, mailedBody, *user.ResetTokenDigest)

		mockRepo.AssertExpectations(t)
		mockMailer.AssertExpectations(t)
	})

	t.Run("unknown email is disclosed", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("FindByEmail", mock.Anything, "ghost@x.com").Return(nil, gorm.ErrRecordNotFound)

		svc, _ := newTestService(mockRepo, new(MockMailer))

		err := svc.RequestPasswordReset(context.Background(), "ghost@x.com")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("delivery failure cancels the pending reset", func(t *testing.T) {
		user := &model.User{ID: uuid.New(), Username: "alice", Email: "alice@x.com", PasswordHash: "hash"}

		mockRepo := new(MockUserRepository)
		mockRepo.On("FindByEmail", mock.Anything, "alice@x.com").Return(user, nil)
		mockRepo.On("Save", mock.Anything, user).Return(nil)

		mockMailer := new(MockMailer)
		mockMailer.On("Send", mock.Anything, "alice@x.com", mock.Anything, mock.Anything).
			Return(assert.AnError)

		svc, _ := newTestService(mockRepo, mockMailer)

		err := svc.RequestPasswordReset(context.Background(), "alice@x.com")
		assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)
		assert.False(t, user.HasPendingReset())
		mockRepo.AssertNumberOfCalls(t, "Save", 2)
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	t.Run("consumes the secret and signs the user in", func(t *testing.T) {
		reset, err := auth.NewResetToken()
		assert.NoError(t, err)

		user := &model.User{
			ID:                  uuid.New(),
			Username:            "alice",
			Email:               "alice@x.com",
			PasswordHash:        "old-hash",
			ResetTokenDigest:    &reset.Digest,
			ResetTokenExpiresAt: &reset.ExpiresAt,
		}

		mockRepo := new(MockUserRepository)
		mockRepo.On("FindByValidResetDigest", mock.Anything, reset.Digest, mock.Anything).Return(user, nil)
		mockRepo.On("Save", mock.Anything, user).Return(nil)

		svc, tokens := newTestService(mockRepo, new(MockMailer))

		got, token, err := svc.ResetPassword(context.Background(), reset.Secret, "secret3")
		assert.NoError(t, err)

		// New hash and cleared reset state persist in the same save.
		assert.NotEqual(t, "old-hash", got.PasswordHash)
		assert.True(t, auth.NewPasswordHasher(auth.DefaultBcryptCost).Verify("secret3", got.PasswordHash))
		assert.False(t, got.HasPendingReset())
		mockRepo.AssertNumberOfCalls(t, "Save", 1)

		claims, err := tokens.Verify(token)
		assert.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("wrong or expired secret changes nothing", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("FindByValidResetDigest", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, gorm.ErrRecordNotFound)

		svc, _ := newTestService(mockRepo, new(MockMailer))

		user, token, err := svc.ResetPassword(context.Background(), "not-a-secret", "secret3")
		assert.ErrorIs(t, err, apperrors.ErrInvalidResetToken)
		assert.Nil(t, user)
		assert.Empty(t, token)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}
