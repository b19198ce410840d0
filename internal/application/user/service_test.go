package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/infrastructure/persistence/memory"
	"github.com/healthharmony/assistant/internal/infrastructure/security"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"github.com/healthharmony/assistant/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type UserServiceTestSuite struct {
	suite.Suite
	repo    *testutils.MockUserRepository
	cache   *memory.CacheRepository
	service *UserService
	factory *testutils.UserFactory
	ctx     context.Context
}

func (suite *UserServiceTestSuite) SetupTest() {
	logger := zaptest.NewLogger(suite.T())
	suite.repo = testutils.NewMockUserRepository()
	suite.cache = memory.NewCacheRepository(0)
	tokens := security.NewTokenManager(security.TokenConfig{
		Secret:            "test-secret-key-for-testing-only-32-bytes",
		AccessExpiration:  time.Hour,
		RefreshExpiration: 24 * time.Hour,
	}, suite.cache, logger)
	metrics := monitoring.NewMetricsCollector(monitoring.NewRegistry(), logger)
	suite.service = NewUserService(suite.repo, tokens, metrics, logger)
	suite.factory = testutils.NewUserFactory(42)
	suite.ctx = context.Background()
}

func (suite *UserServiceTestSuite) TearDownTest() {
	suite.cache.Close()
}

func (suite *UserServiceTestSuite) register() (*AuthResponse, RegisterCommand) {
	email, name, password := suite.factory.Credentials()
	cmd := RegisterCommand{Email: email, Name: name, Password: password}
	suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	resp, err := suite.service.Register(suite.ctx, cmd)
	require.NoError(suite.T(), err)
	return resp, cmd
}

func (suite *UserServiceTestSuite) TestRegister() {
	suite.Run("ValidInput_ShouldCreateUserAndTokens", func() {
		suite.SetupTest()

		resp, cmd := suite.register()

		assert.NotEmpty(suite.T(), resp.AccessToken)
		assert.NotEmpty(suite.T(), resp.RefreshToken)
		assert.Equal(suite.T(), 3600, resp.ExpiresIn)
		assert.Equal(suite.T(), cmd.Name, resp.User.Name)
		suite.repo.AssertExpectations(suite.T())
	})

	suite.Run("DuplicateEmail_ShouldConflict", func() {
		suite.SetupTest()
		_, cmd := suite.register()

		_, err := suite.service.Register(suite.ctx, cmd)

		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeEmailAlreadyExists))
	})

	suite.Run("ShortPassword_ShouldFailValidation", func() {
		suite.SetupTest()

		_, err := suite.service.Register(suite.ctx, RegisterCommand{Email: "a@example.com", Name: "Al", Password: "short"})

		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeValidationFailed))
		suite.repo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
	})

	suite.Run("RepositoryFailure_ShouldBeInternal", func() {
		suite.SetupTest()
		suite.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		_, err := suite.service.Register(suite.ctx, RegisterCommand{Email: "a@example.com", Name: "Al", Password: "long-enough"})

		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeInternal))
	})
}

func (suite *UserServiceTestSuite) TestLogin() {
	suite.Run("ValidCredentials_ShouldIssueTokens", func() {
		suite.SetupTest()
		_, cmd := suite.register()
		suite.repo.On("UpdateLastLogin", mock.Anything, mock.Anything).Return(nil).Once()

		resp, err := suite.service.Login(suite.ctx, LoginCommand{Email: cmd.Email, Password: cmd.Password})

		require.NoError(suite.T(), err)
		assert.NotEmpty(suite.T(), resp.AccessToken)
		suite.repo.AssertExpectations(suite.T())
	})

	suite.Run("WrongPassword_ShouldFail", func() {
		suite.SetupTest()
		_, cmd := suite.register()

		_, err := suite.service.Login(suite.ctx, LoginCommand{Email: cmd.Email, Password: "wrong-password"})

		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeInvalidCredentials))
	})

	suite.Run("UnknownEmail_ShouldFailWithSameError", func() {
		suite.SetupTest()

		_, err := suite.service.Login(suite.ctx, LoginCommand{Email: "nobody@example.com", Password: "whatever1"})

		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeInvalidCredentials))
	})

	suite.Run("LastLoginFailure_ShouldNotBlockLogin", func() {
		suite.SetupTest()
		_, cmd := suite.register()
		suite.repo.On("UpdateLastLogin", mock.Anything, mock.Anything).Return(errors.New("locked")).Once()

		_, err := suite.service.Login(suite.ctx, LoginCommand{Email: cmd.Email, Password: cmd.Password})

		assert.NoError(suite.T(), err)
	})
}

func (suite *UserServiceTestSuite) TestRefreshAndLogout() {
	suite.Run("Refresh_ShouldRotateToken", func() {
		suite.SetupTest()
		resp, _ := suite.register()

		next, err := suite.service.Refresh(suite.ctx, resp.RefreshToken)
		require.NoError(suite.T(), err)
		assert.NotEqual(suite.T(), resp.RefreshToken, next.RefreshToken)

		_, err = suite.service.Refresh(suite.ctx, resp.RefreshToken)
		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeUnauthorized), "old refresh token is revoked")
	})

	suite.Run("AccessTokenAsRefresh_ShouldFail", func() {
		suite.SetupTest()
		resp, _ := suite.register()

		_, err := suite.service.Refresh(suite.ctx, resp.AccessToken)

		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeUnauthorized))
	})

	suite.Run("Logout_ShouldRevokeAccessToken", func() {
		suite.SetupTest()
		resp, _ := suite.register()

		claims, err := suite.service.Authenticate(suite.ctx, resp.AccessToken)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), resp.User.ID, claims.UserID)

		require.NoError(suite.T(), suite.service.Logout(suite.ctx, resp.AccessToken, resp.RefreshToken))

		_, err = suite.service.Authenticate(suite.ctx, resp.AccessToken)
		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeUnauthorized))
		_, err = suite.service.Refresh(suite.ctx, resp.RefreshToken)
		assert.True(suite.T(), apperrors.Is(err, apperrors.CodeUnauthorized))
	})
}

func (suite *UserServiceTestSuite) TestGetUserByID() {
	resp, _ := suite.register()

	dto, err := suite.service.GetUserByID(suite.ctx, resp.User.ID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), resp.User.Email, dto.Email)
}

func TestUserService_Unavailable(t *testing.T) {
	svc := NewUserService(nil, nil, nil, zaptest.NewLogger(t))

	_, err := svc.Register(context.Background(), RegisterCommand{Email: "a@example.com", Name: "Al", Password: "long-enough"})
	assert.True(t, apperrors.Is(err, apperrors.CodeAuthUnavailable))

	_, err = svc.Login(context.Background(), LoginCommand{Email: "a@example.com", Password: "long-enough"})
	assert.True(t, apperrors.Is(err, apperrors.CodeAuthUnavailable))

	assert.False(t, svc.Available())
}

func TestUserServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserServiceTestSuite))
}
