package gorm

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/domain/user"
	"github.com/healthharmony/assistant/internal/infrastructure/config"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"github.com/healthharmony/assistant/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	users    *UserRepository
	profiles *ProfileRepository
	factory  *testutils.UserFactory
	ctx      context.Context
}

func (suite *RepositoryTestSuite) SetupTest() {
	cfg, err := config.Load("")
	require.NoError(suite.T(), err)
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(suite.T().TempDir(), "test.db")
	cfg.Database.AutoMigrate = true

	suite.db, err = Open(cfg, zaptest.NewLogger(suite.T()))
	require.NoError(suite.T(), err)

	suite.users = NewUserRepository(suite.db)
	suite.profiles = NewProfileRepository(suite.db)
	suite.factory = testutils.NewUserFactory(7)
	suite.ctx = context.Background()
}

func (suite *RepositoryTestSuite) TearDownTest() {
	_ = Close(suite.db)
}

func (suite *RepositoryTestSuite) TestUserRoundTrip() {
	u, password := suite.factory.User()
	require.NoError(suite.T(), suite.users.Create(suite.ctx, u))

	found, err := suite.users.FindByEmail(suite.ctx, "  "+u.Email()+" ")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID(), found.ID())
	assert.Equal(suite.T(), u.Name(), found.Name())
	assert.True(suite.T(), found.IsActive())
	assert.NoError(suite.T(), found.CheckPassword(password), "hash survives storage")

	byID, err := suite.users.FindByID(suite.ctx, u.ID())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.Email(), byID.Email())
}

func (suite *RepositoryTestSuite) TestUserDuplicateEmail() {
	u, _ := suite.factory.User()
	require.NoError(suite.T(), suite.users.Create(suite.ctx, u))

	dup, err := user.NewUser(u.Email(), "Other Person", "another-password")
	require.NoError(suite.T(), err)

	assert.ErrorIs(suite.T(), suite.users.Create(suite.ctx, dup), outbound.ErrDuplicate)
}

func (suite *RepositoryTestSuite) TestUserNotFound() {
	_, err := suite.users.FindByID(suite.ctx, uuid.New())
	assert.ErrorIs(suite.T(), err, outbound.ErrNotFound)

	_, err = suite.users.FindByEmail(suite.ctx, "missing@example.com")
	assert.ErrorIs(suite.T(), err, outbound.ErrNotFound)

	assert.ErrorIs(suite.T(), suite.users.UpdateLastLogin(suite.ctx, uuid.New()), outbound.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestUpdateLastLoginAndDeactivate() {
	u, _ := suite.factory.User()
	require.NoError(suite.T(), suite.users.Create(suite.ctx, u))

	require.NoError(suite.T(), suite.users.UpdateLastLogin(suite.ctx, u.ID()))
	found, err := suite.users.FindByID(suite.ctx, u.ID())
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), found.LastLoginAt())

	found.Deactivate()
	require.NoError(suite.T(), suite.users.Update(suite.ctx, found))
	found, err = suite.users.FindByID(suite.ctx, u.ID())
	require.NoError(suite.T(), err)
	assert.False(suite.T(), found.IsActive())
}

func (suite *RepositoryTestSuite) TestProfileUpsert() {
	userID := uuid.New()

	_, err := suite.profiles.Find(suite.ctx, userID)
	assert.ErrorIs(suite.T(), err, outbound.ErrNotFound)

	first := &outbound.StoredProfile{
		UserID:    userID,
		Profile:   profile.Snapshot{Allergies: []string{"Peanuts"}},
		Version:   1,
		UpdatedAt: time.Now(),
	}
	require.NoError(suite.T(), suite.profiles.Save(suite.ctx, first))

	second := &outbound.StoredProfile{
		UserID:    userID,
		Profile:   profile.Snapshot{Allergies: []string{"Peanuts"}, Medications: []string{"Aspirin"}},
		Version:   2,
		UpdatedAt: time.Now(),
	}
	require.NoError(suite.T(), suite.profiles.Save(suite.ctx, second))

	stored, err := suite.profiles.Find(suite.ctx, userID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), stored.Version)
	assert.Equal(suite.T(), []string{"Aspirin"}, stored.Profile.Medications)
	assert.Equal(suite.T(), []string{}, stored.Profile.Conditions)
}

func (suite *RepositoryTestSuite) TestProfileIgnoresOlderVersion() {
	userID := uuid.New()
	require.NoError(suite.T(), suite.profiles.Save(suite.ctx, &outbound.StoredProfile{
		UserID: userID, Profile: profile.Snapshot{Conditions: []string{"Asthma"}}, Version: 5,
	}))
	err := suite.profiles.Save(suite.ctx, &outbound.StoredProfile{
		UserID: userID, Profile: profile.Snapshot{}, Version: 3,
	})
	assert.ErrorIs(suite.T(), err, outbound.ErrStaleVersion)

	stored, err := suite.profiles.Find(suite.ctx, userID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(5), stored.Version)
	assert.Equal(suite.T(), []string{"Asthma"}, stored.Profile.Conditions)
}

func (suite *RepositoryTestSuite) TestProfileConcurrentSaves() {
	userID := uuid.New()
	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			err := suite.profiles.Save(suite.ctx, &outbound.StoredProfile{
				UserID: userID, Profile: profile.Snapshot{Allergies: []string{"Item"}}, Version: v,
			})
			if err != nil {
				assert.ErrorIs(suite.T(), err, outbound.ErrStaleVersion)
			}
		}(int64(i))
	}
	wg.Wait()

	stored, err := suite.profiles.Find(suite.ctx, userID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(10), stored.Version)
}

func (suite *RepositoryTestSuite) TestProfileRoundTripKeepsOrder() {
	snapshot := testutils.NewProfileFactory(11).Snapshot()
	userID := uuid.New()
	require.NoError(suite.T(), suite.profiles.Save(suite.ctx, &outbound.StoredProfile{
		UserID: userID, Profile: snapshot, Version: 1,
	}))

	stored, err := suite.profiles.Find(suite.ctx, userID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), snapshot, stored.Profile)
	assert.False(suite.T(), stored.UpdatedAt.IsZero())
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
