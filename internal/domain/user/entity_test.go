package user

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type UserTestSuite struct {
	suite.Suite
}

func (suite *UserTestSuite) TestNewUser() {
	suite.Run("ValidInput_ShouldCreateUser", func() {
		u, err := NewUser("  Jane.Doe@Example.com ", "Jane", "correct horse")

		require.NoError(suite.T(), err)
		assert.NotEqual(suite.T(), uuid.Nil, u.ID())
		assert.Equal(suite.T(), "jane.doe@example.com", u.Email())
		assert.True(suite.T(), u.IsActive())
		assert.NotEqual(suite.T(), "correct horse", u.PasswordHash())
		assert.NoError(suite.T(), u.CheckPassword("correct horse"))
		assert.Error(suite.T(), u.CheckPassword("wrong horse"))
	})

	suite.Run("InvalidEmail_ShouldFail", func() {
		_, err := NewUser("not-an-email", "Jane", "password1")
		assert.ErrorIs(suite.T(), err, ErrInvalidEmail)

		_, err = NewUser("", "Jane", "password1")
		assert.ErrorIs(suite.T(), err, ErrEmailRequired)
	})

	suite.Run("ShortPassword_ShouldFail", func() {
		_, err := NewUser("a@b.co", "Jane", "short")
		assert.ErrorIs(suite.T(), err, ErrPasswordTooShort)
	})

	suite.Run("LongPassword_ShouldFail", func() {
		_, err := NewUser("a@b.co", "Jane", strings.Repeat("p", 73))
		assert.ErrorIs(suite.T(), err, ErrPasswordTooLong)
	})

	suite.Run("ShortName_ShouldFail", func() {
		_, err := NewUser("a@b.co", "J", "password1")
		assert.ErrorIs(suite.T(), err, ErrNameTooShort)
	})
}

func (suite *UserTestSuite) TestReconstructAndLogin() {
	original, err := NewUser("a@b.co", "Ann", "password1")
	require.NoError(suite.T(), err)

	u := Reconstruct(original.ID(), original.Email(), original.Name(), original.PasswordHash(), true, original.CreatedAt(), original.UpdatedAt(), nil)
	require.NoError(suite.T(), u.CheckPassword("password1"))
	assert.Nil(suite.T(), u.LastLoginAt())

	u.RecordLogin()
	assert.NotNil(suite.T(), u.LastLoginAt())
}

func TestUserTestSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}
