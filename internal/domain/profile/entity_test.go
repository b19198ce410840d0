package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ProfileTestSuite covers the profile aggregate
type ProfileTestSuite struct {
	suite.Suite
}

func (suite *ProfileTestSuite) TestAdd() {
	suite.Run("NewItem_ShouldBeTrimmedAndAppended", func() {
		// Arrange
		p := New()

		// Act
		stored, err := p.Add(CategoryAllergies, "  Peanuts ")

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Peanuts", stored)
		assert.Equal(suite.T(), []string{"Peanuts"}, p.Items(CategoryAllergies))
		assert.Equal(suite.T(), int64(1), p.Version())

		events := p.Events()
		require.Len(suite.T(), events, 1)
		added, ok := events[0].(ItemAddedEvent)
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), "Peanuts", added.Item)
	})

	suite.Run("CaseInsensitiveDuplicate_ShouldBeRejected", func() {
		// Arrange
		p := New()
		_, err := p.Add(CategoryMedications, "Metformin")
		require.NoError(suite.T(), err)

		// Act
		_, err = p.Add(CategoryMedications, "  METFORMIN")

		// Assert
		assert.ErrorIs(suite.T(), err, ErrDuplicateItem)
		assert.Len(suite.T(), p.Items(CategoryMedications), 1)
		assert.Equal(suite.T(), int64(1), p.Version())
	})

	suite.Run("SameItemInOtherCategory_ShouldBeAllowed", func() {
		p := New()
		_, err := p.Add(CategoryAllergies, "Aspirin")
		require.NoError(suite.T(), err)

		_, err = p.Add(CategoryMedications, "aspirin")
		assert.NoError(suite.T(), err)
	})

	suite.Run("BlankItem_ShouldReturnError", func() {
		p := New()
		_, err := p.Add(CategoryConditions, "   ")
		assert.ErrorIs(suite.T(), err, ErrEmptyItem)
	})

	suite.Run("OverlongItem_ShouldReturnError", func() {
		p := New()
		_, err := p.Add(CategoryConditions, strings.Repeat("x", maxItemLength+1))
		assert.ErrorIs(suite.T(), err, ErrItemTooLong)
	})

	suite.Run("UnknownCategory_ShouldReturnError", func() {
		p := New()
		_, err := p.Add(Category("hobbies"), "Chess")
		assert.ErrorIs(suite.T(), err, ErrUnknownCategory)
	})
}

func (suite *ProfileTestSuite) TestRemove() {
	suite.Run("ExactMatch_ShouldRemove", func() {
		p := FromSnapshot(DefaultSnapshot())

		removed := p.Remove(CategoryMedications, "Aspirin")

		assert.True(suite.T(), removed)
		assert.Equal(suite.T(), []string{"Lisinopril 10mg"}, p.Items(CategoryMedications))
	})

	suite.Run("DifferentCase_ShouldNotRemove", func() {
		p := FromSnapshot(DefaultSnapshot())

		removed := p.Remove(CategoryAllergies, "peanuts")

		assert.False(suite.T(), removed)
		assert.Equal(suite.T(), []string{"Peanuts"}, p.Items(CategoryAllergies))
	})

	suite.Run("RemoveEverything_ShouldLeaveEmptyList", func() {
		p := FromSnapshot(DefaultSnapshot())

		for _, item := range p.Items(CategoryMedications) {
			require.True(suite.T(), p.Remove(CategoryMedications, item))
		}

		assert.Empty(suite.T(), p.Items(CategoryMedications))
		assert.NotNil(suite.T(), p.Snapshot().Medications)
	})

	suite.Run("Remove_ShouldNotAliasEarlierSnapshots", func() {
		p := FromSnapshot(Snapshot{Allergies: []string{"A1", "B2", "C3"}})
		before := p.Snapshot()

		p.Remove(CategoryAllergies, "A1")

		assert.Equal(suite.T(), []string{"A1", "B2", "C3"}, before.Allergies)
	})
}

func (suite *ProfileTestSuite) TestFromSnapshot() {
	p := FromSnapshot(Snapshot{
		Allergies:   []string{"Pollen", "pollen", " ", "Dust"},
		Medications: nil,
		Conditions:  []string{" Asthma "},
	})

	assert.Equal(suite.T(), []string{"Pollen", "Dust"}, p.Items(CategoryAllergies))
	assert.Equal(suite.T(), []string{"Asthma"}, p.Items(CategoryConditions))
	assert.Empty(suite.T(), p.Items(CategoryMedications))
	assert.Equal(suite.T(), int64(0), p.Version())
}

func (suite *ProfileTestSuite) TestReplace() {
	p := New()
	_, err := p.Add(CategoryAllergies, "Dust")
	require.NoError(suite.T(), err)
	p.ClearEvents()

	p.Replace(Snapshot{Medications: []string{"Aspirin", "ASPIRIN", "Ibuprofen"}})

	assert.Empty(suite.T(), p.Items(CategoryAllergies))
	assert.Equal(suite.T(), []string{"Aspirin", "Ibuprofen"}, p.Items(CategoryMedications))
	assert.Equal(suite.T(), int64(2), p.Version())
	require.Len(suite.T(), p.Events(), 1)
	assert.Equal(suite.T(), "profile.replaced", p.Events()[0].EventName())
}

func (suite *ProfileTestSuite) TestCategory() {
	c, err := ParseCategory(" Medications ")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), CategoryMedications, c)

	_, err = ParseCategory("vitamins")
	assert.ErrorIs(suite.T(), err, ErrUnknownCategory)

	assert.Equal(suite.T(), "No allergies added yet.", CategoryAllergies.EmptyText())
	assert.Equal(suite.T(), "No current medications added yet.", CategoryMedications.EmptyText())
	assert.Equal(suite.T(), "No medical conditions added yet.", CategoryConditions.EmptyText())
}

func TestProfileTestSuite(t *testing.T) {
	suite.Run(t, new(ProfileTestSuite))
}
