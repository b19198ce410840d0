package gorm

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository stores one profile document per user
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

var _ outbound.ProfileRepository = (*ProfileRepository)(nil)

// Find loads the stored profile for a user
func (r *ProfileRepository) Find(ctx context.Context, userID uuid.UUID) (*outbound.StoredProfile, error) {
	var model ProfileModel

	result := r.db.WithContext(ctx).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, outbound.ErrNotFound
		}
		return nil, result.Error
	}

	return ModelToProfile(&model), nil
}

// Save upserts the whole document. A write carrying an older version than
// the stored row changes nothing and returns outbound.ErrStaleVersion.
func (r *ProfileRepository) Save(ctx context.Context, doc *outbound.StoredProfile) error {
	model := ProfileToModel(doc)

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "health_profiles.version <= excluded.version"},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"allergies", "medications", "conditions", "version", "updated_at"}),
	}).Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return outbound.ErrStaleVersion
	}
	return nil
}
