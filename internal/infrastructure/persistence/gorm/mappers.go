package gorm

import (
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/domain/user"
	"github.com/healthharmony/assistant/internal/ports/outbound"
)

// UserToModel converts a domain user to a GORM model
func UserToModel(u *user.User) *UserModel {
	return &UserModel{
		ID:           u.ID(),
		Email:        u.Email(),
		Name:         u.Name(),
		PasswordHash: u.PasswordHash(),
		IsActive:     u.IsActive(),
		CreatedAt:    u.CreatedAt(),
		UpdatedAt:    u.UpdatedAt(),
		LastLoginAt:  u.LastLoginAt(),
	}
}

// ModelToUser converts a GORM model to a domain user
func ModelToUser(model *UserModel) *user.User {
	return user.Reconstruct(
		model.ID,
		model.Email,
		model.Name,
		model.PasswordHash,
		model.IsActive,
		model.CreatedAt,
		model.UpdatedAt,
		model.LastLoginAt,
	)
}

// ProfileToModel converts a stored profile document to a GORM model
func ProfileToModel(doc *outbound.StoredProfile) *ProfileModel {
	return &ProfileModel{
		UserID:      doc.UserID,
		Allergies:   clone(doc.Profile.Allergies),
		Medications: clone(doc.Profile.Medications),
		Conditions:  clone(doc.Profile.Conditions),
		Version:     doc.Version,
		UpdatedAt:   doc.UpdatedAt,
	}
}

// ModelToProfile converts a GORM model to a stored profile document
func ModelToProfile(model *ProfileModel) *outbound.StoredProfile {
	return &outbound.StoredProfile{
		UserID: model.UserID,
		Profile: profile.Snapshot{
			Allergies:   clone(model.Allergies),
			Medications: clone(model.Medications),
			Conditions:  clone(model.Conditions),
		},
		Version:   model.Version,
		UpdatedAt: model.UpdatedAt,
	}
}

func clone(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}
