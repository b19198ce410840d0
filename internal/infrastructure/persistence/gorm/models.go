// Package gorm provides GORM model definitions and repositories
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserModel represents the GORM model for users
type UserModel struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string    `gorm:"type:varchar(255);not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	IsActive     bool      `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// TableName overrides the table name
func (UserModel) TableName() string {
	return "users"
}

// ProfileModel is the remote mirror of one user's health profile
type ProfileModel struct {
	UserID      uuid.UUID   `gorm:"type:char(36);primaryKey"`
	Allergies   StringSlice `gorm:"type:json"`
	Medications StringSlice `gorm:"type:json"`
	Conditions  StringSlice `gorm:"type:json"`
	Version     int64       `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

// TableName overrides the table name
func (ProfileModel) TableName() string {
	return "health_profiles"
}

// AllModels lists every model for AutoMigrate
func AllModels() []interface{} {
	return []interface{}{&UserModel{}, &ProfileModel{}}
}

// StringSlice custom type for handling string slices in JSON
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
