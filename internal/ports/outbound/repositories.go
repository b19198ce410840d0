// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/domain/user"
)

// ErrNotFound is returned by repositories when no record matches
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique key is already taken
var ErrDuplicate = errors.New("record already exists")

// ErrStaleVersion is returned by ProfileRepository.Save when the stored
// document has a newer version
var ErrStaleVersion = errors.New("stored profile has a newer version")

// ErrCacheMiss is returned by CacheRepository.Get for absent keys
var ErrCacheMiss = errors.New("cache miss")

// UserRepository defines the interface for user persistence
type UserRepository interface {
	Create(ctx context.Context, user *user.User) error
	Update(ctx context.Context, user *user.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// StoredProfile is a persisted profile document
type StoredProfile struct {
	UserID    uuid.UUID
	Profile   profile.Snapshot
	Version   int64
	UpdatedAt time.Time
}

// ProfileRepository is the remote mirror of per-user profiles
type ProfileRepository interface {
	Find(ctx context.Context, userID uuid.UUID) (*StoredProfile, error)
	Save(ctx context.Context, doc *StoredProfile) error
}

// CacheRepository defines the interface for caching
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
