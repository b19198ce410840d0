// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/domain/profile"
)

// FlowService exposes the six model backed flows
type FlowService interface {
	ValidateProfileItem(ctx context.Context, cmd ValidateItemCommand) (*assessment.ValidationResult, error)
	GetSuggestions(ctx context.Context, query SuggestionsQuery) (*assessment.SuggestionsResult, error)
	CheckItemCompatibility(ctx context.Context, cmd CompatibilityCommand) (*assessment.CompatibilityResult, error)
	SuggestAlternatives(ctx context.Context, cmd ItemCommand) (*assessment.AlternativesResult, error)
	GetPostIngestionAdvice(ctx context.Context, cmd ItemCommand) (*assessment.AdviceResult, error)
	GetLifestyleTips(ctx context.Context, query TipsQuery) (*assessment.LifestyleTipsResult, error)
}

// ValidateItemCommand asks whether a profile entry is a real term
type ValidateItemCommand struct {
	Category profile.Category
	ItemName string
}

// SuggestionsQuery asks for autocomplete candidates
type SuggestionsQuery struct {
	Category profile.Category
	Query    string
}

// CompatibilityCommand checks an item, optionally pictured, against a profile
type CompatibilityCommand struct {
	Profile  profile.Snapshot
	ItemName string
	Photos   []string
}

// ItemCommand names an item in the context of a profile
type ItemCommand struct {
	Profile  profile.Snapshot
	ItemName string
}

// TipsQuery asks for lifestyle tips for a profile
type TipsQuery struct {
	Profile profile.Snapshot
}

// Owner identifies whose profile is addressed: an authenticated user when
// UserID is set, otherwise the anonymous session.
type Owner struct {
	SessionID string
	UserID    *uuid.UUID
}

// Key is the state key for the owner
func (o Owner) Key() string {
	if o.UserID != nil {
		return "user:" + o.UserID.String()
	}
	return "session:" + o.SessionID
}

// Authenticated reports whether the owner is a signed-in user
func (o Owner) Authenticated() bool {
	return o.UserID != nil
}

// NoticeKind classifies user notifications
type NoticeKind string

const (
	NoticeDuplicate         NoticeKind = "duplicate"
	NoticeRejected          NoticeKind = "rejected"
	NoticePersistenceFailed NoticeKind = "persistence_failed"
	NoticePersisted         NoticeKind = "persisted"
)

// Notice is a non-blocking message for the user
type Notice struct {
	Kind     NoticeKind       `json:"kind"`
	Message  string           `json:"message"`
	Category profile.Category `json:"category,omitempty"`
	Item     string           `json:"item,omitempty"`
	At       time.Time        `json:"at"`
}

// AddItemCommand appends an entry to a profile list
type AddItemCommand struct {
	Owner    Owner
	Category profile.Category
	Item     string
	Validate bool
}

// AddItemResult reports what happened to an add request
type AddItemResult struct {
	Added   bool             `json:"added"`
	Item    string           `json:"item,omitempty"`
	Profile profile.Snapshot `json:"profile"`
	Notice  *Notice          `json:"notice,omitempty"`
}

// RemoveItemCommand removes an entry by exact match
type RemoveItemCommand struct {
	Owner    Owner
	Category profile.Category
	Item     string
}

// ProfileService manages per-owner profiles with best-effort remote
// persistence.
type ProfileService interface {
	Get(ctx context.Context, owner Owner) profile.Snapshot
	Add(ctx context.Context, cmd AddItemCommand) (*AddItemResult, error)
	Remove(ctx context.Context, cmd RemoveItemCommand) (profile.Snapshot, error)
	Replace(ctx context.Context, owner Owner, snapshot profile.Snapshot) (profile.Snapshot, error)
	Attach(ctx context.Context, owner Owner) (profile.Snapshot, error)
	Notices(owner Owner) []Notice
	RemoteEnabled() bool
}
