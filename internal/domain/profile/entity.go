// Package profile defines the health profile aggregate: three ordered,
// case-insensitively unique lists of allergies, medications and conditions.
package profile

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/healthharmony/assistant/internal/domain/shared"
)

const maxItemLength = 200

// Snapshot is the plain value form of a profile used for prompts, storage
// and the API.
type Snapshot struct {
	Allergies   []string `json:"allergies"`
	Medications []string `json:"medications"`
	Conditions  []string `json:"conditions"`
}

// Items returns the list for a category
func (s Snapshot) Items(c Category) []string {
	switch c {
	case CategoryAllergies:
		return s.Allergies
	case CategoryMedications:
		return s.Medications
	case CategoryConditions:
		return s.Conditions
	}
	return nil
}

// IsEmpty reports whether all three lists are empty
func (s Snapshot) IsEmpty() bool {
	return len(s.Allergies) == 0 && len(s.Medications) == 0 && len(s.Conditions) == 0
}

// DefaultSnapshot is the example profile offered to new sessions when
// seeding is enabled.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Allergies:   []string{"Peanuts"},
		Medications: []string{"Aspirin", "Lisinopril 10mg"},
		Conditions:  []string{"High Blood Pressure"},
	}
}

// Profile is the mutable aggregate
type Profile struct {
	shared.AggregateRoot

	lists     map[Category][]string
	version   int64
	updatedAt time.Time
}

// New creates an empty profile
func New() *Profile {
	return &Profile{
		lists:     make(map[Category][]string, len(Categories)),
		updatedAt: time.Now(),
	}
}

// FromSnapshot rebuilds a profile, dropping blank entries and
// case-insensitive duplicates while keeping first-seen order.
func FromSnapshot(s Snapshot) *Profile {
	p := New()
	for _, c := range Categories {
		for _, item := range s.Items(c) {
			normalized, err := NormalizeItem(item)
			if err != nil || p.Contains(c, normalized) {
				continue
			}
			p.lists[c] = append(p.lists[c], normalized)
		}
	}
	return p
}

// NormalizeItem trims an item and checks its length
func NormalizeItem(item string) (string, error) {
	trimmed := strings.TrimSpace(item)
	if trimmed == "" {
		return "", ErrEmptyItem
	}
	if utf8.RuneCountInString(trimmed) > maxItemLength {
		return "", ErrItemTooLong
	}
	return trimmed, nil
}

// Contains reports whether item is already in the list, ignoring case
func (p *Profile) Contains(c Category, item string) bool {
	needle := strings.TrimSpace(item)
	for _, existing := range p.lists[c] {
		if strings.EqualFold(existing, needle) {
			return true
		}
	}
	return false
}

// Add appends a trimmed item. It returns the stored form of the item.
func (p *Profile) Add(c Category, item string) (string, error) {
	if !c.IsValid() {
		return "", ErrUnknownCategory
	}
	normalized, err := NormalizeItem(item)
	if err != nil {
		return "", err
	}
	if p.Contains(c, normalized) {
		return "", ErrDuplicateItem
	}

	p.lists[c] = append(p.lists[c], normalized)
	p.touch()
	p.AddEvent(ItemAddedEvent{Category: c, Item: normalized, AddedAt: p.updatedAt})
	return normalized, nil
}

// Remove deletes the item that matches exactly. It reports whether
// anything was removed.
func (p *Profile) Remove(c Category, item string) bool {
	list := p.lists[c]
	for i, existing := range list {
		if existing != item {
			continue
		}
		p.lists[c] = append(list[:i:i], list[i+1:]...)
		p.touch()
		p.AddEvent(ItemRemovedEvent{Category: c, Item: item, RemovedAt: p.updatedAt})
		return true
	}
	return false
}

// Replace overwrites every list with the normalized contents of s
func (p *Profile) Replace(s Snapshot) {
	next := FromSnapshot(s)
	p.lists = next.lists
	p.touch()

	total := 0
	for _, c := range Categories {
		total += len(p.lists[c])
	}
	p.AddEvent(ProfileReplacedEvent{Items: total, ReplacedAt: p.updatedAt})
}

// Items returns a copy of the list for a category
func (p *Profile) Items(c Category) []string {
	out := make([]string, len(p.lists[c]))
	copy(out, p.lists[c])
	return out
}

// Snapshot returns a copy of all lists
func (p *Profile) Snapshot() Snapshot {
	return Snapshot{
		Allergies:   p.Items(CategoryAllergies),
		Medications: p.Items(CategoryMedications),
		Conditions:  p.Items(CategoryConditions),
	}
}

// Version increases on every mutation
func (p *Profile) Version() int64 {
	return p.version
}

// UpdatedAt returns when the profile last changed
func (p *Profile) UpdatedAt() time.Time {
	return p.updatedAt
}

func (p *Profile) touch() {
	p.version++
	p.updatedAt = time.Now()
}
