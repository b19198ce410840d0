package profile

import "time"

// ItemAddedEvent is raised when an item is appended to a list
type ItemAddedEvent struct {
	Category Category
	Item     string
	AddedAt  time.Time
}

func (e ItemAddedEvent) EventName() string {
	return "profile.item.added"
}

func (e ItemAddedEvent) OccurredAt() time.Time {
	return e.AddedAt
}

// ItemRemovedEvent is raised when an item is removed from a list
type ItemRemovedEvent struct {
	Category  Category
	Item      string
	RemovedAt time.Time
}

func (e ItemRemovedEvent) EventName() string {
	return "profile.item.removed"
}

func (e ItemRemovedEvent) OccurredAt() time.Time {
	return e.RemovedAt
}

// ProfileReplacedEvent is raised when all lists are overwritten at once
type ProfileReplacedEvent struct {
	Items      int
	ReplacedAt time.Time
}

func (e ProfileReplacedEvent) EventName() string {
	return "profile.replaced"
}

func (e ProfileReplacedEvent) OccurredAt() time.Time {
	return e.ReplacedAt
}
