package profile

import "strings"

// Category identifies one of the three profile lists
type Category string

const (
	CategoryAllergies   Category = "allergies"
	CategoryMedications Category = "medications"
	CategoryConditions  Category = "conditions"
)

// Categories lists every category in display order
var Categories = []Category{CategoryAllergies, CategoryMedications, CategoryConditions}

// ParseCategory parses a category name, ignoring case and surrounding space
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if !c.IsValid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	switch c {
	case CategoryAllergies, CategoryMedications, CategoryConditions:
		return true
	}
	return false
}

// Title is the heading shown above the list
func (c Category) Title() string {
	switch c {
	case CategoryAllergies:
		return "Allergies"
	case CategoryMedications:
		return "Current Medications"
	case CategoryConditions:
		return "Medical Conditions"
	}
	return string(c)
}

// EmptyText is rendered when the list has no items
func (c Category) EmptyText() string {
	return "No " + strings.ToLower(c.Title()) + " added yet."
}

func (c Category) String() string {
	return string(c)
}
