package profile

import "errors"

var (
	ErrUnknownCategory = errors.New("category must be one of allergies, medications, conditions")
	ErrEmptyItem       = errors.New("item must not be empty")
	ErrItemTooLong     = errors.New("item must not exceed 200 characters")
	ErrDuplicateItem   = errors.New("item already exists in this list")
)
