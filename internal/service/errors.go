package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrValidation marks bad or missing input. Nothing was persisted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the id does not resolve or belongs to another user.
	ErrNotFound = errors.New("not found")

	ErrReminderExists = errors.New("reminder already exists")
	ErrReminderInPast = errors.New("reminder time has passed")
	ErrNotRecurring   = errors.New("task is not recurring")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound maps gorm's missing-record error to ErrNotFound and wraps anything else.
func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("find %s: %w", what, err)
}
