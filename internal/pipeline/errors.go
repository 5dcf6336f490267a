package pipeline

import "errors"

var (
	ErrEmptyName    = errors.New("student name is empty")
	ErrInvalidPhone = errors.New("phone must contain 7 to 15 digits")
	ErrInvalidCode  = errors.New("student code must be alphanumeric")
	ErrDuplicate    = errors.New("student already registered")
)
