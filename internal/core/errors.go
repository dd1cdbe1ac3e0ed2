package core

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrUpgradeRequired = errors.New("upgrade required")
)
