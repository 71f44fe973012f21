package store

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrAlreadyCompleted = errors.New("resource already completed")
	ErrUnknownCategory  = errors.New("unknown category")
)
