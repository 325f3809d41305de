package domain

import "errors"

var (
	ErrNotFound      = errors.New("item not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrUnknownStatus = errors.New("unknown pledge status")
)
