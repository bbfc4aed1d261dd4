package errors

import "errors"

var (
	ErrNotFound = errors.New("partner not found")

	ErrNoMatch = errors.New("no available partner matched")
)
