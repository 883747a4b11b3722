package domain

import "errors"

var (
	ErrProviderNotFound = errors.New("provider_not_found")
)
