package store

import "errors"

// Sentinel kinds for battle and rating persistence.
var (
	ErrSessionNotFound = errors.New("battle session not found")
	ErrAlreadyResolved = errors.New("battle session already resolved")
	ErrPoolExhausted   = errors.New("fewer than two candidate models available")
)
