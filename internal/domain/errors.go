package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyResolved = errors.New("position already resolved")
	ErrStaleQuote      = errors.New("quote is stale")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRateLimited     = errors.New("rate limited")
	ErrCorruptLedger   = errors.New("ledger file is corrupt")
	ErrSigningFailed   = errors.New("signing failed")
)
