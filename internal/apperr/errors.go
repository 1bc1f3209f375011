// Package apperr holds the sentinel errors shared across vizbase packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidKey    = errors.New("invalid artifact key")
	ErrDecode        = errors.New("decode error")
	ErrIO            = errors.New("io error")
)
