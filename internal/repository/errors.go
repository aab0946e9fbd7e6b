package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned for status writes that would reopen a
	// closed lead. closed is terminal.
	ErrClosed = errors.New("lead is closed")
)
