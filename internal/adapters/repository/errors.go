package repository

import "errors"

// Sentinel kinds for relational store errors.
var (
	ErrUnknownDriver = errors.New("unknown relational driver")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrEncodeSignal  = errors.New("encode signal row")
)
