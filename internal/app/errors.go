package service

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrNotStarted is returned by operations that need Start to have run.
	ErrNotStarted = errors.New("service not started")
	// ErrBackpressure is returned by Submit when the reading queue is full.
	ErrBackpressure = errors.New("reading queue full")
)
