package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrQueryUnavailable   = errors.New("no relational reader configured")
	ErrPublishUnavailable = errors.New("no stream publisher configured")
	ErrUnknownSink        = errors.New("unknown sink")
	ErrUnhealthy          = errors.New("unhealthy sinks")
	ErrUnknownStreamKind  = errors.New("unknown stream kind")
)
