package service

import "errors"

// Sentinel kinds for run errors.
var (
	ErrNoPlatform  = errors.New("no platform configured")
	ErrNoEndpoints = errors.New("no endpoints to evaluate")
	ErrPoll        = errors.New("execution polling failed")
)
