package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrRender      = errors.New("render report")
	ErrOutputName  = errors.New("invalid output name")
	ErrWriteOutput = errors.New("write step output")
)
