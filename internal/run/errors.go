package run

import "errors"

var (
	ErrRunNotFound = errors.New("run not found")
	ErrBusy        = errors.New("a run is already in progress")
)
