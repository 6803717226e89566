package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound      = errors.New("not found")
	ErrStageInUse    = errors.New("stage still holds items")
	ErrNoStages      = errors.New("pipeline needs at least one stage")
	ErrInvalidImport = errors.New("invalid import")
)
