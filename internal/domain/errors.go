package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPipeline    = errors.New("invalid pipeline")
	ErrInvalidColor       = errors.New("invalid color")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrInvalidProbability = errors.New("invalid probability")
	ErrStageNotFound      = errors.New("stage not found")
	ErrDuplicateStage     = errors.New("duplicate stage")
)
