package workflow

import "errors"

var (
	ErrNoBlueprints     = errors.New("project offers no blueprints")
	ErrBlueprintIndex   = errors.New("blueprint index out of range")
	ErrNotEligible      = errors.New("datetime column is not eligible for the series columns")
	ErrUnknownMatchMode = errors.New("unknown parameter match mode")
)
