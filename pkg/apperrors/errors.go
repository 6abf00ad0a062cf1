package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrMaterialNotFound    = errors.New("material class not in lookup table")
	ErrThreadPitchNotFound = errors.New("thread designation not in pitch table")
	ErrEmptyReconciliation = errors.New("no reconciled features to estimate")
)
