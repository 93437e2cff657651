package registry

import "errors"

// Config errors are returned synchronously to the admin caller and never
// retried automatically.
var (
	ErrDuplicateKey      = errors.New("factor key already exists")
	ErrInvalidWeight     = errors.New("factor weight must be >= 0")
	ErrInvalidFactorType = errors.New("unknown factor type")
	ErrFactorNotFound    = errors.New("factor not found")
	ErrPresetNotFound    = errors.New("preset not found")
)
