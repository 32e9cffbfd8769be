package config

import "errors"

var (
	// ErrRead indicates the configuration source could not be read.
	ErrRead = errors.New("config: read failed")

	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("config: missing environment variable")

	// ErrInvalid indicates a configuration value violates a constraint.
	ErrInvalid = errors.New("config: invalid configuration")
)
