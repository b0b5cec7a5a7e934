package secret

import "errors"

var (
	// ErrProviderNotFound indicates a reference names an unknown provider.
	ErrProviderNotFound = errors.New("secret: provider not found")

	// ErrMissingEnv indicates ${VAR} expansion hit an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrEmptySecret indicates a strict resolver got an empty value.
	ErrEmptySecret = errors.New("secret: empty value")

	// ErrInvalidRef indicates a malformed or unsafe reference.
	ErrInvalidRef = errors.New("secret: invalid reference")
)
