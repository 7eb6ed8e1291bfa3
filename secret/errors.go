package secret

import "errors"

var (
	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrProviderNotRegistered indicates a reference to an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrInvalidRef indicates an empty or malformed secret reference.
	ErrInvalidRef = errors.New("secret: invalid secret reference")

	// ErrEmptySecret indicates a provider returned an empty value in strict mode.
	ErrEmptySecret = errors.New("secret: provider returned empty value")

	// ErrSecretNotFound indicates the referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret: not found")
)
