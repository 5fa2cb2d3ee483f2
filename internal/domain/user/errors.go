package user

import "errors"

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken indicates sign-up with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput indicates invalid input for account operations.
	ErrInvalidInput = errors.New("invalid account input")
	// ErrInvalidSession indicates a missing, malformed, or expired session
	// token.
	ErrInvalidSession = errors.New("invalid session")
)
