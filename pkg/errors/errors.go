package errors

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrLoginExists        = errors.New("login already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrLockTimeout        = errors.New("balance lock timeout")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("no authenticated principal")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
)
