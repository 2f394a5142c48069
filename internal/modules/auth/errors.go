package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrPendingApproval    = errors.New("membership pending approval")
	ErrBlocked            = errors.New("membership blocked")
)
