package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrServiceNotFound     = errors.New("service not found")
	ErrServiceInactive     = errors.New("service inactive")
	ErrJobInFlight         = errors.New("job is still pending or processing")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrArtifactMissing     = errors.New("source artifact missing")
	ErrAccountDisabled     = errors.New("account disabled")
)
