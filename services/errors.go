package services

import "errors"

// Sentinel errors shared by the domain services. Controllers map these to
// HTTP status codes with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
)
