package domain

import "errors"

var (
	ErrUnknownFlow         = errors.New("unknown flow")
	ErrUnknownOutputFormat = errors.New("unknown output format")
	ErrMissingGarmentType  = errors.New("garment type is required")
	ErrMissingAttachment   = errors.New("required image is missing")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrThrottled           = errors.New("submitted too soon after the previous attempt")
	ErrInFlight            = errors.New("a submission is already in flight")
)
