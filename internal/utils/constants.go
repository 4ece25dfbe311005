package utils

import "time"

const (
	AppName = "sosguard"

	StatusSuccess = "success"
	StatusError   = "error"

	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrUnauthorized     = "Unauthorized"
	ErrForbidden        = "Forbidden"

	DefaultPageSize = 20
	MinPageSize     = 1
	MaxPageSize     = 100

	JWTAccessTokenTTL = 24 * time.Hour

	DefaultCountryCode = "+1"
)
