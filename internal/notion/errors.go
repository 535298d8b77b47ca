package notion

import (
	"errors"
	"fmt"
)

// Error codes returned by the Notion API.
const (
	CodeObjectNotFound     = "object_not_found"
	CodeUnauthorized       = "unauthorized"
	CodeRestricted         = "restricted_resource"
	CodeRateLimited        = "rate_limited"
	CodeValidation         = "validation_error"
	CodeInternalError      = "internal_server_error"
	CodeServiceUnavailable = "service_unavailable"
	codeUnexpectedResponse = "unexpected_response"
)

type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notion api: %d %s", e.Status, e.Code)
	}

	return fmt.Sprintf("notion api: %d %s: %s", e.Status, e.Code, e.Message)
}

func HasCode(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == code
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeObjectNotFound)
}

func IsRateLimited(err error) bool {
	return HasCode(err, CodeRateLimited)
}
