package apperror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType identifies the category of error
type ErrorType string

const (
	TypeValidation     ErrorType = "validation_error"
	TypeAuthentication ErrorType = "authentication_error"
	TypeAuthorization  ErrorType = "authorization_error"
	TypeNotFound       ErrorType = "not_found"
	TypeConflict       ErrorType = "conflict"
	TypeGone           ErrorType = "gone"
	TypeRateLimit      ErrorType = "rate_limit_exceeded"
	TypeBadGateway     ErrorType = "bad_gateway"
	TypeInternal       ErrorType = "internal_error"
)

const typeBase = "https://chainguard.app/errors/"

// AppError represents RFC 7807 Problem Details
type AppError struct {
	Type       string                 `json:"type"`
	Title      string                 `json:"title"`
	Status     int                    `json:"status"`
	Detail     string                 `json:"detail"`
	Instance   string                 `json:"instance,omitempty"`
	Action     string                 `json:"action,omitempty"`
	Errors     map[string]string      `json:"errors,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Extensions map[string]interface{} `json:"-"` // flattened into the body
	err        error                  // internal error for logging
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Title, e.err)
	}
	return e.Title
}

func (e *AppError) Unwrap() error {
	return e.err
}

func (e *AppError) WithError(err error) *AppError {
	e.err = err
	return e
}

func (e *AppError) WithRequestID(id string) *AppError {
	e.RequestID = id
	return e
}

func (e *AppError) WithErrors(errs map[string]string) *AppError {
	e.Errors = errs
	return e
}

func (e *AppError) WithInstance(instance string) *AppError {
	e.Instance = instance
	return e
}

// WithExtension adds an RFC 7807 extension member. Standard members win on collision.
func (e *AppError) WithExtension(key string, value interface{}) *AppError {
	if e.Extensions == nil {
		e.Extensions = make(map[string]interface{})
	}
	e.Extensions[key] = value
	return e
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	type problem AppError
	base, err := json.Marshal((*problem)(e))
	if err != nil || len(e.Extensions) == 0 {
		return base, err
	}

	body := make(map[string]interface{}, len(e.Extensions)+8)
	for k, v := range e.Extensions {
		body[k] = v
	}
	var std map[string]interface{}
	if err := json.Unmarshal(base, &std); err != nil {
		return nil, err
	}
	for k, v := range std {
		body[k] = v
	}
	return json.Marshal(body)
}

func newError(kind string, title string, status int, detail, action string) *AppError {
	return &AppError{
		Type:   typeBase + kind,
		Title:  title,
		Status: status,
		Detail: detail,
		Action: action,
	}
}

func ValidationError(detail, action string) *AppError {
	return newError("validation", "Invalid request", http.StatusBadRequest, detail, action)
}

func AuthenticationError(detail, action string) *AppError {
	return newError("authentication", "Authentication failed", http.StatusUnauthorized, detail, action)
}

func AuthorizationError(detail, action string) *AppError {
	return newError("authorization", "Access denied", http.StatusForbidden, detail, action)
}

func NotFoundError(resource string) *AppError {
	return newError("not-found", "Not found", http.StatusNotFound,
		fmt.Sprintf("No %s found", resource),
		"Check the request and try again")
}

func ConflictError(detail, action string) *AppError {
	return newError("conflict", "Conflict", http.StatusConflict, detail, action)
}

// GoneError is used for resources that existed but can no longer be used.
func GoneError(detail, action string) *AppError {
	return newError("gone", "Gone", http.StatusGone, detail, action)
}

func RateLimitError() *AppError {
	return newError("rate-limit", "Too many requests", http.StatusTooManyRequests,
		"Too many requests from this client in a short time",
		"Wait a moment and try again")
}

// BadGatewayError reports a failed call to an upstream provider (SMTP, SMS).
func BadGatewayError(detail, action string) *AppError {
	return newError("bad-gateway", "Upstream delivery failed", http.StatusBadGateway, detail, action)
}

func InternalError(detail, action string) *AppError {
	return newError("internal", "Internal server error", http.StatusInternalServerError, detail, action)
}

func ServiceUnavailableError(detail, action string) *AppError {
	return newError("service-unavailable", "Service unavailable", http.StatusServiceUnavailable, detail, action)
}
