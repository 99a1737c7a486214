package attestation

import "fmt"

// ErrorResponse represents an oracle API error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("attestation API error [%d]: %s (code: %s)", e.StatusCode, e.Message, e.Code)
}

func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == 404
}

// errNotReady marks a poll result that is not an error, just not yet
// available: a 404, a pending sentinel, or a malformed interim payload
var errNotReady = fmt.Errorf("attestation not ready")
