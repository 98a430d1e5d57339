// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package wordpress

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the remote CMS, carrying the decoded
// error envelope when the body was parseable.
type APIError struct {
	StatusCode int
	Code       string // remote error code, e.g. "term_exists", "rest_invalid_param"
	Message    string
	TermID     int64 // populated for term_exists duplicates
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wordpress: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("wordpress: HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsDuplicateTerm reports whether the error is the remote's duplicate-term
// rejection, which a concurrent find-or-create treats as success.
func (e *APIError) IsDuplicateTerm() bool {
	return e.Code == "term_exists"
}

// RetryableStatus reports whether an HTTP status indicates a transient
// failure. Client errors are permanent except 408 Request Timeout and
// 429 Too Many Requests.
func RetryableStatus(code int) bool {
	if code >= 500 {
		return true
	}
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// Retryable classifies an error from a remote call. Network-level failures
// (timeouts, connection resets) are retryable; API errors follow their
// status code.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return RetryableStatus(apiErr.StatusCode)
	}
	return true
}

// errorFromBody builds an APIError from a non-2xx response body. The remote
// error envelope is {"code": ..., "message": ..., "data": {"status": ...,
// "term_id": ...}}; unparseable bodies still yield a status-only error.
func errorFromBody(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Data    struct {
			TermID int64 `json:"term_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		apiErr.TermID = envelope.Data.TermID
	}
	return apiErr
}
