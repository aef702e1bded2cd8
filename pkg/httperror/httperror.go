// Package httperror describes failed HTTP requests against the storage backend.
package httperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorData is the serializable form of an HTTPError. It is what crosses
// the worker boundary.
type ErrorData struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	XReqID     string `json:"xReqId"`
}

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	Message    string
	StatusCode int
	// XReqID is the server's request correlation id, if any.
	XReqID string
}

// New reconstructs an HTTPError from its serialized data.
func New(data ErrorData) *HTTPError {
	msg := data.Message
	if msg == "" && data.StatusCode != 0 {
		msg = http.StatusText(data.StatusCode)
	}
	return &HTTPError{
		Message:    msg,
		StatusCode: data.StatusCode,
		XReqID:     data.XReqID,
	}
}

func (e *HTTPError) Error() string {
	if e.XReqID != "" {
		return fmt.Sprintf("%s (status %d, x-request-id %s)", e.Message, e.StatusCode, e.XReqID)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Data returns the serializable form of e.
func (e *HTTPError) Data() ErrorData {
	return ErrorData{Message: e.Message, StatusCode: e.StatusCode, XReqID: e.XReqID}
}

// As checks if err wraps an HTTPError and returns it.
func As(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// DataFromError converts any error into ErrorData. Errors that are not
// HTTP errors keep their message and a zero status code.
func DataFromError(err error) ErrorData {
	if he, ok := As(err); ok {
		return he.Data()
	}
	return ErrorData{Message: err.Error()}
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	he, ok := As(err)
	return ok && he.StatusCode == http.StatusNotFound
}
