// Package apierror defines the error type used for non-success HTTP statuses,
// both for responses received from the imagery service and for responses this
// service writes to its own clients.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxBodyText limits how much of a response body is kept as error text.
const maxBodyText = 256

// Error is an error carrying an HTTP status code and, for outbound requests,
// the name of the endpoint that answered with it.
type Error struct {
	err      error
	status   int
	endpoint string
}

// ErrorMessage is the JSON body written for an error response.
type ErrorMessage struct {
	Message string `json:",omitempty"`
	Status  int    `json:",omitempty"`
}

var serverError []byte

func init() {
	// Make sure there is always an error to return in case encoding fails
	e := ErrorMessage{
		Message: http.StatusText(http.StatusInternalServerError),
		Status:  http.StatusInternalServerError,
	}

	eb, err := json.Marshal(&e)
	if err != nil {
		panic(err)
	}
	serverError = eb
}

// New creates an Error from err and an HTTP status.
func New(err error, status int) *Error {
	return &Error{
		err:    err,
		status: status,
	}
}

// FromResponse creates an Error for a non-success response received from the
// named endpoint. The trimmed body, if any, becomes the error text.
func FromResponse(endpoint string, status int, body []byte) error {
	var err error
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyText {
		text = text[:maxBodyText] + "..."
	}
	if text != "" {
		err = errors.New(text)
	}
	return &Error{
		err:      err,
		status:   status,
		endpoint: endpoint,
	}
}

func (e *Error) Error() string {
	if e.endpoint != "" {
		return e.endpoint + ": " + e.Text()
	}
	if e.err != nil {
		return e.err.Error()
	}
	if e.status == 0 {
		return ""
	}
	return statusText(e.status)
}

// Status returns the HTTP status code.
func (e *Error) Status() int {
	return e.status
}

// Endpoint returns the name of the remote endpoint, or an empty string for
// errors created by this service.
func (e *Error) Endpoint() string {
	return e.endpoint
}

// Temporary reports whether the status indicates a condition that may go away
// on its own, such as a timeout, throttling or a server-side failure.
func (e *Error) Temporary() bool {
	switch e.status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.status >= http.StatusInternalServerError
}

// Text returns the status and error text, e.g. "404 Not Found: no such place".
func (e *Error) Text() string {
	parts := make([]string, 0, 3)
	if e.status != 0 {
		parts = append(parts, statusText(e.status))
	}
	if e.err != nil {
		if len(parts) != 0 {
			parts = append(parts, ": ")
		}
		parts = append(parts, e.err.Error())
	}
	return strings.Join(parts, "")
}

func (e *Error) Unwrap() error {
	return e.err
}

// HasStatus reports whether err wraps an *Error with the given status.
func HasStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.status == status
}

// EncodeError returns the JSON encoding of err. Errors that are not *Error
// are encoded without a status.
func EncodeError(err error) []byte {
	if err == nil {
		return nil
	}

	e := ErrorMessage{
		Message: err.Error(),
	}
	var apierr *Error
	if errors.As(err, &apierr) {
		e.Status = apierr.Status()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return serverError
	}
	return data
}

// DecodeError decodes an error encoded by EncodeError.
func DecodeError(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var e ErrorMessage
	err := json.Unmarshal(data, &e)
	if err != nil {
		return fmt.Errorf("cannot decode error message: %s", err)
	}

	err = errors.New(e.Message)
	if e.Status == 0 {
		return err
	}
	return New(err, e.Status)
}

// Write writes err to w as a JSON error body. The response status is taken
// from err when it is an *Error, otherwise it is 500.
func Write(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apierr *Error
	if errors.As(err, &apierr) && apierr.status != 0 {
		status = apierr.status
	} else {
		err = New(err, status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	w.Write(EncodeError(err))
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d %s", status, text)
	}
	return fmt.Sprintf("%d", status)
}
