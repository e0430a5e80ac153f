// Package registry talks to the module registry over its JSON API.
//
// Every response body is an envelope holding exactly one of two variants:
//
//	{"success": <payload>}
//	{"error": "<message>"}
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type WhoamiResponse struct {
	User string `json:"user"`
}

type PublishRequest struct {
	Code string `json:"code"`
}

type PublishResponse struct {
	Author  string `json:"author"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type DownloadResponse struct {
	Author  string `json:"author"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Code    string `json:"code"`
}

// ModuleInfoResponse describes a module. Latest is nil when no version has
// been published.
type ModuleInfoResponse struct {
	Author      string  `json:"author"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latest      *string `json:"latest"`
}

type SearchResult struct {
	Author      string `json:"author"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Latest      string `json:"latest"`
	Downloads   int64  `json:"downloads"`
	Featured    bool   `json:"featured"`
}

func (r SearchResult) Canonical() string {
	return r.Author + "/" + r.Name
}

// APIError is a failure reported by the registry in the error variant.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned error: %q", e.Message)
}

// EnvelopeError means a body could not be read as an envelope. Status is the
// HTTP status when the body came from a response, zero otherwise.
type EnvelopeError struct {
	Status int
	Detail string
	Cause  error
}

func (e *EnvelopeError) Error() string {
	msg := "malformed api response: " + e.Detail
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (http status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *EnvelopeError) Unwrap() error {
	return e.Cause
}

// Envelope carries either a success payload or an error message. IsError
// selects the variant.
type Envelope[T any] struct {
	Success T
	Err     string
	IsError bool
}

func Success[T any](v T) Envelope[T] {
	return Envelope[T]{Success: v}
}

func Failure[T any](msg string) Envelope[T] {
	return Envelope[T]{Err: msg, IsError: true}
}

// Result returns the payload, or an *APIError for the error variant.
func (e Envelope[T]) Result() (T, error) {
	if e.IsError {
		var zero T
		return zero, &APIError{Message: e.Err}
	}
	return e.Success, nil
}

func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	if e.IsError {
		return json.Marshal(map[string]string{"error": e.Err})
	}
	return json.Marshal(map[string]T{"success": e.Success})
}

func (e *Envelope[T]) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &EnvelopeError{Detail: "expected an object", Cause: err}
	}
	if fields == nil {
		return &EnvelopeError{Detail: "expected an object, got null"}
	}
	if len(fields) != 1 {
		return &EnvelopeError{Detail: fmt.Sprintf("expected exactly one of success or error, got %d keys", len(fields))}
	}

	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return &EnvelopeError{Detail: "error variant must be a string", Cause: err}
		}
		*e = Failure[T](msg)
		return nil
	}

	raw, ok := fields["success"]
	if !ok {
		return &EnvelopeError{Detail: "expected success or error variant"}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return &EnvelopeError{Detail: "invalid success payload", Cause: err}
	}
	*e = Success(v)
	return nil
}

// Decode reads an envelope from body and returns its payload. status is
// recorded on envelope errors.
func Decode[T any](status int, body []byte) (T, error) {
	var env Envelope[T]
	if len(bytes.TrimSpace(body)) == 0 {
		var zero T
		return zero, &EnvelopeError{Status: status, Detail: "empty body"}
	}
	if err := json.Unmarshal(body, &env); err != nil {
		var zero T
		var ee *EnvelopeError
		if errors.As(err, &ee) {
			ee.Status = status
			return zero, ee
		}
		return zero, &EnvelopeError{Status: status, Detail: "invalid json", Cause: err}
	}
	return env.Result()
}
