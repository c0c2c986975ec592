// Package goerror carries the outcome of a failed request from the use case to
// the HTTP envelope: a client-visible status name, a message and an HTTP code.
package goerror

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned by stores on a uniqueness violation.
	ErrConflict = errors.New("resource conflict")
)

// Type classifies who is at fault.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

// Code selects the HTTP status of an error.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	// CodeBadRequest is a well-formed request the domain rejected, e.g. an
	// expired or mismatched OTP.
	CodeBadRequest
	CodeConflict
	CodeForbidden
)

var httpStatus = map[Code]int{
	CodeInvalidFormat: http.StatusBadRequest,
	CodeInvalidInput:  http.StatusBadRequest,
	CodeBadRequest:    http.StatusBadRequest,
	CodeConflict:      http.StatusConflict,
	CodeForbidden:     http.StatusForbidden,
}

// Error wraps an optional cause with what the client is told about it.
type Error struct {
	err     error
	msg     string
	status  string
	errType Type
	code    Code
	fields  map[string]string
}

type Option func(*Error)

// WithStatus sets the client-visible status name, e.g. "Expired".
func WithStatus(status string) Option {
	return func(e *Error) { e.status = status }
}

// WithMessage overrides the client-visible message.
func WithMessage(msg string) Option {
	return func(e *Error) { e.msg = msg }
}

// Error reports the cause when there is one, so logs keep the detail the
// client does not see.
func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.msg == "" {
		return e.Status()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Msg() string { return e.msg }

func (e *Error) Code() Code { return e.code }

func (e *Error) Fields() map[string]string { return e.fields }

// Status is the explicit status, or one derived from the type and code.
func (e *Error) Status() string {
	if e.status != "" {
		return e.status
	}
	switch {
	case e.errType == TypeValidation:
		return "InvalidRequest"
	case e.errType == TypeServer:
		return "InternalError"
	case e.code == CodeConflict:
		return "Conflict"
	case e.code == CodeForbidden:
		return "Unauthorized"
	default:
		return "Rejected"
	}
}

func (e *Error) StatusCode() int {
	if code, ok := httpStatus[e.code]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func build(err error, msg string, t Type, code Code, opts []Option) *Error {
	e := &Error{err: err, msg: msg, errType: t, code: code}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewServer hides err behind a generic 500 message.
func NewServer(err error, opts ...Option) error {
	return build(err, "Internal server error", TypeServer, CodeInternal, opts)
}

// NewBusiness rejects a request for a domain reason.
func NewBusiness(msg string, code Code, opts ...Option) error {
	return build(nil, msg, TypeBusiness, code, opts)
}

// NewInvalidInput wraps a validator error, or when err is nil builds one from
// field/message pairs. An odd number of pairs is reported as a format error.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return build(err, "Validation error", TypeValidation, CodeInvalidInput, nil)
	}
	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	e := build(nil, "Validation error", TypeValidation, CodeInvalidInput, nil)
	e.fields = make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		e.fields[kv[i]] = kv[i+1]
	}
	return e
}

// NewInvalidFormat reports a body that could not be decoded.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return build(nil, msg, TypeValidation, CodeInvalidFormat, nil)
}

// Reshape returns a copy of err with opts applied, or err unchanged when it
// is not an *Error.
func Reshape(err error, opts ...Option) error {
	var gerr *Error
	if !errors.As(err, &gerr) {
		return err
	}

	cp := *gerr
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// StatusOf is the status a client would see for err; "" for nil.
func StatusOf(err error) string {
	if err == nil {
		return ""
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Status()
	}
	return "InternalError"
}
