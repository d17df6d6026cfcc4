package session

import "errors"

var (
	// ErrNotReady is returned synchronously when a send is attempted before
	// the authentication handshake has completed. The caller keeps the
	// composed content and may resubmit after reconnecting.
	ErrNotReady = errors.New("connection not ready")

	// ErrOpenInFlight guards the one-attempt-per-document constraint.
	ErrOpenInFlight = errors.New("connection open already in flight")

	// ErrAlreadyOpen is returned when Open is called on a live connection.
	ErrAlreadyOpen = errors.New("connection already open")

	// ErrAuthRejected is an explicit auth_failed from the server. Fatal for
	// the session; never retried.
	ErrAuthRejected = errors.New("authentication rejected")

	ErrEmptyContent   = errors.New("comment content must not be empty")
	ErrUnknownComment = errors.New("unknown comment id")
	ErrNotOpen        = errors.New("comment is not open")

	// ErrMalformedComment flags a store mutation missing required fields.
	// Programmer-error level: callers validate inbound payloads first.
	ErrMalformedComment = errors.New("malformed comment")
)
