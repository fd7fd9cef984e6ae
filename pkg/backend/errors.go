package backend

import "errors"

var (
	// ErrUnavailable marks a request that could not be completed: connection refused,
	// timeout, DNS failure, protocol error, or an undecodable JSON body.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrUnexpectedResponse marks a reply that arrived but did not have the expected shape.
	ErrUnexpectedResponse = errors.New("unexpected backend response")

	// ErrUnsupportedMethod is returned for HTTP methods other than GET, POST, PATCH and DELETE.
	ErrUnsupportedMethod = errors.New("unsupported method")
)
