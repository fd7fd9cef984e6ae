// Package backend is the HTTP client for the remote conversational backend.
//
// Invariants:
// - Transport failures never panic or escape as anything but an error wrapping ErrUnavailable.
// - A reply that arrives but has the wrong shape is reported as ErrUnexpectedResponse.
// - Non-2xx statuses are not transport failures; the body is returned and shape checks decide.
// - No retries are performed here.
//
// Usage:
//
//	client, err := backend.New(backend.Config{BaseURL: "http://localhost:4096"}, log)
//	reply, err := client.SendMessage(ctx, sessionID, "hello")
package backend
