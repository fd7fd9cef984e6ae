// Package relay runs one conversational turn against the backend.
//
// Invariants:
// - Submission never mutates the session directory.
// - Rendering is pure: the same reply always yields the same display text.
// - Displayed text never exceeds the limit plus the truncation marker.
// - Failures come back as tagged Results; the adapter never sees a panic or a bare error.
//
// Usage:
//
//	svc := relay.NewService(dir, relay.New(client, relay.Options{}, log), client, relay.ServiceOptions{}, log)
//	res := svc.HandleMessage(ctx, "42", "hi")
//	if res.Outcome == relay.OutcomeSuccess {
//		fmt.Println(res.Text)
//	}
package relay
