// Package session maps chat participants to backend sessions.
//
// Invariants:
// - At most one entry per participant; ForceNew replaces, never appends.
// - A cached entry is returned without any backend call.
// - A failed lookup or creation never writes an entry.
// - Concurrent resolves for one participant share a single backend round trip.
//
// Usage:
//
//	dir := session.NewDirectory(client, session.Options{TitlePrefix: "Telegram User"}, log)
//	res, err := dir.ResolveOrCreate(ctx, "42")
//	_ = res.SessionID
package session
