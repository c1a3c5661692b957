// Package session persists conversation transcripts as append-only JSONL files.
//
// Invariants:
// - One transcript exists per user; user ids are sanitized into path-safe names.
// - Only user text and final assistant text are persisted, never tool traffic.
// - Cache management drops in-process handles only; transcript files stay on disk.
//
// Usage:
//
//	store, _ := session.NewStore("/tmp/hearth/sessions")
//	sess, _ := store.GetOrCreate("alice")
//	_ = sess.Append("user", "hello")
//	msgs := sess.Messages(40)
//	_ = msgs
package session
