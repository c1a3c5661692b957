// Package memory stores free-text facts per user in sqlite and retrieves them
// with hybrid semantic + keyword search.
//
// Invariants:
// - Records are scoped by user id; retrieval and deletion never cross users.
// - Memory is shared across all of a user's conversations and survives restarts.
// - A missing embedding backend degrades retrieval to keyword search, never to failure.
//
// Usage:
//
//	mgr, _ := memory.NewManager(memory.Config{DBPath: "/tmp/hearth/memory.db"})
//	defer mgr.Close()
//	_, _ = mgr.Store(ctx, "alice", "Prefers the thermostat at 21 degrees")
//	records, _ := mgr.Retrieve(ctx, "alice", "thermostat", 5)
//	_ = records
package memory
