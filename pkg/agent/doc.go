// Package agent builds and caches conversational agents bound to a user's
// session, memory scope and tool set.
//
// Invariants:
// - Agents are cached by user id; every conversation a user starts shares one agent.
// - A rebuilt agent resumes from the persisted transcript, not from in-process state.
// - Ephemeral agents carry no session and no tools and are never cached.
//
// Usage:
//
//	cache := agent.NewCache(agent.CacheConfig{Factory: factory, Sessions: store, ModelID: modelID})
//	ag, _ := cache.GetOrBuild(ctx, "alice")
//	reply, _ := ag.Invoke(ctx, "turn on the kitchen light", nil)
//	_ = reply
package agent
