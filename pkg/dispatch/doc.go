// Package dispatch bridges model tool calls to platform intent handlers.
//
// Invariants:
// - One tool surface is exposed to the model regardless of how many intents exist.
// - Arguments are schema-validated before any handler runs.
// - Handler failures come back as in-band error payloads the model can react to.
//
// Usage:
//
//	bridge := dispatch.NewBridge()
//	bridge.Load(ctx, providers)
//	result := bridge.Dispatch(ctx, "HassTurnOn", map[string]interface{}{"name": "kitchen light"})
//	_ = result
package dispatch
