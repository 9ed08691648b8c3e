// Package engine implements the deterministic command/event core shared by
// the match server and the optimistic client.
//
// A match is a pure state machine: every transition is a function
// (state, command) -> (state', events). Commands are player intents, events
// are the facts the command produced, and the per-game rules live behind the
// Domain contract so the engine never inspects game state directly. The
// pipeline executes one command at a time through validation, the domain
// reducer, the system hooks, and the event fold, then appends the resulting
// events to the match event stream with strictly increasing ids.
package engine
