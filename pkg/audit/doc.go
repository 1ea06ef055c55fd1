// Package audit consumes authorization decision events.
//
// The engine pushes authz.DecisionEvent values onto a buffered channel and
// never blocks on it; this package provides the collaborator side: a
// Collector draining the channel into one or more Logger sinks (structured
// log, JSONL file, fan-out). Persistence, retention, and reporting beyond a
// local file are out of scope and belong to downstream consumers.
package audit
