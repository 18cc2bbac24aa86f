package models

import "time"

// Messages published on the in-process bus. Every message is a plain value
// type; subscribers select on the concrete type.

// ChangeObserved is published by raw-signal producers that do not hold a
// direct handle on the collector.
type ChangeObserved struct {
	Kind   ChangeKind
	Handle string
}

// BuildCompleted is published once per successful build pass.
type BuildCompleted struct {
	Snapshot *Snapshot
}

// BuildFailed is published once per failed build pass. The kinds it covered
// are not re-queued.
type BuildFailed struct {
	PassID string
	Kinds  []ChangeKind
	Reason string
	At     time.Time
}

// HaltChanged announces a change of the builder's halt flag.
type HaltChanged struct {
	Halted bool
}

// RetryReset asks the connection manager to restart its reconnect episode.
type RetryReset struct {
	Reason string
}
