package models

import "time"

// EventKind classifies progress events.
type EventKind string

const (
	EventStarted     EventKind = "started"
	EventStatus      EventKind = "status"
	EventRateLimited EventKind = "rate_limited"
	EventFetchFailed EventKind = "fetch_failed"
	EventDone        EventKind = "done"
)

// ProgressEvent is one message of an acquisition attempt. Every attempt emits
// exactly one EventStarted first and exactly one EventDone last.
type ProgressEvent struct {
	AttemptID string        `json:"attempt_id"`
	Kind      EventKind     `json:"kind"`
	Message   string        `json:"message"`
	AssetID   string        `json:"asset_id,omitempty"`
	Index     int           `json:"index,omitempty"`
	Total     int           `json:"total,omitempty"`
	CoolDown  time.Duration `json:"cool_down,omitempty"`
	At        time.Time     `json:"at"`

	// Set on EventDone only.
	Batch *Batch `json:"-"`
	Err   error  `json:"-"`
}

// Terminal reports whether the event closes the attempt.
func (e ProgressEvent) Terminal() bool { return e.Kind == EventDone }

// AcquisitionStatus describes the acquisition state of the process.
type AcquisitionStatus struct {
	Running         bool      `json:"running"`
	LastAttemptID   string    `json:"last_attempt_id,omitempty"`
	LastMode        Mode      `json:"last_mode,omitempty"`
	LastOutcome     string    `json:"last_outcome,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastFinishedAt  time.Time `json:"last_finished_at,omitempty"`
	SnapshotAttempt string    `json:"snapshot_attempt_id,omitempty"`
	SnapshotAssets  int       `json:"snapshot_assets"`
}
