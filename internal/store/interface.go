package store

import (
	"context"
	"time"
)

// Recorder persists control sessions and their per-tick snapshots
type Recorder interface {
	BeginSession(ctx context.Context, targetRPM float64) (Session, error)
	Record(ctx context.Context, snapshot *Snapshot) error
	Flush() error
	Close() error

	Sessions(ctx context.Context) ([]Session, error)
	Samples(ctx context.Context, sessionID string) ([]Snapshot, error)
}

// Session is one enabled period with a fixed target
type Session struct {
	ID        string
	StartedAt time.Time
	TargetRPM float64
}

// Snapshot is the full state of one control tick
type Snapshot struct {
	SessionID    string
	Seq          int
	Elapsed      float64
	TargetRPM    float64
	CommandedRPM float64
	MeasuredRPM  float64
}
