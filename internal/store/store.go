// Package store keeps a queryable history of control sessions in SQLite.
// Every enable transition opens a session and every tick adds a snapshot.
package store

import (
	"context"
	"math"
	"time"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
	"github.com/rs/xid"
)

type service struct {
	repo *repository
	cfg  Config
	now  func() time.Time
}

// No-op implementation
type noopRecorder struct{}

func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If the store is disabled, return a no-op recorder
	if !cfg.Enabled {
		log.Debug().Msg("Session store disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := newRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}, nil
}

func (s *service) BeginSession(ctx context.Context, targetRPM float64) (Session, error) {
	session := Session{
		ID:        xid.New().String(),
		StartedAt: s.now(),
		TargetRPM: targetRPM,
	}

	if err := s.repo.insertSession(ctx, session); err != nil {
		return Session{}, err
	}

	return session, nil
}

func (s *service) Record(ctx context.Context, snapshot *Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil || snapshot.Elapsed < 0 || math.IsNaN(snapshot.MeasuredRPM) {
		return errFactory.New(ErrInvalidSnapshot)
	}
	if snapshot.SessionID == "" {
		return errFactory.New(ErrNoSession)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	return s.repo.record(snapshot)
}

func (s *service) Flush() error {
	return s.repo.Flush()
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (s *service) Sessions(ctx context.Context) ([]Session, error) {
	return s.repo.sessions(ctx)
}

func (s *service) Samples(ctx context.Context, sessionID string) ([]Snapshot, error) {
	return s.repo.samples(ctx, sessionID)
}

func (*noopRecorder) BeginSession(_ context.Context, targetRPM float64) (Session, error) {
	return Session{ID: xid.New().String(), StartedAt: time.Now(), TargetRPM: targetRPM}, nil
}

func (*noopRecorder) Record(_ context.Context, _ *Snapshot) error {
	return nil
}

func (*noopRecorder) Flush() error {
	return nil
}

func (*noopRecorder) Close() error {
	return nil
}

func (*noopRecorder) Sessions(_ context.Context) ([]Session, error) {
	return nil, nil
}

func (*noopRecorder) Samples(_ context.Context, _ string) ([]Snapshot, error) {
	return nil, nil
}
