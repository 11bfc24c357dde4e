// Package status tracks the lifecycle of screening requests.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/thematic-screener-service/internal/domain"
	"github.com/helixir/thematic-screener-service/internal/repository"
)

// Store records status, logs and reports of screening requests.
//
// Every operation holds one store-wide mutex, so a reader never observes a
// request half way through Complete and log lines keep their append order.
type Store struct {
	mu   sync.Mutex
	repo repository.StatusRepository
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store backed by repo.
func NewStore(repo repository.StatusRepository, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrUpdateStatus records status for id, creating the record if needed.
// A terminal status is never replaced by a different one.
func (s *Store) CreateOrUpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	if !status.IsValid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		if current.Status != status && !current.Status.CanTransitionTo(status) {
			return fmt.Errorf("invalid status transition from %s to %s: %w",
				current.Status, status, domain.ErrInvalidInput)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	return s.repo.Upsert(ctx, id, status, s.now())
}

// AppendLog appends message to the logs of id.
// Returns domain.ErrNotFound if id was never recorded.
func (s *Store) AppendLog(ctx context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.AppendLog(ctx, id, message, s.now())
}

// GetStatus returns the current status of id.
func (s *Store) GetStatus(ctx context.Context, id uuid.UUID) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return ws.Status, nil
}

// GetLogs returns the ordered log lines of id.
func (s *Store) GetLogs(ctx context.Context, id uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ws.Logs, nil
}

// Complete marks id completed and stores its report in one atomic step.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, req *domain.ScreenRequest, report domain.ScreenerReport) error {
	if req == nil {
		return domain.NewValidationError("request", "request is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return s.repo.Complete(ctx, domain.NewReportRecord(id, req, report, now), now)
}

// GetReport returns the lifecycle record of id and its report, or a nil
// report while the request has not completed.
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*domain.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.GetReport(ctx, id)
}
