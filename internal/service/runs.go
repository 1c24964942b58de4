package service

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
)

// ErrRunHistoryDisabled is returned when no run store is configured.
var ErrRunHistoryDisabled = errors.New("run history is not configured")

const maxRunListing = 200

// RunHistory reads the plan run tracking rows.
type RunHistory interface {
	ListRecentRuns(ctx context.Context, since time.Time, limit int) ([]*pipeline.PlanRun, error)
	GetRunStats(ctx context.Context, since time.Time) (*pipeline.RunStats, error)
}

// RunReport is the run listing with its aggregate counters.
type RunReport struct {
	Since   time.Time           `json:"since"`
	Runs    []*pipeline.PlanRun `json:"runs"`
	Stats   *pipeline.RunStats  `json:"stats"`
	Process pipeline.RunMetrics `json:"process"`
}

// RecentRuns lists runs started since the given time, newest first.
func (s *PlanningService) RecentRuns(ctx context.Context, since time.Time, limit int) (*RunReport, error) {
	if s.history == nil {
		return nil, ErrRunHistoryDisabled
	}
	if limit <= 0 || limit > maxRunListing {
		limit = maxRunListing
	}

	runs, err := s.history.ListRecentRuns(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	stats, err := s.history.GetRunStats(ctx, since)
	if err != nil {
		return nil, err
	}

	return &RunReport{
		Since:   since,
		Runs:    runs,
		Stats:   stats,
		Process: s.orchestrator.Metrics(),
	}, nil
}

// Metrics returns the engine counters of this process.
func (s *PlanningService) Metrics() pipeline.RunMetrics {
	return s.orchestrator.Metrics()
}
