// Package service exposes the planning engine to the HTTP, Drive and CLI
// surfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/cache"
	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
	"github.com/andresuchdata/planify/backend-go/internal/repository"
)

// ErrPlanNotFound is returned for unknown run IDs.
var ErrPlanNotFound = errors.New("plan not found")

const defaultRetainedPlans = 32

type PlanningService struct {
	orchestrator *pipeline.Orchestrator
	cache        cache.PlanCache
	plans        repository.PlanRepository
	history      RunHistory

	mu       sync.RWMutex
	byRunID  map[string]*domain.PlanResult
	order    []string
	retained int
}

type Option func(*PlanningService)

// WithPlanCache lets GetPlan fall back to the shared cache for runs this
// process has not seen.
func WithPlanCache(c cache.PlanCache) Option {
	return func(s *PlanningService) { s.cache = c }
}

// WithPlanRepository persists every finished plan.
func WithPlanRepository(r repository.PlanRepository) Option {
	return func(s *PlanningService) { s.plans = r }
}

// WithRunHistory enables the run listing endpoints.
func WithRunHistory(h RunHistory) Option {
	return func(s *PlanningService) { s.history = h }
}

// WithRetainedPlans bounds the number of plans kept in memory.
func WithRetainedPlans(n int) Option {
	return func(s *PlanningService) {
		if n > 0 {
			s.retained = n
		}
	}
}

func NewPlanningService(orchestrator *pipeline.Orchestrator, opts ...Option) *PlanningService {
	s := &PlanningService{
		orchestrator: orchestrator,
		cache:        cache.NewNoopPlanCache(),
		byRunID:      make(map[string]*domain.PlanResult),
		retained:     defaultRetainedPlans,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan loads the sources and runs the engine over them.
func (s *PlanningService) Plan(ctx context.Context, sources []ingest.Source) (*domain.PlanResult, error) {
	in, err := ingest.Load(ctx, sources)
	if err != nil {
		return nil, err
	}
	return s.PlanDataset(ctx, in)
}

// PlanDataset runs the engine over already parsed tables.
func (s *PlanningService) PlanDataset(ctx context.Context, in domain.Dataset) (*domain.PlanResult, error) {
	res, err := s.orchestrator.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("plan run failed: %w", err)
	}

	s.remember(res)

	if s.plans != nil {
		if err := s.plans.SavePlan(ctx, res); err != nil {
			log.Warn().Err(err).Str("run_id", res.RunID).Msg("failed to persist plan")
		}
	}
	return res, nil
}

// PlanFiles plans over uploaded files.
func (s *PlanningService) PlanFiles(ctx context.Context, files []*domain.UploadedFile) (*domain.PlanResult, error) {
	sources := make([]ingest.Source, 0, len(files))
	for _, f := range files {
		table, err := uploadTable(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Filename, err)
		}
		path := f.Path
		sources = append(sources, ingest.Source{
			Table: table,
			Name:  f.Filename,
			Open:  func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return s.Plan(ctx, sources)
}

// GetPlan returns a plan by run ID from memory or the shared cache.
func (s *PlanningService) GetPlan(ctx context.Context, runID string) (*domain.PlanResult, error) {
	s.mu.RLock()
	res, ok := s.byRunID[runID]
	s.mu.RUnlock()
	if ok {
		return res, nil
	}

	res, ok, err := s.cache.GetByRunID(ctx, runID)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("plan cache lookup failed")
	}
	if !ok {
		return nil, ErrPlanNotFound
	}
	return res, nil
}

func (s *PlanningService) remember(res *domain.PlanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRunID[res.RunID]; ok {
		return
	}
	s.byRunID[res.RunID] = res
	s.order = append(s.order, res.RunID)
	for len(s.order) > s.retained {
		delete(s.byRunID, s.order[0])
		s.order = s.order[1:]
	}
}

func uploadTable(f *domain.UploadedFile) (ingest.Table, error) {
	if f.Table != "" {
		return ingest.ParseTable(f.Table)
	}
	return ingest.DetectTable(f.Filename)
}
