package repository

import (
	"context"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

// PlanRepository persists the output tables of finished plan runs.
type PlanRepository interface {
	SavePlan(ctx context.Context, res *domain.PlanResult) error
	GetSummaries(ctx context.Context, runID string) ([]domain.SKUSummary, error)
	GetDecisions(ctx context.Context, runID string) ([]domain.PurchaseDecision, error)
}
