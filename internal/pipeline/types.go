package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/cleaner"
	"github.com/andresuchdata/planify/backend-go/internal/planning/forecast"
	"github.com/andresuchdata/planify/backend-go/internal/planning/policy"
)

// Inputs are the immutable input tables of a plan run.
type Inputs = domain.Dataset

// Config holds the engine configuration of a plan run
type Config struct {
	Cleaner               cleaner.Config
	Forecast              forecast.Config
	Policy                policy.Config
	PurchaseHorizonMonths int
	WorkerCount           int       // Number of concurrent SKU workers
	AsOf                  time.Time // Evaluation month; zero means the month after the last demand month
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		Cleaner:               cleaner.DefaultConfig(),
		Forecast:              forecast.DefaultConfig(),
		Policy:                policy.DefaultConfig(),
		PurchaseHorizonMonths: 5,
		WorkerCount:           4,
	}
}

// ConfigFromSettings maps the application settings onto the engine config.
// An unparseable AsOfMonth is ignored.
func ConfigFromSettings(s config.PlanningConfig) Config {
	cfg := DefaultConfig()

	cfg.Cleaner.LookbackPeriods = s.LookbackPeriods
	cfg.Cleaner.CandidatePercentile = s.CandidatePercentile
	cfg.Cleaner.ImputePercentile = s.ImputePercentile
	cfg.Cleaner.OutlierPercentile = s.OutlierPercentile
	cfg.Cleaner.MinStockoutEpisodes = s.MinStockoutEpisodes
	cfg.Cleaner.NoStockRunEvidence = s.NoStockRunEvidence

	cfg.Forecast.LeadTimeMonths = s.LeadTimeMonths
	cfg.Forecast.HorizonMonths = s.HorizonMonths
	cfg.Forecast.SelectionBufferMonths = s.SelectionBufferMonths
	cfg.Forecast.ProjectionUsesLeadTime = s.ProjectionUsesLeadTime

	cfg.Policy.LeadTimeMonths = s.PolicyLeadTimeMonths
	cfg.Policy.ServiceLevelZ = s.ServiceLevelZ
	cfg.Policy.Variant = policy.ParseVariant(s.SafetyStockVariant)
	cfg.Policy.EOQMultiplier = s.EOQMultiplier

	if s.PurchaseHorizonMonths > 0 {
		cfg.PurchaseHorizonMonths = s.PurchaseHorizonMonths
	}
	if s.WorkerCount > 0 {
		cfg.WorkerCount = s.WorkerCount
	}
	if s.AsOfMonth != "" {
		if m, err := domain.ParseMonth(s.AsOfMonth); err == nil {
			cfg.AsOf = m
		}
	}
	return cfg
}

// RunStatus represents the current state of a plan run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// PlanRun tracks a single execution of the engine
type PlanRun struct {
	ID             string     `db:"id" json:"id"`
	Fingerprint    string     `db:"fingerprint" json:"fingerprint"`
	Status         RunStatus  `db:"status" json:"status"`
	TotalSKUs      int        `db:"total_skus" json:"total_skus"`
	ProcessedSKUs  int        `db:"processed_skus" json:"processed_skus"`
	FallbackPoints int        `db:"fallback_points" json:"fallback_points"`
	CacheHit       bool       `db:"cache_hit" json:"cache_hit"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage   string     `db:"error_message" json:"error_message,omitempty"`
}

// SKUInput is one SKU's slice of the input tables
type SKUInput struct {
	SKU            string
	Demand         []domain.DemandObservation
	StockHistory   []domain.StockObservation
	CurrentStock   []domain.CurrentStock
	Replenishments []domain.ReplenishmentEvent
	Product        domain.Product
	HasProduct     bool
}

// SKUResult holds every per-SKU table produced by a worker
type SKUResult struct {
	SKU            string
	Cleaned        []domain.DemandObservation
	Monthly        []domain.MonthlyDemand
	Forecast       forecast.Result
	Policy         domain.InventoryPolicy
	Decision       domain.PurchaseDecision
	Projection     []domain.StockProjectionRow
	HistoricalLoss []domain.HistoricalLossRow
	UnitCost       decimal.Decimal
}

// RunMetrics holds counters for monitoring
type RunMetrics struct {
	SKUsProcessed  int64         `json:"skus_processed"`
	FallbackPoints int64         `json:"fallback_points"`
	Duration       time.Duration `json:"duration_ns"`
}
