package factors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/domain"
)

// ErrRecomputeInProgress means another recompute holds the service
var ErrRecomputeInProgress = errors.New("factor recompute already in progress")

// WorkbookLoader reads raw input series from a workbook file
type WorkbookLoader interface {
	LoadFile(path string) (domain.Inputs, error)
}

// RunStore persists factor runs
type RunStore interface {
	SaveRun(ctx context.Context, res *Result, source string) (*RunRecord, error)
}

// Service loads a workbook, runs the pipeline and stores the result
type Service struct {
	loader   WorkbookLoader
	pipeline *Pipeline
	store    RunStore
	mu       sync.Mutex
	log      zerolog.Logger
}

// NewService creates a recompute service
func NewService(loader WorkbookLoader, pipeline *Pipeline, store RunStore, log zerolog.Logger) *Service {
	return &Service{
		loader:   loader,
		pipeline: pipeline,
		store:    store,
		log:      log.With().Str("service", "factors").Logger(),
	}
}

// Recompute runs the full workbook -> pipeline -> store cycle. Only one
// recompute runs at a time; a concurrent call fails with ErrRecomputeInProgress.
func (s *Service) Recompute(ctx context.Context, workbook string) (*RunRecord, error) {
	if !s.mu.TryLock() {
		return nil, ErrRecomputeInProgress
	}
	defer s.mu.Unlock()

	in, err := s.loader.LoadFile(workbook)
	if err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}

	res, err := s.pipeline.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to compute factors: %w", err)
	}

	rec, err := s.store.SaveRun(ctx, res, workbook)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("run_id", rec.ID).
		Str("workbook", workbook).
		Int("investment_defined", rec.InvestmentDefined).
		Int("profitability_defined", rec.ProfitabilityDefined).
		Msg("Factors recomputed")
	return rec, nil
}
