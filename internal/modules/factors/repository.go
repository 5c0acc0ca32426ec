package factors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/hxzfactors/internal/database"
	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/classification"
)

// RunRecord describes a stored factor run
type RunRecord struct {
	ID                   string       `json:"id"`
	Source               string       `json:"source"`
	Options              Options      `json:"options"`
	Months               int          `json:"months"`
	FirstMonth           domain.Month `json:"first_month"`
	LastMonth            domain.Month `json:"last_month"`
	InvestmentDefined    int          `json:"investment_defined"`
	ProfitabilityDefined int          `json:"profitability_defined"`
	Diagnostics          int          `json:"diagnostics"`
	CreatedAt            time.Time    `json:"created_at"`
}

// PortfolioReturn is one stored portfolio for one month
type PortfolioReturn struct {
	Month        domain.Month `json:"month"`
	Label        string       `json:"label"`
	Members      int          `json:"members"`
	Contributing int          `json:"contributing"`
	TotalWeight  float64      `json:"total_weight"`
	Return       domain.Value `json:"return"`
}

// ClassificationSnapshot is the stored classification of one month
type ClassificationSnapshot struct {
	Month          domain.Month      `json:"month" msgpack:"-"`
	FormationMonth domain.Month      `json:"formation_month" msgpack:"-"`
	SizeMedian     float64           `json:"size_median" msgpack:"size_median"`
	InvestmentP30  float64           `json:"investment_p30" msgpack:"ia_p30"`
	InvestmentP70  float64           `json:"investment_p70" msgpack:"ia_p70"`
	ROEP30         float64           `json:"roe_p30" msgpack:"roe_p30"`
	ROEP70         float64           `json:"roe_p70" msgpack:"roe_p70"`
	Eligible       int               `json:"eligible" msgpack:"eligible"`
	Labels         map[string]string `json:"labels" msgpack:"labels"`
	Excluded       []string          `json:"excluded" msgpack:"excluded"`
}

func newClassificationSnapshot(r classification.Result) ClassificationSnapshot {
	labels := make(map[string]string, len(r.Labels))
	for id, l := range r.Labels {
		labels[id] = l.Code()
	}
	return ClassificationSnapshot{
		Month:          r.Month,
		FormationMonth: r.FormationMonth,
		SizeMedian:     r.CutPoints.SizeMedian,
		InvestmentP30:  r.CutPoints.Investment.P30,
		InvestmentP70:  r.CutPoints.Investment.P70,
		ROEP30:         r.CutPoints.Profitability.P30,
		ROEP70:         r.CutPoints.Profitability.P70,
		Eligible:       r.CutPoints.Eligible,
		Labels:         labels,
		Excluded:       r.Excluded,
	}
}

// Repository stores factor runs in the factors database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

const factorRunColumns = `id, source, options, months, first_month, last_month,
investment_defined, profitability_defined, diagnostics, created_at`

// NewRepository creates a factor run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "factor_runs").Logger(),
	}
}

// SaveRun stores a run under a new UUID and returns its record
func (r *Repository) SaveRun(ctx context.Context, res *Result, source string) (*RunRecord, error) {
	if res == nil {
		return nil, fmt.Errorf("run result is required")
	}

	options, err := json.Marshal(res.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run options: %w", err)
	}

	rec := &RunRecord{
		ID:                   uuid.New().String(),
		Source:               source,
		Options:              res.Options,
		Months:               len(res.Months),
		InvestmentDefined:    len(res.Investment.PresentValues()),
		ProfitabilityDefined: len(res.Profitability.PresentValues()),
		Diagnostics:          len(res.Diagnostics),
		CreatedAt:            time.Now().UTC().Truncate(time.Second),
	}
	if n := len(res.Months); n > 0 {
		rec.FirstMonth = res.Months[0]
		rec.LastMonth = res.Months[n-1]
	}

	err = database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO factor_runs (`+factorRunColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID, rec.Source, string(options), rec.Months,
			nullMonth(rec.FirstMonth), nullMonth(rec.LastMonth),
			rec.InvestmentDefined, rec.ProfitabilityDefined, rec.Diagnostics,
			rec.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for _, snap := range res.Snapshots {
			if err := insertSnapshot(ctx, tx, rec.ID, snap); err != nil {
				return fmt.Errorf("month %s: %w", snap.Month, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save factor run: %w", err)
	}

	r.log.Info().
		Str("run_id", rec.ID).
		Str("source", source).
		Int("months", rec.Months).
		Msg("Factor run saved")

	return rec, nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, runID string, snap MonthSnapshot) error {
	month := snap.Month.String()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO factor_values (run_id, month, investment, profitability)
		VALUES (?, ?, ?, ?)
	`, runID, month, snap.Investment.Ptr(), snap.Profitability.Ptr()); err != nil {
		return fmt.Errorf("failed to insert factor values: %w", err)
	}

	for _, p := range snap.Portfolios {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO portfolio_returns
			(run_id, month, label, members, contributing, total_weight, value_weighted_return)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, month, p.Label.Code(), len(p.Members), p.Contributing, p.TotalWeight, p.Return.Ptr()); err != nil {
			return fmt.Errorf("failed to insert portfolio %s: %w", p.Label.Code(), err)
		}
	}

	payload, err := msgpack.Marshal(newClassificationSnapshot(snap.Classification))
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}
	formation := snap.Classification.FormationMonth
	if formation.IsZero() {
		formation = snap.Month
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO classification_snapshots (run_id, month, formation_month, payload)
		VALUES (?, ?, ?, ?)
	`, runID, month, formation.String(), payload); err != nil {
		return fmt.Errorf("failed to insert classification: %w", err)
	}
	return nil
}

// GetRun returns a run by id, or nil if it does not exist
func (r *Repository) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+factorRunColumns+" FROM factor_runs WHERE id = ?", id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get factor run: %w", err)
	}
	return rec, nil
}

// GetLatestRun returns the most recently created run, or nil if none exist
func (r *Repository) GetLatestRun(ctx context.Context) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+factorRunColumns+" FROM factor_runs ORDER BY created_at DESC, rowid DESC LIMIT 1")
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest factor run: %w", err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+factorRunColumns+" FROM factor_runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list factor runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan factor run: %w", err)
		}
		runs = append(runs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating factor runs: %w", err)
	}
	return runs, nil
}

// GetFactorSeries returns both stored factor series of a run in month order
func (r *Repository) GetFactorSeries(ctx context.Context, runID string) (Series, Series, error) {
	investment := Series{Dimension: DimensionInvestment}
	profitability := Series{Dimension: DimensionProfitability}

	rows, err := r.db.QueryContext(ctx, `
		SELECT month, investment, profitability FROM factor_values
		WHERE run_id = ?
		ORDER BY month ASC
	`, runID)
	if err != nil {
		return investment, profitability, fmt.Errorf("failed to get factor series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			month     string
			inv, prof *float64
		)
		if err := rows.Scan(&month, &inv, &prof); err != nil {
			return investment, profitability, fmt.Errorf("failed to scan factor values: %w", err)
		}
		m, err := domain.ParseMonth(month)
		if err != nil {
			return investment, profitability, fmt.Errorf("stored month %q: %w", month, err)
		}
		investment.Points = append(investment.Points, Point{Month: m, Value: domain.FromPtr(inv)})
		profitability.Points = append(profitability.Points, Point{Month: m, Value: domain.FromPtr(prof)})
	}
	if err := rows.Err(); err != nil {
		return investment, profitability, fmt.Errorf("error iterating factor values: %w", err)
	}
	return investment, profitability, nil
}

// GetPortfolioReturns returns the 18 stored portfolios of one month in label order
func (r *Repository) GetPortfolioReturns(ctx context.Context, runID string, month domain.Month) ([]PortfolioReturn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT label, members, contributing, total_weight, value_weighted_return
		FROM portfolio_returns
		WHERE run_id = ? AND month = ?
	`, runID, month.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio returns: %w", err)
	}
	defer rows.Close()

	byLabel := make(map[string]PortfolioReturn)
	for rows.Next() {
		p := PortfolioReturn{Month: month}
		var ret *float64
		if err := rows.Scan(&p.Label, &p.Members, &p.Contributing, &p.TotalWeight, &ret); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio return: %w", err)
		}
		p.Return = domain.FromPtr(ret)
		byLabel[p.Label] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio returns: %w", err)
	}

	out := make([]PortfolioReturn, 0, len(byLabel))
	for _, l := range classification.AllLabels() {
		if p, ok := byLabel[l.Code()]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetClassification returns the stored classification of one month, or nil
func (r *Repository) GetClassification(ctx context.Context, runID string, month domain.Month) (*ClassificationSnapshot, error) {
	var (
		formation string
		payload   []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT formation_month, payload FROM classification_snapshots
		WHERE run_id = ? AND month = ?
	`, runID, month.String()).Scan(&formation, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}

	var snap ClassificationSnapshot
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}
	snap.Month = month
	if snap.FormationMonth, err = domain.ParseMonth(formation); err != nil {
		return nil, fmt.Errorf("stored formation month %q: %w", formation, err)
	}
	return &snap, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec         RunRecord
		options     string
		first, last sql.NullString
		createdAt   int64
	)
	err := row.Scan(&rec.ID, &rec.Source, &options, &rec.Months, &first, &last,
		&rec.InvestmentDefined, &rec.ProfitabilityDefined, &rec.Diagnostics, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &rec.Options); err != nil {
		return nil, fmt.Errorf("failed to decode run options: %w", err)
	}
	if first.Valid {
		if rec.FirstMonth, err = domain.ParseMonth(first.String); err != nil {
			return nil, err
		}
	}
	if last.Valid {
		if rec.LastMonth, err = domain.ParseMonth(last.String); err != nil {
			return nil, err
		}
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

func nullMonth(m domain.Month) interface{} {
	if m.IsZero() {
		return nil
	}
	return m.String()
}
