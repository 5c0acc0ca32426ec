package factors

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hxzfactors/internal/database"
	"github.com/aristath/hxzfactors/internal/domain"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every pooled connection would otherwise see its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.SchemaFor("factors")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
}

func excludeRun(t *testing.T) *Result {
	opts := DefaultOptions()
	opts.AbsentPolicy = AbsentExclude
	return runFixture(t, opts)
}

func TestRepository_SaveAndGetRun(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	res := excludeRun(t)

	rec, err := repo.SaveRun(ctx, res, "fixture.xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, 24, rec.Months)
	assert.Equal(t, 11, rec.InvestmentDefined)
	assert.Equal(t, domain.NewMonth(2017, time.January), rec.FirstMonth)
	assert.Equal(t, domain.NewMonth(2018, time.December), rec.LastMonth)

	got, err := repo.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "fixture.xlsx", got.Source)
	assert.Equal(t, AbsentExclude, got.Options.AbsentPolicy)
	assert.Equal(t, rec.FirstMonth, got.FirstMonth)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)

	missing, err := repo.GetRun(ctx, "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_FactorSeriesKeepsAbsentMonths(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	res := excludeRun(t)

	rec, err := repo.SaveRun(ctx, res, "fixture.xlsx")
	require.NoError(t, err)

	inv, prof, err := repo.GetFactorSeries(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, inv.Points, 24)
	require.Len(t, prof.Points, 24)

	for k, p := range inv.Points {
		assert.Equal(t, res.Months[k], p.Month)
		assert.Equal(t, res.Investment.Points[k].Value.IsPresent(), p.Value.IsPresent(), "month %s", p.Month)
	}
	v, ok := inv.Points[15].Value.Get()
	require.True(t, ok)
	assert.InDelta(t, 0.02, v, 1e-9)
	assert.False(t, inv.Points[0].Value.IsPresent())

	var stored sql.NullFloat64
	require.NoError(t, repo.db.QueryRow(
		"SELECT investment FROM factor_values WHERE run_id = ? AND month = ?",
		rec.ID, res.Months[0].String()).Scan(&stored))
	assert.False(t, stored.Valid, "absent factor is stored as NULL")
}

func TestRepository_SaveRunHonoursCancelledContext(t *testing.T) {
	repo := setupRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.SaveRun(ctx, excludeRun(t), "fixture.xlsx")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	runs, err := repo.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRepository_PortfolioReturns(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	rec, err := repo.SaveRun(ctx, excludeRun(t), "fixture.xlsx")
	require.NoError(t, err)

	ports, err := repo.GetPortfolioReturns(ctx, rec.ID, domain.NewMonth(2018, time.June))
	require.NoError(t, err)
	require.Len(t, ports, 18)
	assert.Equal(t, "Small-Low_IA-Low_ROE", ports[0].Label)

	byLabel := map[string]PortfolioReturn{}
	for _, p := range ports {
		byLabel[p.Label] = p
	}
	empty := byLabel["Big-High_IA-Low_ROE"]
	assert.Equal(t, 0, empty.Members)
	assert.False(t, empty.Return.IsPresent())

	full := byLabel["Small-High_IA-Low_ROE"]
	assert.Equal(t, 2, full.Members)
	assert.Equal(t, 2, full.Contributing)
	r, ok := full.Return.Get()
	require.True(t, ok)
	assert.InDelta(t, 0.03, r, 1e-9)

	none, err := repo.GetPortfolioReturns(ctx, rec.ID, domain.NewMonth(2030, time.June))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_Classification(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	rec, err := repo.SaveRun(ctx, excludeRun(t), "fixture.xlsx")
	require.NoError(t, err)

	snap, err := repo.GetClassification(ctx, rec.ID, domain.NewMonth(2018, time.December))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, domain.NewMonth(2018, time.December), snap.FormationMonth)
	assert.Equal(t, 20, snap.Eligible)
	assert.InDelta(t, 1095.0, snap.SizeMedian, 1e-9)
	assert.InDelta(t, 0.067, snap.InvestmentP30, 1e-9)
	assert.Equal(t, "Big-High_IA-High_ROE", snap.Labels["S17"])

	// First-year months have no I/A, so nobody is labelled
	early, err := repo.GetClassification(ctx, rec.ID, domain.NewMonth(2017, time.March))
	require.NoError(t, err)
	require.NotNil(t, early)
	assert.Empty(t, early.Labels)
	assert.Len(t, early.Excluded, 20)

	missing, err := repo.GetClassification(ctx, rec.ID, domain.NewMonth(2030, time.March))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_ListAndLatest(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	latest, err := repo.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	res := excludeRun(t)
	first, err := repo.SaveRun(ctx, res, "first.xlsx")
	require.NoError(t, err)
	second, err := repo.SaveRun(ctx, res, "second.xlsx")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	latest, err = repo.GetLatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	runs, err = repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRepository_SaveRunRequiresResult(t *testing.T) {
	repo := setupRepository(t)
	_, err := repo.SaveRun(context.Background(), nil, "x")
	assert.Error(t, err)
}
