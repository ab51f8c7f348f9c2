package rollup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/project/boq"
	"github.com/rencana-app/rencana/internal/shared"
)

type stubProjects struct {
	projects map[int64]project.Project
}

func (s *stubProjects) Get(_ context.Context, id int64) (project.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

type stubBoq struct {
	categories []boq.Category
	lines      []boq.Line
	listCalls  int
}

func (s *stubBoq) ListCategories(_ context.Context, _ int64) ([]boq.Category, error) {
	s.listCalls++
	return s.categories, nil
}

func (s *stubBoq) ListLines(_ context.Context, _ int64) ([]boq.Line, error) {
	return s.lines, nil
}

func testService(t *testing.T) (*Service, *stubBoq, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	boqSource := &stubBoq{
		categories: []boq.Category{{ID: 1, ProjectID: 1, Name: "Pekerjaan Persiapan"}},
		lines: []boq.Line{
			{ID: 1, ProjectID: 1, CategoryID: 1, Name: "Pembersihan", Unit: "m2",
				Volume: dec("100.0000"), UnitPrice: dec("10000.00"), TotalPrice: dec("1000000.00")},
		},
	}
	projects := &stubProjects{projects: map[int64]project.Project{
		1: {ID: 1, Name: "Gedung", OverheadPct: dec("10"), ProfitPct: dec("10"), TaxPct: dec("11")},
	}}
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	return NewService(logger, projects, boqSource, client, time.Minute), boqSource, client
}

func TestRollupComputesAndCaches(t *testing.T) {
	svc, boqSource, _ := testService(t)
	ctx := context.Background()

	first, err := svc.Rollup(ctx, 1)
	require.NoError(t, err)
	require.True(t, first.GrandTotal.Equal(dec("1343100.00")), "got %s", first.GrandTotal)
	require.Equal(t, 1, boqSource.listCalls)

	second, err := svc.Rollup(ctx, 1)
	require.NoError(t, err)
	require.True(t, second.GrandTotal.Equal(first.GrandTotal))
	require.Equal(t, 1, boqSource.listCalls, "second read must come from cache")
}

func TestInvalidateForcesRecompute(t *testing.T) {
	svc, boqSource, _ := testService(t)
	ctx := context.Background()

	_, err := svc.Rollup(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateRollup(ctx, 1))

	boqSource.lines[0].TotalPrice = dec("2000000.00")
	res, err := svc.Rollup(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.BoqTotal.Equal(dec("2000000.00")))
	require.Equal(t, 2, boqSource.listCalls)
}

func TestRollupUnknownProject(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.Rollup(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFormatIDR(t *testing.T) {
	require.Equal(t, "Rp 1.343.100,00", FormatIDR(dec("1343100")))
	require.Equal(t, "Rp 0,50", FormatIDR(dec("0.5")))
	require.Equal(t, "Rp -12.000,75", FormatIDR(dec("-12000.75")))
}

func TestExportCSVContainsSummaryCascade(t *testing.T) {
	svc, _, _ := testService(t)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), 1, &buf))

	out := buf.String()
	require.Contains(t, out, "grand_total")
	require.Contains(t, out, "1343100.00")
	require.Contains(t, out, "Pembersihan")
	require.True(t, strings.HasPrefix(out, "type,id,name"))
}
