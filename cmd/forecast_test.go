package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flakecast/internal/report"
	"flakecast/pkg/errors"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// forecastRows is two training days followed by three forecast days, one of
// which is zero and never exported.
func forecastRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"STORE", "ITEM", "TS", "Y", "FORECAST"}).
		AddRow(int64(5), int64(12), day("2017-10-29"), 20.0, nil).
		AddRow(int64(5), int64(12), day("2017-10-30"), 22.0, nil).
		AddRow(int64(5), int64(12), day("2017-10-31"), nil, 21.5).
		AddRow(int64(5), int64(12), day("2017-11-01"), nil, 0.0).
		AddRow(int64(5), int64(12), day("2017-11-02"), nil, 19.25)
}

func TestForecastWithFlags(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	h.mock.ExpectQuery("WITH train AS").
		WithArgs(int64(5), int64(12), "2017-10-31", 3, "2017-06-01").
		WillReturnRows(forecastRows())

	output, err := h.run(t, "forecast", "--store", "5", "--item", "12", "--horizon", "3", "--no-chart", "--csv", dir)
	require.NoError(t, err)
	require.NoError(t, h.mock.ExpectationsWereMet())

	assert.Contains(t, output, "3 day forecast for item 12 at store 5")
	assert.Contains(t, output, "2017-10-31")
	assert.Contains(t, output, "21.50")
	assert.NotContains(t, output, "2017-11-01")
	assert.Empty(t, h.prompter.asked)

	data, err := os.ReadFile(filepath.Join(dir, "item12_store5_3_periods.csv"))
	require.NoError(t, err)
	assert.Equal(t, "TS,FORECAST\n2017-10-31,21.5\n2017-11-02,19.25\n", string(data))
}

func TestForecastChartAndXLSX(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	h.mock.ExpectQuery("WITH train AS").WillReturnRows(forecastRows())

	output, err := h.run(t, "forecast", "--store", "5", "--item", "12", "--horizon", "3", "--xlsx", path)
	require.NoError(t, err)

	lines := strings.Split(output, "\n")
	var title bool
	for _, l := range lines {
		if l == "3 day forecast for item 12 at store 5" {
			title = true
		}
	}
	assert.True(t, title, "chart title missing from:\n%s", output)
	assert.Contains(t, output, "Wrote "+path)
	assert.FileExists(t, path)
}

func TestForecastPromptsForMissingSelections(t *testing.T) {
	h := newHarness(t)
	h.prompter.selects["Store"] = "5"

	h.mock.ExpectQuery("SELECT DISTINCT STORE FROM BUSINESS_DATA.PUBLIC.SALES_DATA").
		WillReturnRows(sqlmock.NewRows([]string{"STORE"}).AddRow(1).AddRow(2).AddRow(5))
	h.mock.ExpectQuery("SELECT DISTINCT ITEM FROM BUSINESS_DATA.PUBLIC.SALES_DATA").
		WillReturnRows(sqlmock.NewRows([]string{"ITEM"}).AddRow(12))
	h.mock.ExpectQuery("WITH train AS").
		WithArgs(int64(5), int64(12), "2017-10-31", 1, "2017-06-01").
		WillReturnRows(forecastRows())

	_, err := h.run(t, "forecast", "--no-chart")
	require.NoError(t, err)
	require.NoError(t, h.mock.ExpectationsWereMet())
	assert.Equal(t, []string{"Store", "Item", "Days to forecast"}, h.prompter.asked)
}

func TestForecastRejectsHorizonOutOfRange(t *testing.T) {
	for _, horizon := range []string{"0", "81", "-3", "ten"} {
		t.Run(horizon, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.run(t, "forecast", "--store", "5", "--item", "12", "--horizon", horizon)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "--horizon")
			require.NoError(t, h.mock.ExpectationsWereMet())
		})
	}
}

func TestForecastEmptyHistory(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("WITH train AS").
		WillReturnRows(sqlmock.NewRows([]string{"STORE", "ITEM", "TS", "Y", "FORECAST"}))

	output, err := h.run(t, "forecast", "--store", "999", "--item", "12", "--horizon", "5")
	require.NoError(t, err)
	assert.Contains(t, output, report.EmptyState)
}

func TestForecastWarehouseRejection(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("WITH train AS").WillReturnError(fmt.Errorf("SQL compilation error: invalid argument"))

	_, err := h.run(t, "forecast", "--store", "5", "--item", "12", "--horizon", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data for this selection")
}

func TestCatalogCommand(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("SELECT DISTINCT ITEM FROM BUSINESS_DATA.PUBLIC.SALES_DATA ORDER BY ITEM ASC LIMIT 501").
		WillReturnRows(sqlmock.NewRows([]string{"ITEM"}).AddRow(1).AddRow(2).AddRow(nil))

	output, err := h.run(t, "catalog", "items")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", output)
}

func TestCatalogCommandRejectsUnknownDimension(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "catalog", "regions")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
}

func TestPreviewCommand(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("SELECT DATE, STORE, ITEM, SALES FROM BUSINESS_DATA.PUBLIC.SALES_DATA WHERE STORE = \\? ORDER BY DATE LIMIT 2").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"DATE", "STORE", "ITEM", "SALES"}).
			AddRow(day("2013-01-01"), int64(5), int64(1), 13.0).
			AddRow(day("2013-01-02"), int64(5), int64(1), 11.0))

	output, err := h.run(t, "preview", "--store", "5", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "2013-01-01")
	assert.Contains(t, output, "2013-01-02")
}

func TestPreviewRequiresStore(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "preview")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"store" not set`)
}

func TestAnnotateAddAndList(t *testing.T) {
	h := newHarness(t)
	t.Setenv("FLAKECAST_ANNOTATIONS_SQLITE_PATH", filepath.Join(t.TempDir(), "notes", "annotations.db"))

	output, err := h.run(t, "annotate", "add", "--store", "5", "--item", "12", "--date", "2017-11-24", "Black", "Friday")
	require.NoError(t, err)
	assert.Contains(t, output, "Saved comment 2017-11-24_5_12")

	// Appends are not deduplicated.
	_, err = h.run(t, "annotate", "add", "--store", "5", "--item", "12", "--date", "2017-11-24", "Black", "Friday")
	require.NoError(t, err)

	output, err = h.run(t, "annotate", "list", "--store", "5", "--item", "12")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(output, "Black Friday"))

	output, err = h.run(t, "annotate", "list", "--store", "5", "--item", "13")
	require.NoError(t, err)
	assert.Contains(t, output, "No comments")
}

func TestAnnotateAddDefaultsToToday(t *testing.T) {
	h := newHarness(t)
	orig := today
	today = func() time.Time { return day("2017-11-05") }
	t.Cleanup(func() { today = orig })

	output, err := h.run(t, "annotate", "add", "--store", "5", "--item", "12", "restock")
	require.NoError(t, err)
	assert.Contains(t, output, "2017-11-05_5_12")
}

func TestAnnotateAddRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "annotate", "add", "--store", "5", "--item", "12", "--date", "24/11/2017", "note")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))

	_, err = h.run(t, "annotate", "add", "--store", "5", "--item", "12", "  ")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
}

func TestServeWiresRouter(t *testing.T) {
	h := newHarness(t)

	var gotAddr string
	orig := runServer
	runServer = func(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
		gotAddr = addr

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"annotations"`)
		return nil
	}
	t.Cleanup(func() { runServer = orig })

	output, err := h.run(t, "serve", "--addr", ":9000")
	require.NoError(t, err)
	assert.Equal(t, ":9000", gotAddr)
	assert.Contains(t, output, "http://localhost:9000")

	_, err = h.run(t, "serve")
	require.NoError(t, err)
	assert.Equal(t, ":8501", gotAddr)
}
