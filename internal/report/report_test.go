package report

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"flakecast/internal/annotation"
	"flakecast/internal/catalog"
	"flakecast/internal/forecast"
	"flakecast/pkg/errors"
)

func f(v float64) *float64 { return &v }

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// sample has two training days then forecasts that dip to zero and below.
func sample() *forecast.Result {
	return &forecast.Result{
		Request: forecast.Request{Store: 5, Item: 12, Horizon: 5},
		Points: []forecast.SeriesPoint{
			{Date: date("2017-10-29"), Actual: f(20)},
			{Date: date("2017-10-30"), Actual: f(22)},
			{Date: date("2017-10-31"), Forecast: f(21.333333333333332)},
			{Date: date("2017-11-01"), Forecast: f(0)},
			{Date: date("2017-11-02"), Forecast: f(-0.5)},
			{Date: date("2017-11-03"), Forecast: f(0.1)},
			{Date: date("2017-11-04"), Forecast: f(1e-7)},
		},
	}
}

func TestPositive(t *testing.T) {
	rows := Positive(sample())
	want := []Row{
		{Date: date("2017-10-31"), Forecast: 21.333333333333332},
		{Date: date("2017-11-03"), Forecast: 0.1},
		{Date: date("2017-11-04"), Forecast: 1e-7},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Positive() mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, Positive(nil))
	assert.Empty(t, Positive(&forecast.Result{}))
}

func TestFilename(t *testing.T) {
	req := forecast.Request{Store: 5, Item: 12, Horizon: 30}
	assert.Equal(t, "item12_store5_30_periods.csv", Filename(req, "csv"))
	assert.Equal(t, "item12_store5_30_periods.xlsx", Filename(req, "xlsx"))
}

func TestCSVRoundTrip(t *testing.T) {
	res := sample()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "TS,FORECAST", lines[0])
	assert.Equal(t, "2017-10-31,21.333333333333332", lines[1])
	assert.Equal(t, "2017-11-04,0.0000001", lines[3])

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(Positive(res), parsed); diff != "" {
		t.Errorf("CSV round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &forecast.Result{}))
	assert.Equal(t, "TS,FORECAST\n", buf.String())

	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadCSVRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong header", "DATE,VALUE\n2017-10-31,1\n"},
		{"bad date", "TS,FORECAST\n31/10/2017,1\n"},
		{"bad number", "TS,FORECAST\n2017-10-31,lots\n"},
		{"extra column", "TS,FORECAST\n2017-10-31,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample()))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	want := [][]string{
		{"TS", "FORECAST"},
		{"2017-10-31", "21.333333333333332"},
		{"2017-11-03", "0.1"},
		{"2017-11-04", "1e-07"},
	}
	require.Len(t, rows, len(want))
	assert.Equal(t, want[0], rows[0])
	assert.Equal(t, want[1], rows[1])
	assert.Equal(t, want[2], rows[2])
	assert.Equal(t, "2017-11-04", rows[3][0])
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, sample(), false)
	out := buf.String()

	assert.Contains(t, out, "TS")
	assert.Contains(t, out, "FORECAST")
	assert.Contains(t, out, "2017-10-31")
	assert.Contains(t, out, "21.33")
	assert.NotContains(t, out, "2017-11-01")
	assert.NotContains(t, out, "2017-10-29")
}

func TestTableEmptyState(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, &forecast.Result{}, false)
	assert.Equal(t, EmptyState+"\n", buf.String())
}

func TestSalesTable(t *testing.T) {
	var buf bytes.Buffer
	SalesTable(&buf, []catalog.SalesRow{
		{Date: date("2013-01-01"), Store: 5, Item: 1, Sales: 13},
	})
	assert.Contains(t, buf.String(), "2013-01-01")
	assert.Contains(t, buf.String(), "13")
}

func TestChart(t *testing.T) {
	var buf bytes.Buffer
	Chart(&buf, sample(), ChartOptions{Width: 20, Height: 6})
	out := buf.String()
	lines := strings.Split(out, "\n")

	assert.Equal(t, "5 day forecast for item 12 at store 5", lines[0])
	assert.Contains(t, out, string(actualMark))
	assert.Contains(t, out, string(forecastMark))
	assert.Contains(t, out, "2017-10-29")
	assert.Contains(t, out, "2017-11-04")
	// Top label is the series maximum, bottom the minimum.
	assert.Contains(t, lines[1], "22.0")
	assert.Contains(t, lines[6], "-0.5")
}

func TestChartEmptyState(t *testing.T) {
	var buf bytes.Buffer
	Chart(&buf, &forecast.Result{}, DefaultChartOptions)
	assert.Equal(t, EmptyState+"\n", buf.String())
}

func TestChartFlatSeries(t *testing.T) {
	res := &forecast.Result{Points: []forecast.SeriesPoint{
		{Date: date("2017-10-31"), Forecast: f(3)},
	}}
	var buf bytes.Buffer
	Chart(&buf, res, ChartOptions{Width: 12, Height: 4})
	assert.Contains(t, buf.String(), string(forecastMark))
}

func nonFinite() *forecast.Result {
	return &forecast.Result{
		Request: forecast.Request{Store: 5, Item: 12, Horizon: 2},
		Points: []forecast.SeriesPoint{
			{Date: date("2017-10-30"), Actual: f(3)},
			{Date: date("2017-10-31"), Forecast: f(math.NaN())},
			{Date: date("2017-11-01"), Forecast: f(4), Actual: f(math.Inf(1))},
		},
	}
}

func TestChartSkipsNonFiniteValues(t *testing.T) {
	var buf bytes.Buffer
	require.NotPanics(t, func() {
		Chart(&buf, nonFinite(), ChartOptions{Width: 20, Height: 6})
	})
	lines := strings.Split(buf.String(), "\n")
	assert.Contains(t, lines[1], "4.0")
	assert.Contains(t, lines[6], "3.0")
	assert.NotContains(t, buf.String(), "NaN")
}

func TestChartAllNonFinite(t *testing.T) {
	res := &forecast.Result{Points: []forecast.SeriesPoint{
		{Date: date("2017-10-31"), Forecast: f(math.NaN())},
	}}
	var buf bytes.Buffer
	Chart(&buf, res, DefaultChartOptions)
	assert.Equal(t, EmptyState+"\n", buf.String())
}

func TestSVG(t *testing.T) {
	svg, err := SVG(sample(), DefaultSVGSize)
	require.NoError(t, err)

	s := string(svg)
	assert.True(t, strings.HasPrefix(s, "<svg"))
	assert.Contains(t, s, `class="actual"`)
	assert.Contains(t, s, `class="forecast"`)
	assert.Contains(t, s, "2017-10-29")
	assert.Contains(t, s, "2017-11-04")
	// First actual point sits on the left axis.
	assert.Contains(t, s, `points="40,`)
}

func TestSVGSkipsNonFiniteValues(t *testing.T) {
	svg, err := SVG(nonFinite(), DefaultSVGSize)
	require.NoError(t, err)

	s := string(svg)
	assert.Contains(t, s, `class="actual" fill="none" stroke="#1f77b4" stroke-width="1.5" points="40,280"`)
	assert.Contains(t, s, `points="740,20"`)
	assert.NotContains(t, s, "NaN")
}

func TestSVGEmpty(t *testing.T) {
	svg, err := SVG(&forecast.Result{}, DefaultSVGSize)
	require.NoError(t, err)
	assert.Empty(t, svg)
}

func TestAnnotationTable(t *testing.T) {
	var buf bytes.Buffer
	AnnotationTable(&buf, []annotation.Annotation{
		annotation.New(date("2017-11-02"), 5, 12, "promo week"),
	})
	assert.Contains(t, buf.String(), "2017-11-02")
	assert.Contains(t, buf.String(), "promo week")

	buf.Reset()
	AnnotationTable(&buf, nil)
	assert.Equal(t, "No comments for this store and item yet\n", buf.String())
}
