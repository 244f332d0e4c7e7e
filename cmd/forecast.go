package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flakecast/internal/catalog"
	"flakecast/internal/forecast"
	"flakecast/internal/report"
	"flakecast/internal/ui"
	"flakecast/pkg/errors"
)

var (
	forecastStore   int64
	forecastItem    int64
	forecastHorizon int
	forecastCSV     string
	forecastXLSX    string
	forecastNoChart bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run a sales forecast for one store and item",
	Long: `Train the warehouse forecasting function on one store and item and print
the forecast as a chart and a table.

Selections not given as flags are asked for interactively, with choices read
from the sales table.`,
	Example: `  flakecast forecast --store 5 --item 12 --horizon 30
  flakecast forecast --store 5 --item 12 --horizon 30 --csv .
  flakecast forecast --xlsx forecast.xlsx`,
	Args: cobra.NoArgs,
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().Int64Var(&forecastStore, "store", 0, "store number")
	forecastCmd.Flags().Int64Var(&forecastItem, "item", 0, "item number")
	forecastCmd.Flags().Var(newHorizonValue(&forecastHorizon, forecast.DefaultBounds), "horizon",
		fmt.Sprintf("days to forecast (%d-%d)", forecast.DefaultBounds.Min, forecast.DefaultBounds.Max))
	forecastCmd.Flags().StringVar(&forecastCSV, "csv", "", "write the forecast rows as CSV to this file or directory")
	forecastCmd.Flags().StringVar(&forecastXLSX, "xlsx", "", "write the forecast rows as XLSX to this file or directory")
	forecastCmd.Flags().BoolVar(&forecastNoChart, "no-chart", false, "print the table only")
}

// horizonValue is a flag that only accepts horizons within bounds.
type horizonValue struct {
	days   *int
	bounds forecast.Bounds
}

func newHorizonValue(days *int, bounds forecast.Bounds) *horizonValue {
	return &horizonValue{days: days, bounds: bounds}
}

func (h *horizonValue) String() string {
	if h.days == nil || *h.days == 0 {
		return ""
	}
	return strconv.Itoa(*h.days)
}

func (h *horizonValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%q is not a whole number of days", s)
	}
	if err := h.bounds.Check(n); err != nil {
		return err
	}
	*h.days = n
	return nil
}

func (h *horizonValue) Type() string {
	return "days"
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a := current

	fc, err := a.forecasts(ctx)
	if err != nil {
		return err
	}

	req := forecast.Request{Store: forecastStore, Item: forecastItem, Horizon: forecastHorizon}
	if err := a.completeRequest(ctx, cmd, &req, fc.Bounds()); err != nil {
		return err
	}

	a.ui.StartProgress(fmt.Sprintf("Forecasting %d days for item %d at store %d", req.Horizon, req.Item, req.Store))
	res, err := fc.Get(ctx, req)
	if err != nil {
		a.ui.StopProgress(false, "Forecast failed")
		return err
	}
	a.ui.StopProgress(true, "Forecast ready")

	stats := res.Stats()
	a.logger.Debug("forecast result",
		zap.Stringer("request", req),
		zap.Int("rows", stats.Rows),
		zap.Int("actual_rows", stats.ActualRows),
		zap.Int("forecast_rows", stats.ForecastRows))

	out := a.ui.Writer()
	useColor := ui.SupportsColor()
	if forecastNoChart {
		ui.PrintSection(out, report.Title(req))
	} else {
		opts := report.DefaultChartOptions
		opts.Color = useColor
		report.Chart(out, res, opts)
		fmt.Fprintln(out)
	}
	report.Table(out, res, useColor)

	if forecastCSV != "" {
		path, err := exportTo(forecastCSV, req, "csv", func(w io.Writer) error { return report.WriteCSV(w, res) })
		if err != nil {
			return err
		}
		a.ui.Success("Wrote " + path)
	}
	if forecastXLSX != "" {
		path, err := exportTo(forecastXLSX, req, "xlsx", func(w io.Writer) error { return report.WriteXLSX(w, res) })
		if err != nil {
			return err
		}
		a.ui.Success("Wrote " + path)
	}
	return nil
}

// completeRequest asks for whatever the flags left out.
func (a *app) completeRequest(ctx context.Context, cmd *cobra.Command, req *forecast.Request, bounds forecast.Bounds) error {
	flags := cmd.Flags()
	needStore := !flags.Changed("store")
	needItem := !flags.Changed("item")

	if needStore || needItem {
		cat, err := a.catalog(ctx)
		if err != nil {
			return err
		}
		if needStore {
			if req.Store, err = a.selectValue(ctx, cat, catalog.Stores, "Store"); err != nil {
				return err
			}
		}
		if needItem {
			if req.Item, err = a.selectValue(ctx, cat, catalog.Items, "Item"); err != nil {
				return err
			}
		}
	}

	if !flags.Changed("horizon") {
		answer, err := a.prompter.Input("Days to forecast", strconv.Itoa(bounds.Min), ui.IntValidator(bounds.Min, bounds.Max))
		if err != nil {
			return err
		}
		if req.Horizon, err = strconv.Atoi(answer); err != nil {
			return errors.ValidationError("horizon", answer, "must be a whole number")
		}
	}
	return nil
}

func (a *app) selectValue(ctx context.Context, cat *catalog.Catalog, d catalog.Dimension, label string) (int64, error) {
	options, err := cat.List(ctx, d)
	if err != nil {
		return 0, err
	}
	choice, err := a.prompter.Select(label, options)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(choice, 10, 64)
	if err != nil {
		return 0, errors.ValidationError(string(d), choice, "must be a whole number")
	}
	return n, nil
}

// exportTo writes one export. A directory target gets the standard file
// name for the request.
func exportTo(target string, req forecast.Request, ext string, write func(io.Writer) error) (string, error) {
	path := target
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		path = filepath.Join(target, report.Filename(req, ext))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to create export file").
			WithContext("path", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write export file").
			WithContext("path", path)
	}
	return path, nil
}

