package report

import (
	"io"

	"github.com/xuri/excelize/v2"

	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/pkg/errors"
)

// SheetName is the worksheet that holds the exported rows.
const SheetName = "Forecast"

// WriteXLSX writes the same two columns as WriteCSV into a workbook. Dates
// stay text so spreadsheets do not shift them by time zone.
func WriteXLSX(w io.Writer, res *forecast.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to create worksheet")
	}
	if err := f.SetSheetRow(SheetName, "A1", &[]interface{}{ColumnDate, ColumnForecast}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write header")
	}

	for i, r := range Positive(res) {
		dateCell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to address cell")
		}
		valueCell, _ := excelize.CoordinatesToCellName(2, i+2)

		if err := f.SetCellStr(SheetName, dateCell, r.Date.Format(config.DateLayout)); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write date")
		}
		if err := f.SetCellFloat(SheetName, valueCell, r.Forecast, -1, 64); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write forecast")
		}
	}
	_ = f.SetColWidth(SheetName, "A", "A", 12)

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write workbook")
	}
	return nil
}
