package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/pkg/errors"
)

// WriteCSV writes the positive forecast rows as TS,FORECAST. Dates are
// YYYY-MM-DD and floats use the shortest form that parses back exactly.
func WriteCSV(w io.Writer, res *forecast.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnDate, ColumnForecast}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write CSV header")
	}
	for _, r := range Positive(res) {
		record := []string{
			r.Date.Format(config.DateLayout),
			strconv.FormatFloat(r.Forecast, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write CSV row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "Failed to write CSV")
	}
	return nil
}

// ReadCSV parses a file produced by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeInvalidInput, "CSV is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Failed to read CSV header")
	}
	if !strings.EqualFold(header[0], ColumnDate) || !strings.EqualFold(header[1], ColumnForecast) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "CSV header must be TS,FORECAST").
			WithContext("header", strings.Join(header, ","))
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Failed to read CSV row")
		}
		date, err := config.ParseDate(record[0])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid date in CSV").
				WithContext("value", record[0])
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid forecast in CSV").
				WithContext("value", record[1])
		}
		rows = append(rows, Row{Date: date, Forecast: v})
	}
	return rows, nil
}
