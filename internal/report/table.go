package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"flakecast/internal/annotation"
	"flakecast/internal/catalog"
	"flakecast/internal/config"
	"flakecast/internal/forecast"
)

// Table writes the positive forecast rows as an aligned table.
func Table(w io.Writer, res *forecast.Result, useColor bool) {
	rows := Positive(res)
	if len(rows) == 0 {
		fmt.Fprintln(w, EmptyState)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", ColumnDate, ColumnForecast})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for i, r := range rows {
		value := strconv.FormatFloat(r.Forecast, 'f', 2, 64)
		if useColor {
			value = color.YellowString(value)
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			r.Date.Format(config.DateLayout),
			value,
		})
	}
	table.Render()
}

// SalesTable writes raw sales rows as returned by a catalog preview.
func SalesTable(w io.Writer, rows []catalog.SalesRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No sales rows for this store")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Store", "Item", "Sales"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range rows {
		table.Append([]string{
			r.Date.Format(config.DateLayout),
			strconv.FormatInt(r.Store, 10),
			strconv.FormatInt(r.Item, 10),
			strconv.FormatFloat(r.Sales, 'f', -1, 64),
		})
	}
	table.Render()
}

// AnnotationTable writes the comments for one store and item.
func AnnotationTable(w io.Writer, list []annotation.Annotation) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No comments for this store and item yet")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Comment"})
	table.SetBorder(false)
	table.SetAutoWrapText(true)
	table.SetColWidth(60)

	for _, a := range list {
		table.Append([]string{a.Date.Format(config.DateLayout), a.Comment})
	}
	table.Render()
}
