package main

import (
	"encoding/csv"
	"io"

	"github.com/spektr-org/dashlens/dashboard"
	"github.com/spektr-org/dashlens/engine"
)

// ============================================================================
// CSV OUTPUT — Widget data as Sheets-ready CSV
// ============================================================================

func writeCSV(w io.Writer, result *engine.Result) {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	writeResultCSV(cw, result)
}

// writeDashboardCSV writes one block per widget, separated by a blank row
// and headed by the widget title.
func writeDashboardCSV(w io.Writer, out *dashboard.Output) {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, result := range out.Widgets {
		if i > 0 {
			cw.Write([]string{})
		}
		title := result.Title
		if title == "" {
			title = result.WidgetID
		}
		cw.Write([]string{"# " + title})
		writeResultCSV(cw, result)
	}
}

func writeResultCSV(cw *csv.Writer, result *engine.Result) {
	switch {
	case result == nil:
		cw.Write([]string{"Result", "No data"})

	case !result.Valid:
		cw.Write([]string{"Error"})
		for _, e := range result.Errors {
			cw.Write([]string{e})
		}

	case result.KPI != nil:
		writeKPICSV(cw, result.KPI)

	case result.Table != nil:
		writeTableCSV(cw, result.Table)

	case result.Chart != nil:
		writeChartCSV(cw, result.Chart, "")

	case len(result.Charts) > 0:
		for _, chart := range result.Charts {
			writeChartCSV(cw, &chart, chart.Title)
		}

	default:
		cw.Write([]string{"Result", "No data"})
	}
}

// writeChartCSV writes label + one column per dataset, or one row per point
// for scatter and bubble datasets. A non-empty group becomes a leading
// column so split charts stay distinguishable.
func writeChartCSV(cw *csv.Writer, chart *engine.ChartData, group string) {
	prefix := func(row []string) []string {
		if group == "" {
			return row
		}
		return append([]string{group}, row...)
	}

	if len(chart.Datasets) > 0 && len(chart.Datasets[0].Points) > 0 {
		cw.Write(prefix([]string{"Dataset", "X", "Y", "R"}))
		for _, ds := range chart.Datasets {
			for _, p := range ds.Points {
				r := ""
				if p.R != nil {
					r = engine.FormatNumber(*p.R)
				}
				cw.Write(prefix([]string{ds.Label, engine.FormatNumber(p.X), engine.FormatNumber(p.Y), r}))
			}
		}
		return
	}

	headers := []string{"Label"}
	for _, ds := range chart.Datasets {
		headers = append(headers, ds.Label)
	}
	cw.Write(prefix(headers))

	for i, label := range chart.Labels {
		row := []string{label}
		for _, ds := range chart.Datasets {
			if i < len(ds.Data) {
				row = append(row, engine.FormatNumber(ds.Data[i]))
			} else {
				row = append(row, "")
			}
		}
		cw.Write(prefix(row))
	}
}

func writeTableCSV(cw *csv.Writer, table *engine.TableData) {
	headers := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		headers[i] = col.Label
	}
	cw.Write(headers)

	for _, rec := range table.DisplayData {
		row := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			row[i] = engine.ToText(rec[col.Key])
		}
		cw.Write(row)
	}
}

func writeKPICSV(cw *csv.Writer, kpi *engine.KPIResult) {
	headers := []string{"Label", "Value", "Formatted", "Count"}
	row := []string{kpi.Label, engine.FormatNumber(kpi.Value), kpi.Formatted, engine.FormatNumber(float64(kpi.Count))}
	if kpi.Trend != nil {
		headers = append(headers, "Previous", "Change %")
		row = append(row, engine.FormatNumber(kpi.Trend.Previous), engine.FormatDecimal(kpi.Trend.Percent, 2))
	}
	cw.Write(headers)
	cw.Write(row)
}
