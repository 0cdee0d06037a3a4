package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, true
	case FormatXLSX:
		return FormatXLSX, true
	}
	return "", false
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

var (
	summaryHeader     = []string{"Chemical", "Unit", "Added", "Removed", "Net Change", "Transactions"}
	transactionHeader = []string{"Date & Time", "Admin User", "Chemical", "Action", "Amount", "Previous Stock", "New Stock", "Notes"}
)

const exportTimeLayout = "Jan 2, 2006, 03:04 PM"

func summaryRecords(s *MonthlySummary) [][]string {
	out := make([][]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, []string{
			r.ChemicalName,
			r.Unit,
			formatQty(r.TotalAdded),
			formatQty(r.TotalRemoved),
			formatQty(r.NetChange),
			strconv.Itoa(r.TransactionCount),
		})
	}
	return out
}

func transactionRecords(txs []Transaction, loc *time.Location) [][]string {
	if loc == nil {
		loc = time.UTC
	}
	out := make([][]string, 0, len(txs))
	for _, t := range txs {
		unit := t.Unit
		if t.ChemicalDeleted {
			unit = ""
		}
		out = append(out, []string{
			t.CreatedAt.In(loc).Format(exportTimeLayout),
			t.AdminName(),
			t.ChemicalName,
			strings.ToUpper(string(t.ActionType)),
			withUnit(t.Amount, unit),
			withUnit(t.PreviousStock, unit),
			withUnit(t.NewStock, unit),
			t.Notes,
		})
	}
	return out
}

func formatQty(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func withUnit(f float64, unit string) string {
	if unit == "" {
		return formatQty(f)
	}
	return formatQty(f) + " " + unit
}

// WriteSummary writes the monthly summary table.
func WriteSummary(w io.Writer, f Format, s *MonthlySummary) error {
	return write(w, f, "Summary", summaryHeader, summaryRecords(s))
}

// WriteTransactions writes a transaction list with times shown in loc.
func WriteTransactions(w io.Writer, f Format, txs []Transaction, loc *time.Location) error {
	return write(w, f, "Transactions", transactionHeader, transactionRecords(txs, loc))
}

func write(w io.Writer, f Format, sheet string, header []string, records [][]string) error {
	switch f {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(records); err != nil {
			return err
		}
		return cw.Error()
	case FormatXLSX:
		return writeXLSX(w, sheet, header, records)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeXLSX(w io.Writer, sheet string, header []string, records [][]string) error {
	xf := excelize.NewFile()
	defer xf.Close()

	if err := xf.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	bold, err := xf.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rows := append([][]string{header}, records...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = cellValue(v)
		}
		if err := xf.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := xf.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}

	_, err = xf.WriteTo(w)
	return err
}

// cellValue stores plain numbers as numbers so spreadsheets can sum them.
func cellValue(s string) interface{} {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}
