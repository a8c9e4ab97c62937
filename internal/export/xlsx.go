// Package export renders report summaries as downloadable spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ProfitLossSheet = "Laba Rugi"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	numFmtThousands = 4 // #,##0.00
	numFmtDecimal   = 2 // 0.00
)

type amountRow struct {
	label  string
	value  decimal.Decimal
	numFmt int
}

// WriteProfitLoss writes a single-sheet workbook for the summary to w.
func WriteProfitLoss(w io.Writer, summary *domain.ProfitLossSummary) error {
	if summary == nil {
		return fmt.Errorf("no summary to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ProfitLossSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	branch := summary.BranchID
	if branch == "" {
		branch = "Semua cabang"
	}

	header := [][2]interface{}{
		{"Laporan Laba Rugi", nil},
		{"Periode", summary.Filter.Label()},
		{"Mulai", summary.PeriodStart.Format("2006-01-02 15:04")},
		{"Cabang", branch},
		{"Dibuat", summary.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
	for i, row := range header {
		if err := setRow(f, i+1, row[0], row[1]); err != nil {
			return err
		}
	}

	rows := []amountRow{
		{"Pendapatan", summary.TotalRevenue, numFmtThousands},
		{"Harga Pokok Penjualan", summary.TotalCOGS, numFmtThousands},
		{"Laba Kotor", summary.GrossProfit, numFmtThousands},
		{"Biaya Operasional", summary.OperationalCosts, numFmtThousands},
		{"Laba Bersih", summary.NetProfit, numFmtThousands},
		{"Margin Laba (%)", summary.ProfitMargin.Round(2), numFmtDecimal},
	}

	styles := make(map[int]int)
	first := len(header) + 2
	for i, row := range rows {
		rowNum := first + i
		if err := setRow(f, rowNum, row.label, row.value.InexactFloat64()); err != nil {
			return err
		}

		style, ok := styles[row.numFmt]
		if !ok {
			var err error
			style, err = f.NewStyle(&excelize.Style{NumFmt: row.numFmt})
			if err != nil {
				return fmt.Errorf("failed to create style: %w", err)
			}
			styles[row.numFmt] = style
		}

		cell := fmt.Sprintf("B%d", rowNum)
		if err := f.SetCellStyle(ProfitLossSheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to style %s: %w", cell, err)
		}
	}

	if err := f.SetColWidth(ProfitLossSheet, "A", "A", 28); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(ProfitLossSheet, "B", "B", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ProfitLossFilename names the export, e.g. laba_rugi_bulan_20261001.xlsx.
func ProfitLossFilename(summary *domain.ProfitLossSummary) string {
	name := fmt.Sprintf("laba_rugi_%s_%s", domain.ParseReportPeriod(string(summary.Filter)), summary.PeriodStart.Format("20060102"))
	if summary.BranchID != "" {
		name += "_" + summary.BranchID
	}
	return name + ".xlsx"
}

func setRow(f *excelize.File, row int, label, value interface{}) error {
	if err := f.SetCellValue(ProfitLossSheet, fmt.Sprintf("A%d", row), label); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	if value == nil {
		return nil
	}
	if err := f.SetCellValue(ProfitLossSheet, fmt.Sprintf("B%d", row), value); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
