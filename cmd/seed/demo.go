package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/backoffice/backend-go/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// seedTable describes one seed file and the columns it may provide.
type seedTable struct {
	Name     string
	Required []string
	Optional []string
}

// demoTables are loaded parents first so foreign keys resolve.
var demoTables = []seedTable{
	{Name: "branches", Required: []string{"id", "name"}, Optional: []string{"address", "created_at"}},
	{Name: "products", Required: []string{"id", "name", "purchase_price"}, Optional: []string{"selling_price", "created_at"}},
	{Name: "transactions", Required: []string{"id", "status", "total_amount"}, Optional: []string{"branch_id", "created_at"}},
	{Name: "transaction_items", Required: []string{"transaction_id", "product_id", "quantity"}, Optional: []string{"id"}},
	{Name: "operational_costs", Required: []string{"id", "date", "amount"}, Optional: []string{"branch_id", "description"}},
}

var errNoSeedFile = errors.New("no seed file")

func seedDemoData(ctx context.Context, tx *sql.Tx, dataDir string) error {
	for _, table := range demoTables {
		header, records, err := readSeedFile(dataDir, table.Name)
		if errors.Is(err, errNoSeedFile) {
			logger.Log.Warn().Str("table", table.Name).Str("dir", dataDir).Msg("seed: no file found, skipping")
			continue
		}
		if err != nil {
			return err
		}

		n, err := insertRecords(ctx, tx, table, header, records)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", table.Name, err)
		}
		logger.Log.Info().Str("table", table.Name).Int("rows", n).Msg("seed: table seeded")
	}
	return nil
}

// readSeedFile looks for <name>.csv, then <name>.xlsx, in dir and returns the header
// row and the data rows.
func readSeedFile(dir, name string) ([]string, [][]string, error) {
	csvPath := filepath.Join(dir, name+".csv")
	if _, err := os.Stat(csvPath); err == nil {
		return readCSVRecords(csvPath)
	}

	xlsxPath := filepath.Join(dir, name+".xlsx")
	if _, err := os.Stat(xlsxPath); err == nil {
		return readXLSXRecords(xlsxPath)
	}

	return nil, nil, errNoSeedFile
}

func readCSVRecords(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header of %s: %w", path, err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV record of %s: %w", path, err)
		}
		records = append(records, record)
	}
	return normalizeHeader(header), records, nil
}

// readXLSXRecords reads the first sheet of a workbook, with the header in row one.
func readXLSXRecords(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("xlsx file %s has no sheets", path)
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var (
		header  []string
		records [][]string
	)
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read row from %s: %w", path, err)
		}
		if header == nil {
			header = normalizeHeader(record)
			continue
		}
		if isBlankRow(record) {
			continue
		}
		records = append(records, record)
	}
	if err := rows.Error(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows in %s: %w", path, err)
	}
	if header == nil {
		return nil, nil, fmt.Errorf("xlsx file %s has no header row", path)
	}

	return header, records, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return out
}

func isBlankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// seedColumns maps the table's known columns to their index in header. Unknown
// header columns are ignored; missing required columns are an error.
func seedColumns(table seedTable, header []string) ([]string, []int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	var (
		columns []string
		idx     []int
	)
	for _, col := range table.Required {
		i, ok := index[col]
		if !ok {
			return nil, nil, fmt.Errorf("column '%s' not found in header: %v", col, header)
		}
		columns = append(columns, col)
		idx = append(idx, i)
	}
	for _, col := range table.Optional {
		if i, ok := index[col]; ok {
			columns = append(columns, col)
			idx = append(idx, i)
		}
	}
	return columns, idx, nil
}

// buildInsertQuery inserts one row and silently skips rows whose key already exists,
// so the seeder can run more than once.
func buildInsertQuery(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table,
		buildColumnList(columns),
		strings.Join(placeholders, ", "),
	)
}

func insertRecords(ctx context.Context, tx *sql.Tx, table seedTable, header []string, records [][]string) (int, error) {
	columns, idx, err := seedColumns(table, header)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, buildInsertQuery(table.Name, columns))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for n, record := range records {
		args := make([]interface{}, len(columns))
		for i, pos := range idx {
			value := ""
			if pos < len(record) {
				value = record[pos]
			}
			args[i] = nullIfEmpty(value)
		}

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert record %d: %w", n+1, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			inserted += int(affected)
		}
	}
	return inserted, nil
}

// nullIfEmpty returns NULL if the string is empty, otherwise returns the string
func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func buildColumnList(columns []string) string {
	return `"` + strings.Join(columns, `", "`) + `"`
}
