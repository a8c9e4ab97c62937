package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestReadSeedFile_CSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "branches.csv", "\ufeffID, Name ,address\nb1,Pusat,\nb2,Cabang Timur,Jl. Merdeka\n")

	header, records, err := readSeedFile(dir, "branches")

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "address"}, header)
	assert.Equal(t, [][]string{{"b1", "Pusat", ""}, {"b2", "Cabang Timur", "Jl. Merdeka"}}, records)
}

func TestReadSeedFile_XLSX(t *testing.T) {
	dir := t.TempDir()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"id", "name", "purchase_price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"p1", "Kopi", "12500"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"p2", "Teh", "8000"}))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "products.xlsx")))
	require.NoError(t, f.Close())

	header, records, err := readSeedFile(dir, "products")

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "purchase_price"}, header)
	assert.Equal(t, [][]string{{"p1", "Kopi", "12500"}, {"p2", "Teh", "8000"}}, records)
}

func TestReadSeedFile_Missing(t *testing.T) {
	_, _, err := readSeedFile(t.TempDir(), "operational_costs")
	assert.ErrorIs(t, err, errNoSeedFile)
}

func TestSeedColumns(t *testing.T) {
	table := seedTable{Name: "transactions", Required: []string{"id", "status", "total_amount"}, Optional: []string{"branch_id", "created_at"}}

	columns, idx, err := seedColumns(table, []string{"notes", "total_amount", "id", "branch_id", "status"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "status", "total_amount", "branch_id"}, columns)
	assert.Equal(t, []int{2, 4, 1, 3}, idx)

	_, _, err = seedColumns(table, []string{"id", "status"})
	assert.ErrorContains(t, err, "total_amount")
}

func TestBuildInsertQuery(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO branches ("id", "name") VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		buildInsertQuery("branches", []string{"id", "name"}))
}

func TestSeedDemoData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "branches.csv", "id,name\nb1,Pusat\n")
	writeFile(t, dir, "operational_costs.csv", "id,branch_id,date,amount\noc1,,2026-10-03,150\n")

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := postgres.Wrap(sqlx.NewDb(mockDB, "pgx"), 1)

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO branches ("id", "name")`)).
		ExpectExec().
		WithArgs("b1", "Pusat").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO operational_costs ("id", "date", "amount", "branch_id")`)).
		ExpectExec().
		WithArgs("oc1", "2026-10-03", "150", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return seedDemoData(context.Background(), tx, dir)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDemoData_RollsBackOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "branches.csv", "id\nb1\n")

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := postgres.Wrap(sqlx.NewDb(mockDB, "pgx"), 1)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return seedDemoData(context.Background(), tx, dir)
	})

	assert.ErrorContains(t, err, "failed to seed branches")
	assert.NoError(t, mock.ExpectationsWereMet())
}
