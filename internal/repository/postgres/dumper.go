package postgres

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DefaultBackupTables lists the tables in dependency order (parents first).
var DefaultBackupTables = []string{
	"branches",
	"products",
	"transactions",
	"transaction_items",
	"operational_costs",
}

var copyHeaderPattern = regexp.MustCompile(`^COPY\s+(\S+)\s+\((.*)\)\s+FROM\s+stdin;$`)

// Dumper writes a data-only plain SQL dump using COPY, in the same section layout
// pg_dump produces, and loads such a dump back.
type Dumper struct {
	pool   *pgxpool.Pool
	tables []string
	now    func() time.Time
}

// NewPool opens a pgx connection pool used by the dumper.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func NewDumper(pool *pgxpool.Pool, tables ...string) *Dumper {
	if len(tables) == 0 {
		tables = DefaultBackupTables
	}
	return &Dumper{pool: pool, tables: tables, now: time.Now}
}

func (d *Dumper) Extension() string {
	return "sql"
}

// Dump streams every table as a COPY section into w.
func (d *Dumper) Dump(ctx context.Context, w io.Writer) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire connection: %w", err)
	}
	defer conn.Release()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "--\n-- backoffice data-only backup\n-- created %s\n--\n\n", d.now().UTC().Format(time.RFC3339))

	for _, table := range d.tables {
		rows, err := conn.Query(ctx, `
            SELECT column_name
            FROM information_schema.columns
            WHERE table_schema = current_schema() AND table_name = $1
            ORDER BY ordinal_position`, table)
		if err != nil {
			return fmt.Errorf("failed to list columns of %s: %w", table, err)
		}
		columns, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("failed to read columns of %s: %w", table, err)
		}
		if len(columns) == 0 {
			return fmt.Errorf("table %s does not exist", table)
		}

		fmt.Fprintf(bw, "%s\n", copyHeader(table, columns))
		tag, err := conn.Conn().PgConn().CopyTo(ctx, bw, fmt.Sprintf("COPY %s (%s) TO STDOUT", quoteIdent(table), quoteIdents(columns)))
		if err != nil {
			return fmt.Errorf("failed to copy %s: %w", table, err)
		}
		fmt.Fprint(bw, "\\.\n\n")

		log.Debug().Str("table", table).Int64("rows", tag.RowsAffected()).Msg("backup: table dumped")
	}

	return bw.Flush()
}

// Restore truncates the known tables and reloads them from the dump inside a single
// transaction. Sections for tables outside the dumper's list are rejected.
func (d *Dumper) Restore(ctx context.Context, r io.Reader) error {
	sections, err := readCopySections(r)
	if err != nil {
		return err
	}

	allowed := make(map[string]struct{}, len(d.tables))
	for _, t := range d.tables {
		allowed[t] = struct{}{}
	}
	for _, s := range sections {
		if _, ok := allowed[s.Table]; !ok {
			return fmt.Errorf("backup contains unknown table %q", s.Table)
		}
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			log.Error().Err(rbErr).Msg("backup: could not rollback restore")
		}
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", quoteIdents(d.tables))); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	for _, s := range sections {
		tag, err := tx.Conn().PgConn().CopyFrom(ctx, bytes.NewReader(s.Data),
			fmt.Sprintf("COPY %s (%s) FROM STDIN", quoteIdent(s.Table), quoteIdents(s.Columns)))
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", s.Table, err)
		}
		log.Debug().Str("table", s.Table).Int64("rows", tag.RowsAffected()).Msg("backup: table restored")

		if containsString(s.Columns, "id") {
			if err := resetSequence(ctx, tx, s.Table); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("could not commit restore: %w", err)
	}
	return nil
}

// sequenceQuerier is the part of pgx.Tx used to realign serial columns.
type sequenceQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// resetSequence moves the sequence behind table.id past the restored rows. Tables
// whose id has no sequence, like the TEXT keys, are left untouched.
func resetSequence(ctx context.Context, q sequenceQuerier, table string) error {
	var seq *string
	if err := q.QueryRow(ctx, `SELECT pg_get_serial_sequence($1, 'id')`, quoteIdent(table)).Scan(&seq); err != nil {
		return fmt.Errorf("failed to look up sequence of %s: %w", table, err)
	}
	if seq == nil {
		return nil
	}

	if _, err := q.Exec(ctx, setvalQuery(table), *seq); err != nil {
		return fmt.Errorf("failed to reset sequence of %s: %w", table, err)
	}
	return nil
}

func setvalQuery(table string) string {
	return `SELECT setval($1::regclass, (SELECT COALESCE(MAX(id), 0) FROM ` + quoteIdent(table) + `) + 1, false)`
}

type copySection struct {
	Table   string
	Columns []string
	Data    []byte
}

// readCopySections parses a dump produced by Dump (or pg_dump --data-only with
// COPY statements). Comment and blank lines between sections are ignored.
func readCopySections(r io.Reader) ([]copySection, error) {
	br := bufio.NewReader(r)

	var (
		sections []copySection
		current  *copySection
		data     bytes.Buffer
		lineNo   int
	)

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("failed to read backup: %w", readErr)
		}

		if line != "" {
			lineNo++
			trimmed := strings.TrimRight(line, "\r\n")

			switch {
			case current != nil && trimmed == `\.`:
				current.Data = append([]byte(nil), data.Bytes()...)
				sections = append(sections, *current)
				current = nil
				data.Reset()
			case current != nil:
				data.WriteString(trimmed)
				data.WriteByte('\n')
			case trimmed == "" || strings.HasPrefix(trimmed, "--"):
			default:
				m := copyHeaderPattern.FindStringSubmatch(trimmed)
				if m == nil {
					return nil, fmt.Errorf("unexpected statement at line %d of backup", lineNo)
				}
				columns := make([]string, 0)
				for _, c := range strings.Split(m[2], ",") {
					if c = strings.TrimSpace(c); c != "" {
						columns = append(columns, unquoteIdent(c))
					}
				}
				current = &copySection{Table: unquoteIdent(m[1]), Columns: columns}
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	if current != nil {
		return nil, fmt.Errorf("unterminated data section for table %s", current.Table)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("backup contains no data sections")
	}

	return sections, nil
}

func copyHeader(table string, columns []string) string {
	return fmt.Sprintf("COPY %s (%s) FROM stdin;", quoteIdent(table), quoteIdents(columns))
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
