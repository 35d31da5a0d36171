package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/bartekus/vcgen/internal/domain"
)

// DefaultTable holds dataset rows in SQL destinations. A postgres URL may
// override it with a "table" query parameter.
const DefaultTable = "vulnerable_code"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect covers the differences between the two SQL drivers.
type dialect struct {
	driver      string
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		driver:      "sqlite",
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		driver:      "pgx",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(table string, cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		def := quoteIdent(c) + " TEXT"
		if i < 4 {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func insertSQL(d dialect, table string, cols []string) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c)
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// insertAll creates the table if needed and inserts every record in one
// transaction.
func insertAll(ctx context.Context, db *sql.DB, d dialect, table string, records []domain.AnalyzedFile, tools []string) error {
	cols := Columns(tools)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createTableSQL(table, cols)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL(d, table, cols))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for n, rec := range records {
		for i, c := range toCells(rec, tools) {
			if c.null {
				args[i] = nil
			} else {
				args[i] = c.value
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", n+1, err)
		}
	}
	return tx.Commit()
}

// writeSQLite builds the database next to dest and renames it into place, so
// an existing file is replaced only by a complete dataset.
func writeSQLite(ctx context.Context, records []domain.AnalyzedFile, tools []string, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	db, err := sql.Open(sqliteDialect.driver, tmpPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := insertAll(ctx, db, sqliteDialect, DefaultTable, records, tools); err != nil {
		_ = db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return os.Rename(tmpPath, dest)
}

// postgresTarget splits the table parameter off a postgres URL; pgx would
// otherwise send it to the server as a runtime setting.
func postgresTarget(dest string) (dsn, table string, err error) {
	u, err := url.Parse(dest)
	if err != nil {
		return "", "", fmt.Errorf("parse postgres URL: %w", err)
	}
	q := u.Query()
	table = q.Get("table")
	q.Del("table")
	u.RawQuery = q.Encode()
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return "", "", fmt.Errorf("invalid table name %q", table)
	}
	return u.String(), table, nil
}

func writePostgres(ctx context.Context, records []domain.AnalyzedFile, tools []string, dest string) error {
	dsn, table, err := postgresTarget(dest)
	if err != nil {
		return err
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return insertAll(ctx, db, postgresDialect, table, records, tools)
}

func readSQLite(ctx context.Context, src string) ([]domain.AnalyzedFile, []string, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(sqliteDialect.driver, src)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	return readTable(ctx, db, DefaultTable)
}

func readTable(ctx context.Context, db *sql.DB, table string) ([]domain.AnalyzedFile, []string, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var records []domain.AnalyzedFile
	for rows.Next() {
		raw := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		cells := make([]cell, len(raw))
		for i, ns := range raw {
			cells[i] = cell{value: ns.String, null: !ns.Valid}
		}
		rec, err := fromCells(header, cells)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return records, toolsFromHeader(header), nil
}

// redact hides the password of a postgres URL; paths pass through.
func redact(dest string) string {
	u, err := url.Parse(dest)
	if err != nil || u.User == nil {
		return dest
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
