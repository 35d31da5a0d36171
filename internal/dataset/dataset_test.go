package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/testutil/golden"
)

var testTools = []string{"Flawfinder", "Cppcheck"}

func sample() []domain.AnalyzedFile {
	return []domain.AnalyzedFile{
		{
			Repository: "https://github.com/a/b.git",
			CommitHash: "abc123",
			Path:       "src/x.c",
			Code:       "int main() {\n  strcpy(a, b);\n}\n",
			Results: map[string]domain.ToolResult{
				"Flawfinder": {Findings: []string{"3:3: [4] (buffer) strcpy"}, WeaknessIDs: []string{"CWE-120"}},
			},
		},
		{
			Repository: "https://github.com/a/b.git",
			CommitHash: "def456",
			Path:       "y.c",
			Code:       "gets(s);",
			Results: map[string]domain.ToolResult{
				"Flawfinder": {Findings: []string{}, WeaknessIDs: []string{}},
				"Cppcheck": {
					Findings:    []string{"1:1: error (bufferAccessOutOfBounds) overrun", "2:1: warning (x) y"},
					WeaknessIDs: []string{"CWE-788", "CWE-119"},
				},
				"Infer": {Findings: []string{"dropped"}},
			},
		},
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		dest string
		want Format
	}{
		{"out.jsonl", JSONL},
		{"out.JSON", JSONL},
		{"dir/out.csv", CSV},
		{"out.sqlite", SQLite},
		{"out.db", SQLite},
		{"postgres://u:p@localhost/db", Postgres},
		{"postgresql://localhost/db", Postgres},
	}
	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			got, err := FormatFor(tt.dest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatFor("out.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{
		"GitHub URL", "Commit Hash", "File", "Code",
		"Flawfinder Vulnerabilities", "Flawfinder CWEs",
		"Cppcheck Vulnerabilities", "Cppcheck CWEs",
	}, Columns(testTools))
	assert.Len(t, Columns(nil), 4)
}

func TestEncodeJSONL_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSONL(&buf, sample(), testTools))
	golden.Assert(t, golden.TestdataDir(t), "records.jsonl", buf.String())
}

func TestEncodeCSV_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, sample(), testTools))
	golden.Assert(t, golden.TestdataDir(t), "records.csv", buf.String())
}

func TestJSONL_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	h, err := Write(context.Background(), sample(), testTools, path)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Rows)
	assert.Equal(t, JSONL, h.Format)

	got, gotTools, err := Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, testTools, gotTools)
	require.Len(t, got, 2)

	assert.Equal(t, "int main() {\n  strcpy(a, b);\n}\n", got[0].Code)
	// findings are split on whitespace when read back
	assert.Equal(t, map[string]domain.ToolResult{
		"Flawfinder": {Findings: []string{"3:3:", "[4]", "(buffer)", "strcpy"}, WeaknessIDs: []string{"CWE-120"}},
	}, got[0].Results)

	_, ok := got[1].Result("Infer")
	assert.False(t, ok)
	ff, ok := got[1].Result("Flawfinder")
	require.True(t, ok)
	assert.True(t, ff.Empty())
	cc, _ := got[1].Result("Cppcheck")
	assert.Equal(t, []string{"CWE-788", "CWE-119"}, cc.WeaknessIDs)
}

func TestCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	_, err := Write(context.Background(), sample(), testTools, path)
	require.NoError(t, err)

	got, gotTools, err := Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, testTools, gotTools)
	require.Len(t, got, 2)
	assert.Equal(t, "src/x.c", got[0].Path)
	assert.Equal(t, "def456", got[1].CommitHash)

	// CSV cannot tell an analyzer that did not run from one that found nothing
	cc, ok := got[0].Result("Cppcheck")
	require.True(t, ok)
	assert.True(t, cc.Empty())
}

func TestSQLite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.sqlite")
	_, err := Write(context.Background(), sample(), testTools, path)
	require.NoError(t, err)

	got, gotTools, err := Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, testTools, gotTools)
	require.Len(t, got, 2)

	assert.Equal(t, sample()[0].Code, got[0].Code)
	_, ok := got[0].Result("Cppcheck")
	assert.False(t, ok, "null cells mean the analyzer did not run")
	ff, _ := got[0].Result("Flawfinder")
	assert.Equal(t, []string{"CWE-120"}, ff.WeaknessIDs)
}

func TestSQLite_ReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	_, err := Write(context.Background(), sample(), testTools, path)
	require.NoError(t, err)
	_, err = Write(context.Background(), sample()[:1], testTools, path)
	require.NoError(t, err)

	got, _, err := Read(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestWrite_Unsupported(t *testing.T) {
	_, err := Write(context.Background(), sample(), testTools, filepath.Join(t.TempDir(), "out.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, _, err = Read(context.Background(), "postgres://localhost/db")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeJSONL_Errors(t *testing.T) {
	_, _, err := DecodeJSONL(bytes.NewBufferString(`["not","an","object"]`))
	assert.Error(t, err)

	_, _, err = DecodeJSONL(bytes.NewBufferString(`{"GitHub URL": 3}`))
	assert.Error(t, err)

	recs, gotTools, err := DecodeJSONL(bytes.NewBufferString(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, gotTools)
}

func TestPostgresTarget(t *testing.T) {
	dsn, table, err := postgresTarget("postgres://u:p@db:5432/vc?sslmode=disable&table=rows_2024")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/vc?sslmode=disable", dsn)
	assert.Equal(t, "rows_2024", table)

	_, table, err = postgresTarget("postgres://db/vc")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, table)

	_, _, err = postgresTarget("postgres://db/vc?table=x-y")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://u:xxxxx@db/vc", redact("postgres://u:secret@db/vc"))
	assert.Equal(t, "out/data.jsonl", redact("out/data.jsonl"))
}

func TestInsertSQL(t *testing.T) {
	cols := Columns([]string{"Infer"})
	assert.Equal(t,
		`INSERT INTO "t" ("GitHub URL", "Commit Hash", "File", "Code", "Infer Vulnerabilities", "Infer CWEs") VALUES ($1, $2, $3, $4, $5, $6)`,
		insertSQL(postgresDialect, "t", cols))
	assert.Contains(t, insertSQL(sqliteDialect, "t", cols), "VALUES (?, ?, ?, ?, ?, ?)")
	assert.Contains(t, createTableSQL("t", cols), `"Code" TEXT NOT NULL, "Infer Vulnerabilities" TEXT,`)
}
