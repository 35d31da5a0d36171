package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/runstate"
	"github.com/bartekus/vcgen/internal/scheduler"
)

func TestFindingLines(t *testing.T) {
	whole := []string{"3:3: [4] (buffer) strcpy", "10: [2] (race) access", "3:9: [1] again", "no reference"}
	assert.Equal(t, []int{3, 10}, FindingLines(whole))
	assert.Equal(t, 3, FindingCount(whole))

	// the same findings after a dataset round trip
	split := strings.Fields(strings.Join(whole, " "))
	assert.Equal(t, []int{3, 10}, FindingLines(split))
	assert.Equal(t, 3, FindingCount(split))
}

func TestContext(t *testing.T) {
	rec := domain.AnalyzedFile{
		Repository: "https://github.com/curl/curl.git",
		CommitHash: "0123456789abcdef",
		Path:       "lib/x.c",
		Code:       "int a;\nchar b[4];\nstrcpy(b, s);\n",
		Results: map[string]domain.ToolResult{
			"Flawfinder": {Findings: []string{"3:1: [4] (buffer) strcpy", "99:1: out of range"}},
			"Cppcheck":   {Findings: []string{}},
		},
	}
	out := Context(rec, []string{"Flawfinder", "Cppcheck", "Infer"})
	assert.Contains(t, out, "curl/curl @ 0123456789: lib/x.c")
	assert.Contains(t, out, "      3 | strcpy(b, s);")
	assert.NotContains(t, out, "Cppcheck")
	assert.NotContains(t, out, "99 |")
}

func TestRows(t *testing.T) {
	recs := []domain.AnalyzedFile{{
		Repository: "https://github.com/a/b.git",
		CommitHash: "abc",
		Path:       "x.c",
		Results: map[string]domain.ToolResult{
			"Flawfinder": {Findings: []string{"1:1: a", "2:1: b"}, WeaknessIDs: []string{"CWE-120", "CWE-20"}},
		},
	}}
	out := Rows(recs, []string{"Flawfinder", "Cppcheck"}, Markdown)
	assert.Contains(t, strings.ToLower(out), "flawfinder cwes")
	assert.Contains(t, strings.ToLower(out), "cppcheck cwes")
	assert.Contains(t, out, "a/b")
	assert.Contains(t, out, "CWE-120 CWE-20")
	assert.Regexp(t, `\|\s*2\s*\|\s*CWE-120`, out)
	assert.Regexp(t, `\|\s*-\s*\|\s*-\s*\|`, out, "analyzers that did not run show a dash")
}

func TestSummary(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := runstate.LastRun{
		Status:     runstate.StatusPartial,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Entries:    10,
		Collected:  7,
		Dataset:    "out.jsonl",
		Workers: []scheduler.WorkerReport{
			{Index: 0, Quota: 5, Repositories: 2, Visited: 1, Collected: 5},
			{Index: 1, Quota: 5, Repositories: 2, Visited: 2, Skipped: 1, Collected: 2, Err: "panic: boom"},
		},
	}
	out := Summary(last, ASCII)
	assert.Contains(t, out, "Status:    partial")
	assert.Contains(t, out, "Collected: 7 / 10")
	assert.Contains(t, out, "Duration:  1m30s")
	assert.Contains(t, out, "panic: boom")
	assert.Contains(t, out, "TOTAL", "go-pretty upper-cases footers in the light style")
}

func TestWorker(t *testing.T) {
	out := Worker(scheduler.WorkerReport{Index: 3, Quota: 5, Repositories: 4, Visited: 4, Skipped: 1, Collected: 1, Err: "clone failed"}, Markdown)
	assert.Regexp(t, `Visited\s*\|\s*4\s*\|`, out)
	assert.Regexp(t, `Shortfall\s*\|\s*4\s*\|`, out)
	assert.Regexp(t, `Error\s*\|\s*clone failed\s*\|`, out)

	out = Worker(scheduler.WorkerReport{Index: 0, Quota: 2, Collected: 2}, ASCII)
	assert.NotContains(t, out, "Error")
}

func TestAnalyzers(t *testing.T) {
	out := Analyzers([]analyzer.Status{
		{Name: "Flawfinder", EnvVar: "FLAWFINDER_PATH", Enabled: true, Location: "/usr/bin/flawfinder"},
		{Name: "Infer", EnvVar: "INFER_PATH"},
	}, Markdown)
	assert.Regexp(t, `Flawfinder\s*\|\s*yes\s*\|`, out)
	assert.Regexp(t, `Infer\s*\|\s*no\s*\|`, out)
	assert.Contains(t, out, "/usr/bin/flawfinder")
	assert.Contains(t, out, "not installed")
}

func TestLocations(t *testing.T) {
	out := Locations([]domain.RepositoryLocation{
		{URL: "https://github.com/a/b.git", SizeKB: 12},
		{URL: "https://github.com/c/d.git"},
	}, Markdown)
	assert.Contains(t, out, "https://github.com/a/b.git")
	assert.Regexp(t, `\|\s*12\s*\|`, out)
	assert.Regexp(t, `\|\s*\?\s*\|`, out)
}
