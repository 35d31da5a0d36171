// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/runstate"
	"github.com/bartekus/vcgen/internal/scheduler"
)

// Summary renders a run: a short header followed by one row per worker.
func Summary(last runstate.LastRun, m Mode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status:    %s\n", last.Status)
	fmt.Fprintf(&b, "Collected: %d / %d\n", last.Collected, last.Entries)
	if !last.StartedAt.IsZero() && !last.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Duration:  %s\n", last.FinishedAt.Sub(last.StartedAt).Round(time.Second))
	}
	if last.Dataset != "" {
		fmt.Fprintf(&b, "Dataset:   %s\n", last.Dataset)
	}
	if last.Uploaded != "" {
		fmt.Fprintf(&b, "Uploaded:  %s\n", last.Uploaded)
	}
	if last.Note != "" {
		fmt.Fprintf(&b, "Note:      %s\n", last.Note)
	}
	b.WriteString("\n")

	w := newWriter(m)
	w.AppendHeader(table.Row{"Worker", "Repos", "Visited", "Skipped", "Quota", "Collected", "Shortfall", "Error"})
	var quota, collected, shortfall int
	for _, r := range last.Workers {
		w.AppendRow(table.Row{r.Index, r.Repositories, r.Visited, r.Skipped, r.Quota, r.Collected, r.Shortfall(), r.Err})
		quota += r.Quota
		collected += r.Collected
		shortfall += r.Shortfall()
	}
	w.AppendFooter(table.Row{"total", "", "", "", quota, collected, shortfall, ""})
	w.SetColumnConfigs(rightAligned(2, 3, 4, 5, 6, 7))
	b.WriteString(render(w, m))
	b.WriteString("\n")
	return b.String()
}

// Worker renders one worker's report as a two-column table.
func Worker(r scheduler.WorkerReport, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Worker", r.Index})
	w.AppendRows([]table.Row{
		{"Repos", r.Repositories},
		{"Visited", r.Visited},
		{"Skipped", r.Skipped},
		{"Quota", r.Quota},
		{"Collected", r.Collected},
		{"Shortfall", r.Shortfall()},
	})
	if r.Err != "" {
		w.AppendRow(table.Row{"Error", r.Err})
	}
	return render(w, m) + "\n"
}

// Analyzers renders the pre-flight view of every registered analyzer.
func Analyzers(statuses []analyzer.Status, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Analyzer", "Enabled", "Override", "Location"})
	for _, s := range statuses {
		loc := s.Location
		if loc == "" {
			loc = "not installed"
		}
		w.AppendRow(table.Row{s.Name, yesNo(s.Enabled), s.EnvVar, loc})
	}
	return render(w, m) + "\n"
}

// Locations renders discovered repositories in discovery order.
func Locations(locs []domain.RepositoryLocation, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"#", "Repository", "Size KB"})
	for i, l := range locs {
		size := "?"
		if l.SizeKB > 0 {
			size = strconv.FormatInt(l.SizeKB, 10)
		}
		w.AppendRow(table.Row{i + 1, l.URL, size})
	}
	w.SetColumnConfigs(rightAligned(1, 3))
	return render(w, m) + "\n"
}

// Rows renders dataset rows with per-analyzer finding counts and CWEs.
func Rows(records []domain.AnalyzedFile, tools []string, m Mode) string {
	w := newWriter(m)
	header := table.Row{"#", "Repository", "Commit", "File"}
	for _, t := range tools {
		header = append(header, t, t+" CWEs")
	}
	w.AppendHeader(header)
	for i, rec := range records {
		row := table.Row{i + 1, domain.RepositoryLocation{URL: rec.Repository}.Name(), shortHash(rec.CommitHash), rec.Path}
		for _, t := range tools {
			res, ok := rec.Result(t)
			if !ok {
				row = append(row, "-", "-")
				continue
			}
			row = append(row, FindingCount(res.Findings), strings.Join(res.WeaknessIDs, " "))
		}
		w.AppendRow(row)
	}
	w.SetColumnConfigs(rightAligned(1))
	return render(w, m) + "\n"
}

// Context prints the code lines that findings point at, one block per tool.
func Context(rec domain.AnalyzedFile, tools []string) string {
	lines := strings.Split(rec.Code, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "%s @ %s: %s\n", domain.RepositoryLocation{URL: rec.Repository}.Name(), shortHash(rec.CommitHash), rec.Path)
	for _, t := range tools {
		res, ok := rec.Result(t)
		if !ok || len(res.Findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s:\n", t)
		for _, n := range FindingLines(res.Findings) {
			if n < 1 || n > len(lines) {
				continue
			}
			fmt.Fprintf(&b, "  %5d | %s\n", n, lines[n-1])
		}
	}
	return b.String()
}

var lineRef = regexp.MustCompile(`^(\d+):(?:\d+:)?$`)

// FindingLines extracts the distinct line numbers findings refer to, in order
// of appearance. Findings start with "line:" or "line:col:"; this also works
// on findings that were split on whitespace when read back from a dataset.
func FindingLines(findings []string) []int {
	var out []int
	seen := map[int]bool{}
	for _, f := range findings {
		tok, _, _ := strings.Cut(strings.TrimSpace(f), " ")
		m := lineRef.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// FindingCount counts findings by their line references.
func FindingCount(findings []string) int {
	n := 0
	for _, f := range findings {
		tok, _, _ := strings.Cut(strings.TrimSpace(f), " ")
		if lineRef.MatchString(tok) {
			n++
		}
	}
	return n
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
