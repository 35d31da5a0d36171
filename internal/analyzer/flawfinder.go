package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bartekus/vcgen/internal/domain"
)

const (
	FlawfinderEnvVar      = "FLAWFINDER_PATH"
	flawfinderDefaultPath = "/usr/bin/flawfinder"
)

// Flawfinder runs David Wheeler's flawfinder over C/C++ sources.
type Flawfinder struct {
	executable
}

func NewFlawfinder(opts ...Option) *Flawfinder {
	return &Flawfinder{executable: newExecutable(FlawfinderName, FlawfinderEnvVar, flawfinderDefaultPath, opts)}
}

func (f *Flawfinder) Scan(ctx context.Context, path string) (domain.ToolResult, error) {
	out, err := f.run(ctx, "", "--singleline", "--dataonly", "--quiet", path)
	if err != nil {
		return domain.ToolResult{}, err
	}
	res, err := parseFlawfinder(string(out.Stdout))
	if err != nil {
		return domain.ToolResult{}, &ExecutionError{Tool: f.name, Output: tail(out.combined(), 20), Err: err}
	}
	return res, nil
}

// a hit looks like "path:line:col:  [level] (category) name:message (CWE-nnn)."
var flawfinderHitRe = regexp.MustCompile(`^(.*?):(\d+):(?:(\d+):)?\s*(\[\d\].*)$`)

// parseFlawfinder reads --dataonly output, where every non-blank line is a hit.
func parseFlawfinder(stdout string) (domain.ToolResult, error) {
	res := domain.ToolResult{Findings: []string{}, WeaknessIDs: []string{}}
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m := flawfinderHitRe.FindStringSubmatch(line)
		if m == nil {
			return domain.ToolResult{}, fmt.Errorf("unparseable line %q", line)
		}
		loc := m[2]
		if m[3] != "" {
			loc += ":" + m[3]
		}
		hit := strings.TrimSpace(m[4])
		res.Findings = append(res.Findings, loc+": "+hit)
		res.WeaknessIDs = appendUnique(res.WeaknessIDs, cweIDs(hit)...)
	}
	if err := sc.Err(); err != nil {
		return domain.ToolResult{}, err
	}
	return res, nil
}
