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
	CppcheckEnvVar      = "CPPCHECK_PATH"
	cppcheckDefaultPath = "/usr/bin/cppcheck"

	cppcheckTemplate = "{line}:{column}:{severity}:{id}:{cwe}:{message}"
)

// Cppcheck runs cppcheck with a fixed single-line template on stderr.
type Cppcheck struct {
	executable
}

func NewCppcheck(opts ...Option) *Cppcheck {
	return &Cppcheck{executable: newExecutable(CppcheckName, CppcheckEnvVar, cppcheckDefaultPath, opts)}
}

func (c *Cppcheck) Scan(ctx context.Context, path string) (domain.ToolResult, error) {
	out, err := c.run(ctx, "",
		"--enable=warning,style,performance,portability",
		"--quiet",
		"--template="+cppcheckTemplate,
		path,
	)
	if err != nil {
		return domain.ToolResult{}, err
	}
	res, err := parseCppcheck(string(out.Stderr))
	if err != nil {
		return domain.ToolResult{}, &ExecutionError{Tool: c.name, Output: tail(out.combined(), 20), Err: err}
	}
	return res, nil
}

var cppcheckLineRe = regexp.MustCompile(`^(\d+):(\d+):(\w+):([\w.]+):(\d*):(.*)$`)

// parseCppcheck reads template output. Information messages, including the
// "nofile:0:0:information" lines cppcheck prints outside the template, are
// skipped; any other line that does not match the template is an error.
func parseCppcheck(stderr string) (domain.ToolResult, error) {
	res := domain.ToolResult{Findings: []string{}, WeaknessIDs: []string{}}
	sc := bufio.NewScanner(strings.NewReader(stderr))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "nofile:") {
			continue
		}
		m := cppcheckLineRe.FindStringSubmatch(text)
		if m == nil {
			return domain.ToolResult{}, fmt.Errorf("unparseable line %q", text)
		}
		line, col, severity, id, cwe, msg := m[1], m[2], m[3], m[4], m[5], strings.TrimSpace(m[6])
		if severity == "information" {
			continue
		}
		res.Findings = append(res.Findings, fmt.Sprintf("%s:%s: %s (%s) %s", line, col, severity, id, msg))
		if cwe != "" && cwe != "0" {
			res.WeaknessIDs = appendUnique(res.WeaknessIDs, "CWE-"+cwe)
		}
	}
	if err := sc.Err(); err != nil {
		return domain.ToolResult{}, err
	}
	return res, nil
}
