package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bartekus/vcgen/internal/domain"
)

const (
	InferEnvVar      = "INFER_PATH"
	inferDefaultPath = "/usr/local/bin/infer"
)

// inferWeakness maps Infer bug types to CWE identifiers.
var inferWeakness = map[string]string{
	"NULL_DEREFERENCE":              "CWE-476",
	"NULLPTR_DEREFERENCE":           "CWE-476",
	"RESOURCE_LEAK":                 "CWE-772",
	"MEMORY_LEAK":                   "CWE-401",
	"MEMORY_LEAK_C":                 "CWE-401",
	"BUFFER_OVERRUN_L1":             "CWE-120",
	"BUFFER_OVERRUN_L2":             "CWE-120",
	"BUFFER_OVERRUN_L3":             "CWE-120",
	"BUFFER_OVERRUN_S2":             "CWE-120",
	"USE_AFTER_FREE":                "CWE-416",
	"UNINITIALIZED_VALUE":           "CWE-457",
	"DEAD_STORE":                    "CWE-563",
	"INTEGER_OVERFLOW_L1":           "CWE-190",
	"INTEGER_OVERFLOW_L2":           "CWE-190",
	"INFERBO_ALLOC_MAY_BE_BIG":      "CWE-789",
	"INFERBO_ALLOC_MAY_BE_NEGATIVE": "CWE-789",
}

// Infer runs Facebook Infer by compiling the file alone with the system cc.
type Infer struct {
	executable
	compiler string
}

func NewInfer(opts ...Option) *Infer {
	return &Infer{
		executable: newExecutable(InferName, InferEnvVar, inferDefaultPath, opts),
		compiler:   "cc",
	}
}

type inferIssue struct {
	BugType   string `json:"bug_type"`
	Qualifier string `json:"qualifier"`
	Severity  string `json:"severity"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

func (i *Infer) Scan(ctx context.Context, path string) (domain.ToolResult, error) {
	work, err := os.MkdirTemp("", "vcgen-infer-*")
	if err != nil {
		return domain.ToolResult{}, &ExecutionError{Tool: i.name, Err: err}
	}
	defer func() { _ = os.RemoveAll(work) }()

	results := filepath.Join(work, "infer-out")
	_, err = i.run(ctx, work,
		"run", "--results-dir", results, "--no-progress-bar", "--",
		i.compiler, "-c", path, "-o", filepath.Join(work, "out.o"),
	)
	if err != nil {
		return domain.ToolResult{}, err
	}

	raw, err := os.ReadFile(filepath.Join(results, "report.json"))
	if err != nil {
		return domain.ToolResult{}, &ExecutionError{Tool: i.name, Err: fmt.Errorf("reading report: %w", err)}
	}
	res, err := parseInfer(raw)
	if err != nil {
		return domain.ToolResult{}, &ExecutionError{Tool: i.name, Err: err}
	}
	return res, nil
}

func parseInfer(raw []byte) (domain.ToolResult, error) {
	var issues []inferIssue
	if err := json.Unmarshal(raw, &issues); err != nil {
		return domain.ToolResult{}, fmt.Errorf("decoding report: %w", err)
	}
	res := domain.ToolResult{Findings: []string{}, WeaknessIDs: []string{}}
	for _, is := range issues {
		res.Findings = append(res.Findings,
			fmt.Sprintf("%d:%d: %s %s: %s", is.Line, is.Column, is.Severity, is.BugType, is.Qualifier))
		if cwe, ok := inferWeakness[is.BugType]; ok {
			res.WeaknessIDs = appendUnique(res.WeaknessIDs, cwe)
		}
		res.WeaknessIDs = appendUnique(res.WeaknessIDs, cweIDs(is.Qualifier)...)
	}
	return res, nil
}
