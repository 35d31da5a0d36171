// Package domain holds the records that flow through the mining pipeline.
package domain

import "strings"

// RepositoryLocation identifies a clonable repository.
// SizeKB is zero when the discovery source did not report a size.
type RepositoryLocation struct {
	URL    string `json:"url"`
	SizeKB int64  `json:"size_kb,omitempty"`
}

// Name returns the owner/repo part of a forge URL, or the URL itself.
func (l RepositoryLocation) Name() string {
	u := strings.TrimSuffix(l.URL, ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "git@github.com:"} {
		if strings.HasPrefix(u, prefix) {
			return strings.TrimPrefix(u, prefix)
		}
	}
	return u
}

// CommitRecord is one commit as seen by the classifier.
type CommitRecord struct {
	Hash    string
	Message string
	Files   []string
}

// ToolResult is the parsed output of one analyzer over one file.
type ToolResult struct {
	Findings    []string `json:"findings"`
	WeaknessIDs []string `json:"weakness_ids"`
}

// Empty reports whether the analyzer found nothing.
func (r ToolResult) Empty() bool {
	return len(r.Findings) == 0 && len(r.WeaknessIDs) == 0
}

// AnalyzedFile is one dataset row.
//
// Results is keyed by analyzer name. A missing key means the analyzer was not
// run on this file; a present key with an empty ToolResult means it ran and
// found nothing.
type AnalyzedFile struct {
	Repository string
	CommitHash string
	Path       string
	Code       string
	Results    map[string]ToolResult
}

// Result returns the result for the named analyzer and whether it ran.
func (f AnalyzedFile) Result(tool string) (ToolResult, bool) {
	r, ok := f.Results[tool]
	return r, ok
}
