// Package pathfilter decides which files touched by a commit are extracted.
package pathfilter

import (
	"path"
	"sort"
	"strings"
)

// Options defines criteria for including or excluding repository paths.
type Options struct {
	// ExcludeDirs is a list of directory names to exclude.
	// Matching is segment-aware: "test" excludes "test/foo.c" and "lib/test/bar.c",
	// but not "testing/foo.c". The file name itself is never matched.
	ExcludeDirs []string

	// IncludeExtensions is a list of extensions to include (e.g., ".c").
	// Matching ignores case. If empty, all extensions are included.
	IncludeExtensions []string
}

// DefaultExtensions are the C sources and headers the analyzers understand.
func DefaultExtensions() []string {
	return []string{".c", ".h"}
}

// DefaultExcludeDirs returns directories that rarely hold first-party code.
func DefaultExcludeDirs() []string {
	return []string{
		".git",
		"vendor",
		"third_party",
		"thirdparty",
		"external",
		"deps",
	}
}

// Match reports whether a single slash-separated repository path passes.
func (o Options) Match(p string) bool {
	return !excluded(p, o.ExcludeDirs) && hasExtension(p, o.IncludeExtensions)
}

// Filter applies the options to a list of paths.
// It returns a new slice, sorted deterministically.
func (o Options) Filter(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	var filtered []string
	for _, p := range paths {
		if o.Match(p) {
			filtered = append(filtered, p)
		}
	}
	sort.Strings(filtered)
	return filtered
}

func excluded(p string, excludes []string) bool {
	if len(excludes) == 0 {
		return false
	}
	dir := path.Dir(p)
	if dir == "." {
		return false
	}
	for _, part := range strings.Split(dir, "/") {
		for _, exclude := range excludes {
			if part == exclude {
				return true
			}
		}
	}
	return false
}

func hasExtension(p string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := path.Ext(p)
	for _, want := range extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
