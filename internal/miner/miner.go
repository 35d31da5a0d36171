// SPDX-License-Identifier: AGPL-3.0-or-later

// Package miner walks one repository's history and turns security-relevant
// commits into analyzed dataset rows.
//
// A Miner moves through these states:
//
//	Idle -> Cloned -> Scanning -> {Extracting, Exhausted, Failed}
//
// Scanning and Extracting alternate while history is walked. When Collect
// returns, the state is Exhausted if history ran out, Extracting if the quota
// was met, and Failed if the walk itself broke.
package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/classify"
	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/logging"
	"github.com/bartekus/vcgen/internal/pathfilter"
	"github.com/bartekus/vcgen/internal/progress"
)

// ErrCloneFailed covers every reason a repository could not be prepared:
// network errors, bad URLs, size limits and clone timeouts.
var ErrCloneFailed = errors.New("clone failed")

type State int

const (
	Idle State = iota
	Cloned
	Scanning
	Extracting
	Exhausted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Cloned:
		return "cloned"
	case Scanning:
		return "scanning"
	case Extracting:
		return "extracting"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Miner.
type Options struct {
	Policy classify.Policy
	Filter pathfilter.Options

	// MaxSizeKB rejects repositories whose reported size is larger. Zero disables.
	MaxSizeKB int64

	// CloneTimeout and ScanTimeout bound a single clone and a single analyzer
	// run. Zero disables the bound.
	CloneTimeout time.Duration
	ScanTimeout  time.Duration

	// CacheSize bounds the per-miner scan cache. Zero picks a default.
	CacheSize int

	Logger *slog.Logger
}

const defaultCacheSize = 1024

// plainClone is swapped in tests.
var plainClone = git.PlainCloneContext

// Miner owns one temporary bare clone.
type Miner struct {
	loc    domain.RepositoryLocation
	opts   Options
	dir    string
	repo   *git.Repository
	state  State
	cursor plumbing.Hash
	cache  *lru.Cache[string, domain.ToolResult]
	logger *slog.Logger
}

// New clones loc into a fresh temporary directory under workDir (os.TempDir
// when empty). On error nothing is left on disk.
func New(ctx context.Context, loc domain.RepositoryLocation, workDir string, opts Options) (*Miner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New("miner")
	}
	logger = logger.With("repo", loc.URL)

	if strings.TrimSpace(loc.URL) == "" {
		return nil, fmt.Errorf("%w: empty repository URL", ErrCloneFailed)
	}
	if opts.MaxSizeKB > 0 && loc.SizeKB > opts.MaxSizeKB {
		return nil, fmt.Errorf("%w: %s is %d KB, limit %d KB", ErrCloneFailed, loc.URL, loc.SizeKB, opts.MaxSizeKB)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, domain.ToolResult](size)
	if err != nil {
		return nil, fmt.Errorf("creating scan cache: %w", err)
	}

	dir, err := os.MkdirTemp(workDir, "vcgen-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating work dir: %v", ErrCloneFailed, err)
	}

	m := &Miner{loc: loc, opts: opts, dir: dir, state: Idle, cache: cache, logger: logger}

	cctx := ctx
	if opts.CloneTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, opts.CloneTimeout)
		defer cancel()
	}

	start := time.Now()
	repo, err := plainClone(cctx, filepath.Join(dir, "repo.git"), true, &git.CloneOptions{
		URL:  loc.URL,
		Tags: git.NoTags,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s: %v", ErrCloneFailed, loc.URL, err)
	}
	logger.Debug("cloned", "dir", dir, "took", time.Since(start).Round(time.Millisecond))

	m.repo = repo
	m.state = Cloned
	return m, nil
}

func (m *Miner) State() State { return m.state }

// Cursor is the hash of the commit most recently visited, empty before Collect.
func (m *Miner) Cursor() string {
	if m.cursor.IsZero() {
		return ""
	}
	return m.cursor.String()
}

// Dir is the temporary directory owned by this miner.
func (m *Miner) Dir() string { return m.dir }

// Close removes the temporary directory. It is safe to call more than once.
func (m *Miner) Close() error {
	if m.dir == "" {
		return nil
	}
	err := os.RemoveAll(m.dir)
	m.dir = ""
	m.repo = nil
	return err
}

// Collect walks history newest first and returns at most quota rows.
//
// Per-file extraction failures and per-tool scan failures are logged and
// skipped. An error is returned only when the history walk itself fails or
// ctx is done; the rows collected so far are returned with it.
func (m *Miner) Collect(ctx context.Context, tools []analyzer.Tool, quota int, sink progress.Sink) ([]domain.AnalyzedFile, error) {
	if m.repo == nil {
		return nil, errors.New("miner is closed")
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	if quota <= 0 {
		return nil, nil
	}

	head, err := m.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			m.state = Exhausted
			return nil, nil
		}
		m.state = Failed
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	iter, err := m.repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		m.state = Failed
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer iter.Close()

	sink.SetStatus("scanning " + m.loc.Name())
	m.state = Scanning

	var out []domain.AnalyzedFile
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.cursor = c.Hash
		m.state = Scanning
		// a merge repeats the changes of the branch it brings in, which the
		// walk reaches through the second parent
		if c.NumParents() > 1 {
			return nil
		}

		rec := domain.CommitRecord{Hash: c.Hash.String(), Message: c.Message}
		if !classify.Classify(rec, m.opts.Policy) {
			return nil
		}

		m.state = Extracting
		files, err := m.extract(ctx, c)
		if err != nil {
			m.logger.Debug("extract failed", "commit", rec.Hash, "err", err)
			return nil
		}

		for _, f := range files {
			if len(out) >= quota {
				break
			}
			row, ok := m.analyze(ctx, rec.Hash, f, tools)
			if !ok {
				continue
			}
			out = append(out, row)
			sink.Advance()
		}
		if len(out) >= quota {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		m.state = Failed
		m.logger.Debug("history walk failed", "cursor", m.Cursor(), "rows", len(out), "err", err)
		return out, fmt.Errorf("walking history of %s: %w", m.loc.URL, err)
	}
	if len(out) < quota {
		m.state = Exhausted
	}
	m.logger.Debug("history walk stopped", "state", m.state, "cursor", m.Cursor(), "rows", len(out))
	return out, nil
}

type extracted struct {
	path string
	blob plumbing.Hash
	code string
}

// extract returns the matching files a commit touched, read from the
// commit's own tree. Root commits touch every file in their tree.
func (m *Miner) extract(ctx context.Context, c *object.Commit) ([]extracted, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree: %w", err)
	}

	var touched []string
	if c.NumParents() == 0 {
		err = tree.Files().ForEach(func(f *object.File) error {
			touched = append(touched, f.Name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("listing root tree: %w", err)
		}
	} else {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("reading parent: %w", err)
		}
		parentTree, err := parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("reading parent tree: %w", err)
		}
		changes, err := parentTree.DiffContext(ctx, tree)
		if err != nil {
			return nil, fmt.Errorf("diffing against parent: %w", err)
		}
		for _, ch := range changes {
			// deletions have no target
			if ch.To.Name != "" {
				touched = append(touched, ch.To.Name)
			}
		}
	}

	var files []extracted
	for _, p := range m.opts.Filter.Filter(touched) {
		f, err := tree.File(p)
		if err != nil {
			m.logger.Debug("extract failed", "commit", c.Hash.String(), "path", p, "err", err)
			continue
		}
		if bin, err := f.IsBinary(); err != nil || bin {
			continue
		}
		code, err := f.Contents()
		if err != nil || !utf8.ValidString(code) {
			continue
		}
		files = append(files, extracted{path: p, blob: f.Hash, code: code})
	}
	return files, nil
}

// analyze runs every tool over one extracted file. The row is kept only if
// some tool ran and reported at least one finding.
func (m *Miner) analyze(ctx context.Context, commit string, f extracted, tools []analyzer.Tool) (domain.AnalyzedFile, bool) {
	var scanPath string
	defer func() {
		if scanPath != "" {
			_ = os.Remove(scanPath)
		}
	}()

	results := make(map[string]domain.ToolResult, len(tools))
	produced := false
	for _, tool := range tools {
		key := tool.Name() + ":" + f.blob.String()
		res, hit := m.cache.Get(key)
		if !hit {
			if scanPath == "" {
				p, err := m.materialize(commit, f)
				if err != nil {
					m.logger.Debug("extract failed", "commit", commit, "path", f.path, "err", err)
					return domain.AnalyzedFile{}, false
				}
				scanPath = p
			}
			var err error
			res, err = m.scan(ctx, tool, scanPath)
			if err != nil {
				m.logger.Debug("scan failed", "commit", commit, "path", f.path, "tool", tool.Name(), "err", err)
				continue
			}
			m.cache.Add(key, res)
		}
		results[tool.Name()] = res
		if len(res.Findings) > 0 {
			produced = true
		}
	}
	if !produced {
		return domain.AnalyzedFile{}, false
	}
	return domain.AnalyzedFile{
		Repository: m.loc.URL,
		CommitHash: commit,
		Path:       f.path,
		Code:       f.code,
		Results:    results,
	}, true
}

func (m *Miner) scan(ctx context.Context, tool analyzer.Tool, path string) (domain.ToolResult, error) {
	if m.opts.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ScanTimeout)
		defer cancel()
	}
	return tool.Scan(ctx, path)
}

// materialize writes the file under scan/<short commit>/<path> so analyzers
// see the original file name and extension.
func (m *Miner) materialize(commit string, f extracted) (string, error) {
	short := commit
	if len(short) > 12 {
		short = short[:12]
	}
	p := filepath.Join(m.dir, "scan", short, filepath.FromSlash(f.path))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, []byte(f.code), 0o644); err != nil {
		return "", err
	}
	return filepath.Abs(p)
}
