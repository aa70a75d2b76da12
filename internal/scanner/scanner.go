// Package scanner discovers and parses markdown sources for compilation.
//
// The scanner expands doublestar glob patterns relative to a root directory,
// runs frontmatter extraction on every match and registers the results in a
// source index. Matches inside dependency directories (vendor, node_modules,
// .git) are excluded by convention and overlapping patterns are deduplicated.
// File reads are independent and fan out over a small worker pool; the index
// is only returned once every file has been registered, so callers always
// observe a fully built, immutable index.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	tangleerrors "github.com/tanglekit/tangle/internal/errors"
	"github.com/tanglekit/tangle/internal/logging"
	"github.com/tanglekit/tangle/internal/metadata"
	"github.com/tanglekit/tangle/internal/registry"
	"github.com/tanglekit/tangle/internal/types"
)

// DefaultExcludes are path segments never scanned unless overridden,
// regardless of pattern.
var DefaultExcludes = []string{"vendor", "node_modules", ".git", ".tangle"}

// smallBatchThreshold is the match count below which files are processed
// synchronously instead of through the worker pool.
const smallBatchThreshold = 5

// SourceScanner builds source indexes from glob patterns.
type SourceScanner struct {
	logger logging.Logger

	// Excludes are directory names skipped during pattern expansion.
	// Callers may extend or replace the defaults before BuildIndex.
	Excludes []string
}

// NewSourceScanner creates a scanner. A nil logger falls back to a no-op.
func NewSourceScanner(logger logging.Logger) *SourceScanner {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &SourceScanner{
		logger:   logger.WithComponent("scanner"),
		Excludes: DefaultExcludes,
	}
}

// BuildIndex expands patterns relative to rootDir and returns a fully built
// index. Any unreadable match aborts the whole build; there is no
// partial-index fallback. Malformed frontmatter is a per-file soft condition:
// the block is treated as absent, the full raw text becomes the body, and a
// warning is logged.
func (s *SourceScanner) BuildIndex(ctx context.Context, rootDir string, patterns []string) (*registry.SourceIndex, error) {
	if len(patterns) == 0 {
		return nil, &tangleerrors.MissingSourcesError{}
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, tangleerrors.NewIOError(tangleerrors.ErrCodeUnreadable, rootDir, "cannot read source root", err)
	}
	if !info.IsDir() {
		return nil, tangleerrors.NewIOError(tangleerrors.ErrCodeUnreadable, rootDir, "source root is not a directory", nil)
	}

	paths, err := s.expandPatterns(rootDir, patterns)
	if err != nil {
		return nil, err
	}

	index := registry.NewSourceIndex()
	if err := s.scanAll(ctx, index, rootDir, paths); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "index built", "files", index.Count(), "tags", len(index.Tags()))
	return index, nil
}

// expandPatterns globs every pattern against rootDir, filtering excluded
// directories and deduplicating across overlapping patterns. The result is
// sorted so processing order never depends on map iteration.
func (s *SourceScanner) expandPatterns(rootDir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(rootDir)
	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, tangleerrors.NewConfigError(tangleerrors.ErrCodeMissingSources,
				fmt.Sprintf("invalid source pattern %q: %v", pattern, err))
		}
		for _, match := range matches {
			if s.isExcluded(match) {
				continue
			}
			seen[match] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// isExcluded reports whether any segment of the slash-separated path is an
// excluded directory.
func (s *SourceScanner) isExcluded(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		for _, excluded := range s.Excludes {
			if segment == excluded {
				return true
			}
		}
	}
	return false
}

// scanAll reads and registers every path. Small batches run synchronously;
// larger ones fan out over a bounded worker pool.
func (s *SourceScanner) scanAll(ctx context.Context, index *registry.SourceIndex, rootDir string, paths []string) error {
	if len(paths) <= smallBatchThreshold {
		for _, path := range paths {
			file, err := s.scanFile(ctx, rootDir, path)
			if err != nil {
				return err
			}
			index.Register(file)
		}
		return nil
	}

	workerCount := runtime.NumCPU()
	if workerCount > 8 {
		workerCount = 8
	}

	jobs := make(chan string)
	results := make(chan error, len(paths))
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				file, err := s.scanFile(ctx, rootDir, path)
				if err == nil {
					index.Register(file)
				}
				results <- err
			}
		}()
	}

	for _, path := range paths {
		jobs <- path
	}
	close(jobs)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			return err
		}
	}
	return nil
}

// ScanFile reads and parses a single file identified by its slash-relative
// path. Used for direct-read fallback during resolution and by the watcher.
func (s *SourceScanner) ScanFile(ctx context.Context, rootDir, relPath string) (*types.SourceFile, error) {
	return s.scanFile(ctx, rootDir, relPath)
}

func (s *SourceScanner) scanFile(ctx context.Context, rootDir, relPath string) (*types.SourceFile, error) {
	fullPath := filepath.Join(rootDir, filepath.FromSlash(relPath))

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if isNotExist(err) {
			return nil, &tangleerrors.FileNotFoundError{Path: relPath}
		}
		return nil, tangleerrors.NewIOError(tangleerrors.ErrCodeUnreadable, relPath, "reading source file", err)
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, tangleerrors.NewIOError(tangleerrors.ErrCodeUnreadable, relPath, "stat source file", err)
	}

	raw := string(content)
	meta, body, err := metadata.Extract(relPath, raw)
	if err != nil {
		// Malformed frontmatter: keep the whole file as body so no content
		// is lost, and continue without metadata.
		s.logger.Warn(ctx, err, "malformed frontmatter, treating as plain markdown", "path", relPath)
		meta = nil
		body = raw
	}
	compiler, pass := metadata.Partition(meta)

	return &types.SourceFile{
		Path:     relPath,
		Raw:      meta,
		Meta:     pass,
		Compiler: compiler,
		Body:     body,
		Hash:     fmt.Sprintf("%x", crc32.ChecksumIEEE(content)),
		ModTime:  info.ModTime(),
	}, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
