// Package registry provides the source index built once per compilation.
//
// The index offers two lookup structures: path to parsed file, and tag to
// the files sharing that tag. Tag buckets are unordered; ordering is applied
// at resolution time so the index never depends on insertion order. After the
// scanner finishes, the index is treated as immutable for the lifetime of the
// compilation.
package registry

import (
	"sort"
	"sync"

	"github.com/tanglekit/tangle/internal/types"
)

// SourceIndex maps paths and tags to parsed source files.
type SourceIndex struct {
	byPath map[string]*types.SourceFile
	byTag  map[string][]*types.SourceFile
	mutex  sync.RWMutex
}

// NewSourceIndex creates an empty source index.
func NewSourceIndex() *SourceIndex {
	return &SourceIndex{
		byPath: make(map[string]*types.SourceFile),
		byTag:  make(map[string][]*types.SourceFile),
	}
}

// Register adds a file to the index. Registering a path twice replaces the
// previous entry, including its tag bucket memberships, so a re-scan never
// duplicates a file.
func (idx *SourceIndex) Register(file *types.SourceFile) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if previous, exists := idx.byPath[file.Path]; exists {
		idx.removeFromBuckets(previous)
	}
	idx.byPath[file.Path] = file
	for _, tag := range file.Compiler.Tags {
		idx.byTag[tag] = append(idx.byTag[tag], file)
	}
}

// removeFromBuckets drops file from every tag bucket it belongs to.
// Callers must hold the write lock.
func (idx *SourceIndex) removeFromBuckets(file *types.SourceFile) {
	for _, tag := range file.Compiler.Tags {
		bucket := idx.byTag[tag]
		for i, candidate := range bucket {
			if candidate.Path == file.Path {
				idx.byTag[tag] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
		if len(idx.byTag[tag]) == 0 {
			delete(idx.byTag, tag)
		}
	}
}

// Get retrieves a file by its normalized path.
func (idx *SourceIndex) Get(path string) (*types.SourceFile, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	file, exists := idx.byPath[path]
	return file, exists
}

// Tagged returns a copy of the bucket for tag. The result carries no ordering
// guarantee; resolution sorts it by (order, path).
func (idx *SourceIndex) Tagged(tag string) []*types.SourceFile {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	bucket := idx.byTag[tag]
	if len(bucket) == 0 {
		return nil
	}
	result := make([]*types.SourceFile, len(bucket))
	copy(result, bucket)
	return result
}

// Paths returns all indexed paths in lexicographic order.
func (idx *SourceIndex) Paths() []string {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	paths := make([]string, 0, len(idx.byPath))
	for path := range idx.byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Tags returns all tags with at least one member, in lexicographic order.
func (idx *SourceIndex) Tags() []string {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	tags := make([]string, 0, len(idx.byTag))
	for tag := range idx.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Count returns the number of indexed files.
func (idx *SourceIndex) Count() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return len(idx.byPath)
}
