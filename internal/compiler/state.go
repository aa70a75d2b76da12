package compiler

import "sort"

// resolutionState carries the mutable traversal state of one compilation.
// It is created at the start of a Compile call, threaded through every
// recursive resolution, and discarded at the end; it is never shared across
// compilations.
type resolutionState struct {
	// chain is the ordered list of paths currently being resolved, entry first.
	chain []string
	// active mirrors chain as a set for O(1) cycle checks.
	active map[string]struct{}
	// visited records every distinct path resolved at least once.
	visited map[string]struct{}
	// referencedTags records every tag looked up during the run.
	referencedTags map[string]struct{}
	// warnings collects soft-condition advisories (empty tag buckets).
	warnings []string
	// failure holds the first structured error raised by a directive, so it
	// survives text/template's exec wrapping intact.
	failure error
}

func newResolutionState() *resolutionState {
	return &resolutionState{
		active:         make(map[string]struct{}),
		visited:        make(map[string]struct{}),
		referencedTags: make(map[string]struct{}),
	}
}

// onStack reports whether path is an ancestor in the current recursion chain.
func (s *resolutionState) onStack(path string) bool {
	_, ok := s.active[path]
	return ok
}

// push enters path: it joins both the active chain and the visited set.
func (s *resolutionState) push(path string) {
	s.chain = append(s.chain, path)
	s.active[path] = struct{}{}
	s.visited[path] = struct{}{}
}

// pop leaves the most recent path. The path stays in the visited set.
func (s *resolutionState) pop() {
	last := s.chain[len(s.chain)-1]
	s.chain = s.chain[:len(s.chain)-1]
	delete(s.active, last)
}

// cycleChain returns the chain from the entry through the repeated path,
// suitable for a CircularReferenceError payload.
func (s *resolutionState) cycleChain(repeated string) []string {
	chain := make([]string, 0, len(s.chain)+1)
	chain = append(chain, s.chain...)
	return append(chain, repeated)
}

// depth returns the current recursion depth.
func (s *resolutionState) depth() int {
	return len(s.chain)
}

// fail records the first directive error of the run.
func (s *resolutionState) fail(err error) error {
	if s.failure == nil {
		s.failure = err
	}
	return err
}

func (s *resolutionState) warn(message string) {
	s.warnings = append(s.warnings, message)
}

func (s *resolutionState) recordTag(tag string) {
	s.referencedTags[tag] = struct{}{}
}

// tags returns the referenced tags in lexicographic order.
func (s *resolutionState) tags() []string {
	tags := make([]string, 0, len(s.referencedTags))
	for tag := range s.referencedTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
