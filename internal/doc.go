// Package internal contains the core implementation packages for tangle.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the tangle CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - types: source file model, metadata accessors, and compiler fields
//   - errors: structured errors with stable error codes
//   - logging: slog-backed structured logging
//   - metadata: YAML frontmatter extraction and serialization
//   - registry: path and tag index over scanned sources
//   - scanner: glob expansion and concurrent source scanning
//   - compiler: recursive include resolution and output assembly
//   - config: configuration loading, defaults, and validation
//   - watcher: file system monitoring with debouncing
//   - server: live preview server with WebSocket reload
//   - version: build-time version information
//
// # Inter-Package Communication
//
// The scanner populates the registry from the configured glob patterns.
// The compiler resolves an entry file against the registry, falling back
// to the scanner for direct path reads outside the patterns. The watcher
// triggers recompiles in watch and serve modes, and the server pushes
// reload notifications to connected browsers.
//
// Resolution is single-threaded within one compilation; concurrency is
// confined to the scanner's worker pool and the server's connection
// handling.
package internal
