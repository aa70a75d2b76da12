// Package errors defines the structured error taxonomy for tangle.
//
// Fatal classes: configuration errors (reported before any I/O), I/O errors
// (unreadable source during indexing, missing file during resolution) and
// structural errors (circular references, which carry the full inclusion
// chain). Soft conditions such as an empty tag bucket are reported as
// warnings by the compiler, not as errors. The core never prints; callers
// are expected to match on these types and render concise messages.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType categorizes tangle errors.
type ErrorType string

const (
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeMetadata   ErrorType = "metadata"
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeCircularRef    = "ERR_CIRCULAR_REF"
	ErrCodeFileNotFound   = "ERR_FILE_NOT_FOUND"
	ErrCodeMissingEntry   = "ERR_MISSING_ENTRY"
	ErrCodeMissingSources = "ERR_MISSING_SOURCES"
	ErrCodeMetadataParse  = "ERR_METADATA_PARSE"
	ErrCodeUnreadable     = "ERR_UNREADABLE_SOURCE"
	ErrCodePathEscape     = "ERR_PATH_ESCAPE"
	ErrCodeEmptyTag       = "ERR_EMPTY_TAG"
	ErrCodeMaxDepth       = "ERR_MAX_DEPTH"
)

// TangleError is a structured error with category, code and context.
type TangleError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Path    string
	Context map[string]any
}

// Error implements the error interface.
func (e *TangleError) Error() string {
	var parts []string
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *TangleError) Unwrap() error { return e.Cause }

// Is matches on type and code so sentinel comparison works across wrapping.
func (e *TangleError) Is(target error) bool {
	var t *TangleError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext attaches a context value to the error.
func (e *TangleError) WithContext(key string, value any) *TangleError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CircularReferenceError reports an inclusion cycle. Chain lists every path
// from the original entry through the repeated file, so the failure message
// is reproducible without rerunning with debug flags.
type CircularReferenceError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("[%s] circular reference: %s", ErrCodeCircularRef, strings.Join(e.Chain, " -> "))
}

// FileNotFoundError reports a path absent from both the index and disk.
type FileNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("[%s] source file not found: %s", ErrCodeFileNotFound, e.Path)
}

// MissingEntryError reports a compilation attempted without an entry path.
type MissingEntryError struct{}

// Error implements the error interface.
func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("[%s] no entry file configured", ErrCodeMissingEntry)
}

// MissingSourcesError reports a compilation attempted without source patterns.
type MissingSourcesError struct{}

// Error implements the error interface.
func (e *MissingSourcesError) Error() string {
	return fmt.Sprintf("[%s] no source patterns configured", ErrCodeMissingSources)
}

// MetadataError reports an unparsable frontmatter block.
type MetadataError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *MetadataError) Error() string {
	return fmt.Sprintf("[%s] %s: malformed frontmatter: %v", ErrCodeMetadataParse, e.Path, e.Cause)
}

// Unwrap returns the underlying parse error.
func (e *MetadataError) Unwrap() error { return e.Cause }

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *TangleError {
	return &TangleError{Type: ErrorTypeConfig, Code: code, Message: message}
}

// NewIOError creates an I/O error for path.
func NewIOError(code, path, message string, cause error) *TangleError {
	return &TangleError{Type: ErrorTypeIO, Code: code, Message: message, Path: path, Cause: cause}
}

// NewResolutionError creates a resolution error for path.
func NewResolutionError(code, path, message string, cause error) *TangleError {
	return &TangleError{Type: ErrorTypeResolution, Code: code, Message: message, Path: path, Cause: cause}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *TangleError {
	return &TangleError{Type: ErrorTypeInternal, Code: "ERR_INTERNAL", Message: message, Cause: cause}
}

// IsCircular reports whether err is (or wraps) a CircularReferenceError.
func IsCircular(err error) bool {
	var ce *CircularReferenceError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is (or wraps) a FileNotFoundError.
func IsNotFound(err error) bool {
	var nf *FileNotFoundError
	return errors.As(err, &nf)
}
