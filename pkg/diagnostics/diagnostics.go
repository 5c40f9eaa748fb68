// Package diagnostics defines the diagnostic taxonomy for the evaluator:
// the non-fatal PRINT(message) sink (WARNING/ECHO) and the three fatal
// exception kinds (AssertionFailed, Recursion, ExperimentalFeatureDisabled).
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/vpilat/openscad-eval/pkg/ast"
)

// Diagnostic code constants. Kinds, not Go type names: several distinct
// Go error types may carry the same Code.
const (
	ELookupWarning = "E_LOOKUP_WARNING"
	EUnknownFn     = "E_UNKNOWN_FN"
	EAssert        = "E_ASSERT"
	ERecursion     = "E_RECURSION"
	EExperimental  = "E_EXPERIMENTAL"
	ERangeCap      = "E_RANGE_CAP"
)

// Level tags a PRINT diagnostic.
type Level string

const (
	Warning Level = "WARNING"
	Echo    Level = "ECHO"
	Error   Level = "ERROR"
)

// Diagnostic is a single textual PRINT(message), level-tagged.
type Diagnostic struct {
	Level   Level         `json:"level"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message"`
	Loc     *ast.Location `json:"loc,omitempty"`
}

// Sink collects Diagnostics emitted during one evaluation. The original
// assumes a single writer; this port keeps that assumption (no locking)
// since evaluation is single-threaded and strictly synchronous (§5).
type Sink struct {
	items []Diagnostic
	runID string
}

// NewSink creates an empty diagnostic sink tagged with a run ID.
func NewSink(runID string) *Sink {
	return &Sink{runID: runID}
}

// RunID returns the correlation ID this sink's diagnostics are tagged with.
func (s *Sink) RunID() string { return s.runID }

// Print appends a diagnostic to the sink.
func (s *Sink) Print(level Level, code, message string, loc *ast.Location) {
	s.items = append(s.items, Diagnostic{Level: level, Code: code, Message: message, Loc: loc})
}

// Warnf appends a WARNING diagnostic.
func (s *Sink) Warnf(code string, loc *ast.Location, format string, args ...any) {
	s.Print(Warning, code, fmt.Sprintf(format, args...), loc)
}

// WarnCount is a convenience for the "too many elements" family of
// warnings, which always report a bounded count; the count is formatted
// with humanize.Comma for readability.
func (s *Sink) WarnCount(code string, loc *ast.Location, message string, count int) {
	s.Warnf(code, loc, "%s (%s)", message, humanize.Comma(int64(count)))
}

// Items returns every diagnostic recorded so far, in emission order.
func (s *Sink) Items() []Diagnostic { return s.items }

// Format renders a single Diagnostic for display: JSON, or pretty
// "LEVEL[code]: message (loc)" text.
func Format(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := ""
	if d.Loc != nil {
		loc = fmt.Sprintf(" (line %d)", d.Loc.FirstLine)
	}
	if d.Code != "" {
		return fmt.Sprintf("%s[%s]: %s%s", d.Level, d.Code, d.Message, loc)
	}
	return fmt.Sprintf("%s: %s%s", d.Level, d.Message, loc)
}

// FormatAll renders a slice of Diagnostics, one per line.
func FormatAll(items []Diagnostic, pretty bool) string {
	parts := make([]string, len(items))
	for i, d := range items {
		parts[i] = Format(d, pretty)
	}
	return strings.Join(parts, "\n")
}

// AssertionFailedError is raised by Assert when its condition is falsy. It
// halts the current top-level evaluation and propagates out past every
// Context frame.
type AssertionFailedError struct {
	Message string
	Loc     ast.Location
}

func (e *AssertionFailedError) Error() string { return e.Message }

// NewAssertionFailed wraps msg with the pkg/errors call stack so a caller
// several frames up can recover the original *AssertionFailedError via
// errors.Cause without string-matching the message.
func NewAssertionFailed(msg string, loc ast.Location) error {
	return errors.WithStack(&AssertionFailedError{Message: msg, Loc: loc})
}

// RecursionError is raised on runaway function recursion or a runaway
// LcForC loop.
type RecursionError struct {
	Kind string // "function" or "for loop"
	Name string
}

func (e *RecursionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("recursion detected (%s)", e.Kind)
	}
	return fmt.Sprintf("recursion detected (%s %q)", e.Kind, e.Name)
}

// NewRecursion wraps a RecursionError with a stack trace for diagnosability.
func NewRecursion(kind, name string) error {
	return errors.WithStack(&RecursionError{Kind: kind, Name: name})
}

// ExperimentalFeatureDisabledError is raised when evaluation reaches a
// gated AST variant whose feature flag is off.
type ExperimentalFeatureDisabledError struct {
	Feature string
}

func (e *ExperimentalFeatureDisabledError) Error() string {
	return fmt.Sprintf("experimental feature %q is not enabled", e.Feature)
}

// NewExperimentalFeatureDisabled wraps an ExperimentalFeatureDisabledError.
func NewExperimentalFeatureDisabled(feature string) error {
	return errors.WithStack(&ExperimentalFeatureDisabledError{Feature: feature})
}

// Cause unwraps err to the original error value it was constructed from.
func Cause(err error) error {
	return errors.Cause(err)
}
