// Package features implements the process-scoped experimental feature flag
// registry that gates Assert, Echo, and the list-comprehension variants
// each/for-c/else. A Set is an immutable configuration struct injected into
// the Evaluator, never a mutable global, per the original's own design
// note on how a reimplementation should model init-at-startup, read-many
// booleans.
package features

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Name identifies one gated language feature.
type Name string

const (
	AssertExpression Name = "assert-expression"
	EchoExpression   Name = "echo-expression"
	EachExpression   Name = "each-expression"
	ForCExpression   Name = "for-c-expression"
	ElseExpression   Name = "else-expression"
)

// Set is an immutable snapshot of which features are enabled.
type Set struct {
	enabled map[Name]bool
}

// None returns a Set with every feature disabled, the default when no
// config file is present.
func None() Set {
	return Set{}
}

// All returns a Set with every known feature enabled, convenient for tests
// that exercise gated syntax directly.
func All() Set {
	return Set{enabled: map[Name]bool{
		AssertExpression: true,
		EchoExpression:   true,
		EachExpression:   true,
		ForCExpression:   true,
		ElseExpression:   true,
	}}
}

// Enabled reports whether name is turned on in this Set.
func (s Set) Enabled(name Name) bool {
	return s.enabled[name]
}

// fileShape is the on-disk YAML shape: a flat map of feature name to bool.
// Unknown keys are ignored rather than rejected, matching the original's
// deny-by-default-on-miss posture for its own policy file.
type fileShape struct {
	Features map[string]bool `yaml:"features"`
}

// Load reads a feature-flag Set from path. A missing file yields None()
// with no error, matching the precedence described in SPEC_FULL.md's
// ambient configuration section (project file, else all-disabled).
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return None(), nil
		}
		return None(), err
	}
	var fs fileShape
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return None(), err
	}
	enabled := make(map[Name]bool, len(fs.Features))
	for k, v := range fs.Features {
		enabled[Name(k)] = v
	}
	return Set{enabled: enabled}, nil
}
