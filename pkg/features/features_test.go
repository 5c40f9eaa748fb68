package features_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vpilat/openscad-eval/pkg/features"
)

func TestNoneDisablesEverything(t *testing.T) {
	s := features.None()
	for _, name := range []features.Name{
		features.AssertExpression, features.EchoExpression,
		features.EachExpression, features.ForCExpression, features.ElseExpression,
	} {
		if s.Enabled(name) {
			t.Errorf("None() should not enable %s", name)
		}
	}
}

func TestAllEnablesEverything(t *testing.T) {
	s := features.All()
	for _, name := range []features.Name{
		features.AssertExpression, features.EchoExpression,
		features.EachExpression, features.ForCExpression, features.ElseExpression,
	} {
		if !s.Enabled(name) {
			t.Errorf("All() should enable %s", name)
		}
	}
}

func TestLoadMissingFileYieldsNone(t *testing.T) {
	s, err := features.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Enabled(features.AssertExpression) {
		t.Error("a missing config file should yield an all-disabled Set")
	}
}

func TestLoadDecodesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	contents := "features:\n  assert-expression: true\n  echo-expression: false\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := features.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Enabled(features.AssertExpression) {
		t.Error("assert-expression should be enabled")
	}
	if s.Enabled(features.EchoExpression) {
		t.Error("echo-expression should be disabled")
	}
	if s.Enabled(features.EachExpression) {
		t.Error("each-expression was never mentioned and should default to disabled")
	}
}
