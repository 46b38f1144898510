package fqn

import (
	"reflect"
	"testing"
)

func TestModuleName(t *testing.T) {
	tests := map[string]string{
		"jobs.py":                 "jobs",
		"pkg/service/jobs.py":     "pkg.service.jobs",
		"pkg/service/__init__.py": "pkg.service",
		"scripts/run":             "scripts.run",
		"__init__.py":             "",
	}
	for in, want := range tests {
		if got := ModuleName(in); got != want {
			t.Errorf("ModuleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		dotted string
		want   []string
	}{
		{"a.b.c", []string{"a/b/c.py", "a/b/c/__init__.py", "a/b.py", "a/b/__init__.py"}},
		{"utils", []string{"utils.py", "utils/__init__.py"}},
		{"m.*", []string{"m.py", "m/__init__.py"}},
		{"..sibling", nil},
		{".", nil},
		{"a..b", nil},
	}
	for _, tt := range tests {
		if got := Candidates(tt.dotted); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Candidates(%q) = %v, want %v", tt.dotted, got, tt.want)
		}
	}
}

func TestSuffixes(t *testing.T) {
	got := Suffixes("src/a/b.py")
	want := []string{"src/a/b.py", "a/b.py", "b.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suffixes = %v, want %v", got, want)
	}
}
