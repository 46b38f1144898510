package fqn

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/DeusData/codeindex/internal/lang"
)

// packageFiles name the files that make a directory an importable package.
var packageFiles = lang.ForLanguage(lang.Python).PackageIndicators

// ModuleName returns the dotted Python module name of a repository-relative path.
// Examples:
//   - pkg/service/jobs.py -> pkg.service.jobs
//   - pkg/service/__init__.py -> pkg.service
func ModuleName(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	dir, base := path.Split(relPath)
	if slices.Contains(packageFiles, base) {
		return strings.ReplaceAll(strings.TrimSuffix(dir, "/"), "/", ".")
	}
	return strings.ReplaceAll(strings.TrimSuffix(relPath, path.Ext(relPath)), "/", ".")
}

// Qualify joins a module name and a class-qualified symbol name.
func Qualify(module, qualified string) string {
	if module == "" {
		return qualified
	}
	return module + "." + qualified
}

// Candidates returns the relative file paths an absolute dotted import may
// refer to, most specific first. For a.b.c:
//   - a/b/c.py (module)
//   - a/b/c/__init__.py (package)
//   - a/b.py (c is a name defined in module a.b)
//   - a/b/__init__.py (c is a name defined in package a.b)
//
// A trailing wildcard segment is dropped. Relative names yield nil.
func Candidates(dotted string) []string {
	dotted = strings.TrimSuffix(dotted, ".*")
	if dotted == "" || strings.HasPrefix(dotted, ".") || dotted == "*" {
		return nil
	}
	parts := strings.Split(dotted, ".")
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	out := moduleFiles(strings.Join(parts, "/"))
	if len(parts) > 1 {
		out = append(out, moduleFiles(strings.Join(parts[:len(parts)-1], "/"))...)
	}
	return out
}

// moduleFiles lists the files a slash-separated module path may live in.
func moduleFiles(base string) []string {
	out := []string{base + ".py"}
	for _, pkg := range packageFiles {
		out = append(out, base+"/"+pkg)
	}
	return out
}

// Suffixes returns every path-boundary suffix of a slash-separated path,
// longest first: a/b/c.py -> [a/b/c.py b/c.py c.py].
func Suffixes(relPath string) []string {
	relPath = filepath.ToSlash(relPath)
	out := []string{relPath}
	for i := 0; i < len(relPath); i++ {
		if relPath[i] == '/' && i+1 < len(relPath) {
			out = append(out, relPath[i+1:])
		}
	}
	return out
}
