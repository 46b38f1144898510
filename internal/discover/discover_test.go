package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeusData/codeindex/internal/lang"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "app.py", "def main(): pass\n")
	writeFile(t, dir, "pkg/sub/util.py", "x = 1\n")
	writeFile(t, dir, "Makefile", "all:\n")

	res, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(res.Files) != 4 {
		t.Fatalf("expected 4 files, got %d: %+v", len(res.Files), res.Files)
	}

	byPath := map[string]FileInfo{}
	for _, f := range res.Files {
		byPath[f.RelPath] = f
	}
	app := byPath["app.py"]
	if app.Language != lang.Python || app.Directory != RootDirectory || app.Extension != ".py" {
		t.Errorf("app.py = %+v", app)
	}
	if app.Size != int64(len("def main(): pass\n")) {
		t.Errorf("app.py size = %d", app.Size)
	}
	util := byPath["pkg/sub/util.py"]
	if util.Directory != "pkg/sub" || util.Name != "util.py" {
		t.Errorf("util.py = %+v", util)
	}
	mk := byPath["Makefile"]
	if mk.Extension != lang.NoExtension || mk.Language != lang.Unknown {
		t.Errorf("Makefile = %+v", mk)
	}

	wantDirs := []DirInfo{{Path: "pkg", Name: "pkg"}, {Path: "pkg/sub", Name: "sub"}}
	if len(res.Directories) != len(wantDirs) {
		t.Fatalf("directories = %+v", res.Directories)
	}
	for i, d := range wantDirs {
		if res.Directories[i] != d {
			t.Errorf("directory %d = %+v, want %+v", i, res.Directories[i], d)
		}
	}
}

func TestDiscoverIgnores(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.py", "")
	writeFile(t, dir, "node_modules/lib/index.js", "")
	writeFile(t, dir, "__pycache__/keep.cpython-312.pyc", "")
	writeFile(t, dir, "mod.pyc", "")
	writeFile(t, dir, ".DS_Store", "")
	writeFile(t, dir, ".gitignore", "generated/\n*.log\n")
	writeFile(t, dir, "generated/out.py", "")
	writeFile(t, dir, "debug.log", "")
	writeFile(t, dir, "rebuild.py", "")
	writeFile(t, dir, ignoreFileName, "secret_*.py\n")
	writeFile(t, dir, "secret_keys.py", "")

	res, err := Discover(context.Background(), dir, &Options{Ignore: []string{ignoreFileName}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := map[string]bool{}
	for _, f := range res.Files {
		got[f.RelPath] = true
	}
	if !got["keep.py"] || !got["rebuild.py"] {
		t.Errorf("expected keep.py and rebuild.py, got %v", got)
	}
	for _, skipped := range []string{"node_modules/lib/index.js", "mod.pyc", ".DS_Store", ".gitignore", "generated/out.py", "debug.log", "secret_keys.py"} {
		if got[skipped] {
			t.Errorf("%s should be ignored", skipped)
		}
	}
	for _, d := range res.Directories {
		if d.Name == "node_modules" || d.Name == "generated" {
			t.Errorf("directory %s should be ignored", d.Path)
		}
	}
}

func TestDiscoverIgnorePatternsAreGitignoreStyle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app/gen/deep/out_pb2.py", "")
	writeFile(t, dir, "app/gen/deep/out.py", "")
	writeFile(t, dir, "fixtures/x.py", "")
	writeFile(t, dir, "src/fixtures.py", "")

	res, err := Discover(context.Background(), dir, &Options{Ignore: []string{"**/*_pb2.py", "fixtures/"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := map[string]bool{}
	for _, f := range res.Files {
		got[f.RelPath] = true
	}
	if got["app/gen/deep/out_pb2.py"] || got["fixtures/x.py"] {
		t.Errorf("patterns not applied: %v", got)
	}
	if !got["app/gen/deep/out.py"] || !got["src/fixtures.py"] {
		t.Errorf("unrelated files dropped: %v", got)
	}
	for _, d := range res.Directories {
		if d.Path == "fixtures" {
			t.Error("fixtures/ should be skipped as a directory")
		}
	}
}

func TestDiscoverIgnoreFileOption(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ignoreFileName, "keep_*.py\n")
	writeFile(t, dir, "rules/custom.ignore", "# generated\nskip_*.py\n")
	writeFile(t, dir, "keep_me.py", "")
	writeFile(t, dir, "skip_me.py", "")

	res, err := Discover(context.Background(), dir, &Options{IgnoreFile: "rules/custom.ignore"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := map[string]bool{}
	for _, f := range res.Files {
		got[f.RelPath] = true
	}
	if !got["keep_me.py"] || got["skip_me.py"] {
		t.Errorf("ignore file should replace %s: %v", ignoreFileName, got)
	}

	if _, err := Discover(context.Background(), dir, &Options{IgnoreFile: "missing.ignore"}); err == nil {
		t.Error("expected error for a missing explicit ignore file")
	}
}

func TestDiscoverNoGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "*.log\n")
	writeFile(t, dir, "debug.log", "")

	res, err := Discover(context.Background(), dir, &Options{NoGitignore: true})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(res.Files) != 1 || res.Files[0].RelPath != "debug.log" {
		t.Errorf("files = %+v", res.Files)
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // pre-cancel

	_, err := Discover(ctx, dir, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	if _, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestFromPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/b/c.py", "pass\n")
	writeFile(t, dir, "top.md", "# hi\n")

	res, err := FromPaths(dir, []string{"a/b/c.py", "top.md"})
	if err != nil {
		t.Fatalf("FromPaths: %v", err)
	}
	if len(res.Files) != 2 || res.Files[1].Language != lang.Markdown {
		t.Errorf("files = %+v", res.Files)
	}
	if len(res.Directories) != 2 || res.Directories[0].Path != "a" || res.Directories[1].Path != "a/b" {
		t.Errorf("directories = %+v", res.Directories)
	}
	if res.TotalSize() != int64(len("pass\n")+len("# hi\n")) {
		t.Errorf("TotalSize = %d", res.TotalSize())
	}
}
