package discover

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/DeusData/codeindex/internal/lang"
)

// RootDirectory is the Directory recorded for files at the repository root.
const RootDirectory = "root"

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".eggs": true, ".env": true, ".git": true,
	".gradle": true, ".hg": true, ".idea": true, ".mypy_cache": true,
	".next": true, ".nox": true, ".nuxt": true, ".pytest_cache": true,
	".ruff_cache": true, ".svn": true, ".tox": true, ".venv": true,
	".vscode": true, "__pycache__": true, "build": true, "dist": true,
	"node_modules": true, "site-packages": true, "target": true,
	"venv": true,
}

// IGNORE_FILES are file names to skip.
var IGNORE_FILES = map[string]bool{
	".gitignore": true, ".env": true, ".DS_Store": true, ".gradlew": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = []string{
	".pyc", ".pyo", ".class", ".o", ".so", ".dylib", ".dll", ".tmp", "~",
}

// FileInfo describes one discovered file.
type FileInfo struct {
	Path      string        `json:"-"`    // absolute path
	RelPath   string        `json:"path"` // slash-separated, relative to repo root
	Name      string        `json:"name"`
	Size      int64         `json:"size_bytes"`
	Language  lang.Language `json:"language"`
	Extension string        `json:"extension"`
	// Directory is the slash-separated parent path, or RootDirectory.
	Directory string `json:"directory"`
}

// DirInfo describes one discovered directory below the root.
type DirInfo struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Result is the materialized file list of a repository, in lexical walk order.
type Result struct {
	Root        string
	Files       []FileInfo
	Directories []DirInfo
}

// Options configures file discovery.
type Options struct {
	IgnoreFile  string   // pattern file read instead of .codeindexignore; relative to the root
	Ignore      []string // extra gitignore-style patterns
	NoGitignore bool     // do not apply the repository's .gitignore
}

// ignoreFileName is the per-repository pattern file consulted when
// Options.IgnoreFile is empty.
const ignoreFileName = ".codeindexignore"

// matcher decides which paths are skipped. Directories are matched with a
// trailing slash so patterns like "fixtures/" apply to them.
type matcher struct {
	extra *ignore.GitIgnore
	git   *ignore.GitIgnore
}

func (m *matcher) skipDir(name, rel string) bool {
	if IGNORE_PATTERNS[name] {
		return true
	}
	return m.match(rel + "/")
}

func (m *matcher) skipFile(name, rel string) bool {
	if IGNORE_FILES[name] {
		return true
	}
	for _, suffix := range IGNORE_SUFFIXES {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return m.match(rel)
}

func (m *matcher) match(rel string) bool {
	if m.extra != nil && m.extra.MatchesPath(rel) {
		return true
	}
	return m.git != nil && m.git.MatchesPath(rel)
}

// Discover walks a repository and returns every file and directory that is
// not ignored, with its size, language and extension.
func Discover(ctx context.Context, repoPath string, opts *Options) (*Result, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}

	// Check cancellation before starting walk
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(repoPath); err != nil {
		return nil, err
	}

	m := &matcher{}
	patterns := append([]string(nil), opts.Ignore...)
	ignPath := opts.IgnoreFile
	switch {
	case ignPath == "":
		ignPath = filepath.Join(repoPath, ignoreFileName)
	case !filepath.IsAbs(ignPath):
		ignPath = filepath.Join(repoPath, ignPath)
	}
	fromFile, err := loadIgnoreFile(ignPath)
	switch {
	case err == nil:
		patterns = append(patterns, fromFile...)
	case opts.IgnoreFile != "":
		return nil, fmt.Errorf("ignore file: %w", err)
	}
	if len(patterns) > 0 {
		m.extra = ignore.CompileIgnoreLines(patterns...)
	}
	if !opts.NoGitignore {
		m.git = loadGitignore(repoPath)
	}

	res := &Result{Root: repoPath}

	err = filepath.Walk(repoPath, func(p string, info os.FileInfo, walkErr error) error {
		// Check context cancellation periodically during walk
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == repoPath {
			return nil
		}

		rel, err := filepath.Rel(repoPath, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := info.Name()

		if info.IsDir() {
			if m.skipDir(name, rel) {
				return filepath.SkipDir
			}
			res.Directories = append(res.Directories, DirInfo{Path: rel, Name: name})
			return nil
		}
		if !info.Mode().IsRegular() || m.skipFile(name, rel) {
			return nil
		}

		res.Files = append(res.Files, NewFileInfo(p, rel, info.Size()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NewFileInfo fills in the derived fields of a file record.
func NewFileInfo(absPath, relPath string, size int64) FileInfo {
	relPath = filepath.ToSlash(relPath)
	dir := path.Dir(relPath)
	if dir == "." || dir == "" {
		dir = RootDirectory
	}
	name := path.Base(relPath)
	ext := lang.Extension(name)
	l := lang.Unknown
	if ext != lang.NoExtension {
		l = lang.ForExtension(ext)
	}
	return FileInfo{
		Path:      absPath,
		RelPath:   relPath,
		Name:      name,
		Size:      size,
		Language:  l,
		Extension: ext,
		Directory: dir,
	}
}

// FromPaths builds a Result from an already-materialized list of relative
// paths under root, for callers that do their own walking.
func FromPaths(root string, relPaths []string) (*Result, error) {
	res := &Result{Root: root}
	seen := map[string]bool{}
	for _, rel := range relPaths {
		rel = filepath.ToSlash(rel)
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, NewFileInfo(abs, rel, info.Size()))
		for dir := path.Dir(rel); dir != "." && dir != "/" && !seen[dir]; dir = path.Dir(dir) {
			seen[dir] = true
			res.Directories = append(res.Directories, DirInfo{Path: dir, Name: path.Base(dir)})
		}
	}
	sort.Slice(res.Directories, func(i, j int) bool {
		return res.Directories[i].Path < res.Directories[j].Path
	})
	return res, nil
}

// TotalSize sums the sizes of all files.
func (r *Result) TotalSize() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Size
	}
	return n
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
