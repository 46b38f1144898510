package lang

import (
	"path/filepath"
	"strings"
)

// Language is the tag attached to every discovered file.
type Language string

const (
	Kotlin       Language = "kotlin"
	Java         Language = "java"
	ObjectiveC   Language = "objective-c"
	Swift        Language = "swift"
	Dart         Language = "dart"
	JavaScript   Language = "javascript"
	TypeScript   Language = "typescript"
	Python       Language = "python"
	Go           Language = "go"
	Rust         Language = "rust"
	CPP          Language = "cpp"
	C            Language = "c"
	CSharp       Language = "csharp"
	Ruby         Language = "ruby"
	PHP          Language = "php"
	JSON         Language = "json"
	YAML         Language = "yaml"
	XML          Language = "xml"
	HTML         Language = "html"
	CSS          Language = "css"
	Markdown     Language = "markdown"
	Text         Language = "text"
	Shell        Language = "shell"
	SQL          Language = "sql"
	Dockerfile   Language = "dockerfile"
	Dockerignore Language = "dockerignore"
	Unknown      Language = "unknown"
)

// NoExtension is the extension recorded for files without a suffix.
const NoExtension = "no extension"

// extensions lists the languages that are counted but not parsed. Parsed
// languages add their extensions when they register.
var extensions = map[string]Language{
	".kt":           Kotlin,
	".java":         Java,
	".m":            ObjectiveC,
	".mm":           ObjectiveC,
	".swift":        Swift,
	".dart":         Dart,
	".js":           JavaScript,
	".jsx":          JavaScript,
	".ts":           TypeScript,
	".tsx":          TypeScript,
	".go":           Go,
	".rs":           Rust,
	".cpp":          CPP,
	".cc":           CPP,
	".cxx":          CPP,
	".c":            C,
	".cs":           CSharp,
	".rb":           Ruby,
	".php":          PHP,
	".json":         JSON,
	".yaml":         YAML,
	".yml":          YAML,
	".xml":          XML,
	".html":         HTML,
	".css":          CSS,
	".md":           Markdown,
	".txt":          Text,
	".sh":           Shell,
	".bash":         Shell,
	".zsh":          Shell,
	".sql":          SQL,
	".dockerfile":   Dockerfile,
	".dockerignore": Dockerignore,
}

// ForExtension returns the language for a lower-cased extension (e.g. ".py").
// Unlisted extensions map to Unknown.
func ForExtension(ext string) Language {
	if l, ok := extensions[strings.ToLower(ext)]; ok {
		return l
	}
	return Unknown
}

// Extension returns the lower-cased suffix of a file name, or NoExtension.
func Extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || ext == name {
		return NoExtension
	}
	return ext
}

// ForPath detects the language of a path by its extension.
func ForPath(path string) Language {
	return ForExtension(filepath.Ext(path))
}

// LanguageSpec describes a language whose sources get symbol extraction.
// The node type lists name tree-sitter node kinds.
type LanguageSpec struct {
	Language           Language
	FileExtensions     []string
	FunctionNodeTypes  []string
	ClassNodeTypes     []string
	CallNodeTypes      []string
	ImportNodeTypes    []string
	ImportFromTypes    []string
	DecoratorNodeTypes []string
	// PackageIndicators are file names that make a directory importable as a package.
	PackageIndicators []string
}

var registry = map[Language]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry and maps its file
// extensions to it.
func Register(spec *LanguageSpec) {
	registry[spec.Language] = spec
	for _, ext := range spec.FileExtensions {
		extensions[strings.ToLower(ext)] = spec.Language
	}
}

// ForLanguage returns the LanguageSpec for a language, or nil when the
// language is listed but not parsed.
func ForLanguage(l Language) *LanguageSpec {
	return registry[l]
}

// Parseable reports whether files of this language get symbol extraction.
func Parseable(l Language) bool {
	return registry[l] != nil
}
