package lang

import "testing"

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		lang Language
	}{
		{".py", Python},
		{".PY", Python},
		{".go", Go},
		{".jsx", JavaScript},
		{".tsx", TypeScript},
		{".mm", ObjectiveC},
		{".cxx", CPP},
		{".cs", CSharp},
		{".yml", YAML},
		{".zsh", Shell},
		{".dockerignore", Dockerignore},
		{".xyz", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		if got := ForExtension(tt.ext); got != tt.lang {
			t.Errorf("ForExtension(%q) = %s, want %s", tt.ext, got, tt.lang)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"main.py":        ".py",
		"README.MD":      ".md",
		"Makefile":       NoExtension,
		".bashrc":        NoExtension,
		"archive.tar.gz": ".gz",
	}
	for name, want := range tests {
		if got := Extension(name); got != want {
			t.Errorf("Extension(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestPythonSpec(t *testing.T) {
	spec := ForLanguage(Python)
	if spec == nil {
		t.Fatal("Python spec not registered")
	}
	if spec.PackageIndicators[0] != "__init__.py" {
		t.Errorf("Python PackageIndicators: got %v, want [__init__.py]", spec.PackageIndicators)
	}
	if !Parseable(Python) {
		t.Error("Python should be parseable")
	}
	if Parseable(Go) {
		t.Error("Go is listed but not parsed")
	}
}

func TestRegisterMapsExtensions(t *testing.T) {
	toy := Language("toy")
	Register(&LanguageSpec{Language: toy, FileExtensions: []string{".TOY"}})
	t.Cleanup(func() {
		delete(registry, toy)
		delete(extensions, ".toy")
	})

	if got := ForPath("src/x.toy"); got != toy {
		t.Errorf("ForPath = %s, want toy", got)
	}
	if !Parseable(toy) {
		t.Error("registered language should be parseable")
	}
}
