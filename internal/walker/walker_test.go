package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// writeTree creates files under a temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func relPaths(files []FileInfo) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	sort.Strings(out)
	return out
}

func sampleTree(t *testing.T) string {
	return writeTree(t, map[string]string{
		"README.md":             "# Project\n",
		"docs/flow.mmd":         "graph TD\nA-->B",
		"docs/seq.mermaid":      "sequenceDiagram\nA->>B: hi",
		"docs/arch/overview.md": "```mermaid\ngraph LR\nX-->Y\n```\n",
		"docs/notes.txt":        "not a diagram",
		"main.go":               "package main",
		"node_modules/pkg/x.md": "# vendored",
		"vendor/lib/README.md":  "# vendored",
		".git/info.md":          "# git",
		"build/out.mmd":         "graph TD",
		"ignored/secret.mmd":    "graph TD",
		"drafts/wip.mmd":        "graph TD",
		"binary.mmd":            "graph\x00TD",
		".gitignore":            "# comment\nignored/\n*.tmp\n",
		"docs/scratch.tmp.mmd":  "graph TD",
	})
}

func TestWalk_FindsDiagramFiles(t *testing.T) {
	root := sampleTree(t)

	files, err := Walk(Config{RootDir: root})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	got := strings.Join(relPaths(files), ",")
	want := "README.md,build/out.mmd,docs/arch/overview.md,docs/flow.mmd,docs/scratch.tmp.mmd,docs/seq.mermaid,drafts/wip.mmd"
	if got != want {
		t.Errorf("Walk() files\n got: %s\nwant: %s", got, want)
	}
}

func TestWalk_Formats(t *testing.T) {
	root := sampleTree(t)

	files, err := Walk(Config{RootDir: root})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Errorf("%s: path %q is not absolute", f.RelPath, f.Path)
		}
		want := FormatMermaid
		if strings.HasSuffix(f.RelPath, ".md") {
			want = FormatMarkdown
		}
		if f.Format != want {
			t.Errorf("%s: format = %q, want %q", f.RelPath, f.Format, want)
		}
	}
}

func TestWalk_IncludeExclude(t *testing.T) {
	root := sampleTree(t)

	files, err := Walk(Config{
		RootDir: root,
		Include: []string{"docs/**"},
		Exclude: []string{"**/*.mermaid", "docs/arch/**"},
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	got := strings.Join(relPaths(files), ",")
	if got != "docs/flow.mmd,docs/scratch.tmp.mmd" {
		t.Errorf("unexpected files: %s", got)
	}
}

func TestWalk_BaseNamePatterns(t *testing.T) {
	root := sampleTree(t)

	files, err := Walk(Config{RootDir: root, Include: []string{"*.mmd"}, Exclude: []string{"build/**"}})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	got := strings.Join(relPaths(files), ",")
	if got != "docs/flow.mmd,docs/scratch.tmp.mmd,drafts/wip.mmd" {
		t.Errorf("unexpected files: %s", got)
	}
}

func TestWalk_MaxFileSize(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.mmd": "graph TD",
		"large.mmd": strings.Repeat("A-->B\n", 100),
	})

	files, err := Walk(Config{RootDir: root, MaxFileSize: 50})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := strings.Join(relPaths(files), ","); got != "small.mmd" {
		t.Errorf("unexpected files: %s", got)
	}
}

func TestWalk_SingleFile(t *testing.T) {
	root := writeTree(t, map[string]string{"one.mmd": "pie"})

	files, err := Walk(Config{RootDir: filepath.Join(root, "one.mmd")})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "one.mmd" || files[0].Format != FormatMermaid {
		t.Errorf("unexpected result: %+v", files)
	}

	if _, err := Walk(Config{RootDir: filepath.Join(root, "nope.mmd")}); err == nil {
		t.Error("expected error for missing root")
	}

	txt := writeTree(t, map[string]string{"a.txt": "x"})
	if _, err := Walk(Config{RootDir: filepath.Join(txt, "a.txt")}); err == nil {
		t.Error("expected error for unsupported single file")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.mmd":      FormatMermaid,
		"A.MERMAID":  FormatMermaid,
		"README.md":  FormatMarkdown,
		"x.markdown": FormatMarkdown,
		"main.go":    "",
		"Makefile":   "",
	}
	for name, want := range tests {
		if got := DetectFormat(name); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestMatchesGitignore(t *testing.T) {
	patterns := []string{"ignored/", "*.tmp", "docs/private", "/out"}
	tests := []struct {
		path string
		want bool
	}{
		{"ignored/a.mmd", true},
		{"sub/ignored/a.mmd", true},
		{"ignored", false},
		{"x.tmp", true},
		{"docs/private/a.md", true},
		{"docs/public/a.md", false},
		{"out/a.mmd", true},
		{"docs/flow.mmd", false},
	}
	for _, tt := range tests {
		if got := matchesGitignore(tt.path, patterns); got != tt.want {
			t.Errorf("matchesGitignore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatchesIncludeExcludeEmpty(t *testing.T) {
	if !MatchesInclude("a/b.md", nil) {
		t.Error("empty include should match everything")
	}
	if MatchesExclude("a/b.md", nil) {
		t.Error("empty exclude should match nothing")
	}
}
