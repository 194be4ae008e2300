// Package walker finds files that may contain Mermaid diagrams.
package walker

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize caps the files considered (1 MB).
const DefaultMaxFileSize int64 = 1 << 20

// FileInfo describes one candidate file.
type FileInfo struct {
	Path    string // absolute
	RelPath string // slash-separated, relative to the root
	Size    int64
	Format  Format
}

// Config controls Walk.
type Config struct {
	RootDir     string
	Include     []string
	Exclude     []string
	MaxFileSize int64 // 0 uses DefaultMaxFileSize
}

// Walk returns the diagram-bearing files under cfg.RootDir in lexical
// order. Unreadable entries, binary files, oversized files and paths
// ignored by the root .gitignore are skipped.
func Walk(cfg Config) ([]FileInfo, error) {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("walker: %w", err)
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	// A single file is walked as itself.
	if !info.IsDir() {
		format := DetectFormat(info.Name())
		if format == "" {
			return nil, fmt.Errorf("walker: %s is not a markdown or mermaid file", root)
		}
		return []FileInfo{{Path: root, RelPath: info.Name(), Size: info.Size(), Format: format}}, nil
	}

	ignored := loadGitignore(filepath.Join(root, ".gitignore"))

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		format := DetectFormat(d.Name())
		if format == "" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if matchesGitignore(rel, ignored) {
			return nil
		}
		if !MatchesInclude(rel, cfg.Include) || MatchesExclude(rel, cfg.Exclude) {
			return nil
		}

		fi, err := d.Info()
		if err != nil || fi.Size() > maxSize || isBinary(path) {
			return nil
		}

		files = append(files, FileInfo{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Size:    fi.Size(),
			Format:  format,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal: %w", err)
	}
	return files, nil
}

// isBinary looks for a NUL byte in the first 512 bytes.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

// loadGitignore returns the non-empty, non-comment lines of a .gitignore.
func loadGitignore(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// matchesGitignore applies the simple subset of gitignore rules: a pattern
// without a slash matches any path component, one with a slash matches the
// whole path from the root.
func matchesGitignore(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	parts := strings.Split(normalized, "/")

	for _, pattern := range patterns {
		dirOnly := strings.HasSuffix(pattern, "/")
		pattern = strings.Trim(pattern, "/")
		if pattern == "" {
			continue
		}

		if !strings.Contains(pattern, "/") {
			for i, part := range parts {
				isDir := i < len(parts)-1
				if dirOnly && !isDir {
					continue
				}
				if ok, _ := filepath.Match(pattern, part); ok {
					return true
				}
			}
			continue
		}
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern+"/**", normalized); ok {
			return true
		}
	}
	return false
}
