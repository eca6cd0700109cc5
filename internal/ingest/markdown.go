package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sozolabs/sozograph/internal/logging"
	"gopkg.in/yaml.v3"
)

// MarkdownSource walks a directory for markdown notes and streams them as
// transcript payloads. YAML frontmatter, when present, is parsed into the
// item's meta so ts/source/id survive into provenance.
type MarkdownSource struct {
	dir             string
	includePatterns []string
	excludePatterns []string
}

// NewMarkdownSource creates a markdown source rooted at dir. Empty pattern
// lists get sensible defaults.
func NewMarkdownSource(dir string, include, exclude []string) *MarkdownSource {
	if len(include) == 0 {
		include = []string{"*.md", "**/*.md"}
	}
	if len(exclude) == 0 {
		exclude = []string{".*/**"}
	}
	return &MarkdownSource{
		dir:             dir,
		includePatterns: include,
		excludePatterns: exclude,
	}
}

// Type returns the source type identifier
func (m *MarkdownSource) Type() string {
	return "markdown"
}

// Scan walks the directory and streams matching markdown files.
func (m *MarkdownSource) Scan(ctx context.Context) (<-chan Item, error) {
	ch := make(chan Item)

	go func() {
		defer close(ch)

		logging.L_info("ingest: scanning for markdown",
			"dir", m.dir,
			"include", m.includePatterns,
			"exclude", m.excludePatterns)

		files := m.findMatchingFiles()

		for _, relPath := range files {
			select {
			case <-ctx.Done():
				return
			default:
			}

			content, err := os.ReadFile(filepath.Join(m.dir, relPath))
			if err != nil {
				logging.L_warn("ingest: failed to read file", "path", relPath, "error", err)
				continue
			}
			if len(content) == 0 {
				continue
			}

			body, front := splitFrontmatter(string(content))
			if strings.TrimSpace(body) == "" {
				continue
			}

			meta := map[string]any{
				"source": "markdown:" + relPath,
				"id":     relPath,
			}
			for k, v := range front {
				switch k {
				case "date", "timestamp":
					meta["ts"] = v
				default:
					meta[k] = v
				}
			}

			select {
			case ch <- Item{Payload: body, Meta: meta}:
				logging.L_debug("ingest: found markdown", "path", relPath, "size", len(body))
			case <-ctx.Done():
				return
			}
		}

		logging.L_info("ingest: markdown scan complete", "files", len(files))
	}()

	return ch, nil
}

// findMatchingFiles returns files matching include patterns but not exclude
// patterns, relative to the source dir.
func (m *MarkdownSource) findMatchingFiles() []string {
	var matched []string

	filepath.Walk(m.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}

		relPath, err := filepath.Rel(m.dir, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		for _, pattern := range m.excludePatterns {
			if matchGlob(relPath, pattern) {
				return nil
			}
		}
		for _, pattern := range m.includePatterns {
			if matchGlob(relPath, pattern) {
				matched = append(matched, relPath)
				return nil
			}
		}
		return nil
	})

	return matched
}

// splitFrontmatter separates a leading YAML frontmatter block from the body.
// Malformed frontmatter is kept as body text.
func splitFrontmatter(content string) (body string, front map[string]any) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return content, nil
	}
	rest := content[strings.Index(content, "\n")+1:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return content, nil
	}
	block := rest[:idx]
	after := rest[idx+len("\n---"):]
	if nl := strings.Index(after, "\n"); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = ""
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(block), &parsed); err != nil {
		logging.L_debug("ingest: malformed frontmatter, keeping as body", "error", err)
		return content, nil
	}
	return after, parsed
}

// matchGlob matches a path against a glob pattern.
// Supports: * (any chars except /), ** (any path including /), ? (single char)
func matchGlob(path, pattern string) bool {
	path = filepath.ToSlash(path)
	pattern = filepath.ToSlash(pattern)

	if strings.Contains(pattern, "**") {
		parts := strings.Split(pattern, "**")
		if len(parts) == 2 {
			prefix := parts[0]
			suffix := strings.TrimPrefix(parts[1], "/")

			if prefix != "" && !strings.HasPrefix(path, prefix) {
				return false
			}
			if suffix == "" {
				return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/"))
			}

			remaining := path
			if prefix != "" {
				remaining = strings.TrimPrefix(path, prefix)
			}
			return matchSimpleGlob(remaining, suffix) || matchSimpleGlob(filepath.Base(path), suffix)
		}
	}

	return matchSimpleGlob(path, pattern)
}

// matchSimpleGlob matches a path against a pattern with * and ? wildcards (no **)
func matchSimpleGlob(path, pattern string) bool {
	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}
	if !strings.Contains(pattern, "/") {
		matched, err = filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}
	return false
}
