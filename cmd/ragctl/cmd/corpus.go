package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/draco28/ragcore/internal/gitignore"
	"github.com/draco28/ragcore/internal/store"
)

// loadCorpus reads every *.txt/*.md file under dir and splits it into
// blank-line-delimited paragraphs, one store.Chunk per paragraph. Document
// chunking itself is out of this module's scope (spec.md §1 treats "chunk
// sources" as an external collaborator) — this is a convenience loader for
// the CLI demo, not a spec-scoped component. Files matched by a .gitignore
// under dir are skipped, the same way the teacher's scanner avoided
// indexing ignored files.
func loadCorpus(dir string) ([]store.Chunk, error) {
	var chunks []store.Chunk

	matcher := gitignore.New()
	if data, err := os.ReadFile(filepath.Join(dir, ".gitignore")); err == nil {
		for _, pattern := range gitignore.ParsePatterns(string(data)) {
			matcher.AddPattern(pattern)
		}
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr == nil && matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if relErr != nil {
			rel = path
		}
		for i, para := range paragraphs(string(content)) {
			chunks = append(chunks, store.Chunk{
				ID:         fmt.Sprintf("%s#%d", rel, i),
				Content:    para,
				DocumentID: rel,
				Metadata:   map[string]any{"source": rel},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no .txt/.md files with content found under %s", dir)
	}
	return chunks, nil
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
