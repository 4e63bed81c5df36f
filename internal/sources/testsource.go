package sources

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TestSource materializes a single Repo in a temporary directory from a
// mapping of relative file paths to contents. It exists for tests and for
// analyzing snippets directly (see analyzers).
//
// Paths are not sanitized; only use trusted inputs.
type TestSource struct {
	name  string
	files map[string]string
}

// NewTestSource creates a Source that yields one Repo built from the given
// path-to-content mapping. An empty name defaults to "test".
func NewTestSource(files map[string]string, name string) *TestSource {
	if name == "" {
		name = "test"
	}
	return &TestSource{name: name, files: files}
}

func (s *TestSource) Name() string { return s.name }

// FetchRepo treats the key as an existing repo directory created by an
// earlier iteration of this Source.
func (s *TestSource) FetchRepo(ctx context.Context, key string) (*Repo, error) {
	if _, err := os.Stat(key); err != nil {
		return nil, fmt.Errorf("source %q: repo directory %q: %w", s.name, key, err)
	}
	return &Repo{
		Source:  s,
		Key:     key,
		Path:    key,
		Cleanup: func() { _ = os.RemoveAll(key) },
	}, nil
}

func (s *TestSource) Repos(ctx context.Context) RepoIterator {
	yielded := false
	return iteratorFunc(func(ctx context.Context) (Item, error) {
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}
		if yielded {
			return Item{}, io.EOF
		}
		yielded = true

		dir, err := os.MkdirTemp("", "codesurvey-test-")
		if err != nil {
			return Item{}, fmt.Errorf("source %q: create repo directory: %w", s.name, err)
		}
		for rel, content := range s.files {
			path := filepath.Join(dir, rel)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				_ = os.RemoveAll(dir)
				return Item{}, fmt.Errorf("source %q: create %q: %w", s.name, rel, err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				_ = os.RemoveAll(dir)
				return Item{}, fmt.Errorf("source %q: write %q: %w", s.name, rel, err)
			}
		}
		repo, err := s.FetchRepo(ctx, dir)
		if err != nil {
			_ = os.RemoveAll(dir)
			return Item{}, err
		}
		return Item{Repo: repo}, nil
	})
}
