package sources

import (
	"context"
	"fmt"
	"io"
	"os"
)

// LocalSource yields Repos from directories that already exist on the local
// filesystem. Repos are immediately available and need no cleanup.
type LocalSource struct {
	name string
	dirs []string
}

// NewLocalSource creates a Source over the given local directories. Each
// directory is one Repo; its path doubles as its key. An empty name defaults
// to "local".
func NewLocalSource(dirs []string, name string) *LocalSource {
	if name == "" {
		name = "local"
	}
	return &LocalSource{name: name, dirs: dirs}
}

func (s *LocalSource) Name() string { return s.name }

func (s *LocalSource) FetchRepo(ctx context.Context, key string) (*Repo, error) {
	info, err := os.Stat(key)
	if err != nil {
		return nil, fmt.Errorf("source %q: repo directory %q: %w", s.name, key, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %q: repo path %q is not a directory", s.name, key)
	}
	return &Repo{Source: s, Key: key, Path: key}, nil
}

func (s *LocalSource) Repos(ctx context.Context) RepoIterator {
	dirs := s.dirs
	pos := 0
	return iteratorFunc(func(ctx context.Context) (Item, error) {
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}
		for pos < len(dirs) {
			dir := dirs[pos]
			pos++
			repo, err := s.FetchRepo(ctx, dir)
			if err != nil {
				// Report the bad directory; the iterator moves on next turn.
				return Item{}, err
			}
			return Item{Repo: repo}, nil
		}
		return Item{}, io.EOF
	})
}
