package sources

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/singleflight"
)

// GitSource yields Repos cloned from remote git repositories. Each URL is
// prepared by a RepoThunk that performs a shallow clone into a temporary
// directory; the Repo's Cleanup removes that directory.
type GitSource struct {
	name string
	urls []string

	// clones dedupes concurrent preparation of the same repo key, so two
	// in-flight thunks for one URL share a single clone.
	clones singleflight.Group
}

// NewGitSource creates a Source over the given clone URLs. An empty name
// defaults to "git".
func NewGitSource(urls []string, name string) *GitSource {
	if name == "" {
		name = "git"
	}
	return &GitSource{name: name, urls: urls}
}

func (s *GitSource) Name() string { return s.name }

func (s *GitSource) FetchRepo(ctx context.Context, key string) (*Repo, error) {
	v, err, _ := s.clones.Do(key, func() (any, error) {
		return cloneGitRepo(ctx, key)
	})
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.name, err)
	}
	dir := v.(string)
	return &Repo{
		Source:  s,
		Key:     key,
		Path:    dir,
		Cleanup: func() { _ = os.RemoveAll(dir) },
	}, nil
}

func (s *GitSource) Repos(ctx context.Context) RepoIterator {
	items := make([]Item, 0, len(s.urls))
	for _, url := range s.urls {
		url := url
		items = append(items, Item{Thunk: &RepoThunk{
			Source: s,
			Key:    url,
			Fetch: func(ctx context.Context) (*Repo, error) {
				return s.FetchRepo(ctx, url)
			},
		}})
	}
	return &sliceIterator{items: items}
}

// cloneGitRepo shallow-clones the given URL into a fresh temporary directory
// and returns the directory path. The caller owns the directory.
func cloneGitRepo(ctx context.Context, cloneURL string) (string, error) {
	dir, err := os.MkdirTemp("", "codesurvey-git-")
	if err != nil {
		return "", fmt.Errorf("create clone directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", cloneURL, dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.RemoveAll(dir)
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return "", fmt.Errorf("git clone %q: %w: %s", cloneURL, err, msg)
		}
		return "", fmt.Errorf("git clone %q: %w", cloneURL, err)
	}
	return dir, nil
}
