package sources

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initGitFixture builds a local git repository with one committed file and
// returns its file:// clone URL.
func initGitFixture(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("# TODO\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("add", "main.py")
	run("commit", "-q", "-m", "initial")

	return "file://" + dir
}

func TestGitSource_ClonesAndCleansUp(t *testing.T) {
	url := initGitFixture(t)
	src := NewGitSource([]string{url}, "")

	if src.Name() != "git" {
		t.Fatalf("default name: got %q", src.Name())
	}

	iter := src.Repos(context.Background())
	item, err := iter.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if item.Thunk == nil {
		t.Fatalf("git repos should be deferred, got %+v", item)
	}
	if item.Thunk.Key != url {
		t.Fatalf("thunk key: got %q want %q", item.Thunk.Key, url)
	}

	repo, err := item.Thunk.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(repo.Path, "main.py")); err != nil {
		t.Fatalf("cloned file missing: %v", err)
	}

	repo.Cleanup()
	if _, err := os.Stat(repo.Path); !os.IsNotExist(err) {
		t.Fatalf("cleanup should remove the clone directory: %v", err)
	}

	if _, err := iter.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestGitSource_CloneFailure(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	missing := filepath.Join(t.TempDir(), "no-such-repo")
	src := NewGitSource([]string{"file://" + missing}, "git")

	if _, err := src.FetchRepo(context.Background(), "file://"+missing); err == nil {
		t.Fatal("expected clone of a missing repository to fail")
	}
}
