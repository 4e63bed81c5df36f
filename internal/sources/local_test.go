package sources

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSource_YieldsEachDirectory(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	src := NewLocalSource([]string{dir1, dir2}, "")

	if src.Name() != "local" {
		t.Fatalf("default name: got %q", src.Name())
	}

	iter := src.Repos(context.Background())

	for i, want := range []string{dir1, dir2} {
		item, err := iter.Next(context.Background())
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if item.Repo == nil {
			t.Fatalf("local repos should be immediate, got %+v", item)
		}
		if item.Repo.Key != want || item.Repo.Path != want {
			t.Fatalf("repo %d: got key %q path %q want %q", i, item.Repo.Key, item.Repo.Path, want)
		}
		if item.Repo.Cleanup != nil {
			t.Fatal("local repos need no cleanup")
		}
	}

	if _, err := iter.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLocalSource_MissingDirectoryFailsThatTurnOnly(t *testing.T) {
	good := t.TempDir()
	src := NewLocalSource([]string{filepath.Join(good, "does-not-exist"), good}, "local")
	iter := src.Repos(context.Background())

	if _, err := iter.Next(context.Background()); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected a failed turn, got %v", err)
	}

	item, err := iter.Next(context.Background())
	if err != nil {
		t.Fatalf("iterator should continue after a failed turn: %v", err)
	}
	if item.Repo.Key != good {
		t.Fatalf("got %q want %q", item.Repo.Key, good)
	}

	if _, err := iter.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLocalSource_FetchRepoRejectsFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	src := NewLocalSource(nil, "local")
	if _, err := src.FetchRepo(context.Background(), file); err == nil {
		t.Fatal("expected error for non-directory repo path")
	}
}

func TestTestSource_MaterializesFilesOnce(t *testing.T) {
	src := NewTestSource(map[string]string{
		"a.py":     "one",
		"sub/b.py": "two",
	}, "")
	iter := src.Repos(context.Background())

	item, err := iter.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	repo := item.Repo
	if repo == nil {
		t.Fatalf("expected immediate repo, got %+v", item)
	}
	content, err := os.ReadFile(filepath.Join(repo.Path, "sub", "b.py"))
	if err != nil {
		t.Fatalf("materialized file missing: %v", err)
	}
	if string(content) != "two" {
		t.Fatalf("content: got %q", content)
	}

	if _, err := iter.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after the single repo, got %v", err)
	}

	repo.Cleanup()
	if _, err := os.Stat(repo.Path); !os.IsNotExist(err) {
		t.Fatalf("cleanup should remove the repo directory: %v", err)
	}
}
