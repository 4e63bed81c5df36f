package sources

import (
	"context"
	"fmt"
	"io"
)

// Repo is a repository of code that is accessible in a local directory so
// that it can be analyzed.
type Repo struct {
	// Source is the Source that produced the Repo.
	Source Source

	// Key uniquely identifies the Repo within its Source.
	Key string

	// Path is the local directory holding the Repo's files.
	Path string

	// Cleanup removes the Repo's local resources (e.g. a scratch clone
	// directory). May be nil. The survey runner invokes it exactly once,
	// after the last analysis job for the Repo has finished or when a run
	// is unwound early.
	Cleanup func()

	// Metadata holds additional properties describing the Repo, supplied
	// by the Source (e.g. a popularity score). The shape depends on the
	// Source type.
	Metadata map[string]any
}

func (r *Repo) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s", r.Source.Name(), r.Key)
}

// RepoThunk is a deferred task that prepares a Repo (e.g. cloning it into a
// temporary directory). The survey runner executes Fetch inside a worker.
type RepoThunk struct {
	// Source is the Source that will produce the Repo.
	Source Source

	// Key uniquely identifies the Repo within its Source.
	Key string

	// Fetch prepares and returns the Repo. It must be safe to run in an
	// isolated worker goroutine: it may only touch its captured inputs.
	Fetch func(ctx context.Context) (*Repo, error)
}

func (t *RepoThunk) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s", t.Source.Name(), t.Key)
}

// Item is a single candidate yielded by a RepoIterator. Exactly one of Repo
// and Thunk is non-nil: Repo when the repository is immediately available,
// Thunk when it must be prepared asynchronously first.
type Item struct {
	Repo  *Repo
	Thunk *RepoThunk
}

// Key returns the repo key of the candidate, whichever form it takes.
func (it Item) Key() string {
	if it.Repo != nil {
		return it.Repo.Key
	}
	if it.Thunk != nil {
		return it.Thunk.Key
	}
	return ""
}

// SourceName returns the name of the Source that yielded the candidate.
func (it Item) SourceName() string {
	if it.Repo != nil {
		return it.Repo.Source.Name()
	}
	if it.Thunk != nil {
		return it.Thunk.Source.Name()
	}
	return ""
}

func (it Item) String() string {
	if it.Repo != nil {
		return it.Repo.String()
	}
	if it.Thunk != nil {
		return it.Thunk.String()
	}
	return "<empty>"
}

// RepoIterator yields repository candidates one at a time.
//
// Next semantics:
//   - (item, nil): a candidate was produced.
//   - (Item{}, io.EOF): the iterator is permanently exhausted.
//   - (Item{}, err): this turn failed; the iterator remains usable and the
//     caller decides whether to retry or give up.
type RepoIterator interface {
	Next(ctx context.Context) (Item, error)
}

// Source provides Repos to be surveyed. A Source may yield a possibly
// infinite stream of candidates. Name must be stable: it namespaces every
// key the survey persists for this Source.
type Source interface {
	Name() string

	// Repos returns a fresh iterator over the Source's repository
	// candidates.
	Repos(ctx context.Context) RepoIterator

	// FetchRepo prepares the Repo with the given key for analysis. Useful
	// for inspecting a Repo identified by a stored survey result.
	FetchRepo(ctx context.Context, key string) (*Repo, error)
}

// iteratorFunc adapts a function to the RepoIterator interface.
type iteratorFunc func(ctx context.Context) (Item, error)

func (f iteratorFunc) Next(ctx context.Context) (Item, error) { return f(ctx) }

// sliceIterator yields a fixed set of candidates, then io.EOF.
type sliceIterator struct {
	items []Item
	pos   int
}

func (s *sliceIterator) Next(ctx context.Context) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if s.pos >= len(s.items) {
		return Item{}, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it, nil
}
