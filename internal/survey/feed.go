package survey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"codesurvey/internal/sources"
)

// repoFeed round-robins the configured sources, advancing to the next
// source after every turn. A source whose turn fails stays in rotation; a
// source that returns io.EOF is removed permanently. The feed is exhausted
// once every source has been removed.
type repoFeed struct {
	logger *slog.Logger
	active []*feedSource
	next   int
}

type feedSource struct {
	source sources.Source
	iter   sources.RepoIterator
}

func newRepoFeed(ctx context.Context, srcs []sources.Source, logger *slog.Logger) *repoFeed {
	f := &repoFeed{logger: logger}
	for _, src := range srcs {
		f.active = append(f.active, &feedSource{source: src, iter: src.Repos(ctx)})
	}
	return f
}

func (f *repoFeed) exhausted() bool {
	return len(f.active) == 0
}

// turn yields the next candidate in round-robin order. ok=false with a nil
// error means this turn produced nothing (the source ran out or the context
// is canceled). A non-nil error reports a failed turn; the source stays in
// rotation and the caller decides whether the failure halts the run.
func (f *repoFeed) turn(ctx context.Context) (sources.Item, bool, error) {
	if len(f.active) == 0 || ctx.Err() != nil {
		return sources.Item{}, false, nil
	}
	if f.next >= len(f.active) {
		f.next = 0
	}
	fs := f.active[f.next]

	item, err := fs.iter.Next(ctx)
	switch {
	case errors.Is(err, io.EOF):
		f.logger.Debug("source exhausted", "source", fs.source.Name())
		// Removal leaves f.next pointing at the following source.
		f.active = append(f.active[:f.next], f.active[f.next+1:]...)
		return sources.Item{}, false, nil
	case err != nil:
		f.next++
		return sources.Item{}, false, fmt.Errorf("source %q failed to yield a repository: %w",
			fs.source.Name(), err)
	}
	f.next++
	return item, true, nil
}
