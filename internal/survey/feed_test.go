package survey

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"codesurvey/internal/sources"
)

// scriptedSource replays a fixed sequence of iterator outcomes: a non-empty
// string yields an immediate repo with that key, "ERR" yields a failed turn,
// and the sequence ends with io.EOF.
type scriptedSource struct {
	name   string
	script []string
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) FetchRepo(ctx context.Context, key string) (*sources.Repo, error) {
	return &sources.Repo{Source: s, Key: key}, nil
}

func (s *scriptedSource) Repos(ctx context.Context) sources.RepoIterator {
	pos := 0
	return repoIterFunc(func(ctx context.Context) (sources.Item, error) {
		if pos >= len(s.script) {
			return sources.Item{}, io.EOF
		}
		step := s.script[pos]
		pos++
		if step == "ERR" {
			return sources.Item{}, errors.New("scripted failure")
		}
		return sources.Item{Repo: &sources.Repo{Source: s, Key: step}}, nil
	})
}

// drainFeed takes turns until the feed is exhausted, collecting the keys of
// produced candidates. Failed turns are skipped.
func drainFeed(t *testing.T, f *repoFeed) []string {
	t.Helper()
	var keys []string
	for i := 0; !f.exhausted(); i++ {
		if i > 100 {
			t.Fatal("feed did not exhaust")
		}
		item, ok, err := f.turn(context.Background())
		if err != nil {
			continue
		}
		if ok {
			keys = append(keys, item.Key())
		}
	}
	return keys
}

func TestRepoFeed_RoundRobinInterleaving(t *testing.T) {
	f := newRepoFeed(context.Background(), []sources.Source{
		&scriptedSource{name: "a", script: []string{"a1", "a2", "a3"}},
		&scriptedSource{name: "b", script: []string{"b1"}},
	}, discardLogger())

	got := drainFeed(t, f)
	want := []string{"a1", "b1", "a2", "a3"}
	if len(got) != len(want) {
		t.Fatalf("keys: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("turn %d: got %q want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRepoFeed_FailedTurnKeepsSourceInRotation(t *testing.T) {
	f := newRepoFeed(context.Background(), []sources.Source{
		&scriptedSource{name: "flaky", script: []string{"f1", "ERR", "f2"}},
		&scriptedSource{name: "steady", script: []string{"s1", "s2"}},
	}, discardLogger())

	got := drainFeed(t, f)
	// The failed turn is skipped, the flaky source stays and yields f2 on
	// its next turn.
	want := []string{"f1", "s1", "s2", "f2"}
	if len(got) != len(want) {
		t.Fatalf("keys: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("turn %d: got %q want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRepoFeed_FailedTurnSurfacesError(t *testing.T) {
	f := newRepoFeed(context.Background(), []sources.Source{
		&scriptedSource{name: "flaky", script: []string{"ERR", "f1"}},
	}, discardLogger())

	_, ok, err := f.turn(context.Background())
	if ok || err == nil {
		t.Fatalf("expected a failed turn: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(err.Error(), `"flaky"`) || !strings.Contains(err.Error(), "scripted failure") {
		t.Fatalf("error should name the source and cause: %v", err)
	}
	if f.exhausted() {
		t.Fatal("a failed turn must not remove the source")
	}

	item, ok, err := f.turn(context.Background())
	if err != nil || !ok || item.Key() != "f1" {
		t.Fatalf("next turn: got %v ok=%v err=%v", item, ok, err)
	}
}

func TestRepoFeed_ExhaustedSourceIsRemovedPermanently(t *testing.T) {
	f := newRepoFeed(context.Background(), []sources.Source{
		&scriptedSource{name: "short", script: []string{"x1"}},
		&scriptedSource{name: "long", script: []string{"y1", "y2", "y3"}},
	}, discardLogger())

	got := drainFeed(t, f)
	want := []string{"x1", "y1", "y2", "y3"}
	if len(got) != len(want) {
		t.Fatalf("keys: got %v want %v", got, want)
	}
	if !f.exhausted() {
		t.Fatal("feed should be exhausted")
	}
}

func TestRepoFeed_CanceledContextYieldsNothing(t *testing.T) {
	f := newRepoFeed(context.Background(), []sources.Source{
		&scriptedSource{name: "a", script: []string{"a1"}},
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := f.turn(ctx)
	if ok || err != nil {
		t.Fatalf("turn should produce nothing on a canceled context: ok=%v err=%v", ok, err)
	}
	if f.exhausted() {
		t.Fatal("a canceled turn must not remove sources")
	}
}
