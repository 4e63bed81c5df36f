package analyzers

import (
	"context"
	"fmt"

	"codesurvey/internal/sources"
)

// Code is the analysis result for a single unit of code (typically one
// file) within a Repo.
type Code struct {
	// AnalyzerName is the Analyzer that produced the result.
	AnalyzerName string

	// Repo the unit belongs to.
	Repo *sources.Repo

	// Key uniquely identifies the unit within its Repo (e.g. a relative
	// file path).
	Key string

	// Features maps each requested feature name to its outcome. Every
	// requested name appears exactly once.
	Features map[string]Feature
}

func (c *Code) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s", c.Repo, c.Key)
}

// CodeThunk is a deferred unit-analysis task. The survey runner executes
// Analyze inside a worker.
type CodeThunk struct {
	AnalyzerName string
	Repo         *sources.Repo
	Key          string

	// FeatureNames lists the features the analysis will resolve.
	FeatureNames []string

	// Analyze performs the analysis. It must be safe to run in an isolated
	// worker goroutine: it may only touch its captured inputs.
	Analyze func(ctx context.Context) (*Code, error)
}

func (t *CodeThunk) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s", t.Repo, t.Key)
}

// Item is a single element of an Analyzer's unit stream. Exactly one of
// Code and Thunk is non-nil: Code when the result is already available,
// Thunk when the analysis should run in a worker.
type Item struct {
	Code  *Code
	Thunk *CodeThunk
}

// CodeIterator lazily yields the units of one Repo. Next returns io.EOF
// when the stream is exhausted; any other error aborts the stream.
type CodeIterator interface {
	Next(ctx context.Context) (Item, error)
}

// OutstandingFunc reports which of an Analyzer's features still need to be
// surveyed for the unit with the given key. An empty result means the unit
// must not be yielded at all.
type OutstandingFunc func(codeKey string) ([]string, error)

// Analyzer inspects a Repo and produces per-unit feature analysis results.
type Analyzer interface {
	// Name identifies the Analyzer. It namespaces every key the survey
	// persists for this Analyzer.
	Name() string

	// FeatureNames lists all features this Analyzer can resolve.
	FeatureNames() []string

	// Codes returns a lazy stream over the Repo's units. The outstanding
	// callback tells the Analyzer which features remain unrecorded for a
	// given unit; units with no outstanding features are not yielded.
	Codes(ctx context.Context, repo *sources.Repo, outstanding OutstandingFunc) (CodeIterator, error)
}
