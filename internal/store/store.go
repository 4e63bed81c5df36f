// Package store persists survey completion state: which features have
// already been analyzed for which repositories and units, and the
// aggregated per-repository counts. It is the only component that writes
// durable records.
package store

import (
	"context"
	"time"

	"codesurvey/internal/analyzers"
	"codesurvey/internal/sources"
)

// RepoFeature is one repo-level aggregate row: the summed analysis outcome
// of a single feature across all analyzed units of a repository.
type RepoFeature struct {
	// Updated is the most recent time this aggregate was written.
	Updated time.Time

	SourceName   string
	RepoKey      string
	AnalyzerName string
	FeatureName  string

	// OccurrenceCount is the total number of occurrences across all units.
	OccurrenceCount int

	// CodeOccurrenceCount is the number of non-skipped units where the
	// feature occurred at least once.
	CodeOccurrenceCount int

	// CodeTotalCount is the number of units where analysis was attempted
	// (skipped units are excluded).
	CodeTotalCount int

	// RepoMetadata holds the source-supplied metadata recorded for the
	// repository, keyed by metadata name.
	RepoMetadata map[string]any
}

// CodeFeature is one unit-level row: the outcome of a single feature for a
// single unit of code.
type CodeFeature struct {
	Updated time.Time

	SourceName   string
	RepoKey      string
	AnalyzerName string
	CodeKey      string
	FeatureName  string

	// OccurrenceCount is nil when analysis of the feature was skipped for
	// this unit.
	OccurrenceCount *int

	// Occurrences holds the recorded occurrence payloads. nil when
	// occurrence persistence was disabled at save time, which is distinct
	// from an empty slice (analyzed, nothing found).
	Occurrences []analyzers.Occurrence

	RepoMetadata map[string]any
}

// Filter restricts query results. A nil or empty slice leaves that
// dimension unconstrained.
type Filter struct {
	SourceNames   []string
	RepoKeys      []string
	AnalyzerNames []string
	FeatureNames  []string
}

// RunCounts summarizes a finished survey run.
type RunCounts struct {
	Repos int
	Codes int
}

// Store is the completion-store contract consumed by the survey core and
// the results CLI. Implementations must serialize concurrent writes for the
// same aggregate key so that resumed aggregation never double-counts or
// loses previously persisted counts.
type Store interface {
	// OutstandingRepoFeatures returns, per analyzer, the subset of the
	// requested feature names that have no repo-level aggregate recorded
	// yet for (sourceName, repoKey). Analyzers with nothing outstanding
	// are omitted from the result.
	OutstandingRepoFeatures(ctx context.Context, sourceName, repoKey string, requested map[string][]string) (map[string][]string, error)

	// OutstandingCodeFeatures returns the subset of the requested feature
	// names that have no unit-level record yet for the given unit.
	OutstandingCodeFeatures(ctx context.Context, sourceName, repoKey, analyzerName, codeKey string, requested []string) ([]string, error)

	// SaveCodeFeatures upserts one unit-level row per feature outcome in
	// code, last-write-wins. When saveOccurrences is false the occurrence
	// payloads are omitted entirely (stored as absent, not as empty).
	SaveCodeFeatures(ctx context.Context, code *analyzers.Code, saveOccurrences bool) error

	// SaveRepoMetadata upserts the repository's metadata, preserving the
	// most recent value per key.
	SaveRepoMetadata(ctx context.Context, repo *sources.Repo) error

	// AggregateRepoFeatures computes the repo-level aggregates for
	// (sourceName, repoKey) from the currently stored unit-level rows and
	// upserts them, merging with any previously persisted aggregates so
	// counts never decrease. When keepCodeFeatures is false the source
	// unit-level rows are deleted afterwards; deletion is a storage
	// optimization only and does not change aggregate results.
	AggregateRepoFeatures(ctx context.Context, sourceName, repoKey string, keepCodeFeatures bool) error

	// RepoFeatures returns repo-level aggregates matching the filter.
	RepoFeatures(ctx context.Context, f Filter) ([]RepoFeature, error)

	// CodeFeatures returns unit-level rows matching the filter.
	CodeFeatures(ctx context.Context, f Filter) ([]CodeFeature, error)

	// StartRun records the start of a survey run and returns its ID.
	StartRun(ctx context.Context) (string, error)

	// FinishRun records a run's completion time and final counters.
	FinishRun(ctx context.Context, runID string, counts RunCounts) error

	Close() error
}
