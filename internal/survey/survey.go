// Package survey implements the orchestration core: a round-robin
// repository feed, a bounded-concurrency job scheduler, incremental
// completion tracking, and per-repository aggregation of analysis results.
package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"codesurvey/internal/analyzers"
	"codesurvey/internal/output"
	"codesurvey/internal/sources"
	"codesurvey/internal/store"
)

// DefaultDBPath is where completion records go when no store or database
// path is configured.
const DefaultDBPath = "codesurvey.db"

// Options configures a Survey. The zero value of every optional field is
// its default.
type Options struct {
	// Sources supply repository candidates. At least one is required, and
	// names must be unique.
	Sources []sources.Source

	// Analyzers analyze each repository. At least one is required, and
	// names must be unique, as must feature names within one analyzer.
	Analyzers []analyzers.Analyzer

	// Store records completion state. When nil, a SQLite store is opened
	// at DBPath (or DefaultDBPath) and closed when Run returns; a provided
	// Store is left open so it can be shared across runs.
	Store  store.Store
	DBPath string

	// Workers bounds the number of concurrently pending jobs. Defaults to
	// runtime.NumCPU().
	Workers int

	// FailFast halts the run on the first source, analyzer, or unit
	// failure instead of logging it and continuing.
	FailFast bool

	// DiscardCodeFeatures deletes unit-level records once a repository's
	// aggregates have been computed from them.
	DiscardCodeFeatures bool

	// SkipOccurrences omits occurrence payloads when recording unit
	// results; only the counts are kept.
	SkipOccurrences bool

	// Reanalyze ignores previously recorded results when deciding what
	// work remains. Results are still recorded.
	Reanalyze bool

	// Logger receives run progress and failures. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Output, when set, receives lifecycle events for each run.
	Output *output.Manager
}

// RunOptions are per-run stop conditions. Zero means unlimited.
type RunOptions struct {
	// MaxRepos stops the run once this many repositories have completed.
	MaxRepos int

	// MaxCodes stops starting unit-analysis jobs once this many units have
	// been analyzed; repositories already in flight still complete.
	MaxCodes int
}

// RunResult summarizes one finished run.
type RunResult struct {
	RunID string
	Repos int
	Codes int
}

// Survey coordinates sources, analyzers, and the completion store across
// resumable runs.
type Survey struct {
	opts Options
}

// New validates the configuration eagerly: duplicate source, analyzer, or
// feature names fail here, before any work starts.
func New(opts Options) (*Survey, error) {
	if len(opts.Sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if len(opts.Analyzers) == 0 {
		return nil, errors.New("at least one analyzer is required")
	}

	sourceNames := make(map[string]bool, len(opts.Sources))
	for _, src := range opts.Sources {
		name := src.Name()
		if name == "" {
			return nil, errors.New("source name must not be empty")
		}
		if sourceNames[name] {
			return nil, fmt.Errorf("duplicate source name %q", name)
		}
		sourceNames[name] = true
	}

	analyzerNames := make(map[string]bool, len(opts.Analyzers))
	for _, a := range opts.Analyzers {
		name := a.Name()
		if name == "" {
			return nil, errors.New("analyzer name must not be empty")
		}
		if analyzerNames[name] {
			return nil, fmt.Errorf("duplicate analyzer name %q", name)
		}
		analyzerNames[name] = true

		featureNames := make(map[string]bool)
		for _, featureName := range a.FeatureNames() {
			if featureName == "" {
				return nil, fmt.Errorf("analyzer %q: feature name must not be empty", name)
			}
			if featureNames[featureName] {
				return nil, fmt.Errorf("analyzer %q: duplicate feature name %q", name, featureName)
			}
			featureNames[featureName] = true
		}
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.DBPath == "" {
		opts.DBPath = DefaultDBPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Survey{opts: opts}, nil
}

// Run surveys repositories until the feed is exhausted, a stop condition is
// reached, or ctx is canceled. Repeating a completed run against the same
// store performs no new analysis.
func (s *Survey) Run(ctx context.Context, runOpts RunOptions) (RunResult, error) {
	st := s.opts.Store
	ownStore := st == nil
	if ownStore {
		opened, err := store.Open(s.opts.DBPath, s.opts.Logger)
		if err != nil {
			return RunResult{}, err
		}
		st = opened
		defer st.Close()
	}

	runID, err := st.StartRun(ctx)
	if err != nil {
		return RunResult{}, err
	}

	s.emit(output.Event{Type: output.EventRunStarted, RunID: runID})
	s.opts.Logger.Info("survey run started",
		"run_id", runID, "sources", len(s.opts.Sources), "analyzers", len(s.opts.Analyzers),
		"workers", s.opts.Workers)

	r := &runner{
		logger:           s.opts.Logger,
		store:            st,
		out:              s.opts.Output,
		analyzers:        s.opts.Analyzers,
		workers:          s.opts.Workers,
		maxRepos:         runOpts.MaxRepos,
		maxCodes:         runOpts.MaxCodes,
		failFast:         s.opts.FailFast,
		keepCodeFeatures: !s.opts.DiscardCodeFeatures,
		saveOccurrences:  !s.opts.SkipOccurrences,
		useSaved:         !s.opts.Reanalyze,
		pending:          make(map[uint64]pendingJob),
		inFlight:         make(map[repoID]*repoState),
		pool:             newPool(ctx, s.opts.Workers),
		feed:             newRepoFeed(ctx, s.opts.Sources, s.opts.Logger),
	}

	runErr := r.run(ctx)

	result := RunResult{RunID: runID, Repos: r.completedRepos, Codes: r.completedCodes}
	finishCtx := context.WithoutCancel(ctx)
	if err := st.FinishRun(finishCtx, runID, store.RunCounts{Repos: result.Repos, Codes: result.Codes}); err != nil {
		s.opts.Logger.Warn("failed to record run finish", "run_id", runID, "error", err)
	}

	s.emit(output.Event{Type: output.EventRunFinished, RunID: runID, Repos: result.Repos, Codes: result.Codes})
	s.opts.Logger.Info("survey run finished",
		"run_id", runID, "repos", result.Repos, "codes", result.Codes)
	return result, runErr
}

func (s *Survey) emit(e output.Event) {
	if s.opts.Output == nil {
		return
	}
	_ = s.opts.Output.Write(e)
}
