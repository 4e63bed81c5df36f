package survey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"codesurvey/internal/analyzers"
	"codesurvey/internal/output"
	"codesurvey/internal/sources"
	"codesurvey/internal/store"
)

type jobKind int

const (
	jobRepo jobKind = iota
	jobCode
)

type repoID struct {
	source string
	key    string
}

func (id repoID) String() string {
	return id.source + ":" + id.key
}

// pendingJob maps a submitted task back to the work it represents. Records
// are removed the instant their job completes, on success and on failure
// alike.
type pendingJob struct {
	kind     jobKind
	repo     repoID
	analyzer string
	code     string
}

// codeStream is one analyzer's lazily drained unit stream for a repository.
type codeStream struct {
	analyzer string
	iter     analyzers.CodeIterator
}

// repoState tracks one repository from admission to completion. repo is nil
// while a preparation job is pending.
type repoState struct {
	id           repoID
	repo         *sources.Repo
	outstanding  map[string][]string // analyzer name -> outstanding feature names
	streams      []*codeStream
	pendingCodes int
	cleaned      bool
}

// runner is the coordinating control flow of one survey run. Everything it
// owns (pending-job bookkeeping, the in-flight repository set, counters) is
// touched only from its own goroutine; workers run job computations and
// nothing else, so no locking is needed here.
type runner struct {
	logger *slog.Logger
	store  store.Store
	out    *output.Manager

	analyzers []analyzers.Analyzer
	workers   int
	maxRepos  int
	maxCodes  int

	failFast         bool
	keepCodeFeatures bool
	saveOccurrences  bool
	useSaved         bool

	pool *pool
	feed *repoFeed

	nextJobID uint64
	pending   map[uint64]pendingJob

	inFlight   map[repoID]*repoState
	drainQueue []repoID // repos with stream items left to admit

	pendingRepoJobs int
	pendingCodeJobs int
	completedRepos  int
	completedCodes  int

	feedDone bool
	failure  error
}

// run drives the survey loop: admit work until the pending-job count hits
// the worker bound, block for at least one completion, handle it, repeat.
// The loop exits when the feed is exhausted and nothing is pending, when
// the context is canceled, or when fail-fast mode recorded a failure.
func (r *runner) run(ctx context.Context) error {
	defer r.unwind()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.halted() {
			return r.failure
		}

		r.admit(ctx)
		if r.halted() {
			return r.failure
		}

		if len(r.pending) == 0 {
			if r.feedExhausted() {
				return nil
			}
			// The current feed turn failed; take another.
			continue
		}

		select {
		case c := <-r.pool.completions:
			r.handleCompletion(ctx, c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// unwind stops the workers without draining them and runs cleanup for every
// repository still in flight. The caller closes the store afterwards.
func (r *runner) unwind() {
	r.pool.stop()
	for _, state := range r.inFlight {
		r.cleanupRepo(state)
	}
}

func (r *runner) halted() bool {
	return r.failFast && r.failure != nil
}

func (r *runner) feedExhausted() bool {
	return r.feedDone || r.feed.exhausted()
}

func (r *runner) repoCapReached() bool {
	return r.maxRepos > 0 && r.completedRepos+len(r.inFlight) >= r.maxRepos
}

func (r *runner) codeCapReached() bool {
	return r.maxCodes > 0 && r.completedCodes+r.pendingCodeJobs >= r.maxCodes
}

// admit fills the worker bound with new work, preferring to drain unit
// streams of repositories already in flight over pulling new repositories
// from the feed (favor repo completion). Immediate items are handled inline
// without consuming a pending slot.
func (r *runner) admit(ctx context.Context) {
	for len(r.pending) < r.workers && ctx.Err() == nil && !r.halted() {
		if r.drainStreams(ctx) {
			continue
		}
		if !r.admitCandidate(ctx) {
			return
		}
	}
}

// drainStreams makes one step of progress on the frontmost drainable
// repository: admit its next unit job, handle an immediate result, retire a
// finished stream, or abort its remaining units once the unit cap is
// reached. Returns false when no repository has stream work left.
func (r *runner) drainStreams(ctx context.Context) bool {
	for len(r.drainQueue) > 0 {
		state := r.inFlight[r.drainQueue[0]]
		if state == nil || len(state.streams) == 0 {
			r.drainQueue = r.drainQueue[1:]
			continue
		}

		if r.codeCapReached() {
			r.logger.Info("unit cap reached, skipping remaining units",
				"repo", state.id, "analyzed", r.completedCodes)
			state.streams = nil
			r.drainQueue = r.drainQueue[1:]
			r.checkRepoCompletion(ctx, state)
			return true
		}

		stream := state.streams[0]
		item, err := stream.iter.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			r.retireStream(ctx, state)
			return true
		case err != nil:
			r.recordFailure(fmt.Errorf("analyzer %q unit stream for repo %s: %w",
				stream.analyzer, state.id, err))
			r.retireStream(ctx, state)
			return true
		}

		if item.Code != nil {
			r.handleCode(ctx, item.Code)
			return true
		}
		r.submitCodeThunk(state, item.Thunk)
		return true
	}
	return false
}

// retireStream drops the repository's frontmost stream and, if it was the
// last one, checks the repository for completion.
func (r *runner) retireStream(ctx context.Context, state *repoState) {
	state.streams = state.streams[1:]
	if len(state.streams) > 0 {
		return
	}
	r.drainQueue = r.drainQueue[1:]
	r.checkRepoCompletion(ctx, state)
}

// admitCandidate takes one feed turn and admits the resulting repository
// candidate, unless a cap refuses it or completion records show nothing
// outstanding. Returns false when the feed produced nothing this turn.
func (r *runner) admitCandidate(ctx context.Context) bool {
	if r.feedExhausted() {
		return false
	}
	if r.codeCapReached() {
		r.logger.Info("unit cap reached, no further repositories will be admitted",
			"analyzed", r.completedCodes)
		r.feedDone = true
		return false
	}
	if r.repoCapReached() {
		r.logger.Info("repository cap reached, no further repositories will be admitted",
			"completed", r.completedRepos, "in_flight", len(r.inFlight))
		r.feedDone = true
		return false
	}

	item, ok, err := r.feed.turn(ctx)
	if err != nil {
		r.recordFailure(err)
		return true
	}
	if !ok {
		return false
	}

	id := repoID{source: item.SourceName(), key: item.Key()}
	if _, exists := r.inFlight[id]; exists {
		r.logger.Debug("skipping repository already in flight", "repo", id)
		r.discardCandidate(item)
		return true
	}

	outstanding, err := r.outstandingRepoFeatures(ctx, id)
	if err != nil {
		r.recordFailure(fmt.Errorf("resolve outstanding features for repo %s: %w", id, err))
		r.discardCandidate(item)
		return true
	}
	if len(outstanding) == 0 {
		r.logger.Debug("skipping fully analyzed repository", "repo", id)
		r.discardCandidate(item)
		return true
	}

	state := &repoState{id: id, outstanding: outstanding}
	r.inFlight[id] = state
	if item.Repo != nil {
		r.handleRepo(ctx, state, item.Repo)
		return true
	}
	r.submitRepoThunk(state, item.Thunk)
	return true
}

// discardCandidate releases the local resources of a candidate that will
// never enter the in-flight set. Deferred candidates hold nothing yet.
func (r *runner) discardCandidate(item sources.Item) {
	if item.Repo != nil && item.Repo.Cleanup != nil {
		item.Repo.Cleanup()
	}
}

// outstandingRepoFeatures resolves which (analyzer, feature) pairs remain
// unrecorded for the repository, or everything when saved results are being
// ignored.
func (r *runner) outstandingRepoFeatures(ctx context.Context, id repoID) (map[string][]string, error) {
	requested := make(map[string][]string, len(r.analyzers))
	for _, a := range r.analyzers {
		requested[a.Name()] = a.FeatureNames()
	}
	if !r.useSaved {
		return requested, nil
	}
	return r.store.OutstandingRepoFeatures(ctx, id.source, id.key, requested)
}

func (r *runner) outstandingCodeFunc(ctx context.Context, id repoID, analyzerName string, features []string) analyzers.OutstandingFunc {
	return func(codeKey string) ([]string, error) {
		if !r.useSaved {
			return features, nil
		}
		return r.store.OutstandingCodeFeatures(ctx, id.source, id.key, analyzerName, codeKey, features)
	}
}

func (r *runner) submitRepoThunk(state *repoState, thunk *sources.RepoThunk) {
	id := r.nextJobID
	r.nextJobID++
	r.pending[id] = pendingJob{kind: jobRepo, repo: state.id}
	r.pendingRepoJobs++

	fetch := thunk.Fetch
	r.pool.submit(task{id: id, run: func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}})
}

func (r *runner) submitCodeThunk(state *repoState, thunk *analyzers.CodeThunk) {
	id := r.nextJobID
	r.nextJobID++
	r.pending[id] = pendingJob{kind: jobCode, repo: state.id, analyzer: thunk.AnalyzerName, code: thunk.Key}
	state.pendingCodes++
	r.pendingCodeJobs++

	analyze := thunk.Analyze
	r.pool.submit(task{id: id, run: func(ctx context.Context) (any, error) {
		return analyze(ctx)
	}})
}

// handleCompletion routes one finished job. It runs on the coordinator, so
// everything it mutates is race-free by construction.
func (r *runner) handleCompletion(ctx context.Context, c completion) {
	job, ok := r.pending[c.id]
	if !ok {
		return
	}
	delete(r.pending, c.id)
	state := r.inFlight[job.repo]

	switch job.kind {
	case jobRepo:
		r.pendingRepoJobs--
		if c.err != nil {
			r.recordFailure(fmt.Errorf("source %q failed to prepare repo %s: %w",
				job.repo.source, job.repo, c.err))
			delete(r.inFlight, job.repo)
			return
		}
		repo, ok := c.result.(*sources.Repo)
		if !ok || repo == nil {
			r.recordFailure(fmt.Errorf("source %q produced no repo for %s", job.repo.source, job.repo))
			delete(r.inFlight, job.repo)
			return
		}
		if state == nil {
			// Unwound while the job was in flight; release the clone.
			if repo.Cleanup != nil {
				repo.Cleanup()
			}
			return
		}
		r.handleRepo(ctx, state, repo)

	case jobCode:
		r.pendingCodeJobs--
		if state != nil {
			state.pendingCodes--
		}
		if c.err != nil {
			r.recordFailure(fmt.Errorf("analyzer %q failed on repo %s unit %q: %w",
				job.analyzer, job.repo, job.code, c.err))
		} else if code, ok := c.result.(*analyzers.Code); ok && code != nil {
			r.handleCode(ctx, code)
		}
		if state != nil {
			r.checkRepoCompletion(ctx, state)
		}
	}
}

// handleRepo receives a prepared repository, records its metadata, and
// opens one unit stream per analyzer with outstanding features. Analyzers
// with nothing outstanding are skipped entirely.
func (r *runner) handleRepo(ctx context.Context, state *repoState, repo *sources.Repo) {
	state.repo = repo
	r.logger.Info("analyzing repository", "source", state.id.source, "repo", state.id.key)
	r.emit(output.Event{Type: output.EventRepoStarted, Source: state.id.source, Repo: state.id.key})

	if err := r.store.SaveRepoMetadata(ctx, repo); err != nil {
		r.recordFailure(fmt.Errorf("save metadata for repo %s: %w", state.id, err))
	}

	for _, analyzer := range r.analyzers {
		features := state.outstanding[analyzer.Name()]
		if len(features) == 0 {
			r.logger.Debug("skipping analyzer with no outstanding features",
				"analyzer", analyzer.Name(), "repo", state.id)
			continue
		}
		iter, err := analyzer.Codes(ctx, repo, r.outstandingCodeFunc(ctx, state.id, analyzer.Name(), features))
		if err != nil {
			r.recordFailure(fmt.Errorf("analyzer %q failed to open unit stream for repo %s: %w",
				analyzer.Name(), state.id, err))
			continue
		}
		state.streams = append(state.streams, &codeStream{analyzer: analyzer.Name(), iter: iter})
	}

	if len(state.streams) == 0 {
		r.checkRepoCompletion(ctx, state)
		return
	}
	r.drainQueue = append(r.drainQueue, state.id)
}

// handleCode records one completed unit result.
func (r *runner) handleCode(ctx context.Context, code *analyzers.Code) {
	r.completedCodes++
	if err := r.store.SaveCodeFeatures(ctx, code, r.saveOccurrences); err != nil {
		r.recordFailure(fmt.Errorf("save features for %s: %w", code, err))
		return
	}

	counts := make(map[string]int, len(code.Features))
	for name, feature := range code.Features {
		if feature.Skipped {
			continue
		}
		counts[name] = feature.Count()
	}
	r.logger.Debug("analyzed unit", "repo", code.Repo, "unit", code.Key, "analyzer", code.AnalyzerName)
	r.emit(output.Event{
		Type:     output.EventCodeAnalyzed,
		Source:   code.Repo.Source.Name(),
		Repo:     code.Repo.Key,
		Analyzer: code.AnalyzerName,
		Code:     code.Key,
		Features: counts,
	})
}

// checkRepoCompletion completes the repository once it has no unit work
// left: persist the aggregate, count it, run cleanup exactly once, then
// remove it from the in-flight set. Repositories that never
// started a unit job pass through here too so their cleanup still runs.
func (r *runner) checkRepoCompletion(ctx context.Context, state *repoState) {
	if state.repo == nil || state.pendingCodes > 0 || len(state.streams) > 0 {
		return
	}
	if _, ok := r.inFlight[state.id]; !ok {
		return
	}

	if err := r.store.AggregateRepoFeatures(ctx, state.id.source, state.id.key, r.keepCodeFeatures); err != nil {
		r.recordFailure(fmt.Errorf("aggregate features for repo %s: %w", state.id, err))
	}
	r.completedRepos++
	r.cleanupRepo(state)
	delete(r.inFlight, state.id)

	r.logger.Info("finished repository",
		"source", state.id.source, "repo", state.id.key, "completed", r.completedRepos)
	r.emit(output.Event{Type: output.EventRepoFinished, Source: state.id.source, Repo: state.id.key})
}

func (r *runner) cleanupRepo(state *repoState) {
	if state.cleaned {
		return
	}
	state.cleaned = true
	if state.repo != nil && state.repo.Cleanup != nil {
		state.repo.Cleanup()
	}
}

// recordFailure logs a job failure; in fail-fast mode the first one is
// retained to halt the run.
func (r *runner) recordFailure(err error) {
	r.logger.Error("survey job failed", "error", err)
	if r.failFast && r.failure == nil {
		r.failure = err
	}
}

func (r *runner) emit(e output.Event) {
	if r.out == nil {
		return
	}
	_ = r.out.Write(e)
}
