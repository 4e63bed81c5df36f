package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ReportSink accumulates events over a run and writes a markdown summary of
// feature findings on Close.
type ReportSink struct {
	path  string
	file  *os.File
	mu    sync.Mutex
	runID string
	repos int
	codes int

	// (analyzer, feature) -> stats across all analyzed units
	features map[featureKey]*featureStats
}

type featureKey struct {
	Analyzer string
	Feature  string
}

type featureStats struct {
	Occurrences int
	Units       int // units where the feature occurred at least once
	Repos       map[string]struct{}
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{
		path:     path,
		file:     f,
		features: make(map[featureKey]*featureStats),
	}, nil
}

func (s *ReportSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case EventCodeAnalyzed:
		for featureName, count := range e.Features {
			key := featureKey{Analyzer: e.Analyzer, Feature: featureName}
			stats := s.features[key]
			if stats == nil {
				stats = &featureStats{Repos: make(map[string]struct{})}
				s.features[key] = stats
			}
			stats.Occurrences += count
			if count > 0 {
				stats.Units++
				stats.Repos[e.Source+":"+e.Repo] = struct{}{}
			}
		}
	case EventRunFinished:
		s.runID = e.RunID
		s.repos = e.Repos
		s.codes = e.Codes
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]featureKey, 0, len(s.features))
	for key := range s.features {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Analyzer != keys[j].Analyzer {
			return keys[i].Analyzer < keys[j].Analyzer
		}
		return keys[i].Feature < keys[j].Feature
	})

	var b strings.Builder
	b.WriteString("# Code Survey Report\n\n")
	if s.runID != "" {
		b.WriteString(fmt.Sprintf("Run `%s`: %d repositories, %d units analyzed.\n\n", s.runID, s.repos, s.codes))
	}

	b.WriteString("## Feature findings\n\n")
	if len(keys) == 0 {
		b.WriteString("No units were analyzed.\n")
	} else {
		b.WriteString("| Analyzer | Feature | Occurrences | Units | Repos |\n")
		b.WriteString("| --- | --- | ---: | ---: | ---: |\n")
		for _, key := range keys {
			stats := s.features[key]
			b.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d |\n",
				key.Analyzer, key.Feature, stats.Occurrences, stats.Units, len(stats.Repos)))
		}
	}

	if _, err := s.file.WriteString(b.String()); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
