package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	repoColor = color.New(color.FgCyan)
	doneColor = color.New(color.FgGreen)
	unitColor = color.New(color.Faint)
)

type ConsoleSink struct {
	writer io.Writer
	format string // "text", "json", "ndjson"
	mu     sync.Mutex
	events []Event // for JSON array output
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	return &ConsoleSink{writer: w, format: format}
}

func (s *ConsoleSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(e)
}

func (s *ConsoleSink) writeLocked(e Event) error {
	switch s.format {
	case "json":
		// Aggregate per-unit results only; lifecycle noise is dropped.
		if e.Type == EventCodeAnalyzed {
			s.events = append(s.events, e)
		}
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		if err := encoder.Encode(e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		if err := s.writeText(e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeText(e Event) error {
	var err error
	switch e.Type {
	case EventRunStarted:
		_, err = fmt.Fprintf(s.writer, "Survey started (run %s)\n", e.RunID)
	case EventRepoStarted:
		_, err = fmt.Fprintf(s.writer, "%s %s:%s\n", repoColor.Sprint("repo"), e.Source, e.Repo)
	case EventCodeAnalyzed:
		_, err = fmt.Fprintf(s.writer, "  %s %s\n", unitColor.Sprint(e.Code), formatFeatureCounts(e.Features))
	case EventRepoFinished:
		_, err = fmt.Fprintf(s.writer, "%s %s:%s\n", doneColor.Sprint("done"), e.Source, e.Repo)
	case EventRunFinished:
		_, err = fmt.Fprintf(s.writer, "Surveyed %d repositories, %d units (run %s)\n", e.Repos, e.Codes, e.RunID)
	}
	return err
}

func formatFeatureCounts(features map[string]int) string {
	if len(features) == 0 {
		return "-"
	}
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, features[name]))
	}
	return strings.Join(parts, " ")
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.events); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}
