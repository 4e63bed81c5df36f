package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"codesurvey/internal/analyzers"
	"codesurvey/internal/sources"
	"codesurvey/internal/store"

	"github.com/fatih/color"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestAnalyzersList_Quiet(t *testing.T) {
	out, err := executeCommand(t, "analyzers", "list", "-q")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.TrimSpace(out) != "regex" {
		t.Fatalf("quiet list: got %q want regex", out)
	}
}

func TestAnalyzersShow(t *testing.T) {
	out, err := executeCommand(t, "analyzers", "show", "regex")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "ANALYZER: regex") {
		t.Fatalf("show output missing header:\n%s", out)
	}
	if !strings.Contains(out, "glob") || !strings.Contains(out, "match") {
		t.Fatalf("show output missing options:\n%s", out)
	}
}

func TestAnalyzersShow_Unknown(t *testing.T) {
	if _, err := executeCommand(t, "analyzers", "show", "nope"); err == nil {
		t.Fatal("expected error for unknown analyzer")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "codesurvey") || !strings.Contains(out, "commit:") {
		t.Fatalf("version output: %q", out)
	}
}

func seedResultsDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(path, logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	repo := &sources.Repo{Source: sources.NewTestSource(nil, "src"), Key: "alpha"}
	code := &analyzers.Code{
		AnalyzerName: "regex",
		Repo:         repo,
		Key:          "a.py",
		Features: map[string]analyzers.Feature{
			"todo": analyzers.FoundFeature("todo", analyzers.Occurrence{"line": 1}),
		},
	}
	if err := st.SaveCodeFeatures(ctx, code, true); err != nil {
		t.Fatalf("SaveCodeFeatures failed: %v", err)
	}
	if err := st.AggregateRepoFeatures(ctx, "src", "alpha", true); err != nil {
		t.Fatalf("AggregateRepoFeatures failed: %v", err)
	}
	return path
}

func TestResultsCmd_RepoAggregates(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	path := seedResultsDB(t)
	out, err := executeCommand(t, "results", "--db", path)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "src:alpha") {
		t.Fatalf("missing repo header:\n%s", out)
	}
	if !strings.Contains(out, "regex/todo") || !strings.Contains(out, "occurrences=1 codes=1/1") {
		t.Fatalf("missing aggregate line:\n%s", out)
	}
}

func TestResultsCmd_CodeRows(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	path := seedResultsDB(t)
	out, err := executeCommand(t, "results", "--db", path, "--codes")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "a.py") || !strings.Contains(out, "occurrences=1") {
		t.Fatalf("missing unit row:\n%s", out)
	}
}

func TestResultsCmd_EmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	out, err := executeCommand(t, "results", "--db", path, "--codes=false")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "No results found.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
