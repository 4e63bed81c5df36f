package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"codesurvey/internal/analyzers"
	"codesurvey/internal/config"
	"codesurvey/internal/flags"
	"codesurvey/internal/output"
	"codesurvey/internal/sources"
	"codesurvey/internal/survey"

	"github.com/spf13/cobra"
)

var cfg = config.New()

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a survey over the configured repository sources",
	Long: `Run a survey over the configured repository sources.

Sources:
  Repositories come from any combination of local directories (--dirs),
  git clone URLs (--git-urls), and a random sample of GitHub search
  results (--github-query / --github-language). Multiple sources are
  interleaved round-robin.

Features:
  Each --match entry defines one feature as name=pattern, where pattern
  is a Go regular expression matched against the contents of files
  selected by --glob; each occurrence records its line number. Repeat
  --match to survey multiple features in one pass.

Resumption:
  Results accumulate in the SQLite database at --db. A second run with
  the same database skips repositories and files that have already been
  analyzed for the requested features; use --reanalyze to redo them.

Output:
  Console output is controlled by --console-format (default: text).
  Structured outputs can be written via:
  - --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
  - --emit: write an additional structured stream to stdout (json or ndjson)
  - --report: write a Markdown feature summary to a file
  - --no-console: suppress the console sink (use with --emit/--out/--report)

Exit codes:
  0 = survey completed
  1 = survey failed or was interrupted
  2 = configuration error (survey did not start)

Examples:
  # Survey local checkouts for TODO comments in Python files
  codesurvey run --dirs ./repos --glob '*.py' --match 'todo=(?i)#.*todo'

  # Sample 10 Python repositories from GitHub
  export GITHUB_TOKEN="<your_token>"
  codesurvey run --github-language python --max-repos 10 \
    --glob '*.py' --match 'fstring=f"' --match 'walrus=:='

  # AI Agent: stream machine-readable events to stdout
  codesurvey run --dirs ./repos --match 'todo=TODO' --no-console --emit ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		loaded, err := config.Load(cmd.Flags())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}

		os.Exit(runSurvey(cfg))
	},
}

func runSurvey(cfg *config.Config) int {
	logger := config.NewLogger(os.Stderr, cfg.Runtime.LogLevel)

	srcs, err := buildSources(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	out, err := buildOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer func() {
		if err := out.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to finalize output: %v\n", err)
		}
	}()

	s, err := survey.New(survey.Options{
		Sources:             srcs,
		Analyzers:           []analyzers.Analyzer{analyzer},
		DBPath:              cfg.Storage.DBPath,
		Workers:             cfg.Runtime.Workers,
		FailFast:            cfg.Runtime.FailFast,
		DiscardCodeFeatures: cfg.Survey.DiscardCodeFeatures,
		SkipOccurrences:     cfg.Survey.NoSaveOccurrences,
		Reanalyze:           cfg.Survey.Reanalyze,
		Logger:              logger,
		Output:              out,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	result, err := s.Run(ctx, survey.RunOptions{
		MaxRepos: cfg.Survey.MaxRepos,
		MaxCodes: cfg.Survey.MaxCodes,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "Error: survey timed out after %s\n", cfg.Runtime.Timeout)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	logger.Info("survey completed",
		"run_id", result.RunID,
		"repos", result.Repos,
		"codes", result.Codes)
	return 0
}

func buildSources(cfg *config.Config) ([]sources.Source, error) {
	var srcs []sources.Source
	if len(cfg.Sources.Dirs) > 0 {
		srcs = append(srcs, sources.NewLocalSource(cfg.Sources.Dirs, "local"))
	}
	if len(cfg.Sources.GitURLs) > 0 {
		srcs = append(srcs, sources.NewGitSource(cfg.Sources.GitURLs, "git"))
	}
	if cfg.Sources.GithubQuery != "" || cfg.Sources.GithubLanguage != "" {
		token, _, err := sources.ResolveGithubToken(context.Background(), cfg.Sources.GithubToken)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve GitHub token: %w", err)
		}
		gh, err := sources.NewGithubSampleSource(sources.GithubSampleOptions{
			Name:        "github",
			SearchQuery: cfg.Sources.GithubQuery,
			Language:    cfg.Sources.GithubLanguage,
			MaxKB:       cfg.Sources.GithubMaxKB,
			Sort:        cfg.Sources.GithubSort,
			Token:       token,
		})
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, gh)
	}
	return srcs, nil
}

func buildAnalyzer(cfg *config.Config) (analyzers.Analyzer, error) {
	patterns, err := config.ParseFeaturePatterns(cfg.Survey.Match)
	if err != nil {
		return nil, err
	}
	return analyzers.NewRegexAnalyzer("regex", cfg.Survey.Glob, patterns)
}

func buildOutputManager(cfg *config.Config) (*output.Manager, error) {
	m := output.NewManager()
	if !cfg.Output.NoConsole {
		m.AddSink(output.NewConsoleSink(os.Stdout, cfg.Output.ConsoleFormat))
	}
	for _, format := range cfg.Output.Emit {
		sink, err := output.NewEmitSink(os.Stdout, format)
		if err != nil {
			return nil, err
		}
		m.AddSink(sink)
	}
	if cfg.Output.Out != "" {
		sink, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			return nil, err
		}
		m.AddSink(sink)
	}
	if cfg.Output.Report != "" {
		sink, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			return nil, err
		}
		m.AddSink(sink)
	}
	return m, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Sources
	runCmd.Flags().StringSliceVar(&cfg.Sources.Dirs, flags.FlagDirs, nil, "Local repository directories to survey (repeatable; comma-separated accepted)")
	runCmd.Flags().StringSliceVar(&cfg.Sources.GitURLs, flags.FlagGitURLs, nil, "Git clone URLs to survey (repeatable; comma-separated accepted)")
	runCmd.Flags().StringVar(&cfg.Sources.GithubQuery, flags.FlagGithubQuery, "", "Sample repositories matching a GitHub search query")
	runCmd.Flags().StringVar(&cfg.Sources.GithubLanguage, flags.FlagGithubLanguage, "", "Sample GitHub repositories tagged with this language")
	runCmd.Flags().IntVar(&cfg.Sources.GithubMaxKB, flags.FlagGithubMaxKB, 0, "Skip sampled GitHub repositories larger than this many kilobytes (0 = unlimited)")
	runCmd.Flags().StringVar(&cfg.Sources.GithubSort, flags.FlagGithubSort, "", "GitHub search sort order (e.g. stars, updated; default: best match)")
	runCmd.Flags().StringVar(&cfg.Sources.GithubToken, flags.FlagGithubToken, "", "GitHub API token (default: GITHUB_TOKEN, then gh auth token)")

	// Survey
	runCmd.Flags().StringArrayVar(&cfg.Survey.Match, flags.FlagMatch, nil, "Feature definition as name=pattern (Go regex; repeatable)")
	runCmd.Flags().StringVar(&cfg.Survey.Glob, flags.FlagGlob, cfg.Survey.Glob, "File name glob selecting which files to analyze")
	runCmd.Flags().IntVar(&cfg.Survey.MaxRepos, flags.FlagMaxRepos, 0, "Maximum number of repositories to survey (0 = unlimited)")
	runCmd.Flags().IntVar(&cfg.Survey.MaxCodes, flags.FlagMaxCodes, 0, "Maximum number of file analyses to run (0 = unlimited)")
	runCmd.Flags().BoolVar(&cfg.Survey.Reanalyze, flags.FlagReanalyze, false, "Reanalyze files even if results were recorded by a previous run")
	runCmd.Flags().BoolVar(&cfg.Survey.NoSaveOccurrences, flags.FlagNoSaveOccurrences, false, "Record occurrence counts only, not individual occurrences")
	runCmd.Flags().BoolVar(&cfg.Survey.DiscardCodeFeatures, flags.FlagDiscardCodeFeatures, false, "Delete per-file records once a repository's aggregates are computed")

	// Storage
	runCmd.Flags().StringVar(&cfg.Storage.DBPath, flags.FlagDB, cfg.Storage.DBPath, "SQLite database recording completed work and results")

	// Output
	runCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, cfg.Output.ConsoleFormat, "Console output format: text|json|ndjson (default: text)")
	runCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	runCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	runCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	runCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	runCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")

	// Runtime
	runCmd.Flags().IntVar(&cfg.Runtime.Workers, flags.FlagWorkers, cfg.Runtime.Workers, "Concurrent workers (default: 5)")
	runCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 30m)")
	runCmd.Flags().BoolVar(&cfg.Runtime.FailFast, flags.FlagFailFast, false, "Stop on first failure instead of logging and continuing")
	runCmd.Flags().StringVar(&cfg.Runtime.LogLevel, flags.FlagLogLevel, cfg.Runtime.LogLevel, "Log verbosity: debug|info|warn|error (default: info)")
}
