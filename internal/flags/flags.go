package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// config loader. Keeping these as constants helps avoid drift between Cobra
// flag wiring and the viper bindings that read them.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringSliceVar(&dirs, flags.FlagDirs, nil, "...")
//	arg := "--" + flags.FlagDirs
const (
	// Sources
	FlagDirs           = "dirs"
	FlagGitURLs        = "git-urls"
	FlagGithubQuery    = "github-query"
	FlagGithubLanguage = "github-language"
	FlagGithubMaxKB    = "github-max-kb"
	FlagGithubSort     = "github-sort"
	FlagGithubToken    = "github-token"

	// Survey
	FlagMatch               = "match"
	FlagGlob                = "glob"
	FlagMaxRepos            = "max-repos"
	FlagMaxCodes            = "max-codes"
	FlagReanalyze           = "reanalyze"
	FlagNoSaveOccurrences   = "no-save-occurrences"
	FlagDiscardCodeFeatures = "discard-code-features"

	// Storage
	FlagDB = "db"

	// Output
	FlagConsoleFormat = "console-format"
	FlagReport        = "report"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagEmit          = "emit"
	FlagNoConsole     = "no-console"

	// Results filtering
	FlagSources   = "sources"
	FlagRepoKeys  = "repo-keys"
	FlagAnalyzers = "analyzers"
	FlagFeatures  = "features"
	FlagCodes     = "codes"

	// Runtime
	FlagWorkers  = "workers"
	FlagTimeout  = "timeout"
	FlagFailFast = "fail-fast"
	FlagLogLevel = "log-level"
)
