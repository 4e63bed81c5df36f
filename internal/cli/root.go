package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "codesurvey",
	Short: "Survey repositories for occurrences of code features",
	Long: `Codesurvey analyzes many code repositories for the presence of named
features (patterns detected by pluggable analyzers), accumulating counts
across repeated, resumable runs.

Completed work is recorded in a SQLite database, so re-running a survey
skips everything already analyzed and only surveys what remains.

Examples:
	# Show available commands and global flags
	codesurvey --help

	# Survey local repositories for TODO comments in Python files
	codesurvey run --dirs ./repos --glob '*.py' --match 'todo=(?i)todo'

	# Inspect accumulated per-repository results
	codesurvey results --db codesurvey.db

	# Print build info
	codesurvey version

Output:
	By default, commands write human-readable output to stdout.
	The run command supports structured output via emitter flags (see
	codesurvey run --help).`,
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
