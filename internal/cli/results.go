package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"codesurvey/internal/config"
	"codesurvey/internal/flags"
	"codesurvey/internal/store"
	"codesurvey/internal/survey"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var resultsOpts struct {
	db        string
	sources   []string
	repoKeys  []string
	analyzers []string
	features  []string
	codes     bool
}

var (
	resultsRepoColor    = color.New(color.FgCyan, color.Bold)
	resultsFeatureColor = color.New(color.Bold)
	resultsSkipColor    = color.New(color.Faint)
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show accumulated survey results",
	Long: `Show the results accumulated in a survey database.

By default this prints repository-level aggregates: for each surveyed
repository and feature, the total occurrence count, the number of
analyzed units containing the feature, and the number of units analyzed.
With --codes it prints the unit-level records instead (if the survey was
run with --discard-code-features, none remain).

Results can be narrowed with --sources, --repo-keys, --analyzers, and
--features; each is a repeatable, comma-separated list and empty means
no restriction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := config.NewLogger(os.Stderr, "warn")
		st, err := store.Open(resultsOpts.db, logger)
		if err != nil {
			return fmt.Errorf("failed to open survey database: %w", err)
		}
		defer st.Close()

		f := store.Filter{
			SourceNames:   resultsOpts.sources,
			RepoKeys:      resultsOpts.repoKeys,
			AnalyzerNames: resultsOpts.analyzers,
			FeatureNames:  resultsOpts.features,
		}
		if resultsOpts.codes {
			return printCodeFeatures(cmd, st, f)
		}
		return printRepoFeatures(cmd, st, f)
	},
}

func printRepoFeatures(cmd *cobra.Command, st store.Store, f store.Filter) error {
	rows, err := st.RepoFeatures(context.Background(), f)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return nil
	}
	sortRepoFeatures(rows)

	w := cmd.OutOrStdout()
	lastRepo := ""
	for _, r := range rows {
		repo := r.SourceName + ":" + r.RepoKey
		if repo != lastRepo {
			if lastRepo != "" {
				fmt.Fprintln(w)
			}
			resultsRepoColor.Fprintln(w, repo)
			lastRepo = repo
		}
		fmt.Fprintf(w, "  %s  occurrences=%d codes=%d/%d\n",
			resultsFeatureColor.Sprintf("%s/%s", r.AnalyzerName, r.FeatureName),
			r.OccurrenceCount, r.CodeOccurrenceCount, r.CodeTotalCount)
	}
	return nil
}

func printCodeFeatures(cmd *cobra.Command, st store.Store, f store.Filter) error {
	rows, err := st.CodeFeatures(context.Background(), f)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No unit-level results found.")
		return nil
	}
	sortCodeFeatures(rows)

	w := cmd.OutOrStdout()
	lastRepo := ""
	for _, r := range rows {
		repo := r.SourceName + ":" + r.RepoKey
		if repo != lastRepo {
			if lastRepo != "" {
				fmt.Fprintln(w)
			}
			resultsRepoColor.Fprintln(w, repo)
			lastRepo = repo
		}
		if r.OccurrenceCount == nil {
			fmt.Fprintf(w, "  %s  %s/%s  %s\n",
				r.CodeKey,
				r.AnalyzerName, r.FeatureName,
				resultsSkipColor.Sprint("skipped"))
			continue
		}
		fmt.Fprintf(w, "  %s  %s  occurrences=%d\n",
			r.CodeKey,
			resultsFeatureColor.Sprintf("%s/%s", r.AnalyzerName, r.FeatureName),
			*r.OccurrenceCount)
	}
	return nil
}

func sortRepoFeatures(rows []store.RepoFeature) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.SourceName != b.SourceName {
			return a.SourceName < b.SourceName
		}
		if a.RepoKey != b.RepoKey {
			return a.RepoKey < b.RepoKey
		}
		if a.AnalyzerName != b.AnalyzerName {
			return a.AnalyzerName < b.AnalyzerName
		}
		return a.FeatureName < b.FeatureName
	})
}

func sortCodeFeatures(rows []store.CodeFeature) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.SourceName != b.SourceName {
			return a.SourceName < b.SourceName
		}
		if a.RepoKey != b.RepoKey {
			return a.RepoKey < b.RepoKey
		}
		if a.CodeKey != b.CodeKey {
			return a.CodeKey < b.CodeKey
		}
		if a.AnalyzerName != b.AnalyzerName {
			return a.AnalyzerName < b.AnalyzerName
		}
		return a.FeatureName < b.FeatureName
	})
}

func init() {
	rootCmd.AddCommand(resultsCmd)

	resultsCmd.Flags().StringVar(&resultsOpts.db, flags.FlagDB, survey.DefaultDBPath, "SQLite database to read results from")
	resultsCmd.Flags().StringSliceVar(&resultsOpts.sources, flags.FlagSources, nil, "Only show results from these sources (repeatable; comma-separated accepted)")
	resultsCmd.Flags().StringSliceVar(&resultsOpts.repoKeys, flags.FlagRepoKeys, nil, "Only show results for these repository keys (repeatable; comma-separated accepted)")
	resultsCmd.Flags().StringSliceVar(&resultsOpts.analyzers, flags.FlagAnalyzers, nil, "Only show results from these analyzers (repeatable; comma-separated accepted)")
	resultsCmd.Flags().StringSliceVar(&resultsOpts.features, flags.FlagFeatures, nil, "Only show results for these features (repeatable; comma-separated accepted)")
	resultsCmd.Flags().BoolVar(&resultsOpts.codes, flags.FlagCodes, false, "Show unit-level records instead of repository aggregates")
}
