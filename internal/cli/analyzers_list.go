package cli

import (
	"fmt"
	"io"

	"codesurvey/internal/analyzers"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var analyzersListQuiet bool
var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List available analyzers",
	Long: `Discover the analyzer kinds compiled into this build.

Analyzers decide how a repository is split into units of code and which
features each unit is checked for. They run during surveys (see
"codesurvey run --help").

Examples:
  # List all available analyzers
  codesurvey analyzers list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var analyzersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available analyzers",
	Long: `List all analyzer kinds compiled into this build.

Analyzers are sorted by name.

Examples:
  codesurvey analyzers list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, b := range analyzers.Builtins() {
			if analyzersListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), b.Name)
			} else {
				printAnalyzer(cmd.OutOrStdout(), b)
			}
		}
		return nil
	},
}

var analyzersShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show details of a specific analyzer",
	Long: `Show details of a specific analyzer kind by name.

Examples:
  codesurvey analyzers show regex
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, ok := analyzers.LookupBuiltin(args[0])
		if !ok {
			return fmt.Errorf("analyzer not found: %s", args[0])
		}
		printAnalyzer(cmd.OutOrStdout(), b)
		return nil
	},
}

func printAnalyzer(w io.Writer, b analyzers.BuiltinInfo) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "ANALYZER: %s\n", b.Name)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, b.Title)
	fmt.Fprintln(w, b.Description)

	if len(b.Options) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		for _, opt := range b.Options {
			def := opt.Default
			if def == "" {
				def = "\"\""
			}
			fmt.Fprintf(w, "  %s\n", opt.Name)
			fmt.Fprintf(w, "    Description: %s\n", opt.Description)
			fmt.Fprintf(w, "    Default:     %s\n", def)
		}
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(analyzersCmd)
	analyzersCmd.AddCommand(analyzersListCmd)
	analyzersListCmd.Flags().BoolVarP(&analyzersListQuiet, "quiet", "q", false, "Only print analyzer names")
	analyzersCmd.AddCommand(analyzersShowCmd)
}
