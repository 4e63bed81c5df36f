package analyzers

import "sort"

// BuiltinOption describes one configuration knob of a builtin analyzer.
type BuiltinOption struct {
	Name        string
	Description string
	Default     string
}

// BuiltinInfo describes an analyzer kind compiled into this build. The CLI
// uses it for discovery; construction still goes through the kind's
// constructor (e.g. NewRegexAnalyzer).
type BuiltinInfo struct {
	Name        string
	Title       string
	Description string
	Options     []BuiltinOption
}

var builtins = map[string]BuiltinInfo{
	"regex": {
		Name:  "regex",
		Title: "Regular expression file analyzer",
		Description: "Matches each feature's regular expression against the contents of\n" +
			"every selected file and records one occurrence per match. Features are\n" +
			"defined as name=pattern pairs; occurrences record the line number and\n" +
			"matched text.",
		Options: []BuiltinOption{
			{Name: "glob", Description: "File name glob selecting which files to analyze", Default: "*"},
			{Name: "match", Description: "Feature definition as name=pattern (repeatable)", Default: ""},
		},
	},
}

// Builtins returns the analyzer kinds compiled into this build, sorted by
// name.
func Builtins() []BuiltinInfo {
	out := make([]BuiltinInfo, 0, len(builtins))
	for _, b := range builtins {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupBuiltin returns the builtin analyzer kind with the given name.
func LookupBuiltin(name string) (BuiltinInfo, bool) {
	b, ok := builtins[name]
	return b, ok
}
