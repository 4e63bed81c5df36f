package analyzers

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// maxRegexFileSize caps how much of a file the regex analyzer will read.
// Larger files are treated as unparseable and their features skipped.
const maxRegexFileSize = 4 << 20

// RegexFinder builds a FeatureFinder that reports one occurrence per
// (non-overlapping) match of the pattern, with the 1-based line number and
// the matched text.
func RegexFinder(name string, re *regexp.Regexp) FeatureFinder[string] {
	return NewFeatureFinder(name, func(content string) Feature {
		var occurrences []Occurrence
		for _, loc := range re.FindAllStringIndex(content, -1) {
			line := 1 + strings.Count(content[:loc[0]], "\n")
			occurrences = append(occurrences, Occurrence{
				"line":  line,
				"match": content[loc[0]:loc[1]],
			})
		}
		return Feature{Name: name, Occurrences: occurrences}
	})
}

// NewRegexAnalyzer creates a FileAnalyzer whose features are regular
// expressions matched against file contents. patterns maps feature names to
// regex source strings; glob selects the files to analyze (by base name).
//
// This is the language-independent builtin: a feature is simply "this
// pattern occurs in this file". Syntax-aware analyzers plug in through the
// same Analyzer contract.
func NewRegexAnalyzer(name, glob string, patterns map[string]string) (*FileAnalyzer[string], error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("analyzer %q: at least one feature pattern is required", name)
	}

	featureNames := make([]string, 0, len(patterns))
	for featureName := range patterns {
		featureNames = append(featureNames, featureName)
	}
	sort.Strings(featureNames)

	finders := make([]FeatureFinder[string], 0, len(patterns))
	for _, featureName := range featureNames {
		re, err := regexp.Compile(patterns[featureName])
		if err != nil {
			return nil, fmt.Errorf("analyzer %q: feature %q: %w", name, featureName, err)
		}
		finders = append(finders, RegexFinder(featureName, re))
	}

	prepare := func(fi FileInfo) (string, bool, error) {
		info, err := os.Stat(fi.AbsPath())
		if err != nil {
			return "", false, err
		}
		if info.Size() > maxRegexFileSize {
			return "", false, nil
		}
		content, err := os.ReadFile(fi.AbsPath())
		if err != nil {
			return "", false, err
		}
		return string(content), true, nil
	}

	return NewFileAnalyzer(name, glob, prepare, finders)
}
