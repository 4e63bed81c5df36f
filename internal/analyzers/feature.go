package analyzers

// Occurrence is one sighting of a feature within a unit of code. The shape
// of the data is up to the FeatureFinder that produced it (e.g. a line
// number, a matched snippet).
type Occurrence map[string]any

// Feature is the analysis outcome of a single feature for a single unit of
// code: either the analysis was skipped for that unit, or it produced zero
// or more occurrences.
type Feature struct {
	// Name of the analyzed feature.
	Name string

	// Skipped reports that analysis of this feature was intentionally not
	// attempted for the unit (e.g. the file could not be parsed). A skipped
	// unit is excluded from repo-level totals.
	Skipped bool

	// Occurrences found within the unit. Meaningless when Skipped is true.
	Occurrences []Occurrence
}

// Count returns the number of occurrences, or 0 for a skipped Feature.
func (f Feature) Count() int {
	if f.Skipped {
		return 0
	}
	return len(f.Occurrences)
}

// SkippedFeature returns a Feature marking analysis as not attempted.
func SkippedFeature(name string) Feature {
	return Feature{Name: name, Skipped: true}
}

// FoundFeature returns a Feature holding the given occurrences.
func FoundFeature(name string, occurrences ...Occurrence) Feature {
	return Feature{Name: name, Occurrences: occurrences}
}

// FeatureFinder produces a Feature outcome for a unit of code represented
// as R. Find receives the representation and returns the outcome; the
// finder's Name is stamped onto whatever Find returns.
type FeatureFinder[R any] struct {
	Name string
	Find func(code R) Feature
}

// NewFeatureFinder builds a named FeatureFinder from a plain function. The
// function may leave Feature.Name empty; it is filled in here.
func NewFeatureFinder[R any](name string, fn func(code R) Feature) FeatureFinder[R] {
	return FeatureFinder[R]{
		Name: name,
		Find: func(code R) Feature {
			f := fn(code)
			f.Name = name
			return f
		},
	}
}

// UnionFinder combines finders into one feature: the result is skipped only
// if every input skips, otherwise it concatenates all occurrences.
func UnionFinder[R any](name string, finders ...FeatureFinder[R]) FeatureFinder[R] {
	return NewFeatureFinder(name, func(code R) Feature {
		skipped := true
		var occurrences []Occurrence
		for _, finder := range finders {
			res := finder.Find(code)
			if res.Skipped {
				continue
			}
			skipped = false
			occurrences = append(occurrences, res.Occurrences...)
		}
		if skipped {
			return SkippedFeature(name)
		}
		return Feature{Name: name, Occurrences: occurrences}
	})
}
