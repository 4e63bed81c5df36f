package analyzers

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"codesurvey/internal/sources"
)

// FileInfo identifies one source file within a Repo.
type FileInfo struct {
	Repo *sources.Repo

	// RelPath is the file's path relative to the Repo directory, using
	// forward slashes.
	RelPath string
}

// AbsPath returns the file's absolute path.
func (fi FileInfo) AbsPath() string {
	return filepath.Join(fi.Repo.Path, filepath.FromSlash(fi.RelPath))
}

// FileFilter excludes files from analysis: return true to drop the file.
type FileFilter func(fi FileInfo) bool

// PrepareFunc builds the representation a FileAnalyzer's finders operate
// on. Returning ok=false marks the unit as unparseable: every requested
// feature is recorded as skipped. Returning an error fails the unit's
// analysis job.
type PrepareFunc[R any] func(fi FileInfo) (repr R, ok bool, err error)

// FileAnalyzer analyzes each matching source file of a Repo as one unit.
// The type parameter R is the code representation handed to its finders.
type FileAnalyzer[R any] struct {
	name    string
	glob    string
	filters []FileFilter
	prepare PrepareFunc[R]
	finders []FeatureFinder[R]
	byName  map[string]FeatureFinder[R]
}

// NewFileAnalyzer creates a FileAnalyzer. glob is matched against file base
// names (path.Match syntax) while walking the Repo recursively. Duplicate
// finder names are a configuration error.
func NewFileAnalyzer[R any](name, glob string, prepare PrepareFunc[R], finders []FeatureFinder[R], filters ...FileFilter) (*FileAnalyzer[R], error) {
	if name == "" {
		return nil, fmt.Errorf("file analyzer name must not be empty")
	}
	if glob == "" {
		glob = "*"
	}
	if _, err := path.Match(glob, "probe"); err != nil {
		return nil, fmt.Errorf("analyzer %q: invalid file glob %q: %w", name, glob, err)
	}
	if prepare == nil {
		return nil, fmt.Errorf("analyzer %q: prepare function must not be nil", name)
	}
	if len(finders) == 0 {
		return nil, fmt.Errorf("analyzer %q: at least one feature finder is required", name)
	}

	byName := make(map[string]FeatureFinder[R], len(finders))
	for _, finder := range finders {
		if finder.Name == "" {
			return nil, fmt.Errorf("analyzer %q: feature finder name must not be empty", name)
		}
		if _, exists := byName[finder.Name]; exists {
			return nil, fmt.Errorf("analyzer %q: duplicate feature name %q", name, finder.Name)
		}
		byName[finder.Name] = finder
	}

	return &FileAnalyzer[R]{
		name:    name,
		glob:    glob,
		filters: filters,
		prepare: prepare,
		finders: finders,
		byName:  byName,
	}, nil
}

func (a *FileAnalyzer[R]) Name() string { return a.name }

func (a *FileAnalyzer[R]) FeatureNames() []string {
	names := make([]string, 0, len(a.finders))
	for _, finder := range a.finders {
		names = append(names, finder.Name)
	}
	return names
}

// AnalyzeFile resolves the given features for one unit. Used by CodeThunks
// and by the Snippet test helper.
func (a *FileAnalyzer[R]) AnalyzeFile(ctx context.Context, repo *sources.Repo, codeKey string, featureNames []string) (*Code, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	features := make(map[string]Feature, len(featureNames))
	repr, ok, err := a.prepare(FileInfo{Repo: repo, RelPath: codeKey})
	if err != nil {
		return nil, fmt.Errorf("analyzer %q: prepare %q: %w", a.name, codeKey, err)
	}
	for _, featureName := range featureNames {
		finder, known := a.byName[featureName]
		if !known {
			return nil, fmt.Errorf("analyzer %q: unknown feature %q", a.name, featureName)
		}
		if !ok {
			features[featureName] = SkippedFeature(featureName)
			continue
		}
		features[featureName] = finder.Find(repr)
	}

	return &Code{
		AnalyzerName: a.name,
		Repo:         repo,
		Key:          codeKey,
		Features:     features,
	}, nil
}

// fileKeys walks the Repo and returns the relative paths of files matching
// the glob and surviving the filters, in walk order.
func (a *FileAnalyzer[R]) fileKeys(repo *sources.Repo) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(repo.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matched, err := path.Match(a.glob, d.Name())
		if err != nil || !matched {
			return err
		}
		rel, err := filepath.Rel(repo.Path, p)
		if err != nil {
			return err
		}
		fi := FileInfo{Repo: repo, RelPath: filepath.ToSlash(rel)}
		for _, filter := range a.filters {
			if filter(fi) {
				return nil
			}
		}
		keys = append(keys, fi.RelPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer %q: walk repo %q: %w", a.name, repo, err)
	}
	return keys, nil
}

func (a *FileAnalyzer[R]) Codes(ctx context.Context, repo *sources.Repo, outstanding OutstandingFunc) (CodeIterator, error) {
	keys, err := a.fileKeys(repo)
	if err != nil {
		return nil, err
	}
	return &fileCodeIterator[R]{analyzer: a, repo: repo, outstanding: outstanding, keys: keys}, nil
}

type fileCodeIterator[R any] struct {
	analyzer    *FileAnalyzer[R]
	repo        *sources.Repo
	outstanding OutstandingFunc
	keys        []string
	pos         int
}

func (it *fileCodeIterator[R]) Next(ctx context.Context) (Item, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}
		if it.pos >= len(it.keys) {
			return Item{}, io.EOF
		}
		key := it.keys[it.pos]
		it.pos++

		featureNames, err := it.outstanding(key)
		if err != nil {
			return Item{}, fmt.Errorf("analyzer %q: outstanding features for %q: %w", it.analyzer.name, key, err)
		}
		if len(featureNames) == 0 {
			continue
		}

		a, repo := it.analyzer, it.repo
		return Item{Thunk: &CodeThunk{
			AnalyzerName: a.name,
			Repo:         repo,
			Key:          key,
			FeatureNames: featureNames,
			Analyze: func(ctx context.Context) (*Code, error) {
				return a.AnalyzeFile(ctx, repo, key, featureNames)
			},
		}}, nil
	}
}

// Snippet analyzes a single string of source code by materializing it as a
// one-file Repo in a temporary directory. Handy for testing finders.
func (a *FileAnalyzer[R]) Snippet(ctx context.Context, filename, content string) (map[string]Feature, error) {
	src := sources.NewTestSource(map[string]string{filename: content}, "")
	item, err := src.Repos(ctx).Next(ctx)
	if err != nil {
		return nil, err
	}
	repo := item.Repo
	defer repo.Cleanup()

	code, err := a.AnalyzeFile(ctx, repo, filename, a.FeatureNames())
	if err != nil {
		return nil, err
	}
	return code.Features, nil
}
