package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"codesurvey/internal/analyzers"
	"codesurvey/internal/sources"
)

// SQLite implements Store on a single SQLite database file. All survey
// writes arrive from one coordinating goroutine; WAL mode keeps concurrent
// readers (the results command) from blocking it.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLite)(nil)

// Open opens (creating if necessary) the completion database at path.
func Open(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize store schema: %w", err)
	}

	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) OutstandingRepoFeatures(ctx context.Context, sourceName, repoKey string, requested map[string][]string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT analyzer_name, feature_name FROM repo_feature
		WHERE source_name = ? AND repo_key = ?`,
		sourceName, repoKey)
	if err != nil {
		return nil, fmt.Errorf("query recorded repo features: %w", err)
	}
	defer rows.Close()

	recorded := make(map[string]map[string]bool)
	for rows.Next() {
		var analyzerName, featureName string
		if err := rows.Scan(&analyzerName, &featureName); err != nil {
			return nil, fmt.Errorf("scan recorded repo feature: %w", err)
		}
		if recorded[analyzerName] == nil {
			recorded[analyzerName] = make(map[string]bool)
		}
		recorded[analyzerName][featureName] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query recorded repo features: %w", err)
	}

	outstanding := make(map[string][]string)
	for analyzerName, featureNames := range requested {
		var remaining []string
		for _, featureName := range featureNames {
			if !recorded[analyzerName][featureName] {
				remaining = append(remaining, featureName)
			}
		}
		if len(remaining) > 0 {
			outstanding[analyzerName] = remaining
		}
	}
	return outstanding, nil
}

func (s *SQLite) OutstandingCodeFeatures(ctx context.Context, sourceName, repoKey, analyzerName, codeKey string, requested []string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT feature_name FROM code_feature
		WHERE source_name = ? AND repo_key = ? AND analyzer_name = ? AND code_key = ?`,
		sourceName, repoKey, analyzerName, codeKey)
	if err != nil {
		return nil, fmt.Errorf("query recorded code features: %w", err)
	}
	defer rows.Close()

	recorded := make(map[string]bool)
	for rows.Next() {
		var featureName string
		if err := rows.Scan(&featureName); err != nil {
			return nil, fmt.Errorf("scan recorded code feature: %w", err)
		}
		recorded[featureName] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query recorded code features: %w", err)
	}

	var outstanding []string
	for _, featureName := range requested {
		if !recorded[featureName] {
			outstanding = append(outstanding, featureName)
		}
	}
	return outstanding, nil
}

func (s *SQLite) SaveCodeFeatures(ctx context.Context, code *analyzers.Code, saveOccurrences bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save code features: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for featureName, feature := range code.Features {
		var count any
		var occurrences any
		if !feature.Skipped {
			count = feature.Count()
			if saveOccurrences {
				payload, err := json.Marshal(feature.Occurrences)
				if err != nil {
					return fmt.Errorf("encode occurrences for %s feature %q: %w", code, featureName, err)
				}
				occurrences = string(payload)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO code_feature
				(source_name, repo_key, analyzer_name, code_key, feature_name, updated, occurrence_count, occurrences)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_name, repo_key, analyzer_name, code_key, feature_name) DO UPDATE SET
				updated = excluded.updated,
				occurrence_count = excluded.occurrence_count,
				occurrences = excluded.occurrences`,
			code.Repo.Source.Name(), code.Repo.Key, code.AnalyzerName, code.Key, featureName,
			now, count, occurrences)
		if err != nil {
			return fmt.Errorf("save code feature %q for %s: %w", featureName, code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save code features for %s: %w", code, err)
	}
	return nil
}

func (s *SQLite) SaveRepoMetadata(ctx context.Context, repo *sources.Repo) error {
	if len(repo.Metadata) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save repo metadata: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for key, value := range repo.Metadata {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode metadata %q for repo %s: %w", key, repo, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO repo_metadata (source_name, repo_key, key, value, updated)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (source_name, repo_key, key) DO UPDATE SET
				value = excluded.value,
				updated = excluded.updated`,
			repo.Source.Name(), repo.Key, key, string(encoded), now)
		if err != nil {
			return fmt.Errorf("save metadata %q for repo %s: %w", key, repo, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save repo metadata for %s: %w", repo, err)
	}
	return nil
}

// AggregateRepoFeatures sums the stored unit rows for one repository into
// repo_feature. Skipped units carry a NULL occurrence_count, so SUM and
// COUNT exclude them; SUM(MIN(occurrence_count, 1)) counts the units where
// the feature occurred at least once. The conflict merge takes the maximum
// of existing and freshly computed counts, keeping aggregates monotone when
// a resumed run re-aggregates a repository.
func (s *SQLite) AggregateRepoFeatures(ctx context.Context, sourceName, repoKey string, keepCodeFeatures bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("aggregate repo features: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO repo_feature
			(source_name, repo_key, analyzer_name, feature_name, updated,
			 occurrence_count, code_occurrence_count, code_total_count)
		SELECT source_name, repo_key, analyzer_name, feature_name, ?,
			COALESCE(SUM(occurrence_count), 0),
			COALESCE(SUM(MIN(occurrence_count, 1)), 0),
			COUNT(occurrence_count)
		FROM code_feature
		WHERE source_name = ? AND repo_key = ?
		GROUP BY analyzer_name, feature_name
		ON CONFLICT (source_name, repo_key, analyzer_name, feature_name) DO UPDATE SET
			updated = MAX(updated, excluded.updated),
			occurrence_count = MAX(occurrence_count, excluded.occurrence_count),
			code_occurrence_count = MAX(code_occurrence_count, excluded.code_occurrence_count),
			code_total_count = MAX(code_total_count, excluded.code_total_count)`,
		time.Now().Unix(), sourceName, repoKey)
	if err != nil {
		return fmt.Errorf("aggregate features for repo %s:%s: %w", sourceName, repoKey, err)
	}

	if !keepCodeFeatures {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM code_feature WHERE source_name = ? AND repo_key = ?`,
			sourceName, repoKey)
		if err != nil {
			return fmt.Errorf("delete code features for repo %s:%s: %w", sourceName, repoKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("aggregate features for repo %s:%s: %w", sourceName, repoKey, err)
	}
	s.logger.Debug("aggregated repo features", "source", sourceName, "repo", repoKey)
	return nil
}

func (s *SQLite) RepoFeatures(ctx context.Context, f Filter) ([]RepoFeature, error) {
	where, args := f.whereClause("")
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, repo_key, analyzer_name, feature_name, updated,
			occurrence_count, code_occurrence_count, code_total_count
		FROM repo_feature`+where+`
		ORDER BY source_name, repo_key, analyzer_name, feature_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("query repo features: %w", err)
	}
	defer rows.Close()

	metadata := newMetadataCache()
	var results []RepoFeature
	for rows.Next() {
		var rf RepoFeature
		var updated int64
		if err := rows.Scan(&rf.SourceName, &rf.RepoKey, &rf.AnalyzerName, &rf.FeatureName,
			&updated, &rf.OccurrenceCount, &rf.CodeOccurrenceCount, &rf.CodeTotalCount); err != nil {
			return nil, fmt.Errorf("scan repo feature: %w", err)
		}
		rf.Updated = time.Unix(updated, 0)
		rf.RepoMetadata, err = metadata.get(ctx, s.db, rf.SourceName, rf.RepoKey)
		if err != nil {
			return nil, err
		}
		results = append(results, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query repo features: %w", err)
	}
	return results, nil
}

func (s *SQLite) CodeFeatures(ctx context.Context, f Filter) ([]CodeFeature, error) {
	where, args := f.whereClause("")
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, repo_key, analyzer_name, code_key, feature_name, updated,
			occurrence_count, occurrences
		FROM code_feature`+where+`
		ORDER BY source_name, repo_key, analyzer_name, code_key, feature_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("query code features: %w", err)
	}
	defer rows.Close()

	metadata := newMetadataCache()
	var results []CodeFeature
	for rows.Next() {
		var cf CodeFeature
		var updated int64
		var count sql.NullInt64
		var occurrences sql.NullString
		if err := rows.Scan(&cf.SourceName, &cf.RepoKey, &cf.AnalyzerName, &cf.CodeKey,
			&cf.FeatureName, &updated, &count, &occurrences); err != nil {
			return nil, fmt.Errorf("scan code feature: %w", err)
		}
		cf.Updated = time.Unix(updated, 0)
		if count.Valid {
			n := int(count.Int64)
			cf.OccurrenceCount = &n
		}
		if occurrences.Valid {
			if err := json.Unmarshal([]byte(occurrences.String), &cf.Occurrences); err != nil {
				return nil, fmt.Errorf("decode occurrences for %s:%s %s: %w", cf.SourceName, cf.RepoKey, cf.CodeKey, err)
			}
			if cf.Occurrences == nil {
				cf.Occurrences = []analyzers.Occurrence{}
			}
		}
		cf.RepoMetadata, err = metadata.get(ctx, s.db, cf.SourceName, cf.RepoKey)
		if err != nil {
			return nil, err
		}
		results = append(results, cf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query code features: %w", err)
	}
	return results, nil
}

func (s *SQLite) StartRun(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started) VALUES (?, ?)`,
		runID, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return runID, nil
}

func (s *SQLite) FinishRun(ctx context.Context, runID string, counts RunCounts) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished = ?, repo_count = ?, code_count = ? WHERE run_id = ?`,
		time.Now().Unix(), counts.Repos, counts.Codes, runID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// whereClause renders the filter as a WHERE clause (or an empty string)
// plus its positional arguments.
func (f Filter) whereClause(prefix string) (string, []any) {
	var conditions []string
	var args []any
	add := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args = append(args, v)
		}
		conditions = append(conditions, fmt.Sprintf("%s%s IN (%s)", prefix, column, strings.Join(placeholders, ", ")))
	}
	add("source_name", f.SourceNames)
	add("repo_key", f.RepoKeys)
	add("analyzer_name", f.AnalyzerNames)
	add("feature_name", f.FeatureNames)
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// metadataCache memoizes repo_metadata lookups for the duration of one
// query call.
type metadataCache struct {
	entries map[[2]string]map[string]any
}

func newMetadataCache() *metadataCache {
	return &metadataCache{entries: make(map[[2]string]map[string]any)}
}

func (c *metadataCache) get(ctx context.Context, db *sql.DB, sourceName, repoKey string) (map[string]any, error) {
	cacheKey := [2]string{sourceName, repoKey}
	if cached, ok := c.entries[cacheKey]; ok {
		return cached, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT key, value FROM repo_metadata WHERE source_name = ? AND repo_key = ?`,
		sourceName, repoKey)
	if err != nil {
		return nil, fmt.Errorf("query repo metadata: %w", err)
	}
	defer rows.Close()

	metadata := make(map[string]any)
	for rows.Next() {
		var key string
		var encoded sql.NullString
		if err := rows.Scan(&key, &encoded); err != nil {
			return nil, fmt.Errorf("scan repo metadata: %w", err)
		}
		var value any
		if encoded.Valid {
			if err := json.Unmarshal([]byte(encoded.String), &value); err != nil {
				return nil, fmt.Errorf("decode metadata %q for %s:%s: %w", key, sourceName, repoKey, err)
			}
		}
		metadata[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query repo metadata: %w", err)
	}

	c.entries[cacheKey] = metadata
	return metadata, nil
}
