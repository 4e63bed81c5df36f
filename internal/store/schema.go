package store

// Timestamps are stored as unix seconds. occurrence_count is NULL for
// skipped units; occurrences is NULL when payload persistence was disabled
// (an analyzed unit with no matches stores the empty JSON array instead).
const schema = `
CREATE TABLE IF NOT EXISTS repo_metadata (
	source_name TEXT NOT NULL,
	repo_key    TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT,
	updated     INTEGER NOT NULL,
	PRIMARY KEY (source_name, repo_key, key)
);

CREATE TABLE IF NOT EXISTS repo_feature (
	source_name           TEXT NOT NULL,
	repo_key              TEXT NOT NULL,
	analyzer_name         TEXT NOT NULL,
	feature_name          TEXT NOT NULL,
	updated               INTEGER NOT NULL,
	occurrence_count      INTEGER NOT NULL,
	code_occurrence_count INTEGER NOT NULL,
	code_total_count      INTEGER NOT NULL,
	PRIMARY KEY (source_name, repo_key, analyzer_name, feature_name)
);

CREATE TABLE IF NOT EXISTS code_feature (
	source_name      TEXT NOT NULL,
	repo_key         TEXT NOT NULL,
	analyzer_name    TEXT NOT NULL,
	code_key         TEXT NOT NULL,
	feature_name     TEXT NOT NULL,
	updated          INTEGER NOT NULL,
	occurrence_count INTEGER,
	occurrences      TEXT,
	PRIMARY KEY (source_name, repo_key, analyzer_name, code_key, feature_name)
);

CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	started    INTEGER NOT NULL,
	finished   INTEGER,
	repo_count INTEGER,
	code_count INTEGER
);
`
