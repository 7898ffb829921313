package sqlite

// schema is applied on every open. It creates the latest table shape for new
// stores and is a no-op for existing ones. Indexes on columns that older
// stores may lack are created by the migrations instead.
const schema = `
CREATE TABLE IF NOT EXISTS features (
    id INTEGER PRIMARY KEY,
    priority INTEGER NOT NULL DEFAULT 999,
    category VARCHAR(100) NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    steps JSON NOT NULL,
    passes BOOLEAN DEFAULT 0,
    in_progress BOOLEAN DEFAULT 0,
    created_at DATETIME,
    modified_at DATETIME,
    completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS ix_features_priority ON features(priority);
CREATE INDEX IF NOT EXISTS ix_features_passes ON features(passes);

-- Single-row table holding the applied migration version
CREATE TABLE IF NOT EXISTS db_meta (
    schema_version INTEGER NOT NULL
);
`

// featureColumns is the select list shared by every feature query, in the
// order scanFeature expects.
const featureColumns = `id, priority, category, name, description, steps,
	passes, in_progress, created_at, modified_at, completed_at`
