package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current catalog schema version.
const SchemaVersion = 1

// blobType is the column type for compressed blobs per dialect.
const (
	sqliteBlobType   = "BLOB"
	postgresBlobType = "BYTEA"
)

func schemaStatements(blobType string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS databases (
			name TEXT PRIMARY KEY NOT NULL,
			backend TEXT NOT NULL,
			mode BIGINT NOT NULL,
			patterns INTEGER NOT NULL,
			info TEXT NOT NULL,
			blob %s NOT NULL,
			size INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`, blobType),
	}
}

// CreateSchema creates the SQLite catalog schema if it doesn't exist and
// checks the stored schema version.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements(sqliteBlobType) {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return err
	}
	return checkVersion(version)
}

func checkVersion(version int) error {
	if version != SchemaVersion {
		return fmt.Errorf("catalog schema version %d, this build supports %d", version, SchemaVersion)
	}
	return nil
}
