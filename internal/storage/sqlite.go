// Package storage handles database connections, schema migrations, and data
// operations for the query history, using SQLite.
package storage

import (
	"database/sql"
	"time"

	"github.com/woozymasta/craftping/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters,
// and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InsertRecord appends one query result to the history.
func (r *Repository) InsertRecord(rec models.Record) error {
	_, err := r.db.Exec(`
		INSERT INTO pings (
			address, resolved_addr, description, version_name, protocol,
			online, max_players, latency_ms, icon_hash, country_code, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Address, rec.ResolvedAddr, rec.Description, rec.VersionName, rec.Protocol,
		rec.Online, rec.Max, rec.LatencyMS, rec.IconHash, rec.CountryCode, rec.Timestamp,
	)

	return err
}

// Recent returns the last n records for an address, newest first.
func (r *Repository) Recent(address string, n int) ([]models.Record, error) {
	rows, err := r.db.Query(`
		SELECT address, resolved_addr, description, version_name, protocol,
		       online, max_players, latency_ms, icon_hash, country_code, timestamp
		FROM pings
		WHERE address = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		address, n,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(
			&rec.Address, &rec.ResolvedAddr, &rec.Description, &rec.VersionName, &rec.Protocol,
			&rec.Online, &rec.Max, &rec.LatencyMS, &rec.IconHash, &rec.CountryCode, &rec.Timestamp,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// LastIconHash returns the most recent stored icon hash for an address, or
// nil when the address has no history with an icon.
func (r *Repository) LastIconHash(address string) (*int64, error) {
	row := r.db.QueryRow(`
		SELECT icon_hash FROM pings
		WHERE address = ? AND icon_hash IS NOT NULL
		ORDER BY timestamp DESC
		LIMIT 1`,
		address,
	)

	var hash int64
	err := row.Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, nil // no history yet
	}
	if err != nil {
		return nil, err
	}

	return &hash, nil
}
