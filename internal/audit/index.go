package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE audit_log (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	profile TEXT NOT NULL,
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT,
	match_count INTEGER NOT NULL,
	entry_json TEXT NOT NULL
);
CREATE INDEX idx_audit_outcome ON audit_log(outcome);
CREATE INDEX idx_audit_profile ON audit_log(profile);
CREATE INDEX idx_audit_timestamp ON audit_log(timestamp);
`

// QueryOpts holds filters for audit log queries.
type QueryOpts struct {
	Outcome string
	Profile string
	Since   string // RFC3339 lower bound
	Limit   int
}

// Query loads the JSONL log into an in-memory SQLite index and runs a
// filtered query. The log file itself stays append-only; SQLite is a
// throwaway view over it.
func Query(path string, opts QueryOpts) ([]Entry, error) {
	entries, err := Read(path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening index db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(indexSchema); err != nil {
		return nil, fmt.Errorf("creating index schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting index load: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO audit_log (id, timestamp, profile, action, outcome, reason, match_count, entry_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing index insert: %w", err)
	}
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshaling entry %s: %w", e.ID, err)
		}
		if _, err := stmt.Exec(e.ID, e.Timestamp, e.Profile, e.Action, string(e.Outcome), e.Reason, len(e.Matches), string(raw)); err != nil {
			return nil, fmt.Errorf("indexing entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing index load: %w", err)
	}

	query := "SELECT entry_json FROM audit_log WHERE 1=1"
	var args []any
	if opts.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, opts.Outcome)
	}
	if opts.Profile != "" {
		query += " AND profile = ?"
		args = append(args, opts.Profile)
	}
	if opts.Since != "" {
		query += " AND timestamp >= ?"
		args = append(args, opts.Since)
	}
	query += " ORDER BY timestamp DESC, id"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	} else {
		query += " LIMIT 50"
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit index: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding indexed entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
