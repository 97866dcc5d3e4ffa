package store

import (
	"database/sql"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/xscrape/document/jsondoc"
)

// Stream iterates over the results table of dbPath, handing each record to
// fn as a JSON document. Only one parsed record is alive at a time. Any
// table with id and record columns can be streamed.
func Stream(dbPath string, fn func(id string, doc *jsondoc.Document) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT id, record FROM results ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		doc, err := jsondoc.Parse([]byte(raw))
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Load reads every row written by a Writer, decoding records into plain JSON
// data.
func Load(dbPath string) ([]Row, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT id, schema, source, run_id, record FROM results ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var r Row
		var raw string
		if err := rows.Scan(&r.ID, &r.Schema, &r.Source, &r.RunID, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if r.Record, err = oj.ParseString(raw); err != nil {
			return nil, fmt.Errorf("parse record %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
