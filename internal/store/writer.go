// Package store persists bound records in SQLite and streams stored records
// back as JSON documents.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/xscrape/scrape"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	schema TEXT,
	source TEXT,
	run_id TEXT,
	record JSON
);
`

// Row is one stored record.
type Row struct {
	ID     string
	Schema string
	Source string
	RunID  string
	Record any
}

// Writer inserts rows in batched transactions. It is safe for concurrent
// use.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	runID     string
	log       *slog.Logger
	closed    bool
	err       error // set when a batch could not be committed or restarted
	mu        sync.Mutex
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithBatchSize sets how many rows are committed per transaction.
func WithBatchSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.log = l }
}

// NewWriter opens dbPath, creating the results table if needed. Every row
// written through the Writer shares one run id.
func NewWriter(dbPath string, opts ...WriterOption) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &Writer{
		db:        db,
		batchSize: 1000,
		runID:     uuid.NewString(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// RunID identifies this writer's rows.
func (w *Writer) RunID() string { return w.runID }

func (w *Writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO results (id, schema, source, run_id, record)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	return nil
}

func (w *Writer) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Put writes one row. Row.RunID is ignored; the writer's run id is stored.
func (w *Writer) Put(r Row) error {
	record := Encode(r.Record)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("store: writer is closed")
	}
	if w.err != nil {
		return fmt.Errorf("store: writer failed: %w", w.err)
	}
	if _, err := w.stmt.Exec(r.ID, r.Schema, r.Source, w.runID, record); err != nil {
		w.log.Warn("insert failed", "id", r.ID, "source", r.Source, "err", err)
		return fmt.Errorf("insert %s: %w", r.ID, err)
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return w.fail(err)
		}
		w.log.Debug("committed batch", "rows", w.count, "run_id", w.runID)
		w.count = 0
		if err := w.beginTx(); err != nil {
			return w.fail(err)
		}
	}
	return nil
}

// fail records err and drops the current transaction. Every later Put
// returns err.
func (w *Writer) fail(err error) error {
	w.err = err
	w.log.Error("writer failed", "run_id", w.runID, "err", err)
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	if w.tx != nil {
		_ = w.tx.Rollback()
		w.tx = nil
	}
	return err
}

// Close commits pending rows and closes the database. A failed writer only
// closes the database. Later calls do nothing.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.err != nil {
		return w.db.Close()
	}
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_results_schema ON results(schema)`); err != nil {
		w.log.Warn("index creation failed", "err", err)
	}
	return w.db.Close()
}

// Encode renders a bound value as compact JSON with sorted keys.
func Encode(v any) string {
	return oj.JSON(Plain(v), &ojg.Options{Sort: true, HTMLUnsafe: true})
}

// Plain converts bound values into plain JSON data: Records become maps,
// pointers are dereferenced and string lists become []any. Other values are
// returned unchanged.
func Plain(v any) any {
	switch x := v.(type) {
	case scrape.Record:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = Plain(e)
		}
		return m
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Plain(e)
		}
		return out
	}
	return v
}
