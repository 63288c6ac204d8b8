// Package ledger keeps a SQLite audit trail of acquisitions and the bad
// sectors found during each one.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/engine"
)

// FileName is the ledger's file name inside an output directory.
const FileName = "ledger.db"

const (
	batchSize     = 100
	flushInterval = 500 * time.Millisecond
)

// Status is the recorded outcome of an acquisition.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

var ErrNotFound = errors.New("acquisition not found")

// Ledger is an open audit database.
type Ledger struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Record is one row of the acquisitions table.
type Record struct {
	ID           string
	Source       string
	Destination  string
	Examiner     string
	CaseNumber   string
	Started      time.Time
	Finished     time.Time // zero while running
	Status       Status
	TotalBytes   int64
	BytesWritten int64
	BadSectors   int64
	DigestA      string // "algo:hex"
	DigestB      string
	Error        string
}

// SectorRecord is one row of the bad_sectors table.
type SectorRecord struct {
	Offset      int64
	Length      int64
	Description string
	At          time.Time
}

// DefaultPath returns the ledger path inside outputDir.
func DefaultPath(outputDir string) string {
	return filepath.Join(outputDir, FileName)
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	l := &Ledger{db: db, path: path, now: time.Now}
	if err := l.init(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) init() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS acquisitions (
			id            TEXT PRIMARY KEY,
			source        TEXT NOT NULL,
			destination   TEXT NOT NULL,
			examiner      TEXT NOT NULL DEFAULT '',
			case_number   TEXT NOT NULL DEFAULT '',
			started       TEXT NOT NULL,
			finished      TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			total_bytes   INTEGER NOT NULL DEFAULT 0,
			bytes_written INTEGER NOT NULL DEFAULT 0,
			bad_sectors   INTEGER NOT NULL DEFAULT 0,
			digest_a      TEXT NOT NULL DEFAULT '',
			digest_b      TEXT NOT NULL DEFAULT '',
			error         TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS bad_sectors (
			acquisition_id TEXT NOT NULL REFERENCES acquisitions(id),
			byte_offset    INTEGER NOT NULL,
			length         INTEGER NOT NULL,
			description    TEXT NOT NULL,
			at             TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS bad_sectors_acq ON bad_sectors(acquisition_id, byte_offset);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) Close() error { return l.db.Close() }

// Begin records a new running acquisition and returns a handle that
// accepts its bad sectors.
func (l *Ledger) Begin(source, destination, examiner, caseNumber string) (*Acquisition, error) {
	id := uuid.New().String()
	_, err := l.db.Exec(
		`INSERT INTO acquisitions (id, source, destination, examiner, case_number, started, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, source, destination, examiner, caseNumber, formatTime(l.now()), StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("insert acquisition: %w", err)
	}

	a := &Acquisition{l: l, id: id, done: make(chan struct{})}
	go a.flushLoop()
	return a, nil
}

// List returns every recorded acquisition, oldest first.
func (l *Ledger) List() ([]Record, error) {
	rows, err := l.db.Query(`
		SELECT id, source, destination, examiner, case_number, started, finished, status,
		       total_bytes, bytes_written, bad_sectors, digest_a, digest_b, error
		FROM acquisitions ORDER BY started, id`)
	if err != nil {
		return nil, fmt.Errorf("list acquisitions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the acquisition with the given id.
func (l *Ledger) Get(id string) (Record, error) {
	row := l.db.QueryRow(`
		SELECT id, source, destination, examiner, case_number, started, finished, status,
		       total_bytes, bytes_written, bad_sectors, digest_a, digest_b, error
		FROM acquisitions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// BadSectors returns the bad sectors of an acquisition by offset.
func (l *Ledger) BadSectors(id string) ([]SectorRecord, error) {
	rows, err := l.db.Query(
		`SELECT byte_offset, length, description, at FROM bad_sectors
		 WHERE acquisition_id = ? ORDER BY byte_offset`, id)
	if err != nil {
		return nil, fmt.Errorf("list bad sectors: %w", err)
	}
	defer rows.Close()

	var out []SectorRecord
	for rows.Next() {
		var s SectorRecord
		var at string
		if err := rows.Scan(&s.Offset, &s.Length, &s.Description, &at); err != nil {
			return nil, fmt.Errorf("scan bad sector: %w", err)
		}
		s.At = parseTime(at)
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var r Record
	var started, finished, status string
	err := s.Scan(&r.ID, &r.Source, &r.Destination, &r.Examiner, &r.CaseNumber,
		&started, &finished, &status, &r.TotalBytes, &r.BytesWritten, &r.BadSectors,
		&r.DigestA, &r.DigestB, &r.Error)
	if err != nil {
		return Record{}, err
	}
	r.Started = parseTime(started)
	r.Finished = parseTime(finished)
	r.Status = Status(status)
	return r, nil
}

// Acquisition is the ledger handle of one running acquisition. Bad
// sector writes are batched and flushed periodically.
type Acquisition struct {
	l  *Ledger
	id string

	mu      sync.Mutex
	batch   []engine.BadSector
	done    chan struct{}
	stopped bool
}

var _ engine.BadSectorSink = (*Acquisition)(nil)

// ID returns the acquisition's ledger id.
func (a *Acquisition) ID() string { return a.id }

// RecordBadSector buffers a bad sector, flushing when the batch fills.
func (a *Acquisition) RecordBadSector(b engine.BadSector) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.batch = append(a.batch, b)
	if len(a.batch) >= batchSize {
		return a.flushLocked()
	}
	return nil
}

// Flush writes pending bad sectors to the database.
func (a *Acquisition) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

func (a *Acquisition) flushLocked() error {
	if len(a.batch) == 0 {
		return nil
	}

	tx, err := a.l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO bad_sectors (acquisition_id, byte_offset, length, description, at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range a.batch {
		at := b.At
		if at.IsZero() {
			at = a.l.now()
		}
		if _, err := stmt.Exec(a.id, b.Offset, b.Length, b.Description(), formatTime(at)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert bad sector at %d: %w", b.Offset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	a.batch = a.batch[:0]
	return nil
}

func (a *Acquisition) flushLoop() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.mu.Lock()
			_ = a.flushLocked()
			a.mu.Unlock()
		}
	}
}

func (a *Acquisition) stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.stopped {
		a.stopped = true
		close(a.done)
	}
	return a.flushLocked()
}

// Complete records a successful acquisition.
func (a *Acquisition) Complete(res engine.Result) error {
	if err := a.stop(); err != nil {
		return err
	}
	_, err := a.l.db.Exec(`
		UPDATE acquisitions SET finished = ?, status = ?, total_bytes = ?, bytes_written = ?,
		       bad_sectors = ?, digest_a = ?, digest_b = ?
		WHERE id = ?`,
		formatTime(a.l.now()), StatusCompleted, res.BytesWritten, res.BytesWritten,
		res.BadSectors, res.Digests[0].String(), res.Digests[1].String(), a.id,
	)
	if err != nil {
		return fmt.Errorf("complete acquisition: %w", err)
	}
	return nil
}

// Abort records a failed acquisition with its cause and progress.
func (a *Acquisition) Abort(cause error, total, written, badSectors int64) error {
	if err := a.stop(); err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := a.l.db.Exec(`
		UPDATE acquisitions SET finished = ?, status = ?, total_bytes = ?, bytes_written = ?,
		       bad_sectors = ?, error = ?
		WHERE id = ?`,
		formatTime(a.l.now()), StatusAborted, total, written, badSectors, msg, a.id,
	)
	if err != nil {
		return fmt.Errorf("abort acquisition: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
