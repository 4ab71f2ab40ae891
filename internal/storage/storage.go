// Package storage keeps the task list in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"atf/internal/task"
)

// ErrNotFound is returned by Load when no list was ever saved.
var ErrNotFound = fmt.Errorf("no saved task list: %w", task.ErrNotFound)

const timeLayout = time.RFC3339

type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open opens or creates the database at dbPath. Loaded times are converted
// to loc (time.Local when nil).
func Open(ctx context.Context, dbPath string, loc *time.Location) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if loc == nil {
		loc = time.Local
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, loc: loc}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL,
	start_at TEXT DEFAULT NULL,
	end_at TEXT DEFAULT NULL,
	recurring INTEGER NOT NULL DEFAULT 0,
	frequency TEXT DEFAULT NULL,
	step INTEGER NOT NULL DEFAULT 0,
	count INTEGER NOT NULL DEFAULT 0,
	until_at TEXT DEFAULT NULL
);
CREATE TABLE IF NOT EXISTS occurrences (
	task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	start_at TEXT DEFAULT NULL,
	end_at TEXT DEFAULT NULL,
	PRIMARY KEY (task_id, seq)
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return s.ensureTaskColumns(ctx)
}

// ensureTaskColumns adds columns introduced after the first schema version.
func (s *Store) ensureTaskColumns(ctx context.Context) error {
	required := map[string]string{
		"by_day": "ALTER TABLE tasks ADD COLUMN by_day TEXT NOT NULL DEFAULT '';",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(tasks);`)
	if err != nil {
		return fmt.Errorf("inspect tasks table: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}
	return nil
}

// Save replaces the stored list with tasks, keeping their order.
func (s *Store) Save(ctx context.Context, tasks []task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM occurrences;`); err != nil {
		return fmt.Errorf("clear occurrences: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks;`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	for pos, t := range tasks {
		var (
			freq  sql.NullString
			step  int
			count int
			until sql.NullString
			byDay string
		)
		if t.Interval != nil {
			freq = sql.NullString{String: string(t.Interval.Frequency), Valid: true}
			step, count, byDay = t.Interval.Step, t.Interval.Count, t.Interval.ByDay
			until = nullableTime(t.Interval.Until)
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO tasks (id, position, title, category, status, start_at, end_at, recurring, frequency, step, count, until_at, by_day)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			t.ID, pos, t.Title, string(t.Category), string(t.Status),
			nullableTime(t.Timing.Start), nullableTime(t.Timing.End), boolInt(t.Recurring),
			freq, step, count, until, byDay)
		if err != nil {
			return fmt.Errorf("insert task %d: %w", t.ID, err)
		}
		for seq, occ := range t.Occurrences {
			if _, err := tx.ExecContext(ctx, `INSERT INTO occurrences (task_id, seq, start_at, end_at) VALUES (?, ?, ?, ?);`,
				t.ID, seq, nullableTime(occ.Start), nullableTime(occ.End)); err != nil {
				return fmt.Errorf("insert occurrence %d of task %d: %w", seq, t.ID, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO meta (key, value) VALUES ('saved_at', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load returns the saved list in saved order, or ErrNotFound.
func (s *Store) Load(ctx context.Context) ([]task.Task, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'saved_at';`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read save marker: %w", err)
	}

	occ, err := s.loadOccurrences(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, category, status, start_at, end_at, recurring, frequency, step, count, until_at, by_day
FROM tasks ORDER BY position;`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		var (
			t                    task.Task
			category, status     string
			startStr, endStr     sql.NullString
			recurring, step, cnt int
			freq, untilStr       sql.NullString
			byDay                string
		)
		if err := rows.Scan(&t.ID, &t.Title, &category, &status, &startStr, &endStr, &recurring, &freq, &step, &cnt, &untilStr, &byDay); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Category = task.Category(category)
		t.Status = task.Status(status)
		t.Recurring = recurring == 1
		if t.Timing.Start, err = s.parseTime(startStr); err != nil {
			return nil, err
		}
		if t.Timing.End, err = s.parseTime(endStr); err != nil {
			return nil, err
		}
		if freq.Valid {
			iv := task.Interval{Frequency: task.Frequency(freq.String), Step: step, Count: cnt, ByDay: byDay}
			if iv.Until, err = s.parseTime(untilStr); err != nil {
				return nil, err
			}
			t.Interval = &iv
		}
		if t.Recurring {
			t.Occurrences = occ[t.ID]
			if t.Occurrences == nil {
				t.Occurrences = []task.Timing{}
			}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) loadOccurrences(ctx context.Context) (map[int][]task.Timing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, start_at, end_at FROM occurrences ORDER BY task_id, seq;`)
	if err != nil {
		return nil, fmt.Errorf("query occurrences: %w", err)
	}
	defer rows.Close()
	out := map[int][]task.Timing{}
	for rows.Next() {
		var id int
		var startStr, endStr sql.NullString
		if err := rows.Scan(&id, &startStr, &endStr); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		var tm task.Timing
		if tm.Start, err = s.parseTime(startStr); err != nil {
			return nil, err
		}
		if tm.End, err = s.parseTime(endStr); err != nil {
			return nil, err
		}
		out[id] = append(out[id], tm)
	}
	return out, rows.Err()
}

func (s *Store) parseTime(v sql.NullString) (sql.NullTime, error) {
	if !v.Valid {
		return sql.NullTime{}, nil
	}
	parsed, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return sql.NullTime{}, fmt.Errorf("parse stored time %q: %w", v.String, err)
	}
	return sql.NullTime{Time: parsed.In(s.loc), Valid: true}, nil
}

func nullableTime(t sql.NullTime) sql.NullString {
	if !t.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Time.UTC().Format(timeLayout), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	u.RawQuery = q.Encode()
	return u.String()
}
