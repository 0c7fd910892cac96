package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/qc-reconcile/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection and SQLite has a single writer.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS mistakes (
	seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
	id                   TEXT NOT NULL UNIQUE,
	project_id           TEXT NOT NULL DEFAULT '',
	batch_id             TEXT NOT NULL DEFAULT '',
	doc_id               TEXT NOT NULL,
	step_key             TEXT NOT NULL,
	terminal_step_key    TEXT NOT NULL,
	system_record_id     TEXT NOT NULL,
	section              TEXT NOT NULL,
	line_id              TEXT NOT NULL DEFAULT '',
	field_name           TEXT NOT NULL,
	value_at_step        TEXT NOT NULL DEFAULT '',
	value_at_terminal    TEXT NOT NULL DEFAULT '',
	keyer_at_step        TEXT NOT NULL DEFAULT '',
	keyer_at_terminal    TEXT NOT NULL DEFAULT '',
	captured_at_step     TEXT NOT NULL DEFAULT '',
	captured_at_terminal TEXT NOT NULL DEFAULT '',
	layout_name          TEXT NOT NULL DEFAULT '',
	error_type           TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_mistakes_doc_id ON mistakes(doc_id);
CREATE INDEX IF NOT EXISTS idx_mistakes_project_batch ON mistakes(project_id, batch_id);

CREATE TABLE IF NOT EXISTS effort_records (
	doc_id            TEXT NOT NULL,
	task_keyer_name   TEXT NOT NULL,
	project_id        TEXT NOT NULL DEFAULT '',
	batch_id          TEXT NOT NULL DEFAULT '',
	user_name_keyer   TEXT NOT NULL DEFAULT '',
	layout_name       TEXT NOT NULL DEFAULT '',
	total_field       INTEGER NOT NULL DEFAULT 0,
	total_character   INTEGER NOT NULL DEFAULT 0,
	total_records     INTEGER NOT NULL DEFAULT 0,
	total_lines       INTEGER NOT NULL DEFAULT 0,
	is_qc             BOOLEAN NOT NULL DEFAULT 0,
	captured_keyer_at TEXT NOT NULL DEFAULT '',
	compared_at       DATETIME NOT NULL,
	imported_date     TEXT NOT NULL DEFAULT '',
	exported_date     TEXT NOT NULL DEFAULT '',
	uploaded_date     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (doc_id, task_keyer_name)
);

CREATE INDEX IF NOT EXISTS idx_effort_project_compared ON effort_records(project_id, compared_at);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceMistakes swaps a document's stored mistakes for the given set.
func (s *SQLiteStore) ReplaceMistakes(ctx context.Context, docID string, mistakes []model.Mistake) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM mistakes WHERE doc_id = ?`, docID); err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete mistakes for %s", docID)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL("mistakes", mistakeColumns, ""))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert mistake")
	}
	defer stmt.Close()

	for _, m := range mistakes {
		if _, err := stmt.ExecContext(ctx, mistakeRow(m)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert mistake %s", m.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit mistakes")
	}
	return int64(len(mistakes)), nil
}

// ListMistakes returns stored mistakes in insertion order.
func (s *SQLiteStore) ListMistakes(ctx context.Context, filter MistakeFilter) ([]model.Mistake, error) {
	query := "SELECT " + strings.Join(mistakeColumns, ", ") + " FROM mistakes WHERE 1=1"
	var args []any

	for _, f := range []struct{ col, val string }{
		{"doc_id", filter.DocID},
		{"project_id", filter.ProjectID},
		{"batch_id", filter.BatchID},
		{"step_key", filter.StepKey},
	} {
		if f.val != "" {
			query += " AND " + f.col + " = ?"
			args = append(args, f.val)
		}
	}
	query += ` ORDER BY seq LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mistakes")
	}
	defer rows.Close()

	var out []model.Mistake
	for rows.Next() {
		m, err := scanMistake(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mistake")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list mistakes iterate")
}

// SetMistakeErrorType records the reviewer's classification of a mistake.
func (s *SQLiteStore) SetMistakeErrorType(ctx context.Context, id string, errorType string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE mistakes SET error_type = ? WHERE id = ?`, errorType, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set error type for %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "mistake %s", id)
	}
	return nil
}

// UpsertEffort writes effort records keyed by (doc_id, task_keyer_name).
func (s *SQLiteStore) UpsertEffort(ctx context.Context, records []model.EffortRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var updates []string
	for _, c := range effortColumns[len(effortConflictKeys):] {
		updates = append(updates, c+" = excluded."+c)
	}
	onConflict := " ON CONFLICT (" + strings.Join(effortConflictKeys, ", ") + ") DO UPDATE SET " + strings.Join(updates, ", ")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertSQL("effort_records", effortColumns, onConflict))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert effort")
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, effortRow(r)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert effort %s/%s", r.DocID, r.TaskKeyerName)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit effort")
	}
	return int64(len(records)), nil
}

// ListEffort returns effort records ordered by compared_at.
func (s *SQLiteStore) ListEffort(ctx context.Context, filter EffortFilter) ([]model.EffortRecord, error) {
	query := "SELECT " + strings.Join(effortColumns, ", ") + " FROM effort_records WHERE 1=1"
	var args []any

	for _, f := range []struct{ col, val string }{
		{"doc_id", filter.DocID},
		{"project_id", filter.ProjectID},
		{"batch_id", filter.BatchID},
	} {
		if f.val != "" {
			query += " AND " + f.col + " = ?"
			args = append(args, f.val)
		}
	}
	if !filter.Since.IsZero() {
		query += ` AND compared_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query += ` AND compared_at < ?`
		args = append(args, filter.Until.UTC())
	}
	query += ` ORDER BY compared_at, doc_id, task_keyer_name LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list effort")
	}
	defer rows.Close()

	var out []model.EffortRecord
	for rows.Next() {
		e, err := scanEffort(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan effort")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list effort iterate")
}

func insertSQL(table string, columns []string, suffix string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")" + suffix
}
