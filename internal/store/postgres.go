package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/qc-reconcile/internal/db"
	"github.com/sells-group/qc-reconcile/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS mistakes (
	seq                  BIGSERIAL,
	id                   TEXT PRIMARY KEY,
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
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
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
	is_qc             BOOLEAN NOT NULL DEFAULT false,
	captured_keyer_at TEXT NOT NULL DEFAULT '',
	compared_at       TIMESTAMPTZ NOT NULL,
	imported_date     TEXT NOT NULL DEFAULT '',
	exported_date     TEXT NOT NULL DEFAULT '',
	uploaded_date     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (doc_id, task_keyer_name)
);

CREATE INDEX IF NOT EXISTS idx_effort_project_compared ON effort_records(project_id, compared_at);
`

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ReplaceMistakes swaps a document's stored mistakes for the given set.
func (s *PostgresStore) ReplaceMistakes(ctx context.Context, docID string, mistakes []model.Mistake) (int64, error) {
	rows := make([][]any, len(mistakes))
	for i, m := range mistakes {
		rows[i] = mistakeRow(m)
	}
	n, err := db.ReplaceRows(ctx, s.pool, db.ReplaceConfig{
		Table:     "mistakes",
		KeyColumn: "doc_id",
		KeyValue:  docID,
		Columns:   mistakeColumns,
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: replace mistakes for %s", docID)
	}
	return n, nil
}

// ListMistakes returns stored mistakes in insertion order.
func (s *PostgresStore) ListMistakes(ctx context.Context, filter MistakeFilter) ([]model.Mistake, error) {
	q := newPGQuery("SELECT " + strings.Join(mistakeColumns, ", ") + " FROM mistakes WHERE 1=1")
	q.eq("doc_id", filter.DocID)
	q.eq("project_id", filter.ProjectID)
	q.eq("batch_id", filter.BatchID)
	q.eq("step_key", filter.StepKey)
	q.sql += " ORDER BY seq"
	q.page(limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mistakes")
	}
	defer rows.Close()

	var out []model.Mistake
	for rows.Next() {
		m, err := scanMistake(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan mistake")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list mistakes iterate")
}

// SetMistakeErrorType records the reviewer's classification of a mistake.
func (s *PostgresStore) SetMistakeErrorType(ctx context.Context, id string, errorType string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE mistakes SET error_type = $1 WHERE id = $2`, errorType, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set error type for %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "mistake %s", id)
	}
	return nil
}

// UpsertEffort writes effort records keyed by (doc_id, task_keyer_name).
func (s *PostgresStore) UpsertEffort(ctx context.Context, records []model.EffortRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = effortRow(r)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "effort_records",
		Columns:      effortColumns,
		ConflictKeys: effortConflictKeys,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert effort")
	}
	return n, nil
}

// ListEffort returns effort records ordered by compared_at.
func (s *PostgresStore) ListEffort(ctx context.Context, filter EffortFilter) ([]model.EffortRecord, error) {
	q := newPGQuery("SELECT " + strings.Join(effortColumns, ", ") + " FROM effort_records WHERE 1=1")
	q.eq("doc_id", filter.DocID)
	q.eq("project_id", filter.ProjectID)
	q.eq("batch_id", filter.BatchID)
	if !filter.Since.IsZero() {
		q.cond("compared_at >=", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		q.cond("compared_at <", filter.Until.UTC())
	}
	q.sql += " ORDER BY compared_at, doc_id, task_keyer_name"
	q.page(limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list effort")
	}
	defer rows.Close()

	var out []model.EffortRecord
	for rows.Next() {
		e, err := scanEffort(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan effort")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list effort iterate")
}

// pgQuery accumulates a filtered query with numbered placeholders.
type pgQuery struct {
	sql  string
	args []any
}

func newPGQuery(base string) *pgQuery {
	return &pgQuery{sql: base}
}

func (q *pgQuery) cond(expr string, v any) {
	q.args = append(q.args, v)
	q.sql += fmt.Sprintf(" AND %s $%d", expr, len(q.args))
}

func (q *pgQuery) eq(col, v string) {
	if v != "" {
		q.cond(col+" =", v)
	}
}

func (q *pgQuery) page(limit, offset int) {
	q.args = append(q.args, limit)
	q.sql += fmt.Sprintf(" LIMIT $%d", len(q.args))
	if offset > 0 {
		q.args = append(q.args, offset)
		q.sql += fmt.Sprintf(" OFFSET $%d", len(q.args))
	}
}
