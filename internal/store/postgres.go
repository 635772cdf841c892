package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/content-pulse/internal/db"
	"github.com/sells-group/content-pulse/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_account":  `SELECT id, name, website, crm_id, fields, enrichment, posts_per_month, last_audit_at, last_audit, created_at, updated_at FROM accounts WHERE id = $1`,
	"insert_audit": `INSERT INTO audits (id, account_id, audit, created_at) VALUES ($1, $2, $3, $4)`,
	"apply_audit":  `UPDATE accounts SET posts_per_month = $1, last_audit_at = $2, last_audit = $3, updated_at = $4 WHERE id = $5`,
	"insert_run":   `INSERT INTO runs (id, started_at) VALUES ($1, $2)`,
	"finish_run":   `UPDATE runs SET finished_at = $1, targets = $2, succeeded = $3, skipped = $4, failed = $5, total_cost = $6 WHERE id = $7`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	website         TEXT NOT NULL DEFAULT '',
	crm_id          TEXT NOT NULL DEFAULT '',
	fields          JSONB,
	enrichment      JSONB,
	posts_per_month DOUBLE PRECISION,
	last_audit_at   TIMESTAMPTZ,
	last_audit      JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	audit      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	targets     INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	total_cost  DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_accounts_last_audit_at ON accounts(last_audit_at);
CREATE INDEX IF NOT EXISTS idx_audits_account_id ON audits(account_id);
CREATE INDEX IF NOT EXISTS idx_audits_created_at ON audits(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, website, crm_id, fields, enrichment, posts_per_month, last_audit_at, last_audit, created_at, updated_at FROM accounts WHERE id = $1`,
		id,
	)
	return scanPostgresAccount(row)
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, website, crm_id, fields, enrichment, posts_per_month, last_audit_at, last_audit, created_at, updated_at FROM accounts ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanPostgresAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, eris.Wrap(rows.Err(), "postgres: list accounts iterate")
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, acct *model.Account) error {
	if acct.Name == "" {
		return eris.New("postgres: account name required")
	}
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	var fieldsJSON, enrichJSON []byte
	var err error
	if acct.Fields != nil {
		if fieldsJSON, err = json.Marshal(acct.Fields); err != nil {
			return eris.Wrap(err, "postgres: marshal fields")
		}
	}
	if acct.Enrichment != nil {
		if enrichJSON, err = json.Marshal(acct.Enrichment); err != nil {
			return eris.Wrap(err, "postgres: marshal enrichment")
		}
	}

	// Conflict on name keeps ids stable across re-imports; an empty
	// incoming website never clobbers a stored one.
	err = s.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, name, website, crm_id, fields, enrichment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (name) DO UPDATE SET
		   website    = COALESCE(NULLIF(EXCLUDED.website, ''), accounts.website),
		   crm_id     = COALESCE(NULLIF(EXCLUDED.crm_id, ''), accounts.crm_id),
		   fields     = COALESCE(EXCLUDED.fields, accounts.fields),
		   enrichment = COALESCE(EXCLUDED.enrichment, accounts.enrichment),
		   updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		acct.ID, acct.Name, acct.Website, acct.CRMID, fieldsJSON, enrichJSON, acct.CreatedAt, acct.UpdatedAt,
	).Scan(&acct.ID)
	return eris.Wrap(err, "postgres: upsert account")
}

func (s *PostgresStore) ImportAccounts(ctx context.Context, accounts []model.Account) (int64, error) {
	if len(accounts) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		if a.Name == "" {
			return 0, eris.Errorf("postgres: import row %d: account name required", i)
		}
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		var fieldsJSON, enrichJSON []byte
		var err error
		if a.Fields != nil {
			if fieldsJSON, err = json.Marshal(a.Fields); err != nil {
				return 0, eris.Wrapf(err, "postgres: marshal fields for %s", a.Name)
			}
		}
		if a.Enrichment != nil {
			if enrichJSON, err = json.Marshal(a.Enrichment); err != nil {
				return 0, eris.Wrapf(err, "postgres: marshal enrichment for %s", a.Name)
			}
		}
		rows = append(rows, []any{a.ID, a.Name, a.Website, a.CRMID, fieldsJSON, enrichJSON, now, now})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "accounts",
		Columns:      []string{"id", "name", "website", "crm_id", "fields", "enrichment", "created_at", "updated_at"},
		ConflictKeys: []string{"name"},
		UpdateCols:   []string{"website", "crm_id", "fields", "enrichment", "updated_at"},
		UpdateExprs: map[string]string{
			"website": `COALESCE(NULLIF(EXCLUDED."website", ''), accounts."website")`,
			"crm_id":  `COALESCE(NULLIF(EXCLUDED."crm_id", ''), accounts."crm_id")`,
		},
	}, rows)
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	argIdx := 2

	if patch.Website != nil {
		sets = append(sets, fmt.Sprintf("website = $%d", argIdx))
		args = append(args, *patch.Website)
		argIdx++
	}
	if patch.CRMID != nil {
		sets = append(sets, fmt.Sprintf("crm_id = $%d", argIdx))
		args = append(args, *patch.CRMID)
		argIdx++
	}
	if patch.PostsPerMonth != nil {
		sets = append(sets, fmt.Sprintf("posts_per_month = $%d", argIdx))
		args = append(args, *patch.PostsPerMonth)
		argIdx++
	}
	if patch.LastAuditAt != nil {
		sets = append(sets, fmt.Sprintf("last_audit_at = $%d", argIdx))
		args = append(args, patch.LastAuditAt.UTC())
		argIdx++
	}
	if len(sets) == 1 {
		return nil
	}
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE accounts SET %s WHERE id = $%d`, strings.Join(sets, ", "), argIdx),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update account %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("account not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SaveAudit(ctx context.Context, accountID string, audit *model.ContentAudit, at time.Time) error {
	auditJSON, err := json.Marshal(audit)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: save audit begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO audits (id, account_id, audit, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), accountID, auditJSON, at.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert audit for %s", accountID)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET posts_per_month = $1, last_audit_at = $2, last_audit = $3, updated_at = $4 WHERE id = $5`,
		audit.PostsPerMonth, at.UTC(), auditJSON, at.UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply audit to account %s", accountID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("account not found: %s", accountID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: save audit commit")
}

func (s *PostgresStore) ListAudits(ctx context.Context, accountID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, audit, created_at FROM audits
		 WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audits")
	}
	defer rows.Close()

	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		var auditJSON []byte
		if err := rows.Scan(&rec.ID, &rec.AccountID, &auditJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		if err := json.Unmarshal(auditJSON, &rec.Audit); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list audits iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at) VALUES ($1, $2)`,
		id, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{ID: id, StartedAt: now}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET finished_at = $1, targets = $2, succeeded = $3, skipped = $4, failed = $5, total_cost = $6 WHERE id = $7`,
		run.FinishedAt.UTC(), run.Targets, run.Succeeded, run.Skipped, run.Failed, run.TotalCost, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, started_at, finished_at, targets, succeeded, skipped, failed, total_cost FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var finishedAt *time.Time
		if err := rows.Scan(&r.ID, &r.StartedAt, &finishedAt, &r.Targets, &r.Succeeded, &r.Skipped, &r.Failed, &r.TotalCost); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.FinishedAt = finishedAt
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresAccount(row scannable) (*model.Account, error) {
	var a model.Account
	var fieldsJSON, enrichJSON, lastAuditJSON *[]byte
	var postsPerMonth *float64
	var lastAuditAt *time.Time

	err := row.Scan(&a.ID, &a.Name, &a.Website, &a.CRMID, &fieldsJSON, &enrichJSON,
		&postsPerMonth, &lastAuditAt, &lastAuditJSON, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan account")
	}

	if fieldsJSON != nil {
		if err := json.Unmarshal(*fieldsJSON, &a.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fields")
		}
	}
	if enrichJSON != nil {
		a.Enrichment = &model.Enrichment{}
		if err := json.Unmarshal(*enrichJSON, a.Enrichment); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enrichment")
		}
	}
	a.PostsPerMonth = postsPerMonth
	a.LastAuditAt = lastAuditAt
	if lastAuditJSON != nil {
		a.LastAudit = &model.ContentAudit{}
		if err := json.Unmarshal(*lastAuditJSON, a.LastAudit); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal last audit")
		}
	}
	return &a, nil
}
