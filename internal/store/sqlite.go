package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/content-pulse/internal/model"
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
CREATE TABLE IF NOT EXISTS accounts (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	website         TEXT NOT NULL DEFAULT '',
	crm_id          TEXT NOT NULL DEFAULT '',
	fields          TEXT,
	enrichment      TEXT,
	posts_per_month REAL,
	last_audit_at   DATETIME,
	last_audit      TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	audit      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	targets     INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	total_cost  REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_accounts_last_audit_at ON accounts(last_audit_at);
CREATE INDEX IF NOT EXISTS idx_audits_account_id ON audits(account_id);
CREATE INDEX IF NOT EXISTS idx_audits_created_at ON audits(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, crm_id, fields, enrichment, posts_per_month,
		        last_audit_at, last_audit, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	)
	return scanAccount(row)
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, website, crm_id, fields, enrichment, posts_per_month,
		        last_audit_at, last_audit, created_at, updated_at
		 FROM accounts ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, eris.Wrap(rows.Err(), "sqlite: list accounts iterate")
}

func (s *SQLiteStore) UpsertAccount(ctx context.Context, acct *model.Account) error {
	if acct.Name == "" {
		return eris.New("sqlite: account name required")
	}
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	var fieldsJSON, enrichJSON any
	if acct.Fields != nil {
		b, err := json.Marshal(acct.Fields)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal fields")
		}
		fieldsJSON = string(b)
	}
	if acct.Enrichment != nil {
		b, err := json.Marshal(acct.Enrichment)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal enrichment")
		}
		enrichJSON = string(b)
	}

	// Conflict on name keeps ids stable across re-imports; an empty
	// incoming website never clobbers a stored one.
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (id, name, website, crm_id, fields, enrichment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   website    = COALESCE(NULLIF(excluded.website, ''), accounts.website),
		   crm_id     = COALESCE(NULLIF(excluded.crm_id, ''), accounts.crm_id),
		   fields     = COALESCE(excluded.fields, accounts.fields),
		   enrichment = COALESCE(excluded.enrichment, accounts.enrichment),
		   updated_at = excluded.updated_at
		 RETURNING id`,
		acct.ID, acct.Name, acct.Website, acct.CRMID, fieldsJSON, enrichJSON, acct.CreatedAt, acct.UpdatedAt,
	).Scan(&acct.ID)
	return eris.Wrap(err, "sqlite: upsert account")
}

func (s *SQLiteStore) ImportAccounts(ctx context.Context, accounts []model.Account) (int64, error) {
	var n int64
	for i := range accounts {
		if err := s.UpsertAccount(ctx, &accounts[i]); err != nil {
			return n, eris.Wrapf(err, "sqlite: import account %s", accounts[i].Name)
		}
		n++
	}
	return n, nil
}

func (s *SQLiteStore) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.Website != nil {
		sets = append(sets, "website = ?")
		args = append(args, *patch.Website)
	}
	if patch.CRMID != nil {
		sets = append(sets, "crm_id = ?")
		args = append(args, *patch.CRMID)
	}
	if patch.PostsPerMonth != nil {
		sets = append(sets, "posts_per_month = ?")
		args = append(args, *patch.PostsPerMonth)
	}
	if patch.LastAuditAt != nil {
		sets = append(sets, "last_audit_at = ?")
		args = append(args, patch.LastAuditAt.UTC())
	}
	if len(sets) == 1 {
		return nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update account %s", id)
	}
	return checkRowsAffected(res, "account", id)
}

func (s *SQLiteStore) SaveAudit(ctx context.Context, accountID string, audit *model.ContentAudit, at time.Time) error {
	auditJSON, err := json.Marshal(audit)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save audit begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audits (id, account_id, audit, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), accountID, string(auditJSON), at.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert audit for %s", accountID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET posts_per_month = ?, last_audit_at = ?, last_audit = ?, updated_at = ? WHERE id = ?`,
		audit.PostsPerMonth, at.UTC(), string(auditJSON), at.UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply audit to account %s", accountID)
	}
	if err := checkRowsAffected(res, "account", accountID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: save audit commit")
}

func (s *SQLiteStore) ListAudits(ctx context.Context, accountID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, audit, created_at FROM audits
		 WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audits")
	}
	defer rows.Close()

	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		var auditJSON string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &auditJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		if err := json.Unmarshal([]byte(auditJSON), &rec.Audit); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list audits iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{ID: id, StartedAt: now}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, targets = ?, succeeded = ?, skipped = ?, failed = ?, total_cost = ? WHERE id = ?`,
		run.FinishedAt.UTC(), run.Targets, run.Succeeded, run.Skipped, run.Failed, run.TotalCost, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, started_at, finished_at, targets, succeeded, skipped, failed, total_cost FROM runs WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var finishedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finishedAt, &r.Targets, &r.Succeeded, &r.Skipped, &r.Failed, &r.TotalCost); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable) (*model.Account, error) {
	var a model.Account
	var fieldsJSON, enrichJSON, lastAuditJSON sql.NullString
	var postsPerMonth sql.NullFloat64
	var lastAuditAt sql.NullTime

	err := row.Scan(&a.ID, &a.Name, &a.Website, &a.CRMID, &fieldsJSON, &enrichJSON,
		&postsPerMonth, &lastAuditAt, &lastAuditJSON, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan account")
	}

	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &a.Fields); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal fields")
		}
	}
	if enrichJSON.Valid && enrichJSON.String != "" {
		a.Enrichment = &model.Enrichment{}
		if err := json.Unmarshal([]byte(enrichJSON.String), a.Enrichment); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal enrichment")
		}
	}
	if postsPerMonth.Valid {
		v := postsPerMonth.Float64
		a.PostsPerMonth = &v
	}
	if lastAuditAt.Valid {
		t := lastAuditAt.Time
		a.LastAuditAt = &t
	}
	if lastAuditJSON.Valid && lastAuditJSON.String != "" {
		a.LastAudit = &model.ContentAudit{}
		if err := json.Unmarshal([]byte(lastAuditJSON.String), a.LastAudit); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal last audit")
		}
	}
	return &a, nil
}
