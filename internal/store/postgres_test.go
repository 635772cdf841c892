package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/content-pulse/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetAccount_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAccount(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAccount_ReturnsExistingID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO accounts .+ ON CONFLICT \(name\) DO UPDATE .+ RETURNING id`).
		WithArgs(pgxmock.AnyArg(), "Acme", "https://acme.com", "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("existing-id"))

	acct := &model.Account{Name: "Acme", Website: "https://acme.com"}
	require.NoError(t, s.UpsertAccount(context.Background(), acct))
	assert.Equal(t, "existing-id", acct.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAccount_NameRequired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.UpsertAccount(context.Background(), &model.Account{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name required")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAccount_WebsitePatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE accounts SET updated_at = \$1, website = \$2 WHERE id = \$3`).
		WithArgs(pgxmock.AnyArg(), "https://acme.com", "acct-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	website := "https://acme.com"
	err := s.UpdateAccount(context.Background(), "acct-1", model.AccountPatch{Website: &website})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAccount_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE accounts SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	website := "https://acme.com"
	err := s.UpdateAccount(context.Background(), "nonexistent", model.AccountPatch{Website: &website})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAccount_EmptyPatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// No statement should be issued for an empty patch.
	err := s.UpdateAccount(context.Background(), "acct-1", model.AccountPatch{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAudit_TransactionFlow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audits`).
		WithArgs(pgxmock.AnyArg(), "acct-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE accounts SET posts_per_month = \$1`).
		WithArgs(4.5, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "acct-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	audit := &model.ContentAudit{ContentDetected: true, PostsPerMonth: 4.5, Method: model.MethodFeed}
	err := s.SaveAudit(context.Background(), "acct-1", audit, time.Now().UTC())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAudit_AccountMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audits`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE accounts SET posts_per_month = \$1`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	audit := &model.ContentAudit{Method: model.MethodFeed}
	err := s.SaveAudit(context.Background(), "nonexistent", audit, time.Now().UTC())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET finished_at`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), &model.Run{ID: "nonexistent"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM runs WHERE true ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at", "finished_at", "targets", "succeeded", "skipped", "failed", "total_cost"}))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportAccounts_BulkFlow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"id", "name", "website", "crm_id", "fields", "enrichment", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_accounts"}, cols).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "accounts" .+ ON CONFLICT`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.ImportAccounts(context.Background(), []model.Account{
		{Name: "Acme", Website: "https://acme.com"},
		{Name: "Globex"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
