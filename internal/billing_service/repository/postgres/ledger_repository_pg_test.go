package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository"
)

func setupLedgerTest(t *testing.T) (repository.LedgerRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPgLedgerRepository(mockPool, logger), mockPool
}

// pgx.BeginFunc closes every transaction with a deferred Rollback, and issues
// one more Rollback when the callback returns an error.
func expectCommitted(mockPool pgxmock.PgxPoolIface) {
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()
}

func expectRolledBack(mockPool pgxmock.PgxPoolIface) {
	mockPool.ExpectRollback()
	mockPool.ExpectRollback()
}

// panicOnExecPool hands out transactions whose Exec panics, standing in for a
// driver fault in the middle of a transaction.
type panicOnExecPool struct {
	pgxmock.PgxPoolIface
}

func (p panicOnExecPool) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := p.PgxPoolIface.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return panicOnExecTx{Tx: tx}, nil
}

type panicOnExecTx struct {
	pgx.Tx
}

func (panicOnExecTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("connection reset mid-statement")
}

func TestPgLedgerRepository_Debit(t *testing.T) {
	ctx := context.Background()
	details := domain.DebitDetails{Message: "Exam on Sunday", StudentIDs: []string{"s1", "s2", "s3"}}

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := setupLedgerTest(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(regexp.QuoteMeta(debitBalanceQuery)).
			WithArgs("tenant-1", int64(3)).
			WillReturnRows(mockPool.NewRows([]string{"sms_balance"}).AddRow(int64(7)))
		mockPool.ExpectExec(regexp.QuoteMeta(insertLedgerEntryQuery)).
			WithArgs(pgxmock.AnyArg(), "tenant-1", "debit", int64(3), int64(7), pgxmock.AnyArg(), pgxmock.AnyArg(), 3, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		expectCommitted(mockPool)

		entry, err := repo.Debit(ctx, "tenant-1", 3, details)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, domain.LedgerEntryDebit, entry.Kind)
		assert.Equal(t, int64(7), entry.BalanceAfter)
		require.NotNil(t, entry.Message)
		assert.Equal(t, "Exam on Sunday", *entry.Message)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		repo, mockPool := setupLedgerTest(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(regexp.QuoteMeta(debitBalanceQuery)).
			WithArgs("tenant-1", int64(3)).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectQuery(regexp.QuoteMeta(tenantExistsQuery)).
			WithArgs("tenant-1").
			WillReturnRows(mockPool.NewRows([]string{"sms_balance"}).AddRow(int64(2)))
		expectRolledBack(mockPool)

		entry, err := repo.Debit(ctx, "tenant-1", 3, details)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.Nil(t, entry)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("TenantNotFound", func(t *testing.T) {
		repo, mockPool := setupLedgerTest(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(regexp.QuoteMeta(debitBalanceQuery)).
			WithArgs("ghost", int64(1)).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectQuery(regexp.QuoteMeta(tenantExistsQuery)).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)
		expectRolledBack(mockPool)

		_, err := repo.Debit(ctx, "ghost", 1, details)
		assert.ErrorIs(t, err, domain.ErrTenantNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("LedgerInsertFailureRollsBack", func(t *testing.T) {
		repo, mockPool := setupLedgerTest(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(regexp.QuoteMeta(debitBalanceQuery)).
			WithArgs("tenant-1", int64(3)).
			WillReturnRows(mockPool.NewRows([]string{"sms_balance"}).AddRow(int64(7)))
		mockPool.ExpectExec(regexp.QuoteMeta(insertLedgerEntryQuery)).
			WillReturnError(errors.New("disk full"))
		expectRolledBack(mockPool)

		entry, err := repo.Debit(ctx, "tenant-1", 3, details)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Nil(t, entry)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("PanicInsideTransactionRollsBack", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgLedgerRepository(panicOnExecPool{mockPool}, slog.New(slog.NewTextHandler(io.Discard, nil)))

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(regexp.QuoteMeta(debitBalanceQuery)).
			WithArgs("tenant-1", int64(3)).
			WillReturnRows(mockPool.NewRows([]string{"sms_balance"}).AddRow(int64(7)))
		mockPool.ExpectRollback()

		assert.Panics(t, func() { _, _ = repo.Debit(ctx, "tenant-1", 3, details) })
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NonPositiveCount", func(t *testing.T) {
		repo, mockPool := setupLedgerTest(t)
		defer mockPool.Close()

		_, err := repo.Debit(ctx, "tenant-1", 0, details)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgLedgerRepository_ListEntries(t *testing.T) {
	repo, mockPool := setupLedgerTest(t)
	defer mockPool.Close()

	now := time.Now().UTC()
	ref := "claim-1"
	msg := "Holiday notice"
	rows := mockPool.NewRows([]string{"id", "madrasah_id", "kind", "amount", "balance_after", "reference", "message", "recipient_count", "created_at"}).
		AddRow("e2", "tenant-1", "credit", int64(100), int64(110), &ref, (*string)(nil), 0, now).
		AddRow("e1", "tenant-1", "debit", int64(5), int64(10), (*string)(nil), &msg, 5, now.Add(-time.Hour))

	mockPool.ExpectQuery(`FROM sms_ledger_entries\s+WHERE madrasah_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs("tenant-1", 20).
		WillReturnRows(rows)

	entries, err := repo.ListEntries(context.Background(), "tenant-1", 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LedgerEntryCredit, entries[0].Kind)
	assert.Equal(t, "claim-1", *entries[0].Reference)
	assert.Equal(t, domain.LedgerEntryDebit, entries[1].Kind)
	assert.Equal(t, 5, entries[1].RecipientCount)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
