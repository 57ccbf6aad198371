package service

import (
	"context"
	"testing"

	"skillbarter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerDebit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db, "alice", 10)

	err := svc.Debit(context.Background(), user.ID, 4, models.LedgerReasonTeamSeat, "team:1")
	require.NoError(t, err)
	assert.Equal(t, 6, userBalance(t, db, user.ID))

	var entry models.LedgerEntry
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&entry).Error)
	assert.Equal(t, models.LedgerEntryDebit, entry.EntryType)
	assert.Equal(t, models.LedgerReasonTeamSeat, entry.Reason)
	assert.Equal(t, 4, entry.Amount)
	assert.Equal(t, 6, entry.BalanceAfter)
	assert.Equal(t, "team:1", entry.ReferenceID)
}

func TestLedgerDebitInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db, "alice", 3)

	err := svc.Debit(context.Background(), user.ID, 4, models.LedgerReasonTeamSeat, "team:1")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeInsufficientFunds, appErr.Code)

	// The refused debit changes nothing and writes no audit row.
	assert.Equal(t, 3, userBalance(t, db, user.ID))
	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLedgerDebitExactBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db, "alice", 4)

	require.NoError(t, svc.Debit(context.Background(), user.ID, 4, models.LedgerReasonTeamSeat, ""))
	assert.Equal(t, 0, userBalance(t, db, user.ID))
}

func TestLedgerDebitUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)

	err := svc.Debit(context.Background(), 999, 1, models.LedgerReasonGrant, "")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestLedgerDebitRejectsNonPositiveAmount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db, "alice", 10)

	for _, amount := range []int{0, -5} {
		err := svc.Debit(context.Background(), user.ID, amount, models.LedgerReasonGrant, "")
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeValidation, appErr.Code)
	}
	assert.Equal(t, 10, userBalance(t, db, user.ID))
}

func TestLedgerCredit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db, "alice", 0)

	require.NoError(t, svc.Credit(context.Background(), user.ID, 10, models.LedgerReasonGrant, "signup"))
	assert.Equal(t, 10, userBalance(t, db, user.ID))

	var entry models.LedgerEntry
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&entry).Error)
	assert.Equal(t, models.LedgerEntryCredit, entry.EntryType)
	assert.Equal(t, 10, entry.BalanceAfter)
}

func TestLedgerTransfer(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	alice := createTestUser(t, db, "alice", 10)
	bob := createTestUser(t, db, "bob", 2)

	err := svc.Transfer(context.Background(), alice.ID, bob.ID, 4, models.LedgerReasonSwapSettlement, "proposal:1")
	require.NoError(t, err)

	assert.Equal(t, 6, userBalance(t, db, alice.ID))
	assert.Equal(t, 6, userBalance(t, db, bob.ID))

	// Both halves of the transfer carry the same reference.
	var entries []models.LedgerEntry
	require.NoError(t, db.Where("reference_id = ?", "proposal:1").Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LedgerEntryDebit, entries[0].EntryType)
	assert.Equal(t, models.LedgerEntryCredit, entries[1].EntryType)
}

func TestLedgerTransferInsufficientFundsIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	alice := createTestUser(t, db, "alice", 3)
	bob := createTestUser(t, db, "bob", 0)

	err := svc.Transfer(context.Background(), alice.ID, bob.ID, 4, models.LedgerReasonSwapSettlement, "proposal:1")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeInsufficientFunds, appErr.Code)

	assert.Equal(t, 3, userBalance(t, db, alice.ID))
	assert.Equal(t, 0, userBalance(t, db, bob.ID))
}

func TestLedgerTransferSelfRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	alice := createTestUser(t, db, "alice", 10)

	err := svc.Transfer(context.Background(), alice.ID, alice.ID, 4, models.LedgerReasonSwapSettlement, "")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Equal(t, 10, userBalance(t, db, alice.ID))
}

func TestLedgerHistory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLedgerService(db)
	user := createTestUser(t, db, "alice", 0)

	ctx := context.Background()
	require.NoError(t, svc.Credit(ctx, user.ID, 10, models.LedgerReasonGrant, "signup"))
	require.NoError(t, svc.Debit(ctx, user.ID, 3, models.LedgerReasonTeamSeat, "team:1"))
	require.NoError(t, svc.Credit(ctx, user.ID, 3, models.LedgerReasonTeamRefund, "team:1"))

	entries, err := svc.History(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, models.LedgerReasonTeamRefund, entries[0].Reason)
	assert.Equal(t, models.LedgerReasonGrant, entries[2].Reason)

	limited, err := svc.History(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
