package service

import (
	"context"
	"fmt"

	"skillbarter/internal/models"
	"skillbarter/internal/observability"

	"gorm.io/gorm"
)

// LedgerService moves credits between user balances. Balances never go
// negative: debits are conditional updates that refuse rather than
// partially apply, and a transfer is a single transaction so the total
// quantity of credits is conserved.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Debit removes amount credits from the user's balance, refusing with an
// insufficient-funds error when the balance cannot cover it.
func (s *LedgerService) Debit(ctx context.Context, userID uint, amount int, reason models.LedgerReason, referenceID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyDebit(tx, userID, amount, reason, referenceID)
	})
	if err != nil {
		return err
	}
	observability.CreditsMoved.WithLabelValues(string(reason)).Add(float64(amount))
	return nil
}

// Credit adds amount credits to the user's balance.
func (s *LedgerService) Credit(ctx context.Context, userID uint, amount int, reason models.LedgerReason, referenceID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyCredit(tx, userID, amount, reason, referenceID)
	})
	if err != nil {
		return err
	}
	observability.CreditsMoved.WithLabelValues(string(reason)).Add(float64(amount))
	return nil
}

// Transfer moves amount credits from one user to another atomically. If the
// payer cannot cover the amount, neither balance changes.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID uint, amount int, reason models.LedgerReason, referenceID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyTransfer(tx, fromID, toID, amount, reason, referenceID)
	})
	if err != nil {
		return err
	}
	observability.CreditsMoved.WithLabelValues(string(reason)).Add(float64(amount))
	return nil
}

// History returns the user's ledger entries, newest first.
func (s *LedgerService) History(ctx context.Context, userID uint, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var entries []models.LedgerEntry
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

// applyDebit is the transactional core of a debit. The balance check and the
// subtraction happen in a single conditional UPDATE, so two concurrent debits
// can never both succeed against a balance that only covers one of them.
func applyDebit(tx *gorm.DB, userID uint, amount int, reason models.LedgerReason, referenceID string) error {
	if amount <= 0 {
		return models.NewValidationError("amount must be positive")
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND credit_balance >= ?", userID, amount).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance - ?", amount))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		if count == 0 {
			return models.NewNotFoundError("User", userID)
		}
		observability.InsufficientFundsRejections.Inc()
		return models.NewInsufficientFundsError(fmt.Sprintf("balance cannot cover %d credits", amount))
	}

	return appendLedgerEntry(tx, userID, models.LedgerEntryDebit, reason, amount, referenceID)
}

func applyCredit(tx *gorm.DB, userID uint, amount int, reason models.LedgerReason, referenceID string) error {
	if amount <= 0 {
		return models.NewValidationError("amount must be positive")
	}

	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance + ?", amount))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", userID)
	}

	return appendLedgerEntry(tx, userID, models.LedgerEntryCredit, reason, amount, referenceID)
}

func applyTransfer(tx *gorm.DB, fromID, toID uint, amount int, reason models.LedgerReason, referenceID string) error {
	if fromID == toID {
		return models.NewValidationError("cannot transfer credits to yourself")
	}
	if err := applyDebit(tx, fromID, amount, reason, referenceID); err != nil {
		return err
	}
	return applyCredit(tx, toID, amount, reason, referenceID)
}

// appendLedgerEntry records the audit row for a movement that has already
// been applied on this transaction.
func appendLedgerEntry(tx *gorm.DB, userID uint, entryType models.LedgerEntryType, reason models.LedgerReason, amount int, referenceID string) error {
	var balance int
	if err := tx.Model(&models.User{}).
		Select("credit_balance").
		Where("id = ?", userID).
		Scan(&balance).Error; err != nil {
		return models.NewInternalError(err)
	}

	entry := models.LedgerEntry{
		UserID:       userID,
		EntryType:    entryType,
		Reason:       reason,
		Amount:       amount,
		BalanceAfter: balance,
		ReferenceID:  referenceID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
