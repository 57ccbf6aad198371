package models

import "time"

// LedgerEntryType is the accounting side of a ledger entry.
type LedgerEntryType string

const (
	// LedgerEntryDebit records credits leaving a balance.
	LedgerEntryDebit LedgerEntryType = "debit"
	// LedgerEntryCredit records credits arriving at a balance.
	LedgerEntryCredit LedgerEntryType = "credit"
)

// LedgerReason is the business reason for a credit movement.
type LedgerReason string

const (
	// LedgerReasonSwapSettlement is the payment side of a completed credit-type proposal.
	LedgerReasonSwapSettlement LedgerReason = "swap_settlement"
	// LedgerReasonTeamSeat is the up-front cost of joining a team.
	LedgerReasonTeamSeat LedgerReason = "team_seat"
	// LedgerReasonTeamRefund pays a seat back on leave, removal, or team deletion.
	LedgerReasonTeamRefund LedgerReason = "team_refund"
	// LedgerReasonGrant is an administrative or seed credit grant.
	LedgerReasonGrant LedgerReason = "grant"
)

// LedgerEntry is an immutable audit row for a single balance movement.
// Every debit, credit, and both halves of a transfer append exactly one
// entry. BalanceAfter is the balance as observed inside the same
// transaction that moved it.
type LedgerEntry struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"not null;index" json:"user_id"`
	EntryType    LedgerEntryType `gorm:"type:varchar(10);not null" json:"entry_type"`
	Reason       LedgerReason    `gorm:"type:varchar(30);not null" json:"reason"`
	Amount       int             `gorm:"not null" json:"amount"`
	BalanceAfter int             `gorm:"not null" json:"balance_after"`
	ReferenceID  string          `gorm:"size:64;index" json:"reference_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
