package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types and statuses.
const (
	TransactionRecharge = "RECHARGE"
	TransactionPurchase = "PURCHASE"

	TransactionPending   = "PENDING"
	TransactionCompleted = "COMPLETED"
)

// Transaction is one immutable row of the wallet ledger.  Amount is
// signed (negative for purchases) and RunningBalance is the wallet
// balance immediately after this entry, which lets the full balance
// history be reconstructed from the ledger alone.  Rows are never
// updated once COMPLETED and never deleted.
type Transaction struct {
	ID             uint64          // transactions.id
	WalletID       uint64          // transactions.wallet_id
	OrderID        *uint64         // transactions.order_id (nullable)
	ExternalID     *string         // transactions.external_id (payment provider ref)
	Amount         decimal.Decimal // transactions.amount (signed)
	RunningBalance decimal.Decimal // transactions.running_balance
	Type           string          // transactions.type
	Status         string          // transactions.status
	Description    string          // transactions.description
	CreatedAt      time.Time       // transactions.created_at
}
