package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a student's spendable balance together with the parental
// controls that gate purchases.  Balance arithmetic uses fixed-point
// decimals end to end; a mutation that would drive the balance negative
// is rejected, never clamped.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – owning student (one wallet per student).
//  Balance          – current spendable amount.
//  DailySpendLimit  – per-day purchase cap; zero means unlimited.
//  AllowedDays      – weekdays on which the student may purchase
//                     (time.Weekday numbering, Sunday = 0).
//  CanPurchaseAlone – safety switch; false blocks purchases made by the
//                     student on their own behalf.
//  Version          – optimistic-lock counter for conditional updates.
type Wallet struct {
	ID               uint64          // wallets.id
	UserID           uint64          // wallets.user_id
	Balance          decimal.Decimal // wallets.balance
	DailySpendLimit  decimal.Decimal // wallets.daily_spend_limit
	AllowedDays      []int           // wallets.allowed_days (CSV column)
	CanPurchaseAlone bool            // wallets.can_purchase_alone
	Version          uint64          // wallets.version
	CreatedAt        time.Time       // wallets.created_at
	UpdatedAt        time.Time       // wallets.updated_at
}

// AllowsDay reports whether purchases are permitted on the given weekday.
func (w *Wallet) AllowsDay(d time.Weekday) bool {
	for _, day := range w.AllowedDays {
		if day == int(d) {
			return true
		}
	}
	return false
}

// ParseAllowedDays decodes the CSV representation stored in the
// allowed_days column (e.g. "1,2,3,4,5").  Blank segments are skipped so
// a trailing comma does not poison the whole value.
func ParseAllowedDays(csv string) []int {
	parts := strings.Split(csv, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 && n <= 6 {
			days = append(days, n)
		}
	}
	return days
}

// FormatAllowedDays encodes weekdays back into the CSV column format.
func FormatAllowedDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// DailySpend accumulates a wallet's purchase total for one UTC calendar
// day.  A row is created lazily on the first spend of the day and only
// ever incremented afterwards.
type DailySpend struct {
	ID       uint64          // daily_spends.id
	WalletID uint64          // daily_spends.wallet_id
	Date     time.Time       // daily_spends.date (DATE, UTC midnight)
	Amount   decimal.Decimal // daily_spends.amount
}
