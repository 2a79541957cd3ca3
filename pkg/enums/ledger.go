package enums

// LedgerEntryKind maps to the ledger_entry_kind enum in Postgres.
type LedgerEntryKind string

const (
	LedgerEntryCredit     LedgerEntryKind = "credit"
	LedgerEntryDebit      LedgerEntryKind = "debit"
	LedgerEntryRefund     LedgerEntryKind = "refund"
	LedgerEntryCommission LedgerEntryKind = "commission"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryCredit,
	LedgerEntryDebit,
	LedgerEntryRefund,
	LedgerEntryCommission,
}

// LedgerEntryKinds lists every kind.
func LedgerEntryKinds() []LedgerEntryKind {
	out := make([]LedgerEntryKind, len(validLedgerEntryKinds))
	copy(out, validLedgerEntryKinds)
	return out
}

func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Sign is the balance direction of the kind on the account the entry is posted to.
// Commission entries are posted to the platform account, where they are income.
func (k LedgerEntryKind) Sign() int64 {
	if k == LedgerEntryDebit {
		return -1
	}
	return 1
}

// LedgerEntryStatus maps to the ledger_entry_status enum in Postgres.
type LedgerEntryStatus string

const (
	LedgerEntryPending   LedgerEntryStatus = "pending"
	LedgerEntryCompleted LedgerEntryStatus = "completed"
	LedgerEntryFailed    LedgerEntryStatus = "failed"
)

func (s LedgerEntryStatus) IsValid() bool {
	switch s {
	case LedgerEntryPending, LedgerEntryCompleted, LedgerEntryFailed:
		return true
	}
	return false
}

// CountsTowardBalance reports whether entries in this status move the balance.
func (s LedgerEntryStatus) CountsTowardBalance() bool {
	return s == LedgerEntryCompleted
}
