package enums

// CardStatus tracks issuance of a Sokohub Card.
type CardStatus string

const (
	CardStatusPending  CardStatus = "pending"
	CardStatusPaid     CardStatus = "paid"
	CardStatusApproved CardStatus = "approved"
)

// IsValid reports whether the value is a known CardStatus.
func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusPending, CardStatusPaid, CardStatusApproved:
		return true
	}
	return false
}

// NextStep names the action the holder has to take from this status.
func (s CardStatus) NextStep() string {
	switch s {
	case CardStatusPending:
		return "pay"
	case CardStatusPaid:
		return "await_approval"
	default:
		return "ready"
	}
}

// CardTransactionType classifies card ledger rows.
type CardTransactionType string

const (
	CardTransactionTopUp  CardTransactionType = "top_up"
	CardTransactionDebit  CardTransactionType = "debit"
	CardTransactionRefund CardTransactionType = "refund"
)
