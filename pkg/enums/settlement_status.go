package enums

// SettlementStatus classifies how much of a block's expected total has been
// collected. Always derived from ledger sums, never persisted.
type SettlementStatus string

const (
	SettlementUnsettled        SettlementStatus = "unsettled"
	SettlementPartiallySettled SettlementStatus = "partially_settled"
	SettlementFullySettled     SettlementStatus = "fully_settled"
)

func (s SettlementStatus) IsValid() bool {
	switch s {
	case SettlementUnsettled, SettlementPartiallySettled, SettlementFullySettled:
		return true
	}
	return false
}
