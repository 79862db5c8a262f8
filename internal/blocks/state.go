package blocks

import "github.com/ricardofaria/raffletrack-backend/pkg/enums"

// DeriveState computes a block's lifecycle label from ledger facts. The label
// is display truth only and is never persisted, so it can always be rebuilt
// from the assignment flag, return history, and settlement.
func DeriveState(assigned bool, ticketsReturned int, fullyPaid bool) enums.BlockState {
	switch {
	case !assigned:
		return enums.BlockStateAvailable
	case ticketsReturned > 0:
		return enums.BlockStateReturned
	case fullyPaid:
		return enums.BlockStateSold
	default:
		return enums.BlockStateAssigned
	}
}
