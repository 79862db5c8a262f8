package enums

import "fmt"

// BlockState is the derived lifecycle label of a raffle block. It is
// recomputed from assignment and ledger facts, never stored as truth.
type BlockState string

const (
	BlockStateAvailable BlockState = "available"
	BlockStateAssigned  BlockState = "assigned"
	BlockStateSold      BlockState = "sold"
	BlockStateReturned  BlockState = "returned"
)

var validBlockStates = []BlockState{
	BlockStateAvailable,
	BlockStateAssigned,
	BlockStateSold,
	BlockStateReturned,
}

// IsValid reports whether the value matches the canonical block state set.
func (s BlockState) IsValid() bool {
	for _, candidate := range validBlockStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBlockState converts raw input into BlockState.
func ParseBlockState(value string) (BlockState, error) {
	for _, candidate := range validBlockStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid block state %q", value)
}
