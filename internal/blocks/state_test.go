package blocks

import (
	"testing"

	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
)

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name      string
		assigned  bool
		returned  int
		fullyPaid bool
		want      enums.BlockState
	}{
		{name: "unassigned", want: enums.BlockStateAvailable},
		{name: "assigned no activity", assigned: true, want: enums.BlockStateAssigned},
		{name: "fully paid", assigned: true, fullyPaid: true, want: enums.BlockStateSold},
		{name: "returned", assigned: true, returned: 2, want: enums.BlockStateReturned},
		{name: "returned wins over sold", assigned: true, returned: 1, fullyPaid: true, want: enums.BlockStateReturned},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveState(tc.assigned, tc.returned, tc.fullyPaid)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
