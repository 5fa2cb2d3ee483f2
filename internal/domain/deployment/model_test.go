package deployment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func unit(plant string, d Decision) ProcessingUnit {
	return ProcessingUnit{Plant: plant, Decision: d}
}

func TestAggregate(t *testing.T) {
	targets := []string{"POITIERS", "KUNSHAN", "MONTERREY"}

	cases := []struct {
		name  string
		units []ProcessingUnit
		want  Outcome
	}{
		{
			name: "no units yet",
			want: OutcomeOpen,
		},
		{
			name:  "partial approvals",
			units: []ProcessingUnit{unit("POITIERS", DecisionApproved)},
			want:  OutcomeOpen,
		},
		{
			name: "all submitted, one pending",
			units: []ProcessingUnit{
				unit("POITIERS", DecisionApproved),
				unit("KUNSHAN", DecisionApproved),
				unit("MONTERREY", DecisionPending),
			},
			want: OutcomeOpen,
		},
		{
			name: "all approved",
			units: []ProcessingUnit{
				unit("POITIERS", DecisionApproved),
				unit("KUNSHAN", DecisionApproved),
				unit("MONTERREY", DecisionApproved),
			},
			want: OutcomeValidated,
		},
		{
			name: "single rejection short-circuits",
			units: []ProcessingUnit{
				unit("POITIERS", DecisionApproved),
				unit("KUNSHAN", DecisionRejected),
			},
			want: OutcomeRejected,
		},
		{
			name: "rejection wins over full approval elsewhere",
			units: []ProcessingUnit{
				unit("POITIERS", DecisionApproved),
				unit("KUNSHAN", DecisionApproved),
				unit("MONTERREY", DecisionRejected),
			},
			want: OutcomeRejected,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Aggregate(targets, tc.units))
		})
	}
}

func TestAggregateIgnoresStrayUnits(t *testing.T) {
	// A unit for a plant outside the target set cannot validate the record.
	targets := []string{"POITIERS"}
	units := []ProcessingUnit{unit("KUNSHAN", DecisionApproved)}
	require.Equal(t, OutcomeOpen, Aggregate(targets, units))
}

func TestAllSubmitted(t *testing.T) {
	targets := []string{"POITIERS", "KUNSHAN"}

	require.False(t, AllSubmitted(targets, nil))
	require.False(t, AllSubmitted(targets, []ProcessingUnit{unit("POITIERS", DecisionPending)}))
	require.True(t, AllSubmitted(targets, []ProcessingUnit{
		unit("POITIERS", DecisionPending),
		unit("KUNSHAN", DecisionApproved),
	}))
}
