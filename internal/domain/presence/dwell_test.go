package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDwellState_Transitions walks every edge of the machine.
func TestDwellState_Transitions(t *testing.T) {
	t.Parallel()

	const dwell = 5 * time.Second

	t0 := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	s := Idle()
	require.Equal(t, PhaseIdle, s.Phase())

	_, ok := s.Since()
	require.False(t, ok)

	// Idle -> Idle when far.
	next, fire := s.Step(t0, false, dwell)
	require.False(t, fire)
	require.Equal(t, PhaseIdle, next.Phase())

	// Idle -> Dwelling(now) when near.
	next, fire = s.Step(t0, true, dwell)
	require.False(t, fire)
	require.Equal(t, PhaseDwelling, next.Phase())

	since, ok := next.Since()
	require.True(t, ok)
	require.Equal(t, t0, since)

	// Dwelling stays put before the dwell elapses and keeps its start.
	still, fire := next.Step(t0.Add(dwell-time.Millisecond), true, dwell)
	require.False(t, fire)
	require.Equal(t, next, still)

	// Dwelling -> Triggered exactly at the dwell.
	triggered, fire := next.Step(t0.Add(dwell), true, dwell)
	require.True(t, fire)
	require.Equal(t, PhaseTriggered, triggered.Phase())

	_, ok = triggered.Since()
	require.False(t, ok)

	// Triggered suppresses re-firing while presence continues.
	again, fire := triggered.Step(t0.Add(time.Hour), true, dwell)
	require.False(t, fire)
	require.Equal(t, PhaseTriggered, again.Phase())

	// Leaving the range is the only way out of Triggered.
	idle, fire := triggered.Step(t0.Add(time.Hour), false, dwell)
	require.False(t, fire)
	require.Equal(t, Idle(), idle)

	// Dwelling -> Idle drops the start time.
	idle, _ = next.Step(t0.Add(time.Second), false, dwell)
	require.Equal(t, Idle(), idle)
}

// TestDwellState_SingleEpisodePerPresence feeds sample sequences and counts episodes.
func TestDwellState_SingleEpisodePerPresence(t *testing.T) {
	t.Parallel()

	const (
		near  = 15.0
		dwell = 5 * time.Second
	)

	t0 := time.Unix(1_700_000_000, 0)

	cases := map[string]struct {
		distances []float64
		fires     []int
		final     Phase
	}{
		"door scenario": {
			distances: []float64{20, 20, 12, 12, 12, 12, 12, 12, 20},
			fires:     []int{7},
			final:     PhaseIdle,
		},
		"long stay fires once": {
			distances: []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10},
			fires:     []int{5},
			final:     PhaseTriggered,
		},
		"leaving re-arms": {
			distances: []float64{10, 10, 10, 10, 10, 10, 30, 10, 10, 10, 10, 10, 10},
			fires:     []int{5, 12},
			final:     PhaseTriggered,
		},
		"short visits never fire": {
			distances: []float64{10, 10, 10, 30, 10, 10, 10, 10, 30, 10},
			fires:     nil,
			final:     PhaseDwelling,
		},
		"boundary distance counts as near": {
			distances: []float64{15, 15, 15, 15, 15, 15},
			fires:     []int{5},
			final:     PhaseTriggered,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			th := Thresholds{Near: near, Dwell: dwell}
			state := Idle()

			var fired []int

			for i, d := range tc.distances {
				next, fire := state.Step(t0.Add(time.Duration(i)*time.Second), th.IsNear(d), th.Dwell)
				if fire {
					fired = append(fired, i)
				}

				state = next
			}

			require.Equal(t, tc.fires, fired)
			require.Equal(t, tc.final, state.Phase())
		})
	}
}

// TestDwellState_String renders each phase.
func TestDwellState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle", Idle().String())
	require.Equal(t, "triggered", Triggered().String())
	require.Contains(t, Dwelling(time.Unix(0, 0).UTC()).String(), "dwelling(since=1970-01-01T00:00:00Z)")
	require.Equal(t, "phase(9)", Phase(9).String())
}

// TestDwellState_LingeringVisitorSequence feeds one-second samples of a visitor
// who approaches, lingers and leaves.
func TestDwellState_LingeringVisitorSequence(t *testing.T) {
	t.Parallel()

	const (
		near  = 15.0
		dwell = 5 * time.Second
	)

	t0 := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	samples := []float64{20, 20, 12, 12, 12, 12, 12, 12, 20}
	wantPhases := []Phase{
		PhaseIdle, PhaseIdle,
		PhaseDwelling, PhaseDwelling, PhaseDwelling, PhaseDwelling, PhaseDwelling,
		PhaseTriggered,
		PhaseIdle,
	}

	var fired []int

	s := Idle()

	for i, distance := range samples {
		var fire bool

		s, fire = s.Step(t0.Add(time.Duration(i)*time.Second), distance <= near, dwell)
		if fire {
			fired = append(fired, i)
		}

		require.Equal(t, wantPhases[i], s.Phase(), "sample %d", i)
	}

	require.Equal(t, []int{7}, fired)
}
