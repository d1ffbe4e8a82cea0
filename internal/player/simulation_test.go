package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationWatchesAdToEnd(t *testing.T) {
	transitions := Simulation{
		PrimaryDuration: 100,
		AdDuration:      10,
		Placement:       50,
		Tick:            250 * time.Millisecond,
	}.Run()

	require.Len(t, transitions, 2)
	assert.Equal(t, ReasonPlacementReached, transitions[0].Reason)
	assert.InDelta(t, 50, transitions[0].At, 0.5)
	assert.Equal(t, ReasonAdEnded, transitions[1].Reason)
	assert.Equal(t, ModePrimary, transitions[1].To)
}

func TestSimulationSkip(t *testing.T) {
	transitions := Simulation{
		PrimaryDuration: 30,
		AdDuration:      15,
		Placement:       15,
		Tick:            100 * time.Millisecond,
		SkipAfter:       5 * time.Second,
	}.Run()

	require.Len(t, transitions, 2)
	assert.Equal(t, ReasonSkipped, transitions[1].Reason)
}

func TestSimulationIrregularSampling(t *testing.T) {
	// 1.3s ticks round to 5 then 7, never to 6.
	transitions := Simulation{
		PrimaryDuration: 20,
		AdDuration:      2,
		Placement:       6,
		Tick:            1300 * time.Millisecond,
	}.Run()

	require.Len(t, transitions, 2)
	assert.Equal(t, ReasonPlacementReached, transitions[0].Reason)
}

func TestSimulationPlacementAtEnd(t *testing.T) {
	// One-second ticks land exactly on the final second.
	transitions := Simulation{
		PrimaryDuration: 10,
		AdDuration:      3,
		Placement:       10,
		Tick:            time.Second,
		MinInterval:     800 * time.Millisecond,
	}.Run()

	require.Len(t, transitions, 2)
	assert.Equal(t, ReasonPlacementReached, transitions[0].Reason)
	assert.Equal(t, 10.0, transitions[0].At)
	assert.Equal(t, ReasonAdEnded, transitions[1].Reason)
}

func TestSimulationPlacementAtEndThrottledAway(t *testing.T) {
	// Samples pass at 0.25s, 1.25s ... 9.25s; everything after 9.25s is
	// inside the window, so no sample ever rounds to 10.
	transitions := Simulation{
		PrimaryDuration: 10,
		AdDuration:      3,
		Placement:       10,
		Tick:            250 * time.Millisecond,
	}.Run()

	assert.Empty(t, transitions)
}
