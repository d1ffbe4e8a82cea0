package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVideo struct {
	pos    float64
	plays  int
	pauses int
}

func (v *fakeVideo) Play()                          { v.plays++ }
func (v *fakeVideo) Pause()                         { v.pauses++ }
func (v *fakeVideo) CurrentTime() float64           { return v.pos }
func (v *fakeVideo) SetCurrentTime(seconds float64) { v.pos = seconds }

type fakeToggle struct{ visible bool }

func (t *fakeToggle) Show() { t.visible = true }
func (t *fakeToggle) Hide() { t.visible = false }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	primary *fakeVideo
	ad      *fakeVideo
	overlay *fakeToggle
	skip    *fakeToggle
	clock   *fakeClock
	seen    []Transition
	ctrl    *Controller
}

func newHarness(placement int) *harness {
	h := &harness{
		primary: &fakeVideo{},
		ad:      &fakeVideo{},
		overlay: &fakeToggle{},
		skip:    &fakeToggle{},
		clock:   &fakeClock{now: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	h.ctrl = New(Elements{
		Primary:    h.primary,
		Ad:         h.ad,
		AdOverlay:  h.overlay,
		SkipButton: h.skip,
	}, placement, Options{
		Now:          h.clock.Now,
		OnTransition: func(tr Transition) { h.seen = append(h.seen, tr) },
	})
	return h
}

// tick moves the clock past the sampling interval and reports a primary position.
func (h *harness) tick(pos float64) bool {
	h.clock.Advance(time.Second)
	h.primary.pos = pos
	return h.ctrl.TimeUpdate(pos)
}

func TestTimeUpdateFiresOnceAtPlacement(t *testing.T) {
	h := newHarness(5)

	fired := -1
	for i := 0; i <= 10; i++ {
		if h.tick(float64(i)) {
			require.Equal(t, -1, fired, "ad triggered twice")
			fired = i
		}
	}

	assert.Equal(t, 5, fired)
	require.Len(t, h.seen, 1)
	assert.Equal(t, Transition{From: ModePrimary, To: ModeAd, Reason: ReasonPlacementReached, At: 5}, h.seen[0])
	assert.Equal(t, ModeAd, h.ctrl.Mode())
	assert.Equal(t, 1, h.primary.pauses)
	assert.Equal(t, 1, h.ad.plays)
	assert.True(t, h.overlay.visible)
	assert.True(t, h.skip.visible)
}

func TestTimeUpdateRoundsFractionalTimes(t *testing.T) {
	h := newHarness(5)

	assert.False(t, h.tick(4.2))
	assert.True(t, h.tick(4.6))
}

func TestTimeUpdateCatchesSkippedSecond(t *testing.T) {
	h := newHarness(5)

	assert.False(t, h.tick(3.9))
	assert.True(t, h.tick(6.1), "a sample jumping past the placement must still trigger")
}

func TestTimeUpdateThrottled(t *testing.T) {
	h := newHarness(5)

	require.False(t, h.tick(4))

	h.clock.Advance(100 * time.Millisecond)
	assert.False(t, h.ctrl.TimeUpdate(5), "event inside the sampling window must be dropped")

	h.clock.Advance(DefaultMinInterval)
	assert.True(t, h.ctrl.TimeUpdate(5))
}

func TestResumeAfterAdEnded(t *testing.T) {
	h := newHarness(5)
	for i := 0; i <= 5; i++ {
		h.tick(float64(i))
	}
	require.Equal(t, ModeAd, h.ctrl.Mode())

	require.True(t, h.ctrl.AdEnded())

	assert.Equal(t, ModePrimary, h.ctrl.Mode())
	assert.InDelta(t, 5+ResumeIncrement.Seconds(), h.primary.pos, 1e-9)
	assert.Greater(t, h.primary.pos, float64(h.ctrl.Placement()))
	assert.Equal(t, 1, h.primary.plays)
	assert.Equal(t, 1, h.ad.pauses)
	assert.False(t, h.overlay.visible)
	assert.False(t, h.skip.visible)
	require.Len(t, h.seen, 2)
	assert.Equal(t, ReasonAdEnded, h.seen[1].Reason)

	assert.False(t, h.ctrl.AdEnded(), "second end event must be ignored")
	assert.False(t, h.ctrl.Skip())
}

func TestSkipResumesAndNextSamplesDoNotRetrigger(t *testing.T) {
	h := newHarness(5)
	for i := 0; i <= 5; i++ {
		h.tick(float64(i))
	}

	require.True(t, h.ctrl.Skip())
	assert.Equal(t, ReasonSkipped, h.seen[len(h.seen)-1].Reason)
	assert.InDelta(t, 6.0, h.primary.pos, 1e-9)

	for i := 6; i <= 20; i++ {
		assert.False(t, h.tick(float64(i)), "unexpected trigger at %d", i)
	}
}

func TestSeekBackReplaysAd(t *testing.T) {
	h := newHarness(5)
	for i := 0; i <= 5; i++ {
		h.tick(float64(i))
	}
	require.True(t, h.ctrl.Skip())
	require.False(t, h.tick(6))

	assert.True(t, h.tick(5), "seeking back to the placement plays the ad again")
	assert.Equal(t, ModeAd, h.ctrl.Mode())
}

func TestTimeUpdateIgnoredDuringAd(t *testing.T) {
	h := newHarness(5)
	h.tick(5)
	require.Equal(t, ModeAd, h.ctrl.Mode())

	assert.False(t, h.tick(5))
	assert.False(t, h.tick(7))
	assert.Len(t, h.seen, 1)
}

func TestPlacementAtStart(t *testing.T) {
	h := newHarness(0)

	assert.True(t, h.tick(0))
	require.True(t, h.ctrl.AdEnded())
	assert.InDelta(t, 1.0, h.primary.pos, 1e-9)
	assert.False(t, h.tick(1))
}

func TestSkipIgnoredBeforeAd(t *testing.T) {
	h := newHarness(5)

	assert.False(t, h.ctrl.Skip())
	assert.False(t, h.ctrl.AdEnded())
	assert.Equal(t, 0, h.primary.plays)
	assert.Empty(t, h.seen)
}

func TestNegativePlacementClampedToStart(t *testing.T) {
	h := newHarness(-3)
	assert.Equal(t, 0, h.ctrl.Placement())
	assert.True(t, h.tick(0.2))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "primary", ModePrimary.String())
	assert.Equal(t, "ad", ModeAd.String())
	assert.Equal(t, "unknown", Mode(7).String())
}

func TestPlacementAtFinalSample(t *testing.T) {
	h := newHarness(10)

	require.False(t, h.tick(9))
	assert.True(t, h.tick(9.6), "a final sample rounding to the placement triggers")
	assert.Equal(t, ModeAd, h.ctrl.Mode())
	assert.Equal(t, 1, h.ad.plays)
}

func TestPlacementAtFinalSampleThrottled(t *testing.T) {
	h := newHarness(10)

	require.False(t, h.tick(9))
	h.clock.Advance(100 * time.Millisecond)
	assert.False(t, h.ctrl.TimeUpdate(10))

	assert.Equal(t, ModePrimary, h.ctrl.Mode())
	assert.Empty(t, h.seen)
	assert.Zero(t, h.ad.plays)
	assert.Zero(t, h.primary.pauses)
}
