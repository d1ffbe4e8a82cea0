package player

import "time"

// Simulation plays a primary/ad pair against a virtual clock, feeding a
// Controller the same events a browser would.
type Simulation struct {
	PrimaryDuration float64
	AdDuration      float64
	Placement       int
	// Tick is the cadence of time update events. Browsers fire them every 15-250ms.
	Tick        time.Duration
	MinInterval time.Duration
	// SkipAfter presses skip once the ad has played this long. Zero watches the ad to the end.
	SkipAfter time.Duration
}

// Run plays the primary video to its end and returns every transition observed.
func (s Simulation) Run() []Transition {
	tick := s.Tick
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}

	clock := time.Unix(0, 0)
	primary := &simVideo{duration: s.PrimaryDuration}
	ad := &simVideo{duration: s.AdDuration}

	var transitions []Transition
	c := New(Elements{
		Primary:    primary,
		Ad:         ad,
		AdOverlay:  nopToggle{},
		SkipButton: nopToggle{},
	}, s.Placement, Options{
		MinInterval:  s.MinInterval,
		Now:          func() time.Time { return clock },
		OnTransition: func(tr Transition) { transitions = append(transitions, tr) },
	})

	primary.Play()
	step := tick.Seconds()
	// Bounded so a controller that never resumes cannot spin forever.
	limit := int((s.PrimaryDuration+s.AdDuration*4)/step) + 1000
	var adWatched time.Duration
	ended := false

	for i := 0; i < limit; i++ {
		clock = clock.Add(tick)

		switch c.Mode() {
		case ModePrimary:
			if ended || !primary.playing {
				return transitions
			}
			primary.advance(step)
			c.TimeUpdate(primary.pos)
			ended = primary.pos >= primary.duration
			adWatched = 0
		case ModeAd:
			ad.advance(step)
			adWatched += tick
			if ad.pos >= ad.duration {
				ad.playing = false
				c.AdEnded()
				continue
			}
			if s.SkipAfter > 0 && adWatched >= s.SkipAfter {
				c.Skip()
			}
		}
	}
	return transitions
}

type simVideo struct {
	pos      float64
	duration float64
	playing  bool
}

func (v *simVideo) Play() {
	if v.pos >= v.duration {
		v.pos = 0
	}
	v.playing = true
}

func (v *simVideo) Pause()                         { v.playing = false }
func (v *simVideo) CurrentTime() float64           { return v.pos }
func (v *simVideo) SetCurrentTime(seconds float64) { v.pos = min(seconds, v.duration) }

func (v *simVideo) advance(step float64) {
	if !v.playing {
		return
	}
	v.pos = min(v.pos+step, v.duration)
}

type nopToggle struct{}

func (nopToggle) Show() {}
func (nopToggle) Hide() {}
