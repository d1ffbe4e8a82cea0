// Package player implements the mid-roll ad insertion state machine that drives
// the playback page. The page script mirrors this controller; the constants it
// uses are rendered from the values exported here.
package player

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultMinInterval bounds how often time updates are evaluated. The target
	// is a whole second, so sampling faster than once a second is enough.
	DefaultMinInterval = 800 * time.Millisecond
	// ResumeIncrement moves the primary video past the trigger point on resume.
	ResumeIncrement = time.Second
)

// Mode identifies which video currently owns playback.
type Mode int

const (
	ModePrimary Mode = iota
	ModeAd
)

func (m Mode) String() string {
	switch m {
	case ModePrimary:
		return "primary"
	case ModeAd:
		return "ad"
	default:
		return "unknown"
	}
}

// Reason records what caused a mode transition.
type Reason string

const (
	ReasonPlacementReached Reason = "placement_reached"
	ReasonAdEnded          Reason = "ad_ended"
	ReasonSkipped          Reason = "skipped"
)

// Transition describes a single mode change.
type Transition struct {
	From   Mode
	To     Mode
	Reason Reason
	// At is the primary video's playback position when the transition happened.
	At float64
}

// Video is the subset of a media element the controller drives.
type Video interface {
	Play()
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
}

// Toggle shows or hides a page element.
type Toggle interface {
	Show()
	Hide()
}

// Elements groups the page elements owned by the controller.
type Elements struct {
	Primary Video
	Ad      Video
	// AdOverlay and SkipButton are revealed while the ad plays.
	AdOverlay  Toggle
	SkipButton Toggle
}

// Options tunes a Controller.
type Options struct {
	// MinInterval is the minimum time between processed time updates.
	MinInterval time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
	// OnTransition is invoked after every mode change.
	OnTransition func(Transition)
}

// Controller pauses the primary video at the ad placement, plays the ad and
// resumes the primary once the ad ends or is skipped.
type Controller struct {
	mu sync.Mutex

	elements  Elements
	placement int
	mode      Mode

	minInterval time.Duration
	lastFired   time.Time
	now         func() time.Time

	// lastSample is the rounded time of the previous processed update, -1 before the first one.
	lastSample int

	onTransition func(Transition)
}

// New constructs a controller that triggers the ad at placement seconds.
func New(elements Elements, placement int, opts Options) *Controller {
	if placement < 0 {
		placement = 0
	}
	if opts.MinInterval < 0 {
		opts.MinInterval = 0
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		elements:     elements,
		placement:    placement,
		mode:         ModePrimary,
		minInterval:  opts.MinInterval,
		now:          opts.Now,
		lastSample:   -1,
		onTransition: opts.OnTransition,
	}
}

// Mode reports the current playback mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Placement reports the second at which the ad is inserted.
func (c *Controller) Placement() int {
	return c.placement
}

// TimeUpdate handles a progress event from the primary video. It reports
// whether the event started the ad.
func (c *Controller) TimeUpdate(currentTime float64) bool {
	c.mu.Lock()

	if !c.allowLocked() {
		c.mu.Unlock()
		return false
	}
	if c.mode != ModePrimary {
		c.mu.Unlock()
		return false
	}

	rounded := roundSeconds(currentTime)
	previous := c.lastSample
	c.lastSample = rounded

	reached := rounded == c.placement || (previous < c.placement && rounded > c.placement)
	if !reached {
		c.mu.Unlock()
		return false
	}

	c.mode = ModeAd
	c.elements.Primary.Pause()
	c.elements.AdOverlay.Show()
	c.elements.SkipButton.Show()
	c.elements.Ad.Play()
	tr := Transition{From: ModePrimary, To: ModeAd, Reason: ReasonPlacementReached, At: currentTime}
	c.mu.Unlock()

	c.emit(tr)
	return true
}

// AdEnded handles the ad video's natural end.
func (c *Controller) AdEnded() bool {
	return c.resume(ReasonAdEnded)
}

// Skip handles the viewer pressing the skip control.
func (c *Controller) Skip() bool {
	return c.resume(ReasonSkipped)
}

func (c *Controller) resume(reason Reason) bool {
	c.mu.Lock()
	if c.mode != ModeAd {
		c.mu.Unlock()
		return false
	}

	c.elements.Ad.Pause()
	c.elements.AdOverlay.Hide()
	c.elements.SkipButton.Hide()

	at := c.elements.Primary.CurrentTime()
	resumed := at + ResumeIncrement.Seconds()
	c.elements.Primary.SetCurrentTime(resumed)
	c.elements.Primary.Play()

	c.mode = ModePrimary
	c.lastSample = roundSeconds(resumed)
	tr := Transition{From: ModeAd, To: ModePrimary, Reason: reason, At: at}
	c.mu.Unlock()

	c.emit(tr)
	return true
}

// allowLocked applies the sampling rate limit. The first event always passes.
func (c *Controller) allowLocked() bool {
	now := c.now()
	if !c.lastFired.IsZero() && now.Sub(c.lastFired) <= c.minInterval {
		return false
	}
	c.lastFired = now
	return true
}

func (c *Controller) emit(tr Transition) {
	if c.onTransition != nil {
		c.onTransition(tr)
	}
}

func roundSeconds(t float64) int {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	return int(math.Round(t))
}
