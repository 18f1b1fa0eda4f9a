package core

import "time"

// Clock tracks the engine time since start and the delta between updates.
type Clock struct {
	now       func() time.Time
	startTime time.Time
	lastTime  time.Time
	elapsed   time.Duration
	delta     time.Duration
	running   bool
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Updates the provided clock. Should be called once per frame, before
// reading Elapsed or Delta. Has no effect on non-started clocks.
func (c *Clock) Update() {
	if !c.running {
		return
	}
	t := c.now()
	c.delta = t.Sub(c.lastTime)
	c.elapsed = t.Sub(c.startTime)
	c.lastTime = t
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.now()
	c.lastTime = c.startTime
	c.elapsed = 0
	c.delta = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns the seconds since Start as of the last Update.
func (c *Clock) Elapsed() float32 {
	return float32(c.elapsed.Seconds())
}

// Delta returns the seconds between the last two updates.
func (c *Clock) Delta() float32 {
	return float32(c.delta.Seconds())
}
