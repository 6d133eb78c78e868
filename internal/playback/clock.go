package playback

import "time"

// Clock is a monotonic audio output clock measured in seconds.
type Clock interface {
	Now() float64
	AfterFunc(delay float64, fn func()) Timer
}

// Timer cancels a pending AfterFunc callback.
type Timer interface {
	Stop() bool
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock backed by the process monotonic clock.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

func (c *monotonicClock) AfterFunc(delay float64, fn func()) Timer {
	d := time.Duration(delay * float64(time.Second))
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, fn)
}
