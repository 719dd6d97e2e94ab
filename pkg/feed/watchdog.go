package feed

import "time"

// Watchdog fires when no feed traffic was seen for the timeout. It is owned
// by a single session loop and is not safe for concurrent use.
type Watchdog struct {
	timeout time.Duration
	timer   *time.Timer
}

func NewWatchdog(timeout time.Duration) *Watchdog {
	return &Watchdog{timeout: timeout, timer: time.NewTimer(timeout)}
}

// C fires once per expiry.
func (w *Watchdog) C() <-chan time.Time {
	return w.timer.C
}

// Kick restarts the countdown.
func (w *Watchdog) Kick() {
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(w.timeout)
}

func (w *Watchdog) Stop() {
	w.timer.Stop()
}
