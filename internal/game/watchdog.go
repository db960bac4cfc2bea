package game

import "time"

// Watchdog ends the match when nobody has placed or moved a piece for the
// whole timeout. It fires at most once per Arm.
type Watchdog struct {
	clock   Clock
	timeout time.Duration
	onFire  func()

	armed    bool
	deadline time.Time
	timer    Timer
	gen      uint64
}

func NewWatchdog(clock Clock, timeout time.Duration, onFire func()) *Watchdog {
	return &Watchdog{clock: clock, timeout: timeout, onFire: onFire}
}

func (w *Watchdog) Armed() bool { return w.armed }

// Remaining is the time left before the watchdog fires.
func (w *Watchdog) Remaining() time.Duration {
	if !w.armed {
		return 0
	}
	return max(w.deadline.Sub(w.clock.Now()), 0)
}

// Arm starts a full countdown.
func (w *Watchdog) Arm() {
	w.armed = true
	w.restart()
}

// Feed restarts the countdown. It does nothing once disarmed or fired.
func (w *Watchdog) Feed() {
	if !w.armed {
		return
	}
	w.restart()
}

// Disarm cancels the countdown. Safe to call repeatedly.
func (w *Watchdog) Disarm() {
	w.armed = false
	w.gen++
	stopTimer(w.timer)
	w.timer = nil
}

func (w *Watchdog) restart() {
	w.gen++
	stopTimer(w.timer)
	gen := w.gen
	w.deadline = w.clock.Now().Add(w.timeout)
	w.timer = w.clock.AfterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *Watchdog) fire(gen uint64) {
	if gen != w.gen || !w.armed {
		return
	}
	w.armed = false
	w.timer = nil
	if w.onFire != nil {
		w.onFire()
	}
}
