package client

import (
	"context"
	"fmt"
	"time"
)

// Timer is a cancellable countdown tied to an attempt deadline. onTick fires
// once per interval with the time left; onExpire fires exactly once when the
// deadline passes, unless Stop wins the race. Callbacks run on the timer's
// goroutine and must not call Stop.
type Timer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartTimer begins a countdown ending remaining from now, ticking once a
// second.
func StartTimer(remaining time.Duration, onTick func(left time.Duration), onExpire func()) *Timer {
	return startTimer(remaining, time.Second, onTick, onExpire)
}

func startTimer(remaining, interval time.Duration, onTick func(left time.Duration), onExpire func()) *Timer {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Timer{cancel: cancel, done: make(chan struct{})}
	deadline := time.Now().Add(remaining)

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				left := time.Until(deadline)
				if left <= 0 {
					if onExpire != nil {
						onExpire()
					}
					return
				}
				if onTick != nil {
					onTick(left)
				}
			}
		}
	}()
	return t
}

// Stop cancels the countdown. It is safe to call more than once and after
// expiry.
func (t *Timer) Stop() {
	t.cancel()
}

// Done is closed once the timer goroutine has exited, after either expiry or
// Stop.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// FormatRemaining renders a duration as MM:SS for countdown display.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
