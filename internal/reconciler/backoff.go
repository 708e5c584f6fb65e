package reconciler

import "time"

// Backoff computes the delay before the next attempt after n consecutive
// transient failures: the poll interval while n is below the threshold,
// then doubling from twice the interval, capped at Max.
type Backoff struct {
	Interval  time.Duration
	Threshold int
	Max       time.Duration
}

func (b Backoff) Delay(n int) time.Duration {
	if n < b.Threshold || b.Threshold <= 0 {
		return b.Interval
	}

	delay := b.Interval
	for i := 0; i <= n-b.Threshold; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	return delay
}

// Engaged reports whether n consecutive failures push the next attempt
// beyond the regular schedule.
func (b Backoff) Engaged(n int) bool {
	return b.Threshold > 0 && n >= b.Threshold
}
