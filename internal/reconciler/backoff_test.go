package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Interval: 5 * time.Minute, Threshold: 3, Max: time.Hour}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{failures: 0, want: 5 * time.Minute},
		{failures: 1, want: 5 * time.Minute},
		{failures: 2, want: 5 * time.Minute},
		{failures: 3, want: 10 * time.Minute},
		{failures: 4, want: 20 * time.Minute},
		{failures: 5, want: 40 * time.Minute},
		{failures: 6, want: time.Hour},
		{failures: 50, want: time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.failures), "failures=%d", tt.failures)
	}
}

func TestBackoff_MonotonicUpToCap(t *testing.T) {
	b := Backoff{Interval: time.Second, Threshold: 3, Max: 30 * time.Second}

	prev := time.Duration(0)
	for n := 0; n < 100; n++ {
		d := b.Delay(n)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, b.Max)
		prev = d
	}
	assert.Equal(t, b.Max, b.Delay(99))
}

func TestBackoff_Engaged(t *testing.T) {
	b := Backoff{Interval: time.Second, Threshold: 3, Max: time.Minute}

	assert.False(t, b.Engaged(2))
	assert.True(t, b.Engaged(3))
	assert.False(t, Backoff{Interval: time.Second}.Engaged(10))
}
