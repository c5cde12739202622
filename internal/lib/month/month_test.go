package month

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSame(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{name: "same month", a: date(2025, 3, 1), b: date(2025, 3, 31), want: true},
		{name: "different month", a: date(2025, 3, 31), b: date(2025, 4, 1), want: false},
		{name: "same month other year", a: date(2024, 3, 10), b: date(2025, 3, 10), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Same(tt.a, tt.b))
		})
	}
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		name       string
		start, now time.Time
		want       int
	}{
		{name: "now before start", start: date(2025, 5, 1), now: date(2025, 4, 1), want: 0},
		{name: "same day", start: date(2025, 5, 1), now: date(2025, 5, 1), want: 0},
		{name: "exactly one month", start: date(2025, 1, 15), now: date(2025, 2, 15), want: 1},
		{name: "one day short of a month", start: date(2025, 1, 15), now: date(2025, 2, 14), want: 0},
		{name: "across years", start: date(2023, 11, 10), now: date(2025, 1, 20), want: 14},
		{name: "end of month start", start: date(2025, 1, 31), now: date(2025, 3, 1), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Elapsed(tt.start, tt.now))
		})
	}
}
