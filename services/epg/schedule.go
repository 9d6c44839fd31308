package epg

import (
	"errors"
	"time"
)

// ErrInvalidWindow is returned for a non-positive window size or day count.
var ErrInvalidWindow = errors.New("epg: window hours and fetch days must be positive")

// Windows returns the start times (epoch seconds) of every grid window to
// fetch. The first window starts at now aligned down to a multiple of the
// window size so that runs inside the same window hit the same cache key.
func Windows(now time.Time, windowHours, fetchDays int) ([]int64, error) {
	if windowHours <= 0 || fetchDays <= 0 {
		return nil, ErrInvalidWindow
	}
	step := int64(windowHours) * 3600
	t := now.Unix()
	base := t - t%step

	n := (fetchDays*24 + windowHours - 1) / windowHours
	out := make([]int64, n)
	for i := range out {
		out[i] = base + int64(i)*step
	}
	return out, nil
}
