package queue

import "time"

// TimeProvider abstracts the clock used for run timestamps and expiry.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now().UTC() }
