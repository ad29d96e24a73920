package engine

import "time"

// Clock abstracts time so scheduling can be driven by tests
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// Timer is a pending call created by Clock.AfterFunc
type Timer interface {
	Stop() bool
}

// SystemClock is the Clock backed by package time
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (systemClock) Now() time.Time {
	return time.Now()
}
