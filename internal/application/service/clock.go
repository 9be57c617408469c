package service

import "time"

// SystemClock reads the wall clock
type SystemClock struct{}

// Now implements port.Clock
func (SystemClock) Now() time.Time { return time.Now() }
