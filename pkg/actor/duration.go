package actor

import (
	"math"
	"time"
)

// Seconds is a duration written in scenario files as a (possibly fractional) number of seconds.
type Seconds float64

func (s Seconds) Duration() time.Duration {
	return time.Duration(math.Round(float64(s) * float64(time.Second)))
}
