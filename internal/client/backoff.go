package client

import (
	"math/rand"
	"time"
)

const DefaultReconnectDelay = 3 * time.Second

// Backoff decides how long to wait before reconnect attempt n (0-based) and
// whether to try at all.
type Backoff interface {
	Next(attempt int) (time.Duration, bool)
}

// Constant retries at a fixed interval. MaxAttempts <= 0 retries forever.
type Constant struct {
	Delay       time.Duration
	MaxAttempts int
}

func (c Constant) Next(attempt int) (time.Duration, bool) {
	if c.MaxAttempts > 0 && attempt >= c.MaxAttempts {
		return 0, false
	}
	if c.Delay <= 0 {
		return DefaultReconnectDelay, true
	}
	return c.Delay, true
}

// Exponential doubles the delay from Min up to Max. With Jitter the delay is
// drawn uniformly from [d/2, d]. MaxAttempts <= 0 retries forever.
type Exponential struct {
	Min         time.Duration
	Max         time.Duration
	MaxAttempts int
	Jitter      bool

	rand func() float64
}

func (e Exponential) Next(attempt int) (time.Duration, bool) {
	if e.MaxAttempts > 0 && attempt >= e.MaxAttempts {
		return 0, false
	}
	lo, hi := e.Min, e.Max
	if lo <= 0 {
		lo = time.Second
	}
	if hi < lo {
		hi = lo
	}

	d := lo
	for i := 0; i < attempt && d < hi; i++ {
		d *= 2
	}
	if d > hi {
		d = hi
	}

	if e.Jitter {
		r := e.rand
		if r == nil {
			r = rand.Float64
		}
		half := d / 2
		d = half + time.Duration(r()*float64(d-half))
	}
	return d, true
}

// NewBackoff builds the policy named by the configuration: "exponential" or
// anything else for constant.
func NewBackoff(policy string, delay, maxDelay time.Duration, maxAttempts int) Backoff {
	if policy == "exponential" {
		return Exponential{Min: delay, Max: maxDelay, MaxAttempts: maxAttempts, Jitter: true}
	}
	return Constant{Delay: delay, MaxAttempts: maxAttempts}
}
