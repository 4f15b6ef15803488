package service

import "time"

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

type options struct {
	now Clock
	loc *time.Location
}

// Option customises a service at construction.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.now = c
		}
	}
}

// WithLocation sets the zone dates are shown in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: utcNow, loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
