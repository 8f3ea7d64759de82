package repository

import "time"

// Option configures a store.
type Option func(*options)

type options struct {
	pollInterval time.Duration
	now          func() time.Time
	fail         func(op string) error
}

func newOptions(opts []Option) *options {
	o := &options{
		pollInterval: time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithPollInterval sets how often the SQLite store checks for changes made
// by other connections. Zero or negative disables polling.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
	}
}

// WithClock sets the clock used to stamp inserted events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFailures installs a hook consulted before every write. A non-nil
// result aborts the operation with that error.
func WithFailures(fail func(op string) error) Option {
	return func(o *options) {
		o.fail = fail
	}
}
