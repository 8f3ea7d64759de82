package ledger

import "time"

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator sets the event id generator.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// WithEpoch sets the origin instant. Without it the epoch is midnight of the
// clock's current day.
func WithEpoch(epoch time.Time) Option {
	return func(l *Ledger) {
		if !epoch.IsZero() {
			l.epoch = epoch
		}
	}
}
