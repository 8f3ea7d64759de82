package scoring

import "golang.org/x/text/language"

// Option applies a configuration option to an aggregation run.
type Option func(*settings)

type settings struct {
	locale     language.Tag
	dayLabeler func(day int) string
}

// WithLocale sets the collation locale for the name tie-break.
func WithLocale(tag language.Tag) Option {
	return func(s *settings) {
		s.locale = tag
	}
}

// WithDayLabel sets the label rendered for each series row.
func WithDayLabel(fn func(day int) string) Option {
	return func(s *settings) {
		if fn != nil {
			s.dayLabeler = fn
		}
	}
}
