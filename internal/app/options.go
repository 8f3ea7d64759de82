package service

import (
	"time"

	"github.com/okian/fantavacanza/internal/domain/interchange"
	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/pkg/logger"
	"golang.org/x/text/language"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for day derivation and history stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSynonyms sets the CSV import vocabulary.
func WithSynonyms(syn interchange.Synonyms) Option {
	return func(s *Service) {
		s.synonyms = syn
	}
}

// WithLocale sets the collation locale of the leaderboard name tie-break.
func WithLocale(tag language.Tag) Option {
	return func(s *Service) {
		s.locale = tag
	}
}

// WithSeed sets the roster written to an empty store on Start.
func WithSeed(r model.Roster) Option {
	return func(s *Service) {
		s.seed = r
	}
}

// WithDedupeSize sets the size of the request id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithGatePolicy sets the capability of fresh devices and whether only the
// issued editor token is accepted.
func WithGatePolicy(defaultCanEdit, strict bool) Option {
	return func(s *Service) {
		s.defaultCanEdit = defaultCanEdit
		s.strictTokens = strict
	}
}

// WithStoreName labels the backend in Stats.
func WithStoreName(name string) Option {
	return func(s *Service) {
		s.storeName = name
	}
}
