package api

import "github.com/okian/fantavacanza/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublicURL sets the base URL used for share links. When empty the
// request host is used.
func WithPublicURL(base string) Option {
	return func(s *Server) {
		s.publicURL = base
	}
}

// WithTokenCookie sets the name of the cookie remembering the editor token.
func WithTokenCookie(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.tokenCookie = name
		}
	}
}

// WithMaxBodyBytes limits request bodies, the CSV import included.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}
