package auth

// Option configures Evaluate.
type Option func(*policy)

type policy struct {
	fallback bool
	verify   func(token string) bool
}

// WithDefault sets the capability of a session that presents no view flag,
// no bearer token and has no remembered token.
func WithDefault(canEdit bool) Option {
	return func(p *policy) {
		p.fallback = canEdit
	}
}

// WithVerifier makes token checks strict: only tokens accepted by verify
// grant editing. Without a verifier any non-empty token is a capability.
func WithVerifier(verify func(token string) bool) Option {
	return func(p *policy) {
		p.verify = verify
	}
}
