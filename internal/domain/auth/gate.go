// Package auth implements the single edit capability of a session.
//
// A session may edit when it holds the shared editor token. View links
// always win over tokens, a presented token is remembered on the device
// and a remembered token grants editing on later visits.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// TokenKey is the storage key of the remembered editor token.
const TokenKey = "fantavacanza_editor_token"

// TokenStore is a persisted token slot.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
}

// Bootstrap is the entry context of a session.
type Bootstrap struct {
	ViewOnly bool
	Token    string
}

// ParseBootstrap reads mode=view and token from a query string.
func ParseBootstrap(q url.Values) Bootstrap {
	return Bootstrap{
		ViewOnly: strings.EqualFold(strings.TrimSpace(q.Get("mode")), "view"),
		Token:    strings.TrimSpace(q.Get("token")),
	}
}

// Source tells which rule decided the capability.
type Source string

const (
	SourceViewLink   Source = "view_link"
	SourceBearer     Source = "bearer"
	SourceRemembered Source = "remembered"
	SourceDefault    Source = "default"
	SourceOperator   Source = "operator"
)

// Gate holds the capability computed at session start.
type Gate struct {
	canEdit bool
	source  Source
}

// Editor returns a gate that may edit. It is meant for local operator tools.
func Editor() *Gate { return &Gate{canEdit: true, source: SourceOperator} }

// Viewer returns a read-only gate.
func Viewer() *Gate { return &Gate{source: SourceViewLink} }

// CanEdit reports whether mutators may run. A nil gate cannot edit.
func (g *Gate) CanEdit() bool { return g != nil && g.canEdit }

// Source returns the rule that decided the capability.
func (g *Gate) Source() Source {
	if g == nil {
		return SourceDefault
	}
	return g.source
}

// Guard runs fn only when the gate allows editing.
func (g *Gate) Guard(op string, fn func() error) error {
	if !g.CanEdit() {
		return fmt.Errorf("%s: %w", op, ErrNotPermitted)
	}
	return fn()
}

// Evaluate computes the capability of a session.
//
// The gate is always usable. A non-nil error reports a failure of the token
// slot; with a bearer token the capability is granted even if it could not
// be remembered.
func Evaluate(ctx context.Context, b Bootstrap, store TokenStore, opts ...Option) (*Gate, error) {
	p := &policy{}
	for _, opt := range opts {
		opt(p)
	}
	accepted := func(token string) bool {
		if token == "" {
			return false
		}
		return p.verify == nil || p.verify(token)
	}

	if b.ViewOnly {
		return &Gate{source: SourceViewLink}, nil
	}

	if token := strings.TrimSpace(b.Token); accepted(token) {
		g := &Gate{canEdit: true, source: SourceBearer}
		if err := store.SaveToken(ctx, token); err != nil {
			return g, fmt.Errorf("remember token: %w: %w", ErrTokenStore, err)
		}
		return g, nil
	}

	remembered, err := store.LoadToken(ctx)
	if err != nil {
		return &Gate{canEdit: p.fallback, source: SourceDefault}, fmt.Errorf("load token: %w: %w", ErrTokenStore, err)
	}
	if accepted(remembered) {
		return &Gate{canEdit: true, source: SourceRemembered}, nil
	}
	return &Gate{canEdit: p.fallback, source: SourceDefault}, nil
}

// EnsureToken returns the token in store, minting and saving a new one when
// the slot is empty. An existing token is never replaced.
func EnsureToken(ctx context.Context, store TokenStore) (string, error) {
	token, err := store.LoadToken(ctx)
	if err != nil {
		return "", fmt.Errorf("load token: %w: %w", ErrTokenStore, err)
	}
	if token != "" {
		return token, nil
	}
	token = uuid.NewString()
	if err := store.SaveToken(ctx, token); err != nil {
		return "", fmt.Errorf("save token: %w: %w", ErrTokenStore, err)
	}
	return token, nil
}

// Links are the shareable entry points of a session.
type Links struct {
	Editor string `json:"editor"`
	Viewer string `json:"viewer"`
}

// NewLinks derives the editor and viewer links from base.
func NewLinks(base, token string) (Links, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Links{}, fmt.Errorf("parse base url: %w", err)
	}
	with := func(values url.Values) string {
		c := *u
		q := c.Query()
		q.Del("mode")
		q.Del("token")
		for k, v := range values {
			q[k] = v
		}
		c.RawQuery = q.Encode()
		return c.String()
	}
	return Links{
		Editor: with(url.Values{"mode": {"edit"}, "token": {token}}),
		Viewer: with(url.Values{"mode": {"view"}}),
	}, nil
}
