package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/fantavacanza/internal/domain/auth"
	"github.com/okian/fantavacanza/pkg/logger"
)

const cookieMaxAge = 365 * 24 * time.Hour

// cookieSlot is the device token slot of one request: the token is read
// from the request cookie and remembered through Set-Cookie. A token saved
// during the request is what later loads in the same request see.
type cookieSlot struct {
	w     http.ResponseWriter
	r     *http.Request
	name  string
	saved string
}

func (c *cookieSlot) LoadToken(context.Context) (string, error) {
	if c.saved != "" {
		return c.saved, nil
	}
	ck, err := c.r.Cookie(c.name)
	if err != nil {
		return "", nil
	}
	return ck.Value, nil
}

func (c *cookieSlot) SaveToken(_ context.Context, token string) error {
	c.saved = token
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cookieMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.r.TLS != nil,
	})
	return nil
}

func bootstrap(r *http.Request) auth.Bootstrap {
	b := auth.ParseBootstrap(r.URL.Query())
	if b.Token == "" {
		if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			b.Token = strings.TrimSpace(h[7:])
		}
	}
	return b
}

func (s *Server) device(w http.ResponseWriter, r *http.Request) auth.TokenStore {
	return &cookieSlot{w: w, r: r, name: s.tokenCookie}
}

// gate evaluates the capability of the request. Evaluation errors degrade
// to the returned gate and are only logged.
func (s *Server) gate(w http.ResponseWriter, r *http.Request) *auth.Gate {
	return s.gateFor(r, s.device(w, r))
}

func (s *Server) gateFor(r *http.Request, device auth.TokenStore) *auth.Gate {
	g, err := s.deps.Gate(r.Context(), bootstrap(r), device)
	if err != nil {
		s.logger.Warn(r.Context(), "capability evaluation degraded", logger.Error(err))
	}
	if g == nil {
		return auth.Viewer()
	}
	return g
}

// handleSession handles GET /session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	g := s.gate(w, r)
	writeJSON(w, http.StatusOK, s.deps.Session(r.Context(), g))
}

// handleShare handles GET /share and returns the editor and viewer links.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	device := s.device(w, r)
	links, err := s.deps.ShareLinks(r.Context(), s.gateFor(r, device), s.baseURL(r), device)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) baseURL(r *http.Request) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}
