package auth_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/okian/fantavacanza/internal/domain/auth"
	. "github.com/smartystreets/goconvey/convey"
)

type brokenStore struct{}

func (brokenStore) LoadToken(context.Context) (string, error) { return "", errors.New("disk gone") }
func (brokenStore) SaveToken(context.Context, string) error   { return errors.New("disk gone") }

func TestEvaluate(t *testing.T) {
	ctx := context.Background()

	Convey("Given the gate policy", t, func() {
		Convey("A view link wins even when a token is supplied", func() {
			slot := auth.NewSlot("remembered")
			g, err := auth.Evaluate(ctx, auth.Bootstrap{ViewOnly: true, Token: "secret"}, slot, auth.WithDefault(true))
			So(err, ShouldBeNil)
			So(g.CanEdit(), ShouldBeFalse)
			So(g.Source(), ShouldEqual, auth.SourceViewLink)

			Convey("And the token is not remembered", func() {
				tok, _ := slot.LoadToken(ctx)
				So(tok, ShouldEqual, "remembered")
			})
		})

		Convey("A bearer token grants editing and is remembered", func() {
			slot := auth.NewSlot("")
			g, err := auth.Evaluate(ctx, auth.Bootstrap{Token: "secret"}, slot)
			So(err, ShouldBeNil)
			So(g.CanEdit(), ShouldBeTrue)
			So(g.Source(), ShouldEqual, auth.SourceBearer)
			tok, _ := slot.LoadToken(ctx)
			So(tok, ShouldEqual, "secret")

			Convey("And a later bare visit from the same device can edit", func() {
				g2, err := auth.Evaluate(ctx, auth.Bootstrap{}, slot)
				So(err, ShouldBeNil)
				So(g2.CanEdit(), ShouldBeTrue)
				So(g2.Source(), ShouldEqual, auth.SourceRemembered)
			})
		})

		Convey("A fresh device follows the session default", func() {
			g, err := auth.Evaluate(ctx, auth.Bootstrap{}, auth.NewSlot(""))
			So(err, ShouldBeNil)
			So(g.CanEdit(), ShouldBeFalse)
			So(g.Source(), ShouldEqual, auth.SourceDefault)

			g, err = auth.Evaluate(ctx, auth.Bootstrap{}, auth.NewSlot(""), auth.WithDefault(true))
			So(err, ShouldBeNil)
			So(g.CanEdit(), ShouldBeTrue)
		})

		Convey("A strict verifier rejects unknown tokens", func() {
			verify := auth.WithVerifier(func(tok string) bool { return tok == "issued" })
			slot := auth.NewSlot("")

			g, err := auth.Evaluate(ctx, auth.Bootstrap{Token: "guess"}, slot, verify)
			So(err, ShouldBeNil)
			So(g.CanEdit(), ShouldBeFalse)
			tok, _ := slot.LoadToken(ctx)
			So(tok, ShouldBeEmpty)

			g, err = auth.Evaluate(ctx, auth.Bootstrap{Token: "issued"}, slot, verify)
			So(err, ShouldBeNil)
			So(g.CanEdit(), ShouldBeTrue)

			g, err = auth.Evaluate(ctx, auth.Bootstrap{}, auth.NewSlot("stale"), verify)
			So(err, ShouldBeNil)
			So(g.CanEdit(), ShouldBeFalse)
		})

		Convey("A failing slot still yields a usable gate", func() {
			g, err := auth.Evaluate(ctx, auth.Bootstrap{Token: "secret"}, brokenStore{})
			So(errors.Is(err, auth.ErrTokenStore), ShouldBeTrue)
			So(g.CanEdit(), ShouldBeTrue)

			g, err = auth.Evaluate(ctx, auth.Bootstrap{}, brokenStore{})
			So(errors.Is(err, auth.ErrTokenStore), ShouldBeTrue)
			So(g.CanEdit(), ShouldBeFalse)
		})
	})
}

func TestGuard(t *testing.T) {
	Convey("Given gates with and without the capability", t, func() {
		calls := 0
		fn := func() error { calls++; return nil }

		Convey("A viewer never runs the mutation", func() {
			err := auth.Viewer().Guard("append", fn)
			So(errors.Is(err, auth.ErrNotPermitted), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "append")
			So(calls, ShouldEqual, 0)
		})

		Convey("A nil gate behaves as a viewer", func() {
			var g *auth.Gate
			So(errors.Is(g.Guard("undo", fn), auth.ErrNotPermitted), ShouldBeTrue)
			So(calls, ShouldEqual, 0)
		})

		Convey("An editor runs it and returns its error", func() {
			boom := errors.New("boom")
			So(auth.Editor().Guard("append", fn), ShouldBeNil)
			So(auth.Editor().Guard("append", func() error { return boom }), ShouldEqual, boom)
			So(calls, ShouldEqual, 1)
		})
	})
}

func TestEnsureToken(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty slot", t, func() {
		slot := auth.NewSlot("")
		tok, err := auth.EnsureToken(ctx, slot)

		Convey("A token is minted and persisted", func() {
			So(err, ShouldBeNil)
			So(len(tok), ShouldEqual, 36)
			stored, _ := slot.LoadToken(ctx)
			So(stored, ShouldEqual, tok)
		})

		Convey("Calling again keeps the same token", func() {
			again, err := auth.EnsureToken(ctx, slot)
			So(err, ShouldBeNil)
			So(again, ShouldEqual, tok)
		})
	})

	Convey("Given an existing token it is never overwritten", t, func() {
		tok, err := auth.EnsureToken(ctx, auth.NewSlot("keep-me"))
		So(err, ShouldBeNil)
		So(tok, ShouldEqual, "keep-me")
	})

	Convey("Given a broken slot the error is surfaced", t, func() {
		_, err := auth.EnsureToken(ctx, brokenStore{})
		So(errors.Is(err, auth.ErrTokenStore), ShouldBeTrue)
	})
}

func TestLinks(t *testing.T) {
	Convey("Given a base url", t, func() {
		links, err := auth.NewLinks("https://example.org/trip?lang=it&token=old", "T 1")
		So(err, ShouldBeNil)

		Convey("The editor link embeds the token", func() {
			So(links.Editor, ShouldEqual, "https://example.org/trip?lang=it&mode=edit&token=T+1")
		})

		Convey("The viewer link carries only the view flag", func() {
			So(links.Viewer, ShouldEqual, "https://example.org/trip?lang=it&mode=view")
		})

		Convey("Links parse back into bootstraps", func() {
			u, _ := url.Parse(links.Editor)
			So(auth.ParseBootstrap(u.Query()), ShouldResemble, auth.Bootstrap{Token: "T 1"})
			u, _ = url.Parse(links.Viewer)
			So(auth.ParseBootstrap(u.Query()), ShouldResemble, auth.Bootstrap{ViewOnly: true})
		})
	})

	Convey("Given an invalid base url", t, func() {
		_, err := auth.NewLinks("://bad", "T")
		So(err, ShouldNotBeNil)
	})
}
