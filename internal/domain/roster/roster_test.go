package roster_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func seeded() *roster.Registry {
	return roster.New(
		[]model.Player{{ID: "P1", Name: "Anna", Color: "#ef4444"}, {ID: "P2", Name: "Bruno", Color: "#3b82f6"}},
		[]model.Activity{{ID: "A1", Name: "Swim", Points: 5}, {ID: "A2", Name: "Late", Points: -3}},
	)
}

func TestRegistryLookups(t *testing.T) {
	Convey("Given a seeded registry", t, func() {
		r := seeded()

		Convey("Players and activities resolve by id", func() {
			p, ok := r.Player("P2")
			So(ok, ShouldBeTrue)
			So(p.Name, ShouldEqual, "Bruno")
			a, ok := r.Activity("A2")
			So(ok, ShouldBeTrue)
			So(a.Points, ShouldEqual, -3)
		})

		Convey("Unknown ids do not resolve", func() {
			_, ok := r.Player("nope")
			So(ok, ShouldBeFalse)
			_, ok = r.Activity("nope")
			So(ok, ShouldBeFalse)
		})

		Convey("Returned slices are copies", func() {
			ps := r.Players()
			ps[0].Name = "changed"
			p, _ := r.Player("P1")
			So(p.Name, ShouldEqual, "Anna")
		})

		Convey("Duplicate ids keep the first occurrence", func() {
			r.ReplacePlayers([]model.Player{{ID: "X", Name: "one"}, {ID: "X", Name: "two"}})
			So(len(r.Players()), ShouldEqual, 1)
			p, _ := r.Player("X")
			So(p.Name, ShouldEqual, "one")
		})
	})
}

func TestRegistryEdits(t *testing.T) {
	Convey("Given a seeded registry", t, func() {
		r := seeded()

		Convey("AddActivity appends with a generated id", func() {
			a, err := r.AddActivity("  Dive ", 7)
			So(err, ShouldBeNil)
			So(strings.HasPrefix(a.ID, "A_"), ShouldBeTrue)
			So(a.Name, ShouldEqual, "Dive")
			acts := r.Activities()
			So(acts[len(acts)-1].ID, ShouldEqual, a.ID)
		})

		Convey("AddActivity rejects blank names", func() {
			_, err := r.AddActivity("   ", 1)
			So(errors.Is(err, roster.ErrInvalid), ShouldBeTrue)
		})

		Convey("UpdateActivity changes points", func() {
			pts := 10.0
			a, err := r.UpdateActivity("A1", roster.ActivityPatch{Points: &pts})
			So(err, ShouldBeNil)
			So(a.Points, ShouldEqual, 10)
			So(a.Name, ShouldEqual, "Swim")
		})

		Convey("UpdateActivity on an unknown id fails", func() {
			_, err := r.UpdateActivity("zz", roster.ActivityPatch{})
			So(errors.Is(err, roster.ErrUnknownActivity), ShouldBeTrue)
		})

		Convey("UpdatePlayer changes name and color", func() {
			name, color := "Annalisa", "#10b981"
			p, err := r.UpdatePlayer("P1", roster.PlayerPatch{Name: &name, Color: &color})
			So(err, ShouldBeNil)
			So(p.Name, ShouldEqual, "Annalisa")
			So(p.Color, ShouldEqual, "#10b981")
		})

		Convey("SetAvatarRef stores the reference", func() {
			p, err := r.SetAvatarRef("P2", "players/P2/1.jpg")
			So(err, ShouldBeNil)
			So(p.AvatarRef, ShouldEqual, "players/P2/1.jpg")
			_, err = r.SetAvatarRef("P9", "x")
			So(errors.Is(err, roster.ErrUnknownPlayer), ShouldBeTrue)
		})
	})
}

func TestRegistryApply(t *testing.T) {
	Convey("Given a seeded registry", t, func() {
		r := seeded()
		before := r.Players()

		Convey("An activities-only import leaves players untouched", func() {
			replaced := r.Apply([]model.Activity{{ID: "CSV_1", Name: "Hike", Points: 2}}, nil)
			So(replaced, ShouldBeFalse)
			So(r.Players(), ShouldResemble, before)
			So(len(r.Activities()), ShouldEqual, 1)
			_, ok := r.Activity("A1")
			So(ok, ShouldBeFalse)
		})

		Convey("An import with players replaces them wholesale", func() {
			replaced := r.Apply(
				[]model.Activity{{ID: "CSV_1", Name: "Hike", Points: 2}},
				[]model.Player{{ID: "P1", Name: "Carla"}},
			)
			So(replaced, ShouldBeTrue)
			So(len(r.Players()), ShouldEqual, 1)
			_, ok := r.Player("P2")
			So(ok, ShouldBeFalse)
		})
	})
}
