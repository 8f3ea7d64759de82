package config_test

import (
	"errors"
	"testing"

	"github.com/okian/fantavacanza/internal/config"
	"github.com/okian/fantavacanza/internal/domain/interchange"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.DefaultCanEdit, convey.ShouldBeFalse)
			convey.So(cfg.MaxPlayers, convey.ShouldEqual, 12)
			convey.So(cfg.Palette, convey.ShouldResemble, interchange.DefaultPalette)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the import vocabulary matches the codec defaults", func() {
			syn := cfg.Synonyms()
			def := interchange.DefaultSynonyms()
			convey.So(syn.Name, convey.ShouldResemble, def.Name)
			convey.So(syn.Points, convey.ShouldResemble, def.Points)
			convey.So(syn.ID, convey.ShouldResemble, def.ID)
			convey.So(syn.Aux, convey.ShouldResemble, def.Aux)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs violating an invariant", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"unknown store":      func(c *config.Config) { c.Store = "redis" },
			"sqlite without db":  func(c *config.Config) { c.Store = config.StoreSQLite; c.DatabasePath = "" },
			"zero max players":   func(c *config.Config) { c.MaxPlayers = 0 },
			"empty palette":      func(c *config.Config) { c.Palette = nil },
			"empty cookie name":  func(c *config.Config) { c.TokenCookie = "" },
			"bad locale":         func(c *config.Config) { c.Locale = "!!" },
			"seed player without id": func(c *config.Config) { c.Seed.Players = []config.SeedPlayer{{Name: "Anna"}} },
			"duplicate seed": func(c *config.Config) {
				c.Seed.Players = []config.SeedPlayer{{ID: "A", Name: "Anna"}, {ID: "A", Name: "Alba"}}
			},
			"seed activity without name": func(c *config.Config) { c.Seed.Activities = []config.SeedActivity{{ID: "x"}} },
		}
		for name, mutate := range cases {
			convey.Convey("When the config has "+name, func() {
				cfg := config.New()
				mutate(cfg)

				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}

func TestConfig_SeedRoster(t *testing.T) {
	convey.Convey("Given seed players without colors", t, func() {
		cfg := config.New()
		cfg.Seed.Players = []config.SeedPlayer{{ID: "A", Name: "Anna"}, {ID: "B", Name: "Bruno", Color: "#000"}}
		cfg.Seed.Activities = []config.SeedActivity{{ID: "x", Name: "Swim", Points: 2}}

		r := cfg.SeedRoster()

		convey.So(r.Players[0].Color, convey.ShouldEqual, cfg.Palette[0])
		convey.So(r.Players[1].Color, convey.ShouldEqual, "#000")
		convey.So(r.Activities[0].Points, convey.ShouldEqual, 2.0)
	})
}
