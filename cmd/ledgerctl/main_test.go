package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/fantavacanza/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func execute(args ...string) (string, error) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLedgerctl(t *testing.T) {
	convey.Convey("Given a sqlite ledger", t, func() {
		dir := t.TempDir()
		db := filepath.Join(dir, "ledger.db")
		common := []string{"--store", "sqlite", "--db", db}
		run := func(args ...string) (string, error) { return execute(append(args, common...)...) }

		csvPath := filepath.Join(dir, "roster.csv")
		doc := "id,name,points,Anna,Bruno\nswim,Nuotata,5,,\nlate,Ritardo,-1,,\n"
		convey.So(os.WriteFile(csvPath, []byte(doc), 0o600), convey.ShouldBeNil)

		convey.Convey("When a roster is imported", func() {
			out, err := run("import", csvPath)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "imported 2 activities; 2 players (replaced)")

			convey.Convey("Then standings list the players", func() {
				out, err := run("standings")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Anna")
				convey.So(out, convey.ShouldContainSubstring, "Bruno")
			})

			convey.Convey("Then the export starts with the header", func() {
				out, err := run("export")
				convey.So(err, convey.ShouldBeNil)
				convey.So(strings.HasPrefix(out, "event_id,day,timestamp,player,activity,points,note"), convey.ShouldBeTrue)
			})

			convey.Convey("Then the export can go to a file", func() {
				target := filepath.Join(dir, "log.csv")
				_, err := run("export", "-o", target)
				convey.So(err, convey.ShouldBeNil)
				b, err := os.ReadFile(target)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldStartWith, "event_id,")
			})

			convey.Convey("Then share links are stable across runs", func() {
				first, err := run("share", "--base", "https://trip.example.org/")
				convey.So(err, convey.ShouldBeNil)
				convey.So(first, convey.ShouldContainSubstring, "viewer: https://trip.example.org/?mode=view")
				second, err := run("token", "--base", "https://trip.example.org/")
				convey.So(err, convey.ShouldBeNil)
				convey.So(second, convey.ShouldEqual, first)
			})
		})

		convey.Convey("When a reset is not confirmed", func() {
			_, err := run("reset")
			convey.So(err, convey.ShouldEqual, errNotConfirmed)
		})

		convey.Convey("When a reset is confirmed", func() {
			out, err := run("reset", "--yes")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "ledger reset")
		})

		convey.Convey("When the import file is not CSV with rows", func() {
			empty := filepath.Join(dir, "empty.csv")
			convey.So(os.WriteFile(empty, []byte("\n"), 0o600), convey.ShouldBeNil)
			_, err := run("import", empty)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given an unknown backend", t, func() {
		_, err := execute("standings", "--store", "redis")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
