package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/fantavacanza/internal/adapters/http/api"
	"github.com/okian/fantavacanza/internal/adapters/repository"
	service "github.com/okian/fantavacanza/internal/app"
	"github.com/okian/fantavacanza/internal/domain/auth"
	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/types"
	"github.com/okian/fantavacanza/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var seed = model.Roster{
	Players: []model.Player{
		{ID: "A", Name: "Anna", Color: "#ef4444"},
		{ID: "B", Name: "Bruno", Color: "#3b82f6"},
	},
	Activities: []model.Activity{
		{ID: "swim", Name: "Nuotata", Points: 5},
		{ID: "dive", Name: "Tuffo", Points: 3},
		{ID: "late", Name: "Ritardo", Points: -1},
	},
}

type harness struct {
	mux   *http.ServeMux
	svc   *service.Service
	store *repository.MemoryStore
}

func newHarness(fail func(op string) error, opts ...service.Option) *harness {
	now := func() time.Time { return time.Date(2025, 8, 3, 10, 30, 0, 0, time.UTC) }
	store := repository.NewMemoryStore(repository.WithClock(now), repository.WithFailures(fail))
	opts = append([]service.Option{service.WithClock(now), service.WithSeed(seed)}, opts...)
	svc := service.New(store, opts...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, api.WithPublicURL("https://trip.example.org/")).Register(context.Background(), mux)
	return &harness{mux: mux, svc: svc, store: store}
}

func (h *harness) close() {
	h.svc.Stop()
	_ = h.store.Close()
}

func (h *harness) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Code
}

const editor = "?token=T1"

func TestServer_Health(t *testing.T) {
	Convey("Given a registered server", t, func() {
		h := newHarness(nil)
		defer h.close()

		Convey("Health answers JSON by default", func() {
			w := h.do("GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("Health answers metrics to scrapers", func() {
			h.do("GET", "/leaderboard", "")
			w := h.do("GET", "/healthz", "", "Accept", "text/plain")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "fantavacanza_")
		})

		Convey("Metrics are served", func() {
			h.do("GET", "/leaderboard", "")
			w := h.do("GET", "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("Stats report the roster", func() {
			w := h.do("GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var st types.Stats
			So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
			So(st.Players, ShouldEqual, 2)
			So(st.Activities, ShouldEqual, 3)
		})

		Convey("Unknown routes are not found", func() {
			So(h.do("GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
			So(h.do("PUT", "/leaderboard", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Capability(t *testing.T) {
	Convey("Given a registered server", t, func() {
		h := newHarness(nil)
		defer h.close()

		Convey("A fresh visitor is read-only", func() {
			w := h.do("GET", "/session", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var s types.Session
			So(json.Unmarshal(w.Body.Bytes(), &s), ShouldBeNil)
			So(s.CanEdit, ShouldBeFalse)

			w = h.do("POST", "/events", `{"player_id":"A","activity_id":"swim"}`)
			So(w.Code, ShouldEqual, http.StatusForbidden)
			So(errorCode(w), ShouldEqual, "not_permitted")
			So(h.svc.Stats(context.Background()).Events, ShouldEqual, 0)
		})

		Convey("A token link grants editing and is remembered", func() {
			w := h.do("GET", "/session"+editor, "")
			var s types.Session
			So(json.Unmarshal(w.Body.Bytes(), &s), ShouldBeNil)
			So(s.CanEdit, ShouldBeTrue)
			cookies := w.Result().Cookies()
			So(len(cookies), ShouldEqual, 1)
			So(cookies[0].Name, ShouldEqual, auth.TokenKey)
			So(cookies[0].Value, ShouldEqual, "T1")

			w = h.do("POST", "/events", `{"player_id":"A","activity_id":"swim"}`, "Cookie", auth.TokenKey+"=T1")
			So(w.Code, ShouldEqual, http.StatusCreated)
		})

		Convey("A bearer token grants editing", func() {
			w := h.do("POST", "/events", `{"player_id":"A","activity_id":"swim"}`, "Authorization", "Bearer T1")
			So(w.Code, ShouldEqual, http.StatusCreated)
		})

		Convey("A view link wins over a remembered token", func() {
			w := h.do("POST", "/events?mode=view", `{"player_id":"A","activity_id":"swim"}`, "Cookie", auth.TokenKey+"=T1")
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("Share links need editing", func() {
			So(h.do("GET", "/share", "").Code, ShouldEqual, http.StatusForbidden)

			w := h.do("GET", "/share"+editor, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var links auth.Links
			So(json.Unmarshal(w.Body.Bytes(), &links), ShouldBeNil)
			So(links.Editor, ShouldStartWith, "https://trip.example.org/?mode=edit&token=")
			So(links.Viewer, ShouldEqual, "https://trip.example.org/?mode=view")
		})

		Convey("Sharing from a token link keeps that token on the device", func() {
			w := h.do("GET", "/share"+editor, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			cookies := w.Result().Cookies()
			So(len(cookies), ShouldEqual, 1)
			So(cookies[0].Value, ShouldEqual, "T1")

			w = h.do("GET", "/share", "", "Cookie", auth.TokenKey+"=T9")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Result().Cookies(), ShouldBeEmpty)
		})
	})
}

func TestServer_Ledger(t *testing.T) {
	Convey("Given an editor session", t, func() {
		h := newHarness(nil)
		defer h.close()

		post := func(body string) *httptest.ResponseRecorder { return h.do("POST", "/events"+editor, body) }

		Convey("When entries are posted", func() {
			So(post(`{"player_id":"B","activity_id":"swim"}`).Code, ShouldEqual, http.StatusCreated)
			So(post(`{"player_id":"B","activity_id":"dive","day":"2"}`).Code, ShouldEqual, http.StatusCreated)
			w := post(`{"player_id":"A","activity_id":"late","day":1,"note":"10 min"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)

			Convey("Then the leaderboard ranks them", func() {
				w := h.do("GET", "/leaderboard", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var rows []types.Standing
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0].PlayerID, ShouldEqual, "B")
				So(rows[0].Total, ShouldEqual, 8.0)
				So(*rows[0].MaxSingle, ShouldEqual, 5.0)
				So(rows[1].Total, ShouldEqual, -1.0)

				w = h.do("GET", "/leaderboard?limit=1", "")
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(len(rows), ShouldEqual, 1)

				So(h.do("GET", "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then the series is cumulative", func() {
				var pts []types.SeriesPoint
				So(json.Unmarshal(h.do("GET", "/series", "").Body.Bytes(), &pts), ShouldBeNil)
				So(len(pts), ShouldEqual, 2)
				So(pts[0].Values["B"], ShouldEqual, 5.0)
				So(pts[1].Values["B"], ShouldEqual, 8.0)
				So(pts[1].Values["A"], ShouldEqual, -1.0)
			})

			Convey("Then the audit log lists them", func() {
				var log []types.LogEntry
				So(json.Unmarshal(h.do("GET", "/events", "").Body.Bytes(), &log), ShouldBeNil)
				So(len(log), ShouldEqual, 3)
				So(log[0].Day, ShouldEqual, 2)
			})

			Convey("Then the export is a CSV attachment", func() {
				w := h.do("GET", "/export.csv", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
				So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "fantavacanza_log_2025-08-03.csv")
				So(w.Body.String(), ShouldStartWith, "event_id,day,timestamp,player,activity,points,note")
			})

			Convey("And the last one is undone", func() {
				w := h.do("POST", "/events/undo"+editor, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"removed":true`)
				So(h.svc.Stats(context.Background()).Events, ShouldEqual, 2)
			})

			Convey("And the ledger is reset", func() {
				So(h.do("POST", "/reset", "").Code, ShouldEqual, http.StatusForbidden)
				So(h.do("POST", "/reset"+editor, "").Code, ShouldEqual, http.StatusOK)
				So(h.svc.Stats(context.Background()).Events, ShouldEqual, 0)
			})
		})

		Convey("When an entry is edited and deleted", func() {
			var ack struct {
				Event model.Event `json:"event"`
			}
			So(json.Unmarshal(post(`{"player_id":"A","activity_id":"swim"}`).Body.Bytes(), &ack), ShouldBeNil)
			id := ack.Event.ID

			w := h.do("PATCH", "/events/"+id+editor, `{"activity_id":"dive","note":"ops"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var e model.Event
			So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
			So(e.Points, ShouldEqual, 3.0)
			So(len(e.History), ShouldEqual, 1)

			So(h.do("PATCH", "/events/"+id+editor, `{"activity_id":"ghost"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(h.do("DELETE", "/events/"+id+editor, "").Code, ShouldEqual, http.StatusNoContent)
			So(h.do("DELETE", "/events/"+id+editor, "").Code, ShouldEqual, http.StatusNotFound)
			So(h.do("PATCH", "/events/"+id+editor, `{"note":"x"}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When requests are malformed", func() {
			So(post(`{`).Code, ShouldEqual, http.StatusBadRequest)
			So(post(`{"player_id":"A"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(post(`{"player_id":"A","activity_id":"swim","extra":1}`).Code, ShouldEqual, http.StatusBadRequest)
			w := post(`{"player_id":"ghost","activity_id":"swim"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a request is retried", func() {
			body := `{"request_id":"r-1","player_id":"A","activity_id":"swim"}`
			So(post(body).Code, ShouldEqual, http.StatusCreated)
			w := post(body)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			So(h.svc.Stats(context.Background()).Events, ShouldEqual, 1)
		})
	})
}

func TestServer_Roster(t *testing.T) {
	Convey("Given an editor session", t, func() {
		h := newHarness(nil)
		defer h.close()

		Convey("Players can be listed and edited", func() {
			var players []model.Player
			So(json.Unmarshal(h.do("GET", "/players", "").Body.Bytes(), &players), ShouldBeNil)
			So(len(players), ShouldEqual, 2)

			So(h.do("PATCH", "/players/A"+editor, `{"name":"Annalisa"}`).Code, ShouldEqual, http.StatusOK)
			So(h.do("PATCH", "/players/A"+editor, `{"name":"  "}`).Code, ShouldEqual, http.StatusBadRequest)
			So(h.do("PATCH", "/players/Z"+editor, `{"name":"Zoe"}`).Code, ShouldEqual, http.StatusNotFound)

			w := h.do("PUT", "/players/B/avatar"+editor, `{"avatar_ref":"avatars/b.png"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "avatars/b.png")
		})

		Convey("Activities can be added and edited", func() {
			w := h.do("POST", "/activities"+editor, `{"name":"Kayak","points":4}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(h.do("POST", "/activities"+editor, `{"name":"Kayak"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(h.do("PATCH", "/activities/swim"+editor, `{"points":6}`).Code, ShouldEqual, http.StatusOK)

			var acts []model.Activity
			So(json.Unmarshal(h.do("GET", "/activities", "").Body.Bytes(), &acts), ShouldBeNil)
			So(len(acts), ShouldEqual, 4)
			So(acts[0].Points, ShouldEqual, 6.0)
		})

		Convey("A CSV import replaces activities", func() {
			w := h.do("POST", "/import"+editor, "name,points\nGelato,2\n", "Content-Type", "text/csv")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"activities":1`)

			w = h.do("POST", "/import"+editor, "", "Content-Type", "text/csv")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_csv")
			So(len(h.svc.Activities(context.Background())), ShouldEqual, 1)
		})
	})
}

func TestServer_PersistenceFailure(t *testing.T) {
	Convey("Given a store rejecting inserts", t, func() {
		h := newHarness(func(op string) error {
			if op == repository.OpInsertEvent {
				return errors.New("offline")
			}
			return nil
		})
		defer h.close()

		Convey("Posting reports save_failed", func() {
			w := h.do("POST", "/events"+editor, `{"player_id":"A","activity_id":"swim"}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(errorCode(w), ShouldEqual, "save_failed")
		})
	})
}
