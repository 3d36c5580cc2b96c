package ws_test

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

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/notify"
	"github.com/okian/tally/internal/adapters/ws"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/contest"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

func init() {
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
}

type frame struct {
	Type      model.MessageType `json:"type"`
	ContestID string            `json:"contest_id"`
	Round     int               `json:"round"`
	Payload   json.RawMessage   `json:"payload"`
}

func readFrame(conn *websocket.Conn) frame {
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		return frame{Type: "read-failed"}
	}
	return f
}

func newServer(t *testing.T, opts ...service.Option) (*service.Service, *httptest.Server) {
	t.Helper()
	router := notify.NewRouter(32)
	opts = append([]service.Option{service.WithNotifier(router), service.WithBinder(router)}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(svc, router, ws.WithAllowedOrigins([]string{"*"})))
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		_ = svc.Stop(context.Background())
	})
	return svc, ts
}

func dial(ts *httptest.Server, query string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func TestParseFrame(t *testing.T) {
	Convey("Inbound frames are decoded at the boundary", t, func() {
		f, err := ws.ParseFrame([]byte(`{"type":"guess","value":"42"}`))
		So(err, ShouldBeNil)
		So(f, ShouldResemble, ws.Frame{Type: ws.FrameGuess, Value: 42})

		f, err = ws.ParseFrame([]byte(`{"type":"guess","value":-7}`))
		So(err, ShouldBeNil)
		So(f.Value, ShouldEqual, -7)

		f, err = ws.ParseFrame([]byte(`{"type":"requeue"}`))
		So(err, ShouldBeNil)
		So(f.Type, ShouldEqual, ws.FrameRequeue)

		for _, bad := range []string{
			`not json`,
			`{"value":"1"}`,
			`{"type":"dance"}`,
			`{"type":"guess"}`,
			`{"type":"guess","value":"forty"}`,
			`{"type":"guess","value":4.5}`,
			`{"type":"guess","value":true}`,
		} {
			_, err := ws.ParseFrame([]byte(bad))
			So(errors.Is(err, ws.ErrMalformedFrame), ShouldBeTrue)
		}
	})
}

func TestHandler(t *testing.T) {
	Convey("Given a websocket server over a one-player lobby", t, func() {
		svc, ts := newServer(t, service.WithContestSize(1), service.WithMaxRounds(1))

		Convey("A missing name is a bad request", func() {
			resp, err := http.Get(ts.URL + "/ws")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A connection plays a whole contest", func() {
			conn, err := dial(ts, "?name=ann")
			So(err, ShouldBeNil)
			defer conn.Close()

			So(readFrame(conn).Type, ShouldEqual, model.MessageQueued)
			So(readFrame(conn).Type, ShouldEqual, model.MessageContestStart)
			So(readFrame(conn).Type, ShouldEqual, model.MessageRoundStart)
			So(readFrame(conn).Type, ShouldEqual, model.MessageGuessPrompt)

			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"guess","value":"abc"}`)), ShouldBeNil)
			So(readFrame(conn).Type, ShouldEqual, model.MessageError)

			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"guess","value":"-9223372036854775798"}`)), ShouldBeNil)
			outside := readFrame(conn)
			So(outside.Type, ShouldEqual, model.MessageError)
			So(string(outside.Payload), ShouldContainSubstring, contest.ErrOutOfRange.Error())

			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"guess","value":"42"}`)), ShouldBeNil)
			result := readFrame(conn)
			So(result.Type, ShouldEqual, model.MessageRoundResult)
			So(result.Round, ShouldEqual, 1)
			So(readFrame(conn).Type, ShouldEqual, model.MessageContestOver)

			Convey("Closing the socket removes the participant", func() {
				So(conn.Close(), ShouldBeNil)
				deadline := time.Now().Add(3 * time.Second)
				for time.Now().Before(deadline) && svc.GetStats(context.Background()).Participants > 0 {
					time.Sleep(5 * time.Millisecond)
				}
				So(svc.GetStats(context.Background()).Participants, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a lobby waiting for two players", t, func() {
		svc, ts := newServer(t, service.WithContestSize(2))

		conn, err := dial(ts, "?name=ann")
		So(err, ShouldBeNil)
		defer conn.Close()
		So(readFrame(conn).Type, ShouldEqual, model.MessageQueued)

		Convey("A guess from the lobby is answered with an error frame", func() {
			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"guess","value":"5"}`)), ShouldBeNil)
			f := readFrame(conn)
			So(f.Type, ShouldEqual, model.MessageError)
			So(string(f.Payload), ShouldContainSubstring, service.ErrNotInContest.Error())
			So(svc.GetStats(context.Background()).Lobby, ShouldEqual, 1)
		})
	})
}
