package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/mklounge/squadqueue/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type failingSink struct{ calls int }

func (f *failingSink) Send(context.Context, string, string) error {
	f.calls++
	return errors.New("connection reset")
}

func TestAnnounce(t *testing.T) {
	ctx := context.Background()

	Convey("Announce is best effort", t, func() {
		Convey("A nil sink is a no-op", func() {
			So(func() {
				Announce(ctx, nil, logger.Get(), "roster", "hello")
			}, ShouldNotPanic)
		})

		Convey("A sink failure is swallowed after one attempt", func() {
			sink := &failingSink{}
			So(func() {
				Announce(ctx, sink, logger.Get(), "roster", "hello")
			}, ShouldNotPanic)
			So(sink.calls, ShouldEqual, 1)
		})

		Convey("The log sink accepts anything", func() {
			So(NewLogSink(nil).Send(ctx, "roster", "hello"), ShouldBeNil)
		})
	})
}

func TestWebhookSink(t *testing.T) {
	ctx := context.Background()

	Convey("Given a webhook endpoint", t, func() {
		var got webhookPayload
		var decodeErr error
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decodeErr = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		Convey("The payload carries destination and text", func() {
			sink := NewWebhookSink(srv.URL, srv.Client())
			So(sink.Send(ctx, "room-3", "decided"), ShouldBeNil)
			So(decodeErr, ShouldBeNil)
			So(got.Destination, ShouldEqual, "room-3")
			So(got.Text, ShouldEqual, "decided")
		})

		Convey("A non-2xx answer surfaces as an error", func() {
			failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer failing.Close()

			sink := NewWebhookSink(failing.URL, failing.Client())
			So(sink.Send(ctx, "roster", "hello"), ShouldNotBeNil)
		})
	})
}
