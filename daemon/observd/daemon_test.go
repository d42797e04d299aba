package observd

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/websocket"
	"github.com/rotblauer/triptrack/common"
	"github.com/rotblauer/triptrack/dispatch"
	"github.com/rotblauer/triptrack/events"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/tracker"
	"github.com/rotblauer/triptrack/types/sample"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSource struct {
	updated event.FeedOf[events.LocationUpdated]
	failed  event.FeedOf[events.DispatchFailed]
}

func (f *fakeSource) Status() tracker.Status {
	return tracker.Status{SessionID: "trip-1", State: "active", Active: true}
}

func (f *fakeSource) SubscribeLocationUpdated(ch chan<- events.LocationUpdated) event.Subscription {
	return f.updated.Subscribe(ch)
}

func (f *fakeSource) SubscribeDispatchFailed(ch chan<- events.DispatchFailed) event.Subscription {
	return f.failed.Subscribe(ch)
}

func newTestObserveDaemon(t *testing.T) (*ObserveDaemon, *fakeSource) {
	t.Helper()
	t.Cleanup(common.SlogResetLevel(slog.LevelWarn + 1))
	src := &fakeSource{}
	d := NewObserveDaemon(&params.ObserveDaemonConfig{
		ListenerConfig: params.ListenerConfig{Network: "tcp", Address: "127.0.0.1:0"},
		RecentOutcomes: 3,
	}, src)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Interrupt)
	return d, src
}

func updatedAt(lat float64) events.LocationUpdated {
	return events.LocationUpdated{
		SessionID: "trip-1",
		Sample:    sample.New(lat, 20, time.Now()),
		Ack:       dispatch.Ack{Status: "ok"},
		Path:      "tick",
		At:        time.Now(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func TestObserveDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://localhost/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestObserveDaemon_recent(t *testing.T) {
	d, src := newTestObserveDaemon(t)
	base := "http://" + d.Addr()

	for i := 0; i < 4; i++ {
		src.updated.Send(updatedAt(float64(i)))
	}
	src.failed.Send(events.DispatchFailed{SessionID: "trip-1", Outcome: "rejected: 403 Forbidden", Kind: "rejected", Path: "stream", At: time.Now()})
	waitFor(t, func() bool {
		_, body := get(t, base+"/recent")
		return gjson.GetBytes(body, "2.action").String() == "dispatch_failed"
	})

	code, body := get(t, base+"/recent")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if n := gjson.GetBytes(body, "#").Int(); n != 3 {
		t.Fatalf("expected ring of 3, got %d: %s", n, body)
	}
	if lat := gjson.GetBytes(body, "0.sample.latitude").Float(); lat != 2 {
		t.Errorf("expected oldest kept latitude 2, got %v", lat)
	}
	if kind := gjson.GetBytes(body, "2.kind").String(); kind != "rejected" {
		t.Errorf("unexpected kind %q", kind)
	}

	_, body = get(t, base+"/recent?n=1")
	if n := gjson.GetBytes(body, "#").Int(); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
	code, _ = get(t, base+"/recent?n=x")
	if code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestObserveDaemon_statusReport(t *testing.T) {
	d, _ := newTestObserveDaemon(t)
	code, body := get(t, "http://"+d.Addr()+"/status")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if gjson.GetBytes(body, "uptime").String() == "" {
		t.Error("uptime is empty")
	}
	if !gjson.GetBytes(body, "ws_open").Bool() {
		t.Error("websocket not open")
	}
	if st := gjson.GetBytes(body, "session.state").String(); st != "active" {
		t.Errorf("unexpected session state %q", st)
	}
}

func TestObserveDaemon_socket(t *testing.T) {
	d, src := newTestObserveDaemon(t)
	src.updated.Send(updatedAt(1))
	waitFor(t, func() bool { return d.recent.Len() == 1 })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+d.Addr()+"/socket", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// Replayed on connect.
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(msg, "sample.latitude").Float() != 1 {
		t.Errorf("unexpected replay %s", msg)
	}

	waitFor(t, func() bool { return d.melodyInstance.Len() == 1 })
	src.updated.Send(updatedAt(2))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(msg, "action").String() != "location_updated" {
		t.Errorf("unexpected action %s", msg)
	}
	if gjson.GetBytes(msg, "sample.latitude").Float() != 2 {
		t.Errorf("unexpected broadcast %s", msg)
	}
}
