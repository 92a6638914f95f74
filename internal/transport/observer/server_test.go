package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"platesim/internal/observerproto"
	"platesim/internal/sim/grid"
	"platesim/internal/sim/session"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/worldgen"
)

func startServer(t *testing.T) (*httptest.Server, *session.Session) {
	t.Helper()
	g, err := grid.New(grid.Options{Divisions: 6})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	m, err := worldgen.Generate(g, tectonics.DefaultConfig(), worldgen.Options{
		Preset: worldgen.PresetTwoPlates, MaxAngularSpeed: 0.05,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sess := session.New(session.Config{ModelID: "test_model", StepRateHz: 50}, m, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = sess.Run(ctx) }()

	srv := NewServer(sess, log.New(io.Discard, "", 0))
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", srv.WSHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, sess
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBootstrap(t *testing.T) {
	ts, _ := startServer(t)
	resp, err := http.Get(ts.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ModelID != "test_model" || b.ProtocolVersion != observerproto.Version {
		t.Fatalf("bootstrap = %+v", b)
	}
	if want := 10*6*6 + 2; b.GridParams.FieldCount != want || b.GridParams.Divisions != 6 {
		t.Fatalf("grid params = %+v, want %d fields", b.GridParams, want)
	}
	if b.ModelParams.Plates != 2 || b.ModelParams.StepRateHz != 50 {
		t.Fatalf("model params = %+v", b.ModelParams)
	}
}

func TestWSStreamsSteps(t *testing.T) {
	ts, _ := startServer(t)
	conn := dial(t, ts)
	sub := `{"type":"SUBSCRIBE","protocol_version":"` + observerproto.Version + `","colormap":"plate"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message kind = %d, want binary", kind)
	}
	msg, err := observerproto.DecodeStep(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != observerproto.TypeStep || len(msg.Plates) != 2 {
		t.Fatalf("step = %+v", msg)
	}
	if msg.Plates[0].Fields == nil || msg.Plates[0].Fields.OriginalHue == nil {
		t.Fatalf("first step has no plate colormap columns")
	}

	// A bad update is reported and the stream continues.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SUBSCRIBE","protocol_version":"0.1","colormap":"rainbow"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	sawError, sawStep := false, false
	for i := 0; i < 50 && !(sawError && sawStep); i++ {
		kind, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		switch kind {
		case websocket.TextMessage:
			var e observerproto.ErrorMsg
			if err := json.Unmarshal(b, &e); err != nil || e.Type != observerproto.TypeError || e.Fatal {
				t.Fatalf("error frame = %s", b)
			}
			sawError = true
		case websocket.BinaryMessage:
			if sawError {
				sawStep = true
			}
		}
	}
	if !sawError || !sawStep {
		t.Fatalf("sawError=%v sawStep=%v", sawError, sawStep)
	}
}

func TestWSRejectsBadHandshake(t *testing.T) {
	ts, _ := startServer(t)
	conn := dial(t, ts)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SUBSCRIBE","protocol_version":"9.9"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e observerproto.ErrorMsg
	if kind != websocket.TextMessage || json.Unmarshal(b, &e) != nil || !e.Fatal {
		t.Fatalf("handshake reply = %s", b)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("close = %v, want policy violation", err)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.1:80":    false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q) = %v", addr, got)
		}
	}
}
