// Package observer serves the read-only renderer protocol: an HTTP bootstrap
// endpoint and a websocket that streams msgpack STEP and CROSS_SECTION
// messages.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"platesim/internal/observerproto"
	"platesim/internal/sim/session"
)

type Server struct {
	sess *session.Session
	log  *log.Logger

	// AllowRemote disables the loopback-only guard.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(s *session.Session, logger *log.Logger) *Server {
	return &Server{
		sess: s,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		info := s.sess.Info()
		m := s.sess.Metrics()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			ModelID:         info.ModelID,
			Step:            m.Step,
			GridParams: observerproto.GridParams{
				Divisions:     info.Divisions,
				FieldCount:    info.FieldCount,
				FieldDiameter: info.FieldDiameter,
				Optimized:     info.Optimized,
			},
			ModelParams: observerproto.ModelParams{
				Timestep:   info.Timestep,
				StepRateHz: info.StepRateHz,
				Seed:       info.Seed,
				Plates:     m.Plates,
			},
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		wc := &wsConn{conn: conn}

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, err := observerproto.ParseSubscribe(msg)
		if err != nil {
			wc.writeError(err.Error(), true)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		stepOut := make(chan []byte, 1)
		crossOut := make(chan []byte, 1)

		joinReq := session.ObserverJoinRequest{
			SessionID: sid,
			StepOut:   stepOut,
			CrossOut:  crossOut,
			Options:   sub.Options(),
		}
		select {
		case s.sess.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.sess.ObserverLeave() <- sid:
			default:
				// Session loop is stopping; nothing else to do.
			}
		}()
		s.logf("observer %s joined from %s", sid, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. Cross-sections are rarer and larger; STEP wins
		// when both are ready.
		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b = <-stepOut:
				case b = <-crossOut:
				}
				if err := wc.write(websocket.BinaryMessage, b, 5*time.Second); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, err := observerproto.ParseSubscribe(msg)
			if err != nil {
				// Invalid updates are reported but keep the old settings.
				wc.writeError(err.Error(), false)
				continue
			}
			req := session.ObserverSubscribeRequest{SessionID: sid, Options: sub.Options()}
			select {
			case s.sess.ObserverSubscribe() <- req:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.logf("observer %s left", sid)
	}
}

// wsConn serializes data frames; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(kind int, b []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(kind, b)
}

// writeError sends a JSON ERROR frame.
func (c *wsConn) writeError(msg string, fatal bool) {
	b, _ := json.Marshal(observerproto.ErrorMsg{
		Type:            observerproto.TypeError,
		ProtocolVersion: observerproto.Version,
		Message:         msg,
		Fatal:           fatal,
	})
	_ = c.write(websocket.TextMessage, b, time.Second)
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
