// Command watch is a headless observer: it subscribes to a running server
// and logs a line per STEP and CROSS_SECTION message.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"platesim/internal/observerproto"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/observer/ws", "observer ws url")
		colormap = flag.String("colormap", observerproto.ColormapTopo, "topo | plate | age")
		forces   = flag.Bool("forces", false, "request force columns")
		cross    = flag.String("cross", "", "cross-section path as lat1,lon1,lat2,lon2 (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)

	sub := observerproto.SubscribeMsg{
		Type:             observerproto.TypeSubscribe,
		ProtocolVersion:  observerproto.Version,
		RenderBoundaries: true,
		RenderForces:     *forces,
		RenderHotSpots:   true,
		Colormap:         *colormap,
	}
	if *cross != "" {
		req, err := parseCross(*cross)
		if err != nil {
			logger.Fatalf("-cross: %v", err)
		}
		sub.CrossSection = req
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.TextMessage {
			var e observerproto.ErrorMsg
			if json.Unmarshal(msg, &e) == nil && e.Type == observerproto.TypeError {
				logger.Printf("ERROR %s (fatal=%v)", e.Message, e.Fatal)
			}
			continue
		}
		typ, err := observerproto.PeekType(msg)
		if err != nil {
			continue
		}
		switch typ {
		case observerproto.TypeStep:
			m, err := observerproto.DecodeStep(msg)
			if err != nil {
				continue
			}
			logStep(logger, m)
		case observerproto.TypeCrossSection:
			m, err := observerproto.DecodeCrossSection(msg)
			if err != nil {
				continue
			}
			logger.Printf("CROSS_SECTION step=%d segments=%d/%d/%d/%d", m.Step, len(m.Front), len(m.Right), len(m.Back), len(m.Left))
		}
	}
}

func logStep(logger *log.Logger, m observerproto.StepMsg) {
	fields, sub, hotSpots := 0, 0, 0
	var minElev, maxElev float32
	first := true
	for _, p := range m.Plates {
		if p.HotSpot != nil {
			hotSpots++
		}
		if p.Subplate != nil {
			sub += p.Subplate.Len()
		}
		if p.Fields == nil {
			continue
		}
		fields += p.Fields.Len()
		for _, e := range p.Fields.Elevation {
			if first || e < minElev {
				minElev = e
			}
			if first || e > maxElev {
				maxElev = e
			}
			first = false
		}
	}
	if fields == 0 {
		logger.Printf("STEP %d plates=%d hot_spots=%d", m.Step, len(m.Plates), hotSpots)
		return
	}
	logger.Printf("STEP %d plates=%d hot_spots=%d fields=%d subplate=%d elevation=[%.2f, %.2f]",
		m.Step, len(m.Plates), hotSpots, fields, sub, minElev, maxElev)
}

var errBadCross = errors.New("want lat1,lon1,lat2,lon2")

func parseCross(s string) (*observerproto.CrossSectionReq, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errBadCross
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errBadCross
		}
		v[i] = f
	}
	return &observerproto.CrossSectionReq{
		P1: &[2]float64{v[0], v[1]},
		P2: &[2]float64{v[2], v[3]},
	}, nil
}
