package session

import (
	"platesim/internal/observerproto"
)

// ObserverJoinRequest registers a read-only renderer session. StepOut gets
// msgpack STEP messages, CrossOut msgpack CROSS_SECTION messages. Both are
// latest-wins: a slow reader only ever sees the newest message.
type ObserverJoinRequest struct {
	SessionID string
	StepOut   chan []byte
	CrossOut  chan []byte
	Options   observerproto.RenderOptions
}

// ObserverSubscribeRequest replaces an observer's render options.
type ObserverSubscribeRequest struct {
	SessionID string
	Options   observerproto.RenderOptions
}

type observerClient struct {
	id       string
	stepOut  chan []byte
	crossOut chan []byte
	opts     observerproto.RenderOptions

	// Set after join or a settings change so the next message carries the
	// full field columns regardless of cadence.
	forceFields bool
	forceCross  bool
}

// columnKey groups observers that receive byte-identical STEP messages.
type columnKey struct {
	boundaries, forces, hotSpots bool
	colormap                     string
	forced                       bool
}

func (s *Session) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.StepOut == nil {
		return
	}
	s.observers[req.SessionID] = &observerClient{
		id:          req.SessionID,
		stepOut:     req.StepOut,
		crossOut:    req.CrossOut,
		opts:        req.Options,
		forceFields: true,
		forceCross:  true,
	}
	s.publishMetrics()
}

func (s *Session) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := s.observers[req.SessionID]
	if c == nil {
		return
	}
	c.opts = req.Options
	c.forceFields = true
	c.forceCross = true
}

func (s *Session) handleObserverLeave(id string) {
	delete(s.observers, id)
	s.publishMetrics()
}

func (s *Session) broadcast() {
	if len(s.observers) == 0 {
		return
	}
	encoded := make(map[columnKey][]byte)
	for _, id := range s.sortedObserverIDs() {
		c := s.observers[id]
		key := columnKey{
			boundaries: c.opts.Boundaries,
			forces:     c.opts.Forces,
			hotSpots:   c.opts.HotSpots,
			colormap:   c.opts.Colormap,
			forced:     c.forceFields,
		}
		b, ok := encoded[key]
		if !ok {
			msg := s.model.Output(c.opts, s.cfg.Cadence, c.forceFields)
			var err error
			b, err = observerproto.EncodeStep(msg)
			if err != nil {
				s.logf("encode step: %v", err)
				continue
			}
			encoded[key] = b
		}
		sendLatest(c.stepOut, b)
		c.forceFields = false

		if c.opts.CrossSection == nil || c.crossOut == nil {
			continue
		}
		msg, ok := s.model.CrossSectionOutput(c.opts.CrossSection, s.cfg.Cadence, c.forceCross)
		if !ok {
			continue
		}
		cb, err := observerproto.EncodeCrossSection(msg)
		if err != nil {
			s.logf("encode cross-section: %v", err)
			continue
		}
		sendLatest(c.crossOut, cb)
		c.forceCross = false
	}
}

// sendLatest replaces a pending message rather than blocking the loop.
func sendLatest(ch chan []byte, b []byte) {
	if cap(ch) == 0 {
		select {
		case ch <- b:
		default:
		}
		return
	}
	for {
		select {
		case ch <- b:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
