// Package session owns one tectonics model on a dedicated goroutine. All
// model access (stepping, observer output, snapshots, loads and edits)
// happens on that goroutine; other goroutines talk to it over channels.
package session

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	plog "platesim/internal/persistence/log"
	"platesim/internal/persistence/snapshot"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/tuning"
)

type StepLogger interface {
	WriteStep(tectonics.StepLogEntry) error
}

type AuditLogger interface {
	WriteAudit(plog.AuditEntry) error
}

type Config struct {
	ModelID string
	// StepRateHz of 0 steps as fast as possible.
	StepRateHz         int
	SnapshotEverySteps int
	Cadence            tectonics.OutputCadence
}

func ConfigFromTuning(modelID string, t tuning.Tuning) Config {
	return Config{
		ModelID:            modelID,
		StepRateHz:         t.Session.StepRateHz,
		SnapshotEverySteps: t.Session.SnapshotEverySteps,
		Cadence:            tectonics.CadenceFromTuning(t.Output),
	}
}

type Session struct {
	cfg   Config
	log   *log.Logger
	model *tectonics.Model

	stepLoggers  []StepLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	admin         chan adminReq
	stop          chan struct{}
	stopOnce      sync.Once

	paused bool
	fatal  error
	stepMS float64

	stepsTotal    atomic.Uint64
	snapshotDrops atomic.Uint64
	metrics       atomic.Value // Metrics
	info          atomic.Value // Info
}

func New(cfg Config, m *tectonics.Model, logger *log.Logger) *Session {
	s := &Session{
		cfg:           cfg,
		log:           logger,
		model:         m,
		observers:     make(map[string]*observerClient),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerSub:   make(chan ObserverSubscribeRequest, 256),
		observerLeave: make(chan string, 64),
		admin:         make(chan adminReq, 64),
		stop:          make(chan struct{}),
	}
	s.fatal = m.Err()
	s.publishInfo()
	s.publishMetrics()
	return s
}

func (s *Session) SetStepLoggers(ls ...StepLogger)               { s.stepLoggers = ls }
func (s *Session) SetAuditLogger(l AuditLogger)                  { s.auditLogger = l }
func (s *Session) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { s.snapshotSink = ch }

func (s *Session) ObserverJoin() chan<- ObserverJoinRequest           { return s.observerJoin }
func (s *Session) ObserverSubscribe() chan<- ObserverSubscribeRequest { return s.observerSub }
func (s *Session) ObserverLeave() chan<- string                       { return s.observerLeave }

func (s *Session) ModelID() string { return s.cfg.ModelID }

// Run steps the model until ctx is done or Stop is called. A fatal step
// error stops stepping but requests are still served; Run then returns
// that error on exit.
func (s *Session) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.cfg.StepRateHz > 0 {
		t := time.NewTicker(time.Second / time.Duration(s.cfg.StepRateHz))
		defer t.Stop()
		tick = t.C
	} else {
		always := make(chan time.Time)
		close(always)
		tick = always
	}
	for {
		stepC := tick
		if s.paused || s.fatal != nil {
			stepC = nil
		}
		select {
		case <-ctx.Done():
			if s.fatal != nil {
				return s.fatal
			}
			return ctx.Err()
		case <-s.stop:
			return s.fatal
		case req := <-s.observerJoin:
			s.handleObserverJoin(req)
		case req := <-s.observerSub:
			s.handleObserverSubscribe(req)
		case id := <-s.observerLeave:
			s.handleObserverLeave(id)
		case req := <-s.admin:
			s.handleAdmin(req)
		case <-stepC:
			s.stepOnce()
		}
	}
}

func (s *Session) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// StepOnce advances the model by one step with the same bookkeeping as Run.
// It must not be called concurrently with Run.
func (s *Session) StepOnce() (step uint64, digest string, err error) {
	s.stepOnce()
	return s.model.StepIdx(), s.model.StateDigest(), s.fatal
}

func (s *Session) stepOnce() {
	if s.fatal != nil {
		return
	}
	start := time.Now()
	err := s.model.Step(s.model.Config().Timestep)
	s.stepMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		s.fatal = err
		s.logf("model stopped at step %d: %v", s.model.StepIdx(), err)
		s.publishMetrics()
		return
	}
	s.stepsTotal.Add(1)

	if len(s.stepLoggers) > 0 {
		entry := s.model.LogEntry(s.stepMS)
		for _, l := range s.stepLoggers {
			if err := l.WriteStep(entry); err != nil {
				s.logf("step log: %v", err)
			}
		}
	}
	s.broadcast()

	step := s.model.StepIdx()
	if n := s.cfg.SnapshotEverySteps; n > 0 && step%uint64(n) == 0 {
		s.enqueueSnapshot()
	}
	s.publishMetrics()
}

func (s *Session) enqueueSnapshot() bool {
	if s.snapshotSink == nil {
		return false
	}
	select {
	case s.snapshotSink <- s.model.Serialize(s.cfg.ModelID):
		return true
	default:
		s.snapshotDrops.Add(1)
		return false
	}
}

func (s *Session) audit(actor, action, detail string) {
	if s.auditLogger == nil {
		return
	}
	_ = s.auditLogger.WriteAudit(plog.AuditEntry{
		Step:   s.model.StepIdx(),
		Actor:  actor,
		Action: action,
		Detail: detail,
		At:     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Session) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Session) sortedObserverIDs() []string {
	ids := make([]string, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
