package session

import (
	"context"
	"errors"
	"fmt"

	"platesim/internal/persistence/snapshot"
	"platesim/internal/sim/grid"
	"platesim/internal/sim/tectonics"
)

var (
	ErrNoSnapshotSink = errors.New("no snapshot sink configured")
	ErrSinkFull       = errors.New("snapshot sink full")
)

type adminKind int

const (
	adminSnapshot adminKind = iota + 1
	adminExport
	adminLoad
	adminPause
	adminEdit
)

type adminReq struct {
	kind  adminKind
	actor string

	load   snapshot.SnapshotV1
	paused bool
	edit   FieldEdit

	resp chan adminResp
}

type adminResp struct {
	step uint64
	snap snapshot.SnapshotV1
	err  error
}

// FieldEdit sets every field of a plate within Radius adjacency hops of
// FieldID to Type.
type FieldEdit struct {
	PlateID tectonics.PlateID
	FieldID int
	Radius  int
	Type    tectonics.FieldType
}

func (s *Session) request(ctx context.Context, req adminReq) (adminResp, error) {
	req.resp = make(chan adminResp, 1)
	select {
	case s.admin <- req:
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r, r.err
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
}

// RequestSnapshot asks the session goroutine to push a snapshot of the
// current step to the snapshot sink.
func (s *Session) RequestSnapshot(ctx context.Context, actor string) (uint64, error) {
	r, err := s.request(ctx, adminReq{kind: adminSnapshot, actor: actor})
	return r.step, err
}

// ExportSnapshot returns a snapshot of the current step.
func (s *Session) ExportSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	r, err := s.request(ctx, adminReq{kind: adminExport})
	return r.snap, err
}

// LoadSnapshot replaces the running model. A previous fatal error is
// cleared; observers get full field columns on the next step.
func (s *Session) LoadSnapshot(ctx context.Context, actor string, snap snapshot.SnapshotV1) (uint64, error) {
	r, err := s.request(ctx, adminReq{kind: adminLoad, actor: actor, load: snap})
	return r.step, err
}

func (s *Session) SetPaused(ctx context.Context, actor string, paused bool) error {
	_, err := s.request(ctx, adminReq{kind: adminPause, actor: actor, paused: paused})
	return err
}

// EditFields applies a draw-tool edit between steps.
func (s *Session) EditFields(ctx context.Context, actor string, e FieldEdit) error {
	_, err := s.request(ctx, adminReq{kind: adminEdit, actor: actor, edit: e})
	return err
}

func (s *Session) handleAdmin(req adminReq) {
	var resp adminResp
	switch req.kind {
	case adminSnapshot:
		resp.step = s.model.StepIdx()
		switch {
		case s.snapshotSink == nil:
			resp.err = ErrNoSnapshotSink
		case !s.enqueueSnapshot():
			resp.err = ErrSinkFull
		default:
			s.audit(req.actor, "SNAPSHOT", fmt.Sprintf("step %d", resp.step))
		}
	case adminExport:
		resp.step = s.model.StepIdx()
		resp.snap = s.model.Serialize(s.cfg.ModelID)
	case adminLoad:
		resp.err = s.load(req.load)
		resp.step = s.model.StepIdx()
		if resp.err == nil {
			s.audit(req.actor, "LOAD_MODEL", fmt.Sprintf("model %s step %d", req.load.Header.ModelID, resp.step))
		}
	case adminPause:
		s.paused = req.paused
		action := "RESUME"
		if req.paused {
			action = "PAUSE"
		}
		s.audit(req.actor, action, "")
	case adminEdit:
		resp.err = s.edit(req.edit)
		if resp.err == nil {
			e := req.edit
			s.audit(req.actor, "SET_FIELD_TYPE", fmt.Sprintf("plate %d field %d radius %d type %s", e.PlateID, e.FieldID, e.Radius, e.Type))
			s.forceAll()
		}
	}
	s.publishMetrics()
	if req.resp != nil {
		select {
		case req.resp <- resp:
		default:
			// Caller gave up; don't block the loop.
		}
	}
}

func (s *Session) load(snap snapshot.SnapshotV1) error {
	g := s.model.Grid()
	if opts := tectonics.GridOptions(snap); opts != g.Options() {
		ng, err := grid.New(opts)
		if err != nil {
			return err
		}
		g = ng
	}
	m, err := tectonics.DeserializeModel(g, snap)
	if err != nil {
		return err
	}
	s.model = m
	s.fatal = nil
	if snap.Header.ModelID != "" {
		s.cfg.ModelID = snap.Header.ModelID
	}
	s.forceAll()
	s.publishInfo()
	return nil
}

func (s *Session) edit(e FieldEdit) error {
	p := s.model.Plate(e.PlateID)
	if p == nil {
		return fmt.Errorf("no plate %d", e.PlateID)
	}
	if p.Field(e.FieldID) == nil {
		return fmt.Errorf("plate %d does not own field %d", e.PlateID, e.FieldID)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("invalid field type %d", e.Type)
	}
	var err error
	p.ForEachFieldWithin(e.FieldID, e.Radius, func(f *tectonics.Field, _ int) {
		if err == nil {
			err = p.SetFieldType(f.ID, e.Type)
		}
	})
	return err
}

func (s *Session) forceAll() {
	for _, c := range s.observers {
		c.forceFields = true
		c.forceCross = true
	}
}
