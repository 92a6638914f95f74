package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"platesim/internal/persistence/snapshot"
)

func testSnapshot(step uint64) snapshot.SnapshotV1 {
	return snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, ModelID: "ignored", Step: step},
		Grid:   snapshot.GridV1{Divisions: 4},
		Plates: []snapshot.PlateV1{
			{ID: 0, Quaternion: [4]float64{1, 0, 0, 0}, Density: 1, Fields: []snapshot.FieldV1{{ID: 1}, {ID: 2}}},
		},
	}
}

func TestStorePutGetListDelete(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	id1, err := s.Put(ctx, testSnapshot(10))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	id2, err := s.Put(ctx, testSnapshot(20))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("ids collide")
	}

	got, err := s.Get(ctx, id1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Header.ModelID != id1 || got.Header.Step != 10 || got.FieldCount() != 2 {
		t.Fatalf("got header %+v, fields %d", got.Header, got.FieldCount())
	}

	list, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %+v", list)
	}
	for _, e := range list {
		if e.Fields != 2 || e.Bytes <= 0 || e.Size() == "" {
			t.Fatalf("entry = %+v", e)
		}
	}
	if one, _ := s.List(ctx, 1); len(one) != 1 {
		t.Fatalf("limit ignored: %d", len(one))
	}

	if err := s.Delete(ctx, id1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
	if err := s.Delete(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
	if _, err := s.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad id: %v", err)
	}
}
