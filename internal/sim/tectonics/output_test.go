package tectonics

import (
	"testing"

	"platesim/internal/observerproto"
)

func TestCadence(t *testing.T) {
	c := OutputCadence{FieldsInterval: 4, FieldsOffset: 1, CrossSectionInterval: 1}
	var sent []uint64
	for step := uint64(0); step < 12; step++ {
		if c.Fields(step) {
			sent = append(sent, step)
		}
		if !c.CrossSection(step) {
			t.Fatalf("interval 1 must always send")
		}
	}
	want := []uint64{3, 7, 11}
	if len(sent) != len(want) {
		t.Fatalf("sent = %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("sent = %v, want %v", sent, want)
		}
	}
	if !(OutputCadence{}).Fields(5) {
		t.Fatalf("zero interval must always send")
	}
}

func TestOutputColumns(t *testing.T) {
	m := richModel(t)
	m.stepIdx = 1
	cadence := OutputCadence{FieldsInterval: 10}

	msg := m.Output(observerproto.RenderOptions{}, cadence, false)
	if len(msg.Plates) != 2 {
		t.Fatalf("plates = %d", len(msg.Plates))
	}
	for _, p := range msg.Plates {
		if p.Fields != nil {
			t.Fatalf("fields sent on a throttled step")
		}
		if p.HotSpot != nil {
			t.Fatalf("hot spot sent without being requested")
		}
	}
	if q := msg.Plates[0].Quaternion; q[0] == 0 && q[1] == 0 && q[2] == 0 && q[3] == 0 {
		t.Fatalf("quaternion missing")
	}

	msg = m.Output(observerproto.RenderOptions{Colormap: observerproto.ColormapPlate, HotSpots: true}, cadence, true)
	a := msg.Plates[0].Fields
	if a == nil || a.Len() != 10 {
		t.Fatalf("forced output has no fields")
	}
	if a.Boundary != nil || a.ForceX != nil {
		t.Fatalf("unrequested columns present")
	}
	if msg.Plates[0].HotSpot == nil {
		t.Fatalf("hot spot missing")
	}
	for i, id := range a.ID {
		want := observerproto.NoHue
		if id == 3 {
			want = 0
		}
		if a.OriginalHue[i] != want {
			t.Fatalf("field %d hue = %d, want %d", id, a.OriginalHue[i], want)
		}
	}
	sub := msg.Plates[1].Subplate
	if sub == nil || sub.Len() != 1 || sub.OriginalHue[0] != 120 {
		t.Fatalf("subplate = %+v", sub)
	}

	msg = m.Output(observerproto.RenderOptions{Boundaries: true, Forces: true}, cadence, true)
	b := msg.Plates[1].Fields
	if b.OriginalHue != nil {
		t.Fatalf("hue column sent for a non-plate colormap")
	}
	if len(b.Boundary) != b.Len() || len(b.ForceZ) != b.Len() {
		t.Fatalf("requested columns incomplete")
	}
	for i, id := range b.ID {
		if id == 105 && b.Boundary[i] != 1 {
			t.Fatalf("boundary flag missing for field 105")
		}
	}
}

func TestCrossSectionSegments(t *testing.T) {
	g := testGrid(t, 16)
	m, _, _ := twoPlates(t, g, testConfig(), 0.05)
	// Along the equator from lon -60 (x < 0) to lon 60 (x > 0).
	p1 := &[2]float64{0, -60}
	p2 := &[2]float64{0, 60}
	msg, ok := m.CrossSectionOutput(&observerproto.CrossSectionReq{P1: p1, P2: p2}, OutputCadence{}, false)
	if !ok {
		t.Fatalf("cross-section throttled")
	}
	if len(msg.Front) < 2 {
		t.Fatalf("segments = %d, want at least 2", len(msg.Front))
	}
	if first, last := msg.Front[0].PlateID, msg.Front[len(msg.Front)-1].PlateID; first != 0 || last != 1 {
		t.Fatalf("segment order = %d .. %d", first, last)
	}
	prev := float32(-1)
	for _, s := range msg.Front {
		for _, p := range s.Points {
			if p.Dist < prev {
				t.Fatalf("distance not increasing")
			}
			prev = p.Dist
		}
	}
	if msg.Right != nil {
		t.Fatalf("2D request produced side walls")
	}

	swapped, _ := m.CrossSectionOutput(&observerproto.CrossSectionReq{P1: p1, P2: p2, Swapped: true}, OutputCadence{}, false)
	if swapped.Front[0].PlateID != 1 {
		t.Fatalf("swap did not reverse the path")
	}

	req := &observerproto.CrossSectionReq{P1: p1, P2: p2, P3: &[2]float64{30, 60}, P4: &[2]float64{30, -60}, ThreeD: true}
	msg, _ = m.CrossSectionOutput(req, OutputCadence{}, false)
	if len(msg.Right) == 0 || len(msg.Back) == 0 || len(msg.Left) == 0 {
		t.Fatalf("3D walls missing")
	}

	if _, ok := m.CrossSectionOutput(req, OutputCadence{CrossSectionInterval: 7, CrossSectionOffset: 1}, false); ok {
		t.Fatalf("throttled step produced output")
	}
	if _, ok := m.CrossSectionOutput(&observerproto.CrossSectionReq{P1: p1}, OutputCadence{}, true); ok {
		t.Fatalf("incomplete request produced output")
	}
}
