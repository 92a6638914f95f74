package snapshot

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func sample() SnapshotV1 {
	hue := &HueV1{Hue: 0}
	return SnapshotV1{
		Header: Header{Version: Version, ModelID: "m-1", Step: 42},
		Grid:   GridV1{Divisions: 8},
		Config: ConfigV1{Timestep: 0.2, Seed: 7, EarthRadius: 6371, NewOceanicCrust: true},
		Plates: []PlateV1{
			{
				ID:              0,
				Quaternion:      [4]float64{1, 0, 0, 0},
				AngularVelocity: [3]float64{0, 0.01, 0},
				Density:         2,
				Hue:             10,
				HotSpot:         &HotSpotV1{Position: [3]float64{0, 0, 1}, Force: [3]float64{1, 0, 0}},
				Fields: []FieldV1{
					{ID: 1, Type: 1, BaseElevation: 0.55, BaseCrustThickness: 0.55, Orogeny: &OrogenyV1{MaxFoldingStress: 0.4}},
					{ID: 2, Age: 0.1, BaseCrustThickness: 0.2, Subduction: &SubductionV1{Dist: 0.05}, OriginalHue: hue},
				},
				Subplate: []FieldV1{{ID: 9, Subduction: &SubductionV1{Dist: 0.1}, OriginalHue: hue}},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sample()
	var buf bytes.Buffer
	if err := Encode(&buf, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
	if out.FieldCount() != 2 {
		t.Fatalf("field count = %d", out.FieldCount())
	}
}

func TestWriteReadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	in := sample()
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != in.Header {
		t.Fatalf("header = %+v, want %+v", h, in.Header)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("file round trip mismatch")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	in := sample()
	in.Header.Version = 99
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Unmarshal(b); !errors.Is(err, ErrVersion) {
		t.Fatalf("err = %v, want ErrVersion", err)
	}
}
