package tectonics

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// StateDigest hashes every persisted attribute in step order. Two models
// with equal digests step identically.
func (m *Model) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte
	digestWriteU64(h, &tmp, m.stepIdx)
	for _, p := range m.plates {
		digestWriteI64(h, &tmp, int64(p.ID))
		digestWriteF64(h, &tmp, p.Quaternion.W)
		digestWriteVec(h, &tmp, p.Quaternion.V)
		digestWriteVec(h, &tmp, p.AngularVelocity)
		digestWriteF64(h, &tmp, p.Density)
		digestWriteI64(h, &tmp, int64(p.Hue))
		if p.HotSpot != nil {
			h.Write([]byte{1})
			digestWriteVec(h, &tmp, p.HotSpot.Position)
			digestWriteVec(h, &tmp, p.HotSpot.Force)
		} else {
			h.Write([]byte{0})
		}
		digestWriteU64(h, &tmp, uint64(len(p.fields)))
		for _, f := range p.Fields() {
			digestField(h, &tmp, f)
		}
		digestWriteU64(h, &tmp, uint64(len(p.subplate)))
		for _, f := range p.SubplateFields() {
			digestField(h, &tmp, f)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestField(h hash.Hash, tmp *[8]byte, f *Field) {
	digestWriteI64(h, tmp, int64(f.ID))
	h.Write([]byte{byte(f.Type), boolByte(f.Boundary), boolByte(f.Trench), boolByte(f.Marked)})
	digestWriteF64(h, tmp, f.Age)
	digestWriteF64(h, tmp, f.BaseElevation)
	digestWriteF64(h, tmp, f.BaseCrustThickness)
	digestWriteF64(h, tmp, f.NoCollisionDist)
	if f.OriginalHue != nil {
		digestWriteI64(h, tmp, int64(*f.OriginalHue))
	} else {
		digestWriteI64(h, tmp, -1)
	}
	var mask byte
	if f.Orogeny != nil {
		mask |= 1
	}
	if f.Subduction != nil {
		mask |= 2
	}
	if f.VolcanicAct != nil {
		mask |= 4
	}
	if f.VolcanicEruption != nil {
		mask |= 8
	}
	if f.Earthquake != nil {
		mask |= 16
	}
	h.Write([]byte{mask})
	if f.Orogeny != nil {
		digestWriteF64(h, tmp, f.Orogeny.MaxFoldingStress)
	}
	if f.Subduction != nil {
		digestWriteF64(h, tmp, f.Subduction.Dist)
	}
	if f.VolcanicAct != nil {
		digestWriteF64(h, tmp, f.VolcanicAct.Value)
	}
	if f.VolcanicEruption != nil {
		digestWriteF64(h, tmp, f.VolcanicEruption.Lifespan)
	}
	if f.Earthquake != nil {
		digestWriteF64(h, tmp, f.Earthquake.Lifespan)
		digestWriteF64(h, tmp, f.Earthquake.Depth)
		digestWriteF64(h, tmp, f.Earthquake.Magnitude)
	}
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) { digestWriteU64(h, tmp, uint64(v)) }

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hash.Hash, tmp *[8]byte, v [3]float64) {
	for _, c := range v {
		digestWriteF64(h, tmp, c)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
