package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// stateDigest is a canonical sha256 over the full mutable state, used by the
// determinism tests and the replay verifier. Agents in registration order,
// points in id order; float coordinates hashed bit-exact.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	putU64(h, &tmp, nowTick)
	putU64(h, &tmp, uint64(w.episode))

	putU64(h, &tmp, uint64(len(w.order)))
	for _, id := range w.order {
		a := w.agents[id]
		h.Write([]byte(id))
		putF64(h, &tmp, a.Pos.X)
		putF64(h, &tmp, a.Pos.Y)
		putF64(h, &tmp, a.Pos.Z)
		putF64(h, &tmp, a.Yaw)
		held := a.Claimant.Held()
		putU64(h, &tmp, uint64(len(held)))
		for _, pid := range held {
			putU64(h, &tmp, uint64(pid))
		}
	}

	for _, pid := range w.registry.IDs() {
		p, _ := w.registry.Get(pid)
		putU64(h, &tmp, uint64(pid))
		h.Write([]byte(p.Owner))
		h.Write([]byte{0})
		h.Write([]byte(p.ActiveClaimant))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func putU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func putF64(h hash.Hash, tmp *[8]byte, v float64) {
	putU64(h, tmp, math.Float64bits(v))
}
