package encoding

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a structural hash consistent with Equal: equal primitives
// always hash equal. Fixed-width scalars hash their stored bit pattern
// (so a Float and a Double holding the same bits, despite different
// Kinds, still land in different buckets — Kind is mixed into the
// digest precisely to keep that distinction, while still hashing a NaN
// float the same way on every call instead of by its unordered IEEE
// value).
func (p Primitive) Hash() uint64 {
	d := xxhash.New()
	var tmp [9]byte
	tmp[0] = byte(p.Kind)
	binary.BigEndian.PutUint64(tmp[1:], p.bits)
	_, _ = d.Write(tmp[:])

	switch p.Kind {
	case KindDecimal32, KindDecimal64, KindDecimal128, KindChar, KindUUID,
		KindBinary, KindString, KindSymbol:
		_, _ = d.Write(p.bytes)
	case KindList:
		for _, c := range p.List {
			h := c.Hash()
			binary.BigEndian.PutUint64(tmp[:8], h)
			_, _ = d.Write(tmp[:8])
		}
	case KindMap:
		// Order-independent: XOR each entry's combined hash together
		// rather than feeding them in sequence.
		var acc uint64
		for _, e := range p.Map {
			acc ^= e.Key.Hash()*31 + e.Value.Hash()
		}
		binary.BigEndian.PutUint64(tmp[:8], acc)
		_, _ = d.Write(tmp[:8])
	case KindArray:
		binary.BigEndian.PutUint64(tmp[:8], uint64(p.Array.ElementCode))
		_, _ = d.Write(tmp[:8])
		if p.Array.Descriptor != nil {
			h := p.Array.Descriptor.Hash()
			binary.BigEndian.PutUint64(tmp[:8], h)
			_, _ = d.Write(tmp[:8])
		}
		for _, el := range p.Array.Elements {
			h := el.Hash()
			binary.BigEndian.PutUint64(tmp[:8], h)
			_, _ = d.Write(tmp[:8])
		}
	}
	return d.Sum64()
}

// Hash combines the descriptor (if any) with the body's hash.
func (c Constructor) Hash() uint64 {
	h := c.Value.Hash()
	if !c.Described {
		return h
	}
	return h*1099511628211 + c.Descriptor.Hash()
}
