package encoding

import "bytes"

// Kind tags the 24 primitive shapes a decoded Primitive can take. Several
// wire format codes collapse onto one Kind (e.g. Smalluint/Uint0/Uint all
// produce KindUInt) because the spec's value tree is defined over logical
// types, not wire encodings.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindUByte
	KindByte
	KindUShort
	KindShort
	KindUInt
	KindInt
	KindULong
	KindLong
	KindFloat
	KindDouble
	KindDecimal32
	KindDecimal64
	KindDecimal128
	KindChar
	KindTimestamp
	KindUUID
	KindBinary
	KindString
	KindSymbol
	KindList
	KindMap
	KindArray
)

// Primitive is the tagged union described in spec.md §3/§4.2: one of
// Null, Boolean, the fixed-width numeric kinds, opaque fixed-width blobs
// (decimal/char/uuid), the variable-width octet sequences, and the three
// compound shapes (list, map, array).
//
// Fixed-width scalars are stored in bits as their big-endian bit pattern
// (for integers, the bits at the value's own width zero-extended to 64
// bits, also for signed kinds; IEEE bits for floats).
// Storing floats by bit pattern rather than by value is what lets two
// primitives compare reflexive-equal even when the float is NaN, and is
// what makes a float usable as a Map key (see Equal/Hash).
type Primitive struct {
	Kind Kind

	bits  uint64 // Bool/UByte/Byte/UShort/Short/UInt/Int/ULong/Long/Float/Double/Timestamp
	bytes []byte // Decimal32/64/128 (raw), Char (4 raw octets), UUID (16 raw octets), Binary, String, Symbol

	List  []Constructor
	Map   []MapEntry
	Array ArrayValue
}

// MapEntry is one key/value pair of a decoded Map primitive. Order is
// preserved from the wire but is not semantically significant (spec.md
// §3: "insertion order irrelevant, keys unique").
type MapEntry struct {
	Key   Constructor
	Value Constructor
}

// ArrayValue is an AMQP array: a single shared element-constructor (an
// optional descriptor plus a format code) applied to every element. This
// shape is what makes the "decode the constructor once, not per element"
// invariant (spec.md §4.3, §9) representable at the type level: there is
// no per-element Constructor to mistakenly re-derive.
type ArrayValue struct {
	ElementCode FormatCode
	Descriptor  *Constructor // nil unless every element shares a described wrapper
	Elements    []Primitive
}

// Constructor is either a bare Primitive or a Primitive annotated by a
// descriptor (spec.md §3). The body of a described constructor is always
// a Primitive, never another Constructor — nested described bodies are
// flattened by the decoder (see DecodeConstructor).
type Constructor struct {
	Described  bool
	Descriptor *Constructor
	Value      Primitive
}

// PrimitiveConstructor wraps a bare primitive.
func PrimitiveConstructor(p Primitive) Constructor {
	return Constructor{Value: p}
}

// DescribedConstructor wraps body with descriptor.
func DescribedConstructor(descriptor Constructor, body Primitive) Constructor {
	return Constructor{Described: true, Descriptor: &descriptor, Value: body}
}

func Null() Primitive                { return Primitive{Kind: KindNull} }
func Bool(v bool) Primitive          { return Primitive{Kind: KindBool, bits: boolBits(v)} }
func UByte(v uint8) Primitive        { return Primitive{Kind: KindUByte, bits: uint64(v)} }
func Byte(v int8) Primitive          { return Primitive{Kind: KindByte, bits: uint64(uint8(v))} }
func UShort(v uint16) Primitive      { return Primitive{Kind: KindUShort, bits: uint64(v)} }
func Short(v int16) Primitive        { return Primitive{Kind: KindShort, bits: uint64(uint16(v))} }
func UInt(v uint32) Primitive        { return Primitive{Kind: KindUInt, bits: uint64(v)} }
func Int(v int32) Primitive          { return Primitive{Kind: KindInt, bits: uint64(uint32(v))} }
func ULong(v uint64) Primitive       { return Primitive{Kind: KindULong, bits: v} }
func Long(v int64) Primitive         { return Primitive{Kind: KindLong, bits: uint64(v)} }
func Float32(v uint32) Primitive     { return Primitive{Kind: KindFloat, bits: uint64(v)} }
func Float64(v uint64) Primitive     { return Primitive{Kind: KindDouble, bits: v} }
func Timestamp(ms int64) Primitive   { return Primitive{Kind: KindTimestamp, bits: uint64(ms)} }
func Decimal32(b []byte) Primitive   { return Primitive{Kind: KindDecimal32, bytes: b} }
func Decimal64(b []byte) Primitive   { return Primitive{Kind: KindDecimal64, bytes: b} }
func Decimal128(b []byte) Primitive  { return Primitive{Kind: KindDecimal128, bytes: b} }
func Char(b []byte) Primitive        { return Primitive{Kind: KindChar, bytes: b} }
func UUID(b []byte) Primitive        { return Primitive{Kind: KindUUID, bytes: b} }
func Binary(b []byte) Primitive      { return Primitive{Kind: KindBinary, bytes: b} }
func String(s string) Primitive      { return Primitive{Kind: KindString, bytes: []byte(s)} }
func Symbol(s string) Primitive      { return Primitive{Kind: KindSymbol, bytes: []byte(s)} }
func List(items []Constructor) Primitive {
	return Primitive{Kind: KindList, List: items}
}
func Map(entries []MapEntry) Primitive {
	return Primitive{Kind: KindMap, Map: entries}
}
func Array(v ArrayValue) Primitive {
	return Primitive{Kind: KindArray, Array: v}
}

func boolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// AsBool/AsUint64/... accessors convert the bit-packed representation
// back to a Go value. Callers are expected to check Kind first; an
// accessor called against the wrong Kind returns the zero value.

func (p Primitive) AsBool() bool      { return p.bits != 0 }
func (p Primitive) AsUint8() uint8    { return uint8(p.bits) }
func (p Primitive) AsInt8() int8      { return int8(uint8(p.bits)) }
func (p Primitive) AsUint16() uint16  { return uint16(p.bits) }
func (p Primitive) AsInt16() int16    { return int16(uint16(p.bits)) }
func (p Primitive) AsUint32() uint32  { return uint32(p.bits) }
func (p Primitive) AsInt32() int32    { return int32(uint32(p.bits)) }
func (p Primitive) AsUint64() uint64  { return p.bits }
func (p Primitive) AsInt64() int64    { return int64(p.bits) }
func (p Primitive) AsFloat32Bits() uint32 { return uint32(p.bits) }
func (p Primitive) AsFloat64Bits() uint64 { return p.bits }
func (p Primitive) AsTimestampMs() int64  { return int64(p.bits) }
func (p Primitive) AsBytes() []byte       { return p.bytes }
func (p Primitive) AsString() string      { return string(p.bytes) }

// IsNull reports whether p is the Null primitive.
func (p Primitive) IsNull() bool { return p.Kind == KindNull }

// Equal implements the structural equality required by spec.md §4.2: same
// tag, same contents, with floats compared by bit pattern (already how
// they're stored) so the relation is reflexive even for NaN.
func (p Primitive) Equal(o Primitive) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case KindNull:
		return true
	case KindBool, KindUByte, KindByte, KindUShort, KindShort, KindUInt, KindInt,
		KindULong, KindLong, KindFloat, KindDouble, KindTimestamp:
		return p.bits == o.bits
	case KindDecimal32, KindDecimal64, KindDecimal128, KindChar, KindUUID, KindBinary, KindString, KindSymbol:
		return bytes.Equal(p.bytes, o.bytes)
	case KindList:
		if len(p.List) != len(o.List) {
			return false
		}
		for i := range p.List {
			if !p.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(p.Map) != len(o.Map) {
			return false
		}
		// Map equality is order-independent: every entry in p must have a
		// matching key/value pair somewhere in o.
		used := make([]bool, len(o.Map))
		for _, pe := range p.Map {
			found := false
			for j, oe := range o.Map {
				if used[j] {
					continue
				}
				if pe.Key.Equal(oe.Key) && pe.Value.Equal(oe.Value) {
					used[j] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case KindArray:
		if p.Array.ElementCode != o.Array.ElementCode || len(p.Array.Elements) != len(o.Array.Elements) {
			return false
		}
		if (p.Array.Descriptor == nil) != (o.Array.Descriptor == nil) {
			return false
		}
		if p.Array.Descriptor != nil && !p.Array.Descriptor.Equal(*o.Array.Descriptor) {
			return false
		}
		for i := range p.Array.Elements {
			if !p.Array.Elements[i].Equal(o.Array.Elements[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal compares two Constructors: same descriptor-presence, equal
// descriptors (if any), and equal bodies.
func (c Constructor) Equal(o Constructor) bool {
	if c.Described != o.Described {
		return false
	}
	if c.Described && !c.Descriptor.Equal(*o.Descriptor) {
		return false
	}
	return c.Value.Equal(o.Value)
}
