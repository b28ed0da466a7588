package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/buffer"
)

func decode(t *testing.T, raw []byte) Constructor {
	t.Helper()
	c, err := DecodeConstructor(buffer.New(raw), 0)
	require.NoError(t, err)
	return c
}

func TestDecodeFixedWidthPrimitives(t *testing.T) {
	c := decode(t, []byte{byte(FormatCodeUint0)})
	assert.Equal(t, KindUInt, c.Value.Kind)
	assert.Equal(t, uint32(0), c.Value.AsUint32())

	c = decode(t, []byte{byte(FormatCodeBooleanTrue)})
	assert.True(t, c.Value.AsBool())

	c = decode(t, []byte{byte(FormatCodeSmallint), 0xfe}) // -2
	assert.Equal(t, int32(-2), c.Value.AsInt32())
}

func TestDecodeVariableWidthString(t *testing.T) {
	raw := append([]byte{byte(FormatCodeStr8), 3}, "foo"...)
	c := decode(t, raw)
	assert.Equal(t, KindString, c.Value.Kind)
	assert.Equal(t, "foo", c.Value.AsString())
}

func TestDecodeInvalidUTF8Rejected(t *testing.T) {
	raw := []byte{byte(FormatCodeStr8), 2, 0xff, 0xfe}
	_, err := DecodeConstructor(buffer.New(raw), 0)
	require.Error(t, err)
}

// TestArray8SharedElementConstructor is the known-bug regression test:
// a 3-element symbol array must read ONE element-format-code byte, then
// three bare symbol bodies — never a format-code byte per element.
//
// Wire layout: e0 (array8) | size | count(3) | a3 (sym8, shared code) |
// 03 'f' 'o' 'o' | 03 'b' 'a' 'r' | 03 'b' 'a' 'z'
func TestArray8SharedElementConstructor(t *testing.T) {
	body := []byte{byte(FormatCodeSym8)}
	body = append(body, 3, 'f', 'o', 'o')
	body = append(body, 3, 'b', 'a', 'r')
	body = append(body, 3, 'b', 'a', 'z')

	raw := []byte{byte(FormatCodeArray8), byte(len(body) + 1), 3}
	raw = append(raw, body...)

	buf := buffer.New(raw)
	c, err := DecodeConstructor(buf, 0)
	require.NoError(t, err)
	require.Equal(t, KindArray, c.Value.Kind)
	av := c.Value.Array
	require.Equal(t, FormatCodeSym8, av.ElementCode)
	require.Len(t, av.Elements, 3)
	assert.Equal(t, "foo", av.Elements[0].AsString())
	assert.Equal(t, "bar", av.Elements[1].AsString())
	assert.Equal(t, "baz", av.Elements[2].AsString())

	// A buggy decoder that re-reads a format-code byte per element would
	// consume extra bytes per element and desync; confirm the whole
	// buffer was consumed by exactly one shared element-constructor.
	assert.Equal(t, 0, buf.Len())
}

// TestDescribedArraySharedDescriptor exercises the described-element
// array form: the descriptor is decoded once and applies to every
// element, never re-read per element.
func TestDescribedArraySharedDescriptor(t *testing.T) {
	// element-constructor: 00 (described) 53 01 (smallulong descriptor=1) 71 (int body code)
	elementCtor := []byte{byte(FormatCodeNonPrimitive), byte(FormatCodeSmallulong), 1, byte(FormatCodeInt)}
	body := append([]byte(nil), elementCtor...)
	body = appendUint32(body, 10)
	body = appendUint32(body, 20)

	raw := []byte{byte(FormatCodeArray32)}
	raw = appendUint32(raw, uint32(len(body)+4))
	raw = appendUint32(raw, 2)
	raw = append(raw, body...)

	c := decode(t, raw)
	av := c.Value.Array
	require.NotNil(t, av.Descriptor)
	assert.Equal(t, uint64(1), av.Descriptor.Value.AsUint64())
	require.Len(t, av.Elements, 2)
	assert.Equal(t, int32(10), av.Elements[0].AsInt32())
	assert.Equal(t, int32(20), av.Elements[1].AsInt32())
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func TestDescribedTypeFlattening(t *testing.T) {
	// outer: described(descriptor=A, body=described(descriptor=B, body=42))
	// must flatten to described(descriptor=A, body=42).
	inner := []byte{byte(FormatCodeNonPrimitive), byte(FormatCodeSmallulong), 2, byte(FormatCodeSmallint), 42}
	outer := []byte{byte(FormatCodeNonPrimitive), byte(FormatCodeSmallulong), 1}
	outer = append(outer, inner...)

	c := decode(t, outer)
	require.True(t, c.Described)
	assert.Equal(t, uint64(1), c.Descriptor.Value.AsUint64())
	assert.Equal(t, KindInt, c.Value.Kind)
	assert.Equal(t, int32(42), c.Value.AsInt32())
}

func TestMapDuplicateKeyRejected(t *testing.T) {
	// map8 with two identical smallulong(1) keys
	body := []byte{byte(FormatCodeSmallulong), 1, byte(FormatCodeSmallint), 1}
	body = append(body, byte(FormatCodeSmallulong), 1, byte(FormatCodeSmallint), 2)
	raw := []byte{byte(FormatCodeMap8), byte(len(body) + 1), 4}
	raw = append(raw, body...)

	_, err := DecodeConstructor(buffer.New(raw), 0)
	require.Error(t, err)
}

func TestRoundTripEncodeDecode(t *testing.T) {
	values := []Primitive{
		Null(), Bool(true), Bool(false), UByte(200), Byte(-5),
		UShort(60000), Short(-1000), UInt(70000), Int(-70000),
		ULong(1 << 40), Long(-(1 << 40)), String("hello"), Symbol("amqp:open:list"),
		Binary([]byte{1, 2, 3}),
		List([]Constructor{PrimitiveConstructor(Int(1)), PrimitiveConstructor(String("x"))}),
		Map([]MapEntry{{Key: PrimitiveConstructor(String("k")), Value: PrimitiveConstructor(Int(7))}}),
	}
	for _, v := range values {
		buf := buffer.New(nil)
		require.NoError(t, EncodePrimitive(buf, v))
		got, err := DecodeConstructor(buffer.New(buf.Detach()), 0)
		require.NoError(t, err)
		assert.True(t, v.Equal(got.Value), "round-trip mismatch for kind %v", v.Kind)
	}
}

func TestMaxDepthExceeded(t *testing.T) {
	var raw []byte
	for i := 0; i <= MaxDecodeDepth+1; i++ {
		raw = append(raw, byte(FormatCodeNonPrimitive))
	}
	_, err := DecodeConstructor(buffer.New(raw), 0)
	require.Error(t, err)
}
