package encoding

import (
	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/buffer"
)

// EncodeConstructor writes c to buf using the narrowest encoding
// available for its Kind, mirroring the size-optimized forms the
// teacher's own encode.go chooses for outbound Go values (e.g. a
// zero-valued uint encodes as Uint0, not a 4-octet Uint).
func EncodeConstructor(buf *buffer.Buffer, c Constructor) error {
	if c.Described {
		if err := buf.WriteByte(byte(FormatCodeNonPrimitive)); err != nil {
			return err
		}
		if err := EncodeConstructor(buf, *c.Descriptor); err != nil {
			return errors.Wrap(err, "encoding descriptor")
		}
		return EncodePrimitive(buf, c.Value)
	}
	return EncodePrimitive(buf, c.Value)
}

// EncodePrimitive writes p's narrowest wire form to buf.
func EncodePrimitive(buf *buffer.Buffer, p Primitive) error {
	switch p.Kind {
	case KindNull:
		return buf.WriteByte(byte(FormatCodeNull))

	case KindBool:
		if p.AsBool() {
			return buf.WriteByte(byte(FormatCodeBooleanTrue))
		}
		return buf.WriteByte(byte(FormatCodeBooleanFalse))

	case KindUByte:
		buf.WriteByte(byte(FormatCodeUbyte))
		return buf.WriteByte(p.AsUint8())
	case KindByte:
		buf.WriteByte(byte(FormatCodeByte))
		return buf.WriteByte(byte(p.AsInt8()))

	case KindUShort:
		buf.WriteByte(byte(FormatCodeUshort))
		buf.WriteUint16(p.AsUint16())
		return nil
	case KindShort:
		buf.WriteByte(byte(FormatCodeShort))
		buf.WriteUint16(uint16(p.AsInt16()))
		return nil

	case KindUInt:
		v := p.AsUint32()
		if v == 0 {
			return buf.WriteByte(byte(FormatCodeUint0))
		}
		if v <= 0xff {
			buf.WriteByte(byte(FormatCodeSmalluint))
			return buf.WriteByte(byte(v))
		}
		buf.WriteByte(byte(FormatCodeUint))
		buf.WriteUint32(v)
		return nil
	case KindInt:
		v := p.AsInt32()
		if v >= -128 && v <= 127 {
			buf.WriteByte(byte(FormatCodeSmallint))
			return buf.WriteByte(byte(int8(v)))
		}
		buf.WriteByte(byte(FormatCodeInt))
		buf.WriteUint32(uint32(v))
		return nil

	case KindULong:
		v := p.AsUint64()
		if v == 0 {
			return buf.WriteByte(byte(FormatCodeUlong0))
		}
		if v <= 0xff {
			buf.WriteByte(byte(FormatCodeSmallulong))
			return buf.WriteByte(byte(v))
		}
		buf.WriteByte(byte(FormatCodeUlong))
		buf.WriteUint64(v)
		return nil
	case KindLong:
		v := p.AsInt64()
		if v >= -128 && v <= 127 {
			buf.WriteByte(byte(FormatCodeSmalllong))
			return buf.WriteByte(byte(int8(v)))
		}
		buf.WriteByte(byte(FormatCodeLong))
		buf.WriteUint64(uint64(v))
		return nil

	case KindFloat:
		buf.WriteByte(byte(FormatCodeFloat))
		buf.WriteUint32(p.AsFloat32Bits())
		return nil
	case KindDouble:
		buf.WriteByte(byte(FormatCodeDouble))
		buf.WriteUint64(p.AsFloat64Bits())
		return nil

	case KindTimestamp:
		buf.WriteByte(byte(FormatCodeTimestamp))
		buf.WriteUint64(uint64(p.AsTimestampMs()))
		return nil

	case KindChar:
		buf.WriteByte(byte(FormatCodeChar))
		buf.Append(p.AsBytes())
		return nil
	case KindUUID:
		buf.WriteByte(byte(FormatCodeUUID))
		buf.Append(p.AsBytes())
		return nil
	case KindDecimal32:
		buf.WriteByte(byte(FormatCodeDecimal32))
		buf.Append(p.AsBytes())
		return nil
	case KindDecimal64:
		buf.WriteByte(byte(FormatCodeDecimal64))
		buf.Append(p.AsBytes())
		return nil
	case KindDecimal128:
		buf.WriteByte(byte(FormatCodeDecimal128))
		buf.Append(p.AsBytes())
		return nil

	case KindBinary:
		return encodeVariable(buf, p.AsBytes(), FormatCodeVbin8, FormatCodeVbin32)
	case KindString:
		return encodeVariable(buf, p.AsBytes(), FormatCodeStr8, FormatCodeStr32)
	case KindSymbol:
		return encodeVariable(buf, p.AsBytes(), FormatCodeSym8, FormatCodeSym32)

	case KindList:
		return encodeList(buf, p.List)
	case KindMap:
		return encodeMap(buf, p.Map)
	case KindArray:
		return encodeArray(buf, p.Array)
	}
	return errors.Errorf("encoding: unknown primitive kind %d", p.Kind)
}

func encodeVariable(buf *buffer.Buffer, b []byte, code8, code32 FormatCode) error {
	if len(b) <= 0xff {
		buf.WriteByte(byte(code8))
		buf.WriteByte(byte(len(b)))
		buf.Append(b)
		return nil
	}
	buf.WriteByte(byte(code32))
	buf.WriteUint32(uint32(len(b)))
	buf.Append(b)
	return nil
}

func encodeList(buf *buffer.Buffer, items []Constructor) error {
	if len(items) == 0 {
		return buf.WriteByte(byte(FormatCodeList0))
	}
	body := buffer.New(nil)
	for _, item := range items {
		if err := EncodeConstructor(body, item); err != nil {
			return err
		}
	}
	payload := body.Detach()
	count := len(items)
	if len(payload)+1 <= 0xff && count <= 0xff {
		buf.WriteByte(byte(FormatCodeList8))
		buf.WriteByte(byte(len(payload) + 1))
		buf.WriteByte(byte(count))
	} else {
		buf.WriteByte(byte(FormatCodeList32))
		buf.WriteUint32(uint32(len(payload) + 4))
		buf.WriteUint32(uint32(count))
	}
	buf.Append(payload)
	return nil
}

func encodeMap(buf *buffer.Buffer, entries []MapEntry) error {
	body := buffer.New(nil)
	for _, e := range entries {
		if err := EncodeConstructor(body, e.Key); err != nil {
			return err
		}
		if err := EncodeConstructor(body, e.Value); err != nil {
			return err
		}
	}
	payload := body.Detach()
	count := len(entries) * 2
	if len(payload)+1 <= 0xff && count <= 0xff {
		buf.WriteByte(byte(FormatCodeMap8))
		buf.WriteByte(byte(len(payload) + 1))
		buf.WriteByte(byte(count))
	} else {
		buf.WriteByte(byte(FormatCodeMap32))
		buf.WriteUint32(uint32(len(payload) + 4))
		buf.WriteUint32(uint32(count))
	}
	buf.Append(payload)
	return nil
}

func encodeArray(buf *buffer.Buffer, av ArrayValue) error {
	body := buffer.New(nil)
	if av.Descriptor != nil {
		body.WriteByte(byte(FormatCodeNonPrimitive))
		if err := EncodeConstructor(body, *av.Descriptor); err != nil {
			return err
		}
	}
	body.WriteByte(byte(av.ElementCode))
	for _, el := range av.Elements {
		if err := encodePrimitiveBodyOnly(body, av.ElementCode, el); err != nil {
			return err
		}
	}
	payload := body.Detach()
	count := len(av.Elements)
	if len(payload)+1 <= 0xff && count <= 0xff {
		buf.WriteByte(byte(FormatCodeArray8))
		buf.WriteByte(byte(len(payload) + 1))
		buf.WriteByte(byte(count))
	} else {
		buf.WriteByte(byte(FormatCodeArray32))
		buf.WriteUint32(uint32(len(payload) + 4))
		buf.WriteUint32(uint32(count))
	}
	buf.Append(payload)
	return nil
}

// encodePrimitiveBodyOnly writes just the body bytes for a primitive
// whose format code has already been written once for the whole array.
func encodePrimitiveBodyOnly(buf *buffer.Buffer, code FormatCode, p Primitive) error {
	switch WidthOf(code) {
	case WidthVariable1:
		b := p.AsBytes()
		if len(b) > 0xff {
			return errors.Errorf("encoding: %d octets do not fit array element code %#x", len(b), byte(code))
		}
		buf.WriteByte(byte(len(b)))
		buf.Append(b)
		return nil
	case WidthVariable4:
		b := p.AsBytes()
		buf.WriteUint32(uint32(len(b)))
		buf.Append(b)
		return nil
	}
	tmp := buffer.New(nil)
	if err := EncodePrimitive(tmp, p); err != nil {
		return err
	}
	full := tmp.Detach()
	if len(full) == 0 {
		return errors.New("encoding: empty primitive encoding")
	}
	// Drop the leading format-code byte; the array already wrote it once.
	buf.Append(full[1:])
	return nil
}
