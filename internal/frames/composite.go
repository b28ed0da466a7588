package frames

import (
	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/encoding"
)

// Descriptor names for the nine performatives and the Error sub-record,
// per spec.md §6.3. The decoder identifies a composite by this symbol,
// not by its numeric AMQP descriptor code — narrower than full AMQP 1.0
// but sufficient for the nine performatives this broker speaks.
const (
	DescriptorOpen        = "amqp:open:list"
	DescriptorBegin       = "amqp:begin:list"
	DescriptorAttach      = "amqp:attach:list"
	DescriptorFlow        = "amqp:flow:list"
	DescriptorTransfer    = "amqp:transfer:list"
	DescriptorDisposition = "amqp:disposition:list"
	DescriptorDetach      = "amqp:detach:list"
	DescriptorEnd         = "amqp:end:list"
	DescriptorClose       = "amqp:close:list"
	DescriptorError       = "amqp:error:list"
)

// marshalComposite builds the Described(Symbol(name), List(fields))
// constructor for one performative, trimming trailing Null fields so
// an all-default tail doesn't bloat the wire encoding — mirroring the
// teacher's own marshalComposite/marshalField "omit" convention, just
// expressed over the Constructor tree instead of native Go fields.
func marshalComposite(name string, fields []encoding.Constructor) encoding.Constructor {
	count := len(fields)
	for count > 0 && fields[count-1].Value.IsNull() && !fields[count-1].Described {
		count--
	}
	descriptor := encoding.PrimitiveConstructor(encoding.Symbol(name))
	return encoding.DescribedConstructor(descriptor, encoding.List(fields[:count]))
}

// unmarshalComposite validates body is Described by wantName with a
// List value, and returns its element list.
func unmarshalComposite(body encoding.Constructor, wantName string) ([]encoding.Constructor, error) {
	if !body.Described {
		return nil, errors.Errorf("frames: expected described composite %s, got bare primitive", wantName)
	}
	name, ok := descriptorName(body.Descriptor.Value)
	if !ok || name != wantName {
		return nil, errors.Errorf("frames: expected descriptor %s, got %q", wantName, name)
	}
	if body.Value.Kind != encoding.KindList {
		return nil, errors.Errorf("frames: %s body is not a list", wantName)
	}
	return body.Value.List, nil
}

func descriptorName(p encoding.Primitive) (string, bool) {
	if p.Kind == encoding.KindSymbol || p.Kind == encoding.KindString {
		return p.AsString(), true
	}
	return "", false
}

// fieldAt returns the i'th list element, or a Null constructor if the
// list has fewer elements — spec.md §4.5's "missing trailing fields are
// null" rule.
func fieldAt(items []encoding.Constructor, i int) encoding.Constructor {
	if i >= len(items) {
		return encoding.PrimitiveConstructor(encoding.Null())
	}
	return items[i]
}

// --- scalar field converters ---
//
// Each returns the decoded Go value; mandatory fields with no default
// error on Null, fields with a default substitute it on Null, and
// purely optional fields return their Go zero value on Null.

func uint32Field(c encoding.Constructor, name string, mandatory bool, def uint32, hasDefault bool) (uint32, error) {
	if c.Value.IsNull() {
		if mandatory && !hasDefault {
			return 0, errors.Errorf("%s is required", name)
		}
		return def, nil
	}
	if c.Value.Kind != encoding.KindUInt {
		return 0, errors.Errorf("%s: expected uint, got %v", name, c.Value.Kind)
	}
	return c.Value.AsUint32(), nil
}

func uint16Field(c encoding.Constructor, name string, mandatory bool, def uint16, hasDefault bool) (uint16, error) {
	if c.Value.IsNull() {
		if mandatory && !hasDefault {
			return 0, errors.Errorf("%s is required", name)
		}
		return def, nil
	}
	if c.Value.Kind != encoding.KindUShort {
		return 0, errors.Errorf("%s: expected ushort, got %v", name, c.Value.Kind)
	}
	return c.Value.AsUint16(), nil
}

func uint8Field(c encoding.Constructor, name string, mandatory bool, def uint8, hasDefault bool) (uint8, error) {
	if c.Value.IsNull() {
		if mandatory && !hasDefault {
			return 0, errors.Errorf("%s is required", name)
		}
		return def, nil
	}
	if c.Value.Kind != encoding.KindUByte {
		return 0, errors.Errorf("%s: expected ubyte, got %v", name, c.Value.Kind)
	}
	return c.Value.AsUint8(), nil
}

func uint64Field(c encoding.Constructor, name string, mandatory bool, def uint64, hasDefault bool) (uint64, error) {
	if c.Value.IsNull() {
		if mandatory && !hasDefault {
			return 0, errors.Errorf("%s is required", name)
		}
		return def, nil
	}
	if c.Value.Kind != encoding.KindULong {
		return 0, errors.Errorf("%s: expected ulong, got %v", name, c.Value.Kind)
	}
	return c.Value.AsUint64(), nil
}

func boolField(c encoding.Constructor, name string, mandatory bool, def bool, hasDefault bool) (bool, error) {
	if c.Value.IsNull() {
		if mandatory && !hasDefault {
			return false, errors.Errorf("%s is required", name)
		}
		return def, nil
	}
	if c.Value.Kind != encoding.KindBool {
		return false, errors.Errorf("%s: expected boolean, got %v", name, c.Value.Kind)
	}
	return c.Value.AsBool(), nil
}

func stringField(c encoding.Constructor, name string, mandatory bool) (string, error) {
	if c.Value.IsNull() {
		if mandatory {
			return "", errors.Errorf("%s is required", name)
		}
		return "", nil
	}
	if c.Value.Kind != encoding.KindString {
		return "", errors.Errorf("%s: expected string, got %v", name, c.Value.Kind)
	}
	return c.Value.AsString(), nil
}

func binaryField(c encoding.Constructor, name string, maxLen int) ([]byte, error) {
	if c.Value.IsNull() {
		return nil, nil
	}
	if c.Value.Kind != encoding.KindBinary {
		return nil, errors.Errorf("%s: expected binary, got %v", name, c.Value.Kind)
	}
	b := c.Value.AsBytes()
	if maxLen > 0 && len(b) > maxLen {
		return nil, errors.Errorf("%s: %d octets exceeds max %d", name, len(b), maxLen)
	}
	return b, nil
}

// multiSymbolField accepts Null (-> nil), a single Symbol (-> one
// element), or an Array/List of Symbols, per spec.md §4.5's
// multiple="true" rule.
func multiSymbolField(c encoding.Constructor, name string) ([]string, error) {
	switch {
	case c.Value.IsNull():
		return nil, nil
	case c.Value.Kind == encoding.KindSymbol:
		return []string{c.Value.AsString()}, nil
	case c.Value.Kind == encoding.KindArray:
		out := make([]string, 0, len(c.Value.Array.Elements))
		for _, el := range c.Value.Array.Elements {
			if el.Kind != encoding.KindSymbol {
				return nil, errors.Errorf("%s: array element is not a symbol", name)
			}
			out = append(out, el.AsString())
		}
		return out, nil
	case c.Value.Kind == encoding.KindList:
		out := make([]string, 0, len(c.Value.List))
		for _, el := range c.Value.List {
			if el.Value.Kind != encoding.KindSymbol {
				return nil, errors.Errorf("%s: list element is not a symbol", name)
			}
			out = append(out, el.Value.AsString())
		}
		return out, nil
	default:
		return nil, errors.Errorf("%s: unexpected kind %v for multiple field", name, c.Value.Kind)
	}
}

func multiSymbolValue(syms []string) encoding.Constructor {
	if len(syms) == 0 {
		return encoding.PrimitiveConstructor(encoding.Null())
	}
	if len(syms) == 1 {
		return encoding.PrimitiveConstructor(encoding.Symbol(syms[0]))
	}
	elements := make([]encoding.Primitive, len(syms))
	for i, s := range syms {
		elements[i] = encoding.Symbol(s)
	}
	return encoding.PrimitiveConstructor(encoding.Array(encoding.ArrayValue{
		ElementCode: encoding.FormatCodeSym32,
		Elements:    elements,
	}))
}

// mapField returns the raw Map entries (Null -> nil), used for
// `properties`/`info`/`unsettled` fields whose keys and value types are
// open-ended ("fields"/"map" type in the AMQP type system).
func mapField(c encoding.Constructor, name string) ([]encoding.MapEntry, error) {
	if c.Value.IsNull() {
		return nil, nil
	}
	if c.Value.Kind != encoding.KindMap {
		return nil, errors.Errorf("%s: expected map, got %v", name, c.Value.Kind)
	}
	return c.Value.Map, nil
}

func mapValue(entries []encoding.MapEntry) encoding.Constructor {
	if len(entries) == 0 {
		return encoding.PrimitiveConstructor(encoding.Null())
	}
	return encoding.PrimitiveConstructor(encoding.Map(entries))
}

// anyField passes an open-typed field (source/target/state) through
// untouched — C5 performs no semantic validation of these per spec.md
// §4.5, and nothing else in this repo interprets them.
func anyField(c encoding.Constructor) encoding.Constructor { return c }

func u32Value(v uint32) encoding.Constructor { return encoding.PrimitiveConstructor(encoding.UInt(v)) }
func u16Value(v uint16) encoding.Constructor {
	return encoding.PrimitiveConstructor(encoding.UShort(v))
}
func u8Value(v uint8) encoding.Constructor  { return encoding.PrimitiveConstructor(encoding.UByte(v)) }
func u64Value(v uint64) encoding.Constructor {
	return encoding.PrimitiveConstructor(encoding.ULong(v))
}
func boolValue(v bool) encoding.Constructor { return encoding.PrimitiveConstructor(encoding.Bool(v)) }
func stringValue(s string) encoding.Constructor {
	if s == "" {
		return encoding.PrimitiveConstructor(encoding.Null())
	}
	return encoding.PrimitiveConstructor(encoding.String(s))
}
func binaryValue(b []byte) encoding.Constructor {
	if len(b) == 0 {
		return encoding.PrimitiveConstructor(encoding.Null())
	}
	return encoding.PrimitiveConstructor(encoding.Binary(b))
}

func nullConstructor() encoding.Constructor { return encoding.PrimitiveConstructor(encoding.Null()) }
