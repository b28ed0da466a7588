package frames

import (
	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/encoding"
)

// Condition values from spec.md §7's error taxonomy. Not exhaustive of
// the full AMQP 1.0 condition registry; the state machines in this repo
// raise only some of the values listed here.
const (
	ConditionFramingError           = "amqp:connection:framing-error"
	ConditionConnectionForced       = "amqp:connection:forced"
	ConditionDecodeError            = "amqp:decode-error"
	ConditionInvalidField           = "amqp:invalid-field"
	ConditionNotAllowed             = "amqp:not-allowed"
	ConditionLinkHandleInUse        = "amqp:link:handle-in-use"
	ConditionSessionHandleMaxExceeded = "amqp:session:handle-max-exceeded"
	ConditionLinkTransferLimitExceeded = "amqp:link:transfer-limit-exceeded"
)

/*
<type name="error" class="composite" source="list">
    <descriptor name="amqp:error:list"/>
    <field name="condition" type="symbol" mandatory="true"/>
    <field name="description" type="string"/>
    <field name="info" type="fields"/>
</type>
*/
type Error struct {
	Condition   string
	Description string
	Info        []encoding.MapEntry
}

func (e *Error) Marshal() encoding.Constructor {
	return marshalComposite(DescriptorError, []encoding.Constructor{
		encoding.PrimitiveConstructor(encoding.Symbol(e.Condition)),
		stringValue(e.Description),
		mapValue(e.Info),
	})
}

func (e *Error) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorError)
	if err != nil {
		return err
	}
	cond := fieldAt(items, 0)
	if cond.Value.Kind != encoding.KindSymbol {
		return errors.New("frames: Error.Condition is required and must be a symbol")
	}
	e.Condition = cond.Value.AsString()
	if e.Description, err = stringField(fieldAt(items, 1), "Error.Description", false); err != nil {
		return err
	}
	e.Info, err = mapField(fieldAt(items, 2), "Error.Info")
	return err
}
