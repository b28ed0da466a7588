package frames

import (
	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/encoding"
)

// Performative is implemented by all nine composites this broker
// understands, mirroring the teacher's frameBody marker interface.
type Performative interface {
	Descriptor() string
	Marshal() encoding.Constructor
}

// DecodePerformative inspects body's descriptor and dispatches to the
// matching composite's Unmarshal. body must already be the Constructor
// decoded from the frame's first section (see C3/C4).
func DecodePerformative(body encoding.Constructor) (Performative, error) {
	if !body.Described {
		return nil, errors.New("frames: performative body is not a described composite")
	}
	name, ok := descriptorName(body.Descriptor.Value)
	if !ok {
		return nil, errors.New("frames: performative descriptor is not a symbol or string")
	}
	switch name {
	case DescriptorOpen:
		var p Open
		return &p, p.Unmarshal(body)
	case DescriptorBegin:
		var p Begin
		return &p, p.Unmarshal(body)
	case DescriptorAttach:
		var p Attach
		return &p, p.Unmarshal(body)
	case DescriptorFlow:
		var p Flow
		return &p, p.Unmarshal(body)
	case DescriptorTransfer:
		var p Transfer
		return &p, p.Unmarshal(body)
	case DescriptorDisposition:
		var p Disposition
		return &p, p.Unmarshal(body)
	case DescriptorDetach:
		var p Detach
		return &p, p.Unmarshal(body)
	case DescriptorEnd:
		var p End
		return &p, p.Unmarshal(body)
	case DescriptorClose:
		var p Close
		return &p, p.Unmarshal(body)
	default:
		return nil, errors.Errorf("frames: unknown performative descriptor %q", name)
	}
}

/*
<type name="open" class="composite" source="list" provides="frame">
    <descriptor name="amqp:open:list"/>
    <field name="container-id" type="string" mandatory="true"/>
    <field name="hostname" type="string"/>
    <field name="max-frame-size" type="uint" default="4294967295"/>
    <field name="channel-max" type="ushort" default="65535"/>
    <field name="idle-time-out" type="milliseconds"/>
    <field name="outgoing-locales" type="ietf-language-tag" multiple="true"/>
    <field name="incoming-locales" type="ietf-language-tag" multiple="true"/>
    <field name="offered-capabilities" type="symbol" multiple="true"/>
    <field name="desired-capabilities" type="symbol" multiple="true"/>
    <field name="properties" type="fields"/>
</type>
*/
type Open struct {
	ContainerID         string
	Hostname            string
	MaxFrameSize        uint32
	ChannelMax          uint16
	IdleTimeout         *uint32 // milliseconds; nil if absent
	OutgoingLocales     []string
	IncomingLocales     []string
	OfferedCapabilities []string
	DesiredCapabilities []string
	Properties          []encoding.MapEntry
}

func (o *Open) Descriptor() string { return DescriptorOpen }

func (o *Open) Marshal() encoding.Constructor {
	idle := nullConstructor()
	if o.IdleTimeout != nil {
		idle = u32Value(*o.IdleTimeout)
	}
	return marshalComposite(DescriptorOpen, []encoding.Constructor{
		stringValue(o.ContainerID),
		stringValue(o.Hostname),
		u32Value(o.MaxFrameSize),
		u16Value(o.ChannelMax),
		idle,
		multiSymbolValue(o.OutgoingLocales),
		multiSymbolValue(o.IncomingLocales),
		multiSymbolValue(o.OfferedCapabilities),
		multiSymbolValue(o.DesiredCapabilities),
		mapValue(o.Properties),
	})
}

func (o *Open) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorOpen)
	if err != nil {
		return err
	}
	if o.ContainerID, err = stringField(fieldAt(items, 0), "Open.ContainerID", true); err != nil {
		return err
	}
	if o.Hostname, err = stringField(fieldAt(items, 1), "Open.Hostname", false); err != nil {
		return err
	}
	if o.MaxFrameSize, err = uint32Field(fieldAt(items, 2), "Open.MaxFrameSize", false, 4294967295, true); err != nil {
		return err
	}
	if o.ChannelMax, err = uint16Field(fieldAt(items, 3), "Open.ChannelMax", false, 65535, true); err != nil {
		return err
	}
	if idleC := fieldAt(items, 4); !idleC.Value.IsNull() {
		v, err := uint32Field(idleC, "Open.IdleTimeout", false, 0, false)
		if err != nil {
			return err
		}
		o.IdleTimeout = &v
	}
	if o.OutgoingLocales, err = multiSymbolField(fieldAt(items, 5), "Open.OutgoingLocales"); err != nil {
		return err
	}
	if o.IncomingLocales, err = multiSymbolField(fieldAt(items, 6), "Open.IncomingLocales"); err != nil {
		return err
	}
	if o.OfferedCapabilities, err = multiSymbolField(fieldAt(items, 7), "Open.OfferedCapabilities"); err != nil {
		return err
	}
	if o.DesiredCapabilities, err = multiSymbolField(fieldAt(items, 8), "Open.DesiredCapabilities"); err != nil {
		return err
	}
	o.Properties, err = mapField(fieldAt(items, 9), "Open.Properties")
	return err
}

/*
<type name="begin" class="composite" source="list" provides="frame">
    <descriptor name="amqp:begin:list"/>
    <field name="remote-channel" type="ushort"/>
    <field name="next-outgoing-id" type="transfer-number" mandatory="true"/>
    <field name="incoming-window" type="uint" mandatory="true"/>
    <field name="outgoing-window" type="uint" mandatory="true"/>
    <field name="handle-max" type="handle" default="4294967295"/>
    <field name="offered-capabilities" type="symbol" multiple="true"/>
    <field name="desired-capabilities" type="symbol" multiple="true"/>
    <field name="properties" type="fields"/>
</type>
*/
type Begin struct {
	RemoteChannel       *uint16
	NextOutgoingID      uint32
	IncomingWindow      uint32
	OutgoingWindow      uint32
	HandleMax           uint32
	OfferedCapabilities []string
	DesiredCapabilities []string
	Properties          []encoding.MapEntry
}

func (b *Begin) Descriptor() string { return DescriptorBegin }

func (b *Begin) Marshal() encoding.Constructor {
	remote := nullConstructor()
	if b.RemoteChannel != nil {
		remote = u16Value(*b.RemoteChannel)
	}
	return marshalComposite(DescriptorBegin, []encoding.Constructor{
		remote,
		u32Value(b.NextOutgoingID),
		u32Value(b.IncomingWindow),
		u32Value(b.OutgoingWindow),
		u32Value(b.HandleMax),
		multiSymbolValue(b.OfferedCapabilities),
		multiSymbolValue(b.DesiredCapabilities),
		mapValue(b.Properties),
	})
}

func (b *Begin) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorBegin)
	if err != nil {
		return err
	}
	if rc := fieldAt(items, 0); !rc.Value.IsNull() {
		v, err := uint16Field(rc, "Begin.RemoteChannel", false, 0, false)
		if err != nil {
			return err
		}
		b.RemoteChannel = &v
	}
	if b.NextOutgoingID, err = uint32Field(fieldAt(items, 1), "Begin.NextOutgoingID", true, 0, false); err != nil {
		return err
	}
	if b.IncomingWindow, err = uint32Field(fieldAt(items, 2), "Begin.IncomingWindow", true, 0, false); err != nil {
		return err
	}
	if b.OutgoingWindow, err = uint32Field(fieldAt(items, 3), "Begin.OutgoingWindow", true, 0, false); err != nil {
		return err
	}
	if b.HandleMax, err = uint32Field(fieldAt(items, 4), "Begin.HandleMax", false, 4294967295, true); err != nil {
		return err
	}
	if b.OfferedCapabilities, err = multiSymbolField(fieldAt(items, 5), "Begin.OfferedCapabilities"); err != nil {
		return err
	}
	if b.DesiredCapabilities, err = multiSymbolField(fieldAt(items, 6), "Begin.DesiredCapabilities"); err != nil {
		return err
	}
	b.Properties, err = mapField(fieldAt(items, 7), "Begin.Properties")
	return err
}

/*
<type name="attach" class="composite" source="list" provides="frame">
    <descriptor name="amqp:attach:list"/>
    <field name="name" type="string" mandatory="true"/>
    <field name="handle" type="handle" mandatory="true"/>
    <field name="role" type="role" mandatory="true"/>
    <field name="snd-settle-mode" type="sender-settle-mode" default="mixed"/>
    <field name="rcv-settle-mode" type="receiver-settle-mode" default="first"/>
    <field name="source" type="*" requires="source"/>
    <field name="target" type="*" requires="target"/>
    <field name="unsettled" type="map"/>
    <field name="incomplete-unsettled" type="boolean" default="false"/>
    <field name="initial-delivery-count" type="sequence-no"/>
    <field name="max-message-size" type="ulong"/>
    <field name="offered-capabilities" type="symbol" multiple="true"/>
    <field name="desired-capabilities" type="symbol" multiple="true"/>
    <field name="properties" type="fields"/>
</type>
*/
type Attach struct {
	Name                string
	Handle              uint32
	Role                bool // false = sender, true = receiver
	SenderSettleMode    uint8
	ReceiverSettleMode  uint8
	Source              encoding.Constructor
	Target              encoding.Constructor
	Unsettled           []encoding.MapEntry
	IncompleteUnsettled bool
	InitialDeliveryCount *uint32
	MaxMessageSize       *uint64
	OfferedCapabilities  []string
	DesiredCapabilities  []string
	Properties           []encoding.MapEntry
}

func (a *Attach) Descriptor() string { return DescriptorAttach }

func (a *Attach) Marshal() encoding.Constructor {
	idc := nullConstructor()
	if a.InitialDeliveryCount != nil {
		idc = u32Value(*a.InitialDeliveryCount)
	}
	mms := nullConstructor()
	if a.MaxMessageSize != nil {
		mms = u64Value(*a.MaxMessageSize)
	}
	return marshalComposite(DescriptorAttach, []encoding.Constructor{
		stringValue(a.Name),
		u32Value(a.Handle),
		boolValue(a.Role),
		u8Value(a.SenderSettleMode),
		u8Value(a.ReceiverSettleMode),
		anyField(a.Source),
		anyField(a.Target),
		mapValue(a.Unsettled),
		boolValue(a.IncompleteUnsettled),
		idc,
		mms,
		multiSymbolValue(a.OfferedCapabilities),
		multiSymbolValue(a.DesiredCapabilities),
		mapValue(a.Properties),
	})
}

func (a *Attach) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorAttach)
	if err != nil {
		return err
	}
	if a.Name, err = stringField(fieldAt(items, 0), "Attach.Name", true); err != nil {
		return err
	}
	if a.Handle, err = uint32Field(fieldAt(items, 1), "Attach.Handle", true, 0, false); err != nil {
		return err
	}
	if a.Role, err = boolField(fieldAt(items, 2), "Attach.Role", true, false, false); err != nil {
		return err
	}
	if a.SenderSettleMode, err = uint8Field(fieldAt(items, 3), "Attach.SenderSettleMode", false, 2, true); err != nil {
		return err
	}
	if a.ReceiverSettleMode, err = uint8Field(fieldAt(items, 4), "Attach.ReceiverSettleMode", false, 0, true); err != nil {
		return err
	}
	a.Source = anyField(fieldAt(items, 5))
	a.Target = anyField(fieldAt(items, 6))
	if a.Unsettled, err = mapField(fieldAt(items, 7), "Attach.Unsettled"); err != nil {
		return err
	}
	if a.IncompleteUnsettled, err = boolField(fieldAt(items, 8), "Attach.IncompleteUnsettled", false, false, true); err != nil {
		return err
	}
	if idc := fieldAt(items, 9); !idc.Value.IsNull() {
		v, err := uint32Field(idc, "Attach.InitialDeliveryCount", false, 0, false)
		if err != nil {
			return err
		}
		a.InitialDeliveryCount = &v
	}
	if mms := fieldAt(items, 10); !mms.Value.IsNull() {
		v, err := uint64Field(mms, "Attach.MaxMessageSize", false, 0, false)
		if err != nil {
			return err
		}
		a.MaxMessageSize = &v
	}
	if a.OfferedCapabilities, err = multiSymbolField(fieldAt(items, 11), "Attach.OfferedCapabilities"); err != nil {
		return err
	}
	if a.DesiredCapabilities, err = multiSymbolField(fieldAt(items, 12), "Attach.DesiredCapabilities"); err != nil {
		return err
	}
	a.Properties, err = mapField(fieldAt(items, 13), "Attach.Properties")
	return err
}

/*
<type name="flow" class="composite" source="list" provides="frame">
    <descriptor name="amqp:flow:list"/>
    <field name="next-incoming-id" type="transfer-number"/>
    <field name="incoming-window" type="uint" mandatory="true"/>
    <field name="next-outgoing-id" type="transfer-number" mandatory="true"/>
    <field name="outgoing-window" type="uint" mandatory="true"/>
    <field name="handle" type="handle"/>
    <field name="delivery-count" type="sequence-no"/>
    <field name="link-credit" type="uint"/>
    <field name="available" type="uint"/>
    <field name="drain" type="boolean" default="false"/>
    <field name="echo" type="boolean" default="false"/>
    <field name="properties" type="fields"/>
</type>
*/
type Flow struct {
	NextIncomingID *uint32
	IncomingWindow uint32
	NextOutgoingID uint32
	OutgoingWindow uint32
	Handle         *uint32
	DeliveryCount  *uint32
	LinkCredit     *uint32
	Available      *uint32
	Drain          bool
	Echo           bool
	Properties     []encoding.MapEntry
}

func (f *Flow) Descriptor() string { return DescriptorFlow }

func optU32(v *uint32) encoding.Constructor {
	if v == nil {
		return nullConstructor()
	}
	return u32Value(*v)
}

func (f *Flow) Marshal() encoding.Constructor {
	return marshalComposite(DescriptorFlow, []encoding.Constructor{
		optU32(f.NextIncomingID),
		u32Value(f.IncomingWindow),
		u32Value(f.NextOutgoingID),
		u32Value(f.OutgoingWindow),
		optU32(f.Handle),
		optU32(f.DeliveryCount),
		optU32(f.LinkCredit),
		optU32(f.Available),
		boolValue(f.Drain),
		boolValue(f.Echo),
		mapValue(f.Properties),
	})
}

func readOptU32(c encoding.Constructor, name string) (*uint32, error) {
	if c.Value.IsNull() {
		return nil, nil
	}
	v, err := uint32Field(c, name, false, 0, false)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (f *Flow) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorFlow)
	if err != nil {
		return err
	}
	if f.NextIncomingID, err = readOptU32(fieldAt(items, 0), "Flow.NextIncomingID"); err != nil {
		return err
	}
	if f.IncomingWindow, err = uint32Field(fieldAt(items, 1), "Flow.IncomingWindow", true, 0, false); err != nil {
		return err
	}
	if f.NextOutgoingID, err = uint32Field(fieldAt(items, 2), "Flow.NextOutgoingID", true, 0, false); err != nil {
		return err
	}
	if f.OutgoingWindow, err = uint32Field(fieldAt(items, 3), "Flow.OutgoingWindow", true, 0, false); err != nil {
		return err
	}
	if f.Handle, err = readOptU32(fieldAt(items, 4), "Flow.Handle"); err != nil {
		return err
	}
	if f.DeliveryCount, err = readOptU32(fieldAt(items, 5), "Flow.DeliveryCount"); err != nil {
		return err
	}
	if f.LinkCredit, err = readOptU32(fieldAt(items, 6), "Flow.LinkCredit"); err != nil {
		return err
	}
	if f.Available, err = readOptU32(fieldAt(items, 7), "Flow.Available"); err != nil {
		return err
	}
	if f.Drain, err = boolField(fieldAt(items, 8), "Flow.Drain", false, false, true); err != nil {
		return err
	}
	if f.Echo, err = boolField(fieldAt(items, 9), "Flow.Echo", false, false, true); err != nil {
		return err
	}
	f.Properties, err = mapField(fieldAt(items, 10), "Flow.Properties")
	return err
}

/*
<type name="transfer" class="composite" source="list" provides="frame">
    <descriptor name="amqp:transfer:list"/>
    <field name="handle" type="handle" mandatory="true"/>
    <field name="delivery-id" type="delivery-number"/>
    <field name="delivery-tag" type="delivery-tag"/>
    <field name="message-format" type="message-format"/>
    <field name="settled" type="boolean"/>
    <field name="more" type="boolean" default="false"/>
    <field name="rcv-settle-mode" type="receiver-settle-mode"/>
    <field name="state" type="*" requires="delivery-state"/>
    <field name="resume" type="boolean" default="false"/>
    <field name="aborted" type="boolean" default="false"/>
    <field name="batchable" type="boolean" default="false"/>
</type>
*/
type Transfer struct {
	Handle         uint32
	DeliveryID     *uint32
	DeliveryTag    []byte // <= 32 octets
	MessageFormat  *uint32
	Settled        *bool
	More           bool
	ReceiverSettleMode *uint8
	State          encoding.Constructor
	Resume         bool
	Aborted        bool
	Batchable      bool

	// Payload is the opaque message-format-defined bytes that follow this
	// performative within the same frame body; C5 never interprets it.
	Payload []byte
}

func (t *Transfer) Descriptor() string { return DescriptorTransfer }

func (t *Transfer) Marshal() encoding.Constructor {
	settled := nullConstructor()
	if t.Settled != nil {
		settled = boolValue(*t.Settled)
	}
	rsm := nullConstructor()
	if t.ReceiverSettleMode != nil {
		rsm = u8Value(*t.ReceiverSettleMode)
	}
	return marshalComposite(DescriptorTransfer, []encoding.Constructor{
		u32Value(t.Handle),
		optU32(t.DeliveryID),
		binaryValue(t.DeliveryTag),
		optU32(t.MessageFormat),
		settled,
		boolValue(t.More),
		rsm,
		anyField(t.State),
		boolValue(t.Resume),
		boolValue(t.Aborted),
		boolValue(t.Batchable),
	})
}

func (t *Transfer) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorTransfer)
	if err != nil {
		return err
	}
	if t.Handle, err = uint32Field(fieldAt(items, 0), "Transfer.Handle", true, 0, false); err != nil {
		return err
	}
	if t.DeliveryID, err = readOptU32(fieldAt(items, 1), "Transfer.DeliveryID"); err != nil {
		return err
	}
	if t.DeliveryTag, err = binaryField(fieldAt(items, 2), "Transfer.DeliveryTag", 32); err != nil {
		return err
	}
	if t.MessageFormat, err = readOptU32(fieldAt(items, 3), "Transfer.MessageFormat"); err != nil {
		return err
	}
	if sc := fieldAt(items, 4); !sc.Value.IsNull() {
		v, err := boolField(sc, "Transfer.Settled", false, false, false)
		if err != nil {
			return err
		}
		t.Settled = &v
	}
	if t.More, err = boolField(fieldAt(items, 5), "Transfer.More", false, false, true); err != nil {
		return err
	}
	if rc := fieldAt(items, 6); !rc.Value.IsNull() {
		v, err := uint8Field(rc, "Transfer.ReceiverSettleMode", false, 0, false)
		if err != nil {
			return err
		}
		t.ReceiverSettleMode = &v
	}
	t.State = anyField(fieldAt(items, 7))
	if t.Resume, err = boolField(fieldAt(items, 8), "Transfer.Resume", false, false, true); err != nil {
		return err
	}
	if t.Aborted, err = boolField(fieldAt(items, 9), "Transfer.Aborted", false, false, true); err != nil {
		return err
	}
	t.Batchable, err = boolField(fieldAt(items, 10), "Transfer.Batchable", false, false, true)
	return err
}

/*
<type name="disposition" class="composite" source="list" provides="frame">
    <descriptor name="amqp:disposition:list"/>
    <field name="role" type="role" mandatory="true"/>
    <field name="first" type="delivery-number" mandatory="true"/>
    <field name="last" type="delivery-number"/>
    <field name="settled" type="boolean" default="false"/>
    <field name="state" type="*" requires="delivery-state"/>
    <field name="batchable" type="boolean" default="false"/>
</type>
*/
type Disposition struct {
	Role      bool
	First     uint32
	Last      *uint32
	Settled   bool
	State     encoding.Constructor
	Batchable bool
}

func (d *Disposition) Descriptor() string { return DescriptorDisposition }

func (d *Disposition) Marshal() encoding.Constructor {
	return marshalComposite(DescriptorDisposition, []encoding.Constructor{
		boolValue(d.Role),
		u32Value(d.First),
		optU32(d.Last),
		boolValue(d.Settled),
		anyField(d.State),
		boolValue(d.Batchable),
	})
}

func (d *Disposition) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorDisposition)
	if err != nil {
		return err
	}
	if d.Role, err = boolField(fieldAt(items, 0), "Disposition.Role", true, false, false); err != nil {
		return err
	}
	if d.First, err = uint32Field(fieldAt(items, 1), "Disposition.First", true, 0, false); err != nil {
		return err
	}
	if d.Last, err = readOptU32(fieldAt(items, 2), "Disposition.Last"); err != nil {
		return err
	}
	if d.Settled, err = boolField(fieldAt(items, 3), "Disposition.Settled", false, false, true); err != nil {
		return err
	}
	d.State = anyField(fieldAt(items, 4))
	d.Batchable, err = boolField(fieldAt(items, 5), "Disposition.Batchable", false, false, true)
	return err
}

/*
<type name="detach" class="composite" source="list" provides="frame">
    <descriptor name="amqp:detach:list"/>
    <field name="handle" type="handle" mandatory="true"/>
    <field name="closed" type="boolean" default="false"/>
    <field name="error" type="error"/>
</type>
*/
type Detach struct {
	Handle uint32
	Closed bool
	Error  *Error
}

func (d *Detach) Descriptor() string { return DescriptorDetach }

func (d *Detach) Marshal() encoding.Constructor {
	errC := nullConstructor()
	if d.Error != nil {
		errC = d.Error.Marshal()
	}
	return marshalComposite(DescriptorDetach, []encoding.Constructor{
		u32Value(d.Handle),
		boolValue(d.Closed),
		errC,
	})
}

func (d *Detach) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorDetach)
	if err != nil {
		return err
	}
	if d.Handle, err = uint32Field(fieldAt(items, 0), "Detach.Handle", true, 0, false); err != nil {
		return err
	}
	if d.Closed, err = boolField(fieldAt(items, 1), "Detach.Closed", false, false, true); err != nil {
		return err
	}
	if ec := fieldAt(items, 2); !ec.Value.IsNull() {
		var e Error
		if err := e.Unmarshal(ec); err != nil {
			return err
		}
		d.Error = &e
	}
	return nil
}

/*
<type name="end" class="composite" source="list" provides="frame">
    <descriptor name="amqp:end:list"/>
    <field name="error" type="error"/>
</type>
*/
type End struct {
	Error *Error
}

func (e *End) Descriptor() string { return DescriptorEnd }

func (e *End) Marshal() encoding.Constructor {
	errC := nullConstructor()
	if e.Error != nil {
		errC = e.Error.Marshal()
	}
	return marshalComposite(DescriptorEnd, []encoding.Constructor{errC})
}

func (e *End) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorEnd)
	if err != nil {
		return err
	}
	if ec := fieldAt(items, 0); !ec.Value.IsNull() {
		var inner Error
		if err := inner.Unmarshal(ec); err != nil {
			return err
		}
		e.Error = &inner
	}
	return nil
}

/*
<type name="close" class="composite" source="list" provides="frame">
    <descriptor name="amqp:close:list"/>
    <field name="error" type="error"/>
</type>
*/
type Close struct {
	Error *Error
}

func (c *Close) Descriptor() string { return DescriptorClose }

func (c *Close) Marshal() encoding.Constructor {
	errC := nullConstructor()
	if c.Error != nil {
		errC = c.Error.Marshal()
	}
	return marshalComposite(DescriptorClose, []encoding.Constructor{errC})
}

func (c *Close) Unmarshal(body encoding.Constructor) error {
	items, err := unmarshalComposite(body, DescriptorClose)
	if err != nil {
		return err
	}
	if ec := fieldAt(items, 0); !ec.Value.IsNull() {
		var inner Error
		if err := inner.Unmarshal(ec); err != nil {
			return err
		}
		c.Error = &inner
	}
	return nil
}
