package frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/buffer"
	"github.com/amqp-broker/brokerd/internal/encoding"
)

func TestOpenRoundTrip(t *testing.T) {
	o := &Open{
		ContainerID:  "broker-1",
		Hostname:     "localhost",
		MaxFrameSize: 65536,
		ChannelMax:   128,
	}
	c := o.Marshal()

	buf := buffer.New(nil)
	require.NoError(t, encoding.EncodeConstructor(buf, c))
	decoded, err := encoding.DecodeConstructor(buffer.New(buf.Detach()), 0)
	require.NoError(t, err)

	perf, err := DecodePerformative(decoded)
	require.NoError(t, err)
	got, ok := perf.(*Open)
	require.True(t, ok)
	assert.Equal(t, "broker-1", got.ContainerID)
	assert.Equal(t, "localhost", got.Hostname)
	assert.Equal(t, uint32(65536), got.MaxFrameSize)
	assert.Equal(t, uint16(128), got.ChannelMax)
}

func TestOpenMissingContainerIDFails(t *testing.T) {
	items := []encoding.Constructor{} // empty list -> ContainerID is Null
	body := marshalComposite(DescriptorOpen, items)
	var o Open
	err := o.Unmarshal(body)
	require.Error(t, err)
}

func TestOpenDefaultsApplyWhenFieldsOmitted(t *testing.T) {
	// Only ContainerID present; everything after it is trimmed by
	// marshalComposite, so defaults must still apply on decode.
	body := marshalComposite(DescriptorOpen, []encoding.Constructor{
		stringValue("only-required"),
	})
	var o Open
	require.NoError(t, o.Unmarshal(body))
	assert.Equal(t, uint32(4294967295), o.MaxFrameSize)
	assert.Equal(t, uint16(65535), o.ChannelMax)
}

func TestAttachRoleAndSettleModes(t *testing.T) {
	a := &Attach{Name: "link-1", Handle: 7, Role: true}
	body := a.Marshal()
	var decoded Attach
	require.NoError(t, decoded.Unmarshal(body))
	assert.Equal(t, "link-1", decoded.Name)
	assert.Equal(t, uint32(7), decoded.Handle)
	assert.True(t, decoded.Role)
	// Marshal writes zero-valued settle modes explicitly, so they decode as 0.
	assert.Equal(t, uint8(0), decoded.SenderSettleMode)
	assert.Equal(t, uint8(0), decoded.ReceiverSettleMode)
}

func TestTransferDeliveryTagMaxLength(t *testing.T) {
	tag := make([]byte, 33)
	body := marshalComposite(DescriptorTransfer, []encoding.Constructor{
		u32Value(1),
		nullConstructor(),
		binaryValue(tag),
	})
	var tr Transfer
	err := tr.Unmarshal(body)
	require.Error(t, err)
}

func TestCloseWithError(t *testing.T) {
	c := &Close{Error: &Error{Condition: ConditionFramingError, Description: "bad frame"}}
	body := c.Marshal()
	var decoded Close
	require.NoError(t, decoded.Unmarshal(body))
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ConditionFramingError, decoded.Error.Condition)
	assert.Equal(t, "bad frame", decoded.Error.Description)
}

func TestFlowOptionalFieldsRoundTrip(t *testing.T) {
	credit := uint32(50)
	f := &Flow{IncomingWindow: 10, NextOutgoingID: 1, OutgoingWindow: 10, LinkCredit: &credit}
	body := f.Marshal()
	var decoded Flow
	require.NoError(t, decoded.Unmarshal(body))
	require.NotNil(t, decoded.LinkCredit)
	assert.Equal(t, uint32(50), *decoded.LinkCredit)
	assert.Nil(t, decoded.Handle)
}
