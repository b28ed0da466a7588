package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/frames"
)

func TestLinkAttachHandshake(t *testing.T) {
	l := NewLink("l1", 0, false)
	require.NoError(t, l.SendAttach())
	require.NoError(t, l.HandleAttach(&frames.Attach{Name: "l1", Handle: 0}))
	assert.Equal(t, LinkAttached, l.State())
}

func TestSenderCannotSendWithZeroCredit(t *testing.T) {
	l := NewLink("l1", 0, false)
	assert.False(t, l.CanSend())
	require.Error(t, l.ConsumeCredit())
}

func TestFlowGrantsCreditAndSenderConsumesIt(t *testing.T) {
	l := NewLink("l1", 0, false)
	credit := uint32(3)
	l.ApplyFlow(&frames.Flow{LinkCredit: &credit})
	require.True(t, l.CanSend())
	require.NoError(t, l.ConsumeCredit())
	require.NoError(t, l.ConsumeCredit())
	require.NoError(t, l.ConsumeCredit())
	assert.False(t, l.CanSend())
}

func TestDrainExhaustsCredit(t *testing.T) {
	l := NewLink("l1", 0, false)
	credit := uint32(5)
	l.ApplyFlow(&frames.Flow{LinkCredit: &credit, Drain: true})
	l.ExhaustOnDrain()
	assert.False(t, l.CanSend())
	assert.Equal(t, uint32(5), l.DeliveryCount)
}

func TestTransferReassemblyAcrossMultipleFrames(t *testing.T) {
	l := NewLink("l1", 0, true)
	tag := []byte("tag-1")

	_, done, err := l.ReceiveTransfer(&frames.Transfer{Handle: 0, DeliveryTag: tag, More: true, Payload: []byte("hello ")})
	require.NoError(t, err)
	assert.False(t, done)

	d, done, err := l.ReceiveTransfer(&frames.Transfer{Handle: 0, More: false, Payload: []byte("world")})
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, "hello world", string(d.Payload))
	assert.Equal(t, tag, d.DeliveryTag)
}

func TestAbortedTransferDiscardsBuffer(t *testing.T) {
	l := NewLink("l1", 0, true)
	_, _, err := l.ReceiveTransfer(&frames.Transfer{Handle: 0, More: true, Payload: []byte("partial")})
	require.NoError(t, err)
	_, done, err := l.ReceiveTransfer(&frames.Transfer{Handle: 0, Aborted: true})
	require.NoError(t, err)
	assert.False(t, done)

	d, done, err := l.ReceiveTransfer(&frames.Transfer{Handle: 0, More: false, Payload: []byte("fresh")})
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, "fresh", string(d.Payload))
}

func TestUnsettledTracking(t *testing.T) {
	l := NewLink("l1", 0, false)
	tag := []byte("t1")
	l.MarkUnsettled(tag, &frames.Transfer{DeliveryTag: tag})
	assert.Equal(t, 1, l.UnsettledCount())
	l.Settle(tag)
	assert.Equal(t, 0, l.UnsettledCount())
}
