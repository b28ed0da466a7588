package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/frames"
)

func TestConnectionOpenHandshakeAsInitiator(t *testing.T) {
	c := NewConnection("conn-1", "broker", nil)
	require.NoError(t, c.SendOpen())
	assert.Equal(t, StateOpenSent, c.State())

	idle := uint32(10000)
	require.NoError(t, c.HandleOpen(&frames.Open{ContainerID: "peer", MaxFrameSize: 1024, ChannelMax: 10, IdleTimeout: &idle}))
	assert.Equal(t, StateOpened, c.State())
	assert.Equal(t, uint32(1024), c.EffectiveMaxFrameSize)
	assert.Equal(t, uint16(10), c.EffectiveChannelMax)
	assert.Equal(t, uint32(5000), c.EffectiveIdleTimeout)
}

func TestConnectionMaxFrameSizeFloorsAt512(t *testing.T) {
	c := NewConnection("conn-1", "broker", nil)
	c.LocalMaxFrameSize = 4294967295
	require.NoError(t, c.SendOpen())
	require.NoError(t, c.HandleOpen(&frames.Open{ContainerID: "peer", MaxFrameSize: 100, ChannelMax: 1}))
	assert.Equal(t, uint32(512), c.EffectiveMaxFrameSize)
}

func TestConnectionOpenHandshakeAsResponder(t *testing.T) {
	c := NewConnection("conn-1", "broker", nil)
	require.NoError(t, c.HandleOpen(&frames.Open{ContainerID: "peer", MaxFrameSize: 4096, ChannelMax: 5}))
	assert.Equal(t, StateOpenRcvd, c.State())
	require.NoError(t, c.FinalizeOpenRcvd())
	assert.Equal(t, StateOpened, c.State())
}

func TestConnectionDuplicateOpenIsProtocolViolation(t *testing.T) {
	c := NewConnection("conn-1", "broker", nil)
	require.NoError(t, c.SendOpen())
	require.NoError(t, c.HandleOpen(&frames.Open{ContainerID: "peer"}))
	err := c.HandleOpen(&frames.Open{ContainerID: "peer"})
	require.Error(t, err)
	var pv *ProtocolViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, frames.ConditionFramingError, pv.Condition)
}

func TestConnectionCloseSequence(t *testing.T) {
	c := NewConnection("conn-1", "broker", nil)
	require.NoError(t, c.SendOpen())
	require.NoError(t, c.HandleOpen(&frames.Open{ContainerID: "peer"}))

	replyNeeded, err := c.HandleClose()
	require.NoError(t, err)
	assert.True(t, replyNeeded)
	assert.Equal(t, StateEnd, c.State())
}

func TestSessionChannelDemuxUnknownChannel(t *testing.T) {
	c := NewConnection("conn-1", "broker", nil)
	_, err := c.SessionForChannel(7)
	require.Error(t, err)
	var pv *ProtocolViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, frames.ConditionFramingError, pv.Condition)
}
