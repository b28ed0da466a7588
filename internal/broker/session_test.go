package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/frames"
)

func TestSerialCompareWrapsAt32Bits(t *testing.T) {
	assert.Equal(t, 1, SerialCompare(1, 0))
	assert.Equal(t, -1, SerialCompare(0, 1))
	assert.Equal(t, 0, SerialCompare(5, 5))
	// 0 follows 0xFFFFFFFF under serial-number arithmetic (wraps forward).
	assert.Equal(t, 1, SerialCompare(0, 0xFFFFFFFF))
}

func TestSessionBeginHandshakeAsInitiator(t *testing.T) {
	s := NewSession(0, 100, 100, 10, nil)
	require.NoError(t, s.SendBegin())
	require.NoError(t, s.HandleBegin(3, &frames.Begin{NextOutgoingID: 5, IncomingWindow: 50, OutgoingWindow: 50, HandleMax: 10}))
	assert.Equal(t, SessionMapped, s.State())
	assert.Equal(t, uint32(5), s.NextIncomingID)
	assert.Equal(t, uint32(50), s.OutgoingWindow)
}

func TestSessionHandleMaxExceeded(t *testing.T) {
	s := NewSession(0, 10, 10, 1, nil)
	require.NoError(t, s.AttachLink(0, "link-a", false, NewLink("link-a", 0, false)))
	err := s.AttachLink(1, "link-b", false, NewLink("link-b", 1, false))
	require.Error(t, err)
	var pv *ProtocolViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, frames.ConditionSessionHandleMaxExceeded, pv.Condition)
}

func TestSessionDuplicateLinkNameSameRoleRejected(t *testing.T) {
	s := NewSession(0, 10, 10, 10, nil)
	require.NoError(t, s.AttachLink(0, "dup", false, NewLink("dup", 0, false)))
	err := s.AttachLink(1, "dup", false, NewLink("dup", 1, false))
	require.Error(t, err)
}

func TestSessionEndSequence(t *testing.T) {
	s := NewSession(0, 10, 10, 10, nil)
	require.NoError(t, s.SendBegin())
	require.NoError(t, s.HandleBegin(0, &frames.Begin{NextOutgoingID: 0, IncomingWindow: 10, OutgoingWindow: 10}))
	require.NoError(t, s.SendEnd())
	replyNeeded, err := s.HandleEnd()
	require.NoError(t, err)
	assert.False(t, replyNeeded)
	assert.Equal(t, SessionEnded, s.State())
}
