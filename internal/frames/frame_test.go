package frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/buffer"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	f := Frame{Channel: 3, Type: TypeAMQP, Body: []byte{1, 2, 3, 4}}
	w := buffer.New(nil)
	require.NoError(t, WriteFrame(w, f))

	got, err := ReadFrame(buffer.New(w.Detach()))
	require.NoError(t, err)
	assert.Equal(t, f.Channel, got.Channel)
	assert.Equal(t, f.Type, got.Type)
	assert.Equal(t, f.Body, got.Body)
	assert.False(t, got.IsHeartbeat())
}

func TestHeartbeatFrame(t *testing.T) {
	w := buffer.New(nil)
	WriteHeartbeat(w)
	got, err := ReadFrame(buffer.New(w.Detach()))
	require.NoError(t, err)
	assert.True(t, got.IsHeartbeat())
}

func TestReadFrameRejectsShortDoff(t *testing.T) {
	w := buffer.New(nil)
	w.WriteUint32(8)
	_ = w.WriteByte(1) // doff < 2
	_ = w.WriteByte(byte(TypeAMQP))
	w.WriteUint16(0)
	_, err := ReadFrame(buffer.New(w.Detach()))
	require.Error(t, err)
}
