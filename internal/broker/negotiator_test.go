package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/mocks"
)

func TestNegotiateHeaderSuccess(t *testing.T) {
	conn := mocks.NewConn()
	conn.Feed(ProtocolHeader[:])
	require.NoError(t, NegotiateHeader(conn))
	assert.Equal(t, ProtocolHeader[:], conn.Written())
}

func TestNegotiateHeaderMismatchStillEchoes(t *testing.T) {
	conn := mocks.NewConn()
	conn.Feed([]byte("NOTAMQP0"))
	err := NegotiateHeader(conn)
	require.Error(t, err)
	// Per spec.md §4.11, our own supported header is written back
	// regardless of the comparison outcome.
	assert.Equal(t, ProtocolHeader[:], conn.Written())
}
