package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqp-broker/brokerd/internal/frames"
)

func publish(t *testing.T, bus *FrameBus, connID string, channel uint16, p frames.Performative) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var f frames.Frame
	if transfer, ok := p.(*frames.Transfer); ok {
		f = EncodeTransferFrame(channel, transfer)
	} else {
		f = frames.Frame{Channel: channel, Type: frames.TypeAMQP, Body: EncodeBody(p.Marshal())}
	}
	require.NoError(t, bus.PublishInbound(ctx, connID, f))
}

func drainOne(t *testing.T, bus *FrameBus, connID string, channel uint16) frames.Frame {
	t.Helper()
	q, ok := bus.Outbound(connID, channel)
	require.True(t, ok, "no outbound queue registered for %s/%d", connID, channel)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, ok := q.Pop(ctx)
	require.True(t, ok, "no outbound frame queued for %s/%d", connID, channel)
	return f
}

func TestDispatcherOpenBeginAttachTransferEndToEnd(t *testing.T) {
	bus := NewFrameBus(16)
	registry := NewRegistry()
	d := NewDispatcher(bus, registry, EchoHook{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	conn := NewConnection("c1", "peer", bus)
	registry.Put(conn)
	bus.RegisterOutbound("c1", 0, 16)

	publish(t, bus, "c1", 0, &frames.Open{ContainerID: "client"})
	require.Eventually(t, func() bool { return conn.State() == StateOpened }, time.Second, time.Millisecond)

	publish(t, bus, "c1", 3, &frames.Begin{NextOutgoingID: 0, IncomingWindow: 10, OutgoingWindow: 10, HandleMax: 10})
	require.Eventually(t, func() bool {
		sess, err := conn.SessionForChannel(3)
		return err == nil && sess.State() == SessionMapped
	}, time.Second, time.Millisecond)

	sess, err := conn.SessionForChannel(3)
	require.NoError(t, err)

	credit := uint32(1)
	initialCount := uint32(0)
	publish(t, bus, "c1", 3, &frames.Attach{Name: "receiver-1", Handle: 0, Role: true, InitialDeliveryCount: &initialCount})
	require.Eventually(t, func() bool {
		l, ok := sess.LinkByHandle(0)
		return ok && l.State() == LinkAttached
	}, time.Second, time.Millisecond)

	link, _ := sess.LinkByHandle(0)
	link.ApplyFlow(&frames.Flow{LinkCredit: &credit})

	publish(t, bus, "c1", 3, &frames.Transfer{Handle: 0, DeliveryTag: []byte("t1"), Payload: []byte("hello")})

	// Channel 3's queue holds the Begin and Attach replies ahead of the
	// routed Transfer.
	begin, _, err := DecodeFramePerformative(drainOne(t, bus, "c1", 3))
	require.NoError(t, err)
	require.IsType(t, &frames.Begin{}, begin)
	attach, _, err := DecodeFramePerformative(drainOne(t, bus, "c1", 3))
	require.NoError(t, err)
	require.IsType(t, &frames.Attach{}, attach)

	out := drainOne(t, bus, "c1", 3)
	perf, payload, err := DecodeFramePerformative(out)
	require.NoError(t, err)
	transfer, ok := perf.(*frames.Transfer)
	require.True(t, ok)
	transfer.Payload = payload
	assert.Equal(t, []byte("hello"), transfer.Payload)
	assert.Equal(t, 1, link.UnsettledCount())
	assert.False(t, link.CanSend())
}

func TestDispatcherDropsDeliveryWhenLinkHasNoCredit(t *testing.T) {
	bus := NewFrameBus(16)
	registry := NewRegistry()
	d := NewDispatcher(bus, registry, EchoHook{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	conn := NewConnection("c3", "peer", bus)
	registry.Put(conn)
	bus.RegisterOutbound("c3", 0, 16)

	publish(t, bus, "c3", 0, &frames.Open{ContainerID: "client"})
	require.Eventually(t, func() bool { return conn.State() == StateOpened }, time.Second, time.Millisecond)

	publish(t, bus, "c3", 3, &frames.Begin{NextOutgoingID: 0, IncomingWindow: 10, OutgoingWindow: 10, HandleMax: 10})
	require.Eventually(t, func() bool {
		sess, err := conn.SessionForChannel(3)
		return err == nil && sess.State() == SessionMapped
	}, time.Second, time.Millisecond)

	sess, err := conn.SessionForChannel(3)
	require.NoError(t, err)

	initialCount := uint32(0)
	publish(t, bus, "c3", 3, &frames.Attach{Name: "receiver-1", Handle: 0, Role: true, InitialDeliveryCount: &initialCount})
	require.Eventually(t, func() bool {
		l, ok := sess.LinkByHandle(0)
		return ok && l.State() == LinkAttached
	}, time.Second, time.Millisecond)

	// No Flow granting credit: the link stays at zero link-credit.
	link, _ := sess.LinkByHandle(0)
	require.False(t, link.CanSend())

	publish(t, bus, "c3", 3, &frames.Transfer{Handle: 0, DeliveryTag: []byte("t1"), Payload: []byte("hello")})

	// routeDelivery must not push a Transfer for a link with no credit,
	// and must not record it as unsettled.
	time.Sleep(20 * time.Millisecond)
	q, ok := bus.Outbound("c3", 3)
	require.True(t, ok)
	// Only the Begin and Attach replies were queued on channel 3.
	begin, _, err := DecodeFramePerformative(drainOne(t, bus, "c3", 3))
	require.NoError(t, err)
	require.IsType(t, &frames.Begin{}, begin)
	attach, _, err := DecodeFramePerformative(drainOne(t, bus, "c3", 3))
	require.NoError(t, err)
	require.IsType(t, &frames.Attach{}, attach)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, link.UnsettledCount())
}

func TestDispatcherUnknownChannelClosesConnection(t *testing.T) {
	bus := NewFrameBus(16)
	registry := NewRegistry()
	d := NewDispatcher(bus, registry, EchoHook{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	conn := NewConnection("c2", "peer", bus)
	registry.Put(conn)
	controlQ := bus.RegisterOutbound("c2", 0, 16)

	publish(t, bus, "c2", 9, &frames.Flow{IncomingWindow: 1, NextOutgoingID: 0, OutgoingWindow: 1})

	require.Eventually(t, func() bool { return conn.State() == StateEnd }, time.Second, time.Millisecond)

	// Shutdown unregisters the connection's queues from the bus, so the
	// Close frame is read from the queue handle registered above.
	popCtx, popCancel := context.WithTimeout(context.Background(), time.Second)
	defer popCancel()
	out, ok := controlQ.Pop(popCtx)
	require.True(t, ok, "no outbound frame queued for c2/0")
	assert.Equal(t, uint16(0), out.Channel)
}
