package broker

import (
	"context"
	"strconv"
	"sync"

	"github.com/amqp-broker/brokerd/internal/frames"
	"github.com/amqp-broker/brokerd/internal/queue"
)

// DefaultQueueCapacity is the recommended bound from spec.md §4.9.
const DefaultQueueCapacity = 1024

// InboundFrame tags a decoded frame with the connection it arrived on,
// so the single inbound consumer can demux it to the right connection's
// state machine.
type InboundFrame struct {
	ConnID string
	Frame  frames.Frame
}

// FrameBus is the process-wide hub described by C9: one bounded
// multi-producer/single-consumer inbound queue, and a
// (connection, channel) -> bounded single-consumer outbound queue
// mapping. Grounded on original_source/src/frame_bus.rs's
// Mutex<HashMap<channel, Sender>> demux, generalized to also key on
// connection id since this broker serves more than one socket.
type FrameBus struct {
	inbound *queue.Queue[InboundFrame]

	mu       sync.Mutex
	outbound map[string]map[uint16]*queue.Queue[frames.Frame]
}

// NewFrameBus creates a bus with the given inbound queue capacity.
func NewFrameBus(inboundCapacity int) *FrameBus {
	return &FrameBus{
		inbound:  queue.New[InboundFrame](inboundCapacity),
		outbound: make(map[string]map[uint16]*queue.Queue[frames.Frame]),
	}
}

// PublishInbound enqueues a frame read by connID's reader task. Blocks
// (applying backpressure to that socket's reader) if the global
// inbound queue is full.
func (b *FrameBus) PublishInbound(ctx context.Context, connID string, f frames.Frame) error {
	return b.inbound.Push(ctx, InboundFrame{ConnID: connID, Frame: f})
}

// ConsumeInbound dequeues the next inbound frame for the single
// demuxing consumer task to dispatch to its connection's state machine.
func (b *FrameBus) ConsumeInbound(ctx context.Context) (InboundFrame, bool) {
	return b.inbound.Pop(ctx)
}

// RegisterOutbound creates (or returns, if already present) the
// outbound queue for one (connection, channel) pair. The writer task
// for that connection drains this queue.
func (b *FrameBus) RegisterOutbound(connID string, channel uint16, capacity int) *queue.Queue[frames.Frame] {
	b.mu.Lock()
	defer b.mu.Unlock()
	channels, ok := b.outbound[connID]
	if !ok {
		channels = make(map[uint16]*queue.Queue[frames.Frame])
		b.outbound[connID] = channels
	}
	if q, ok := channels[channel]; ok {
		return q
	}
	q := queue.New[frames.Frame](capacity)
	channels[channel] = q
	return q
}

// Outbound looks up an existing outbound queue without creating one.
func (b *FrameBus) Outbound(connID string, channel uint16) (*queue.Queue[frames.Frame], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	channels, ok := b.outbound[connID]
	if !ok {
		return nil, false
	}
	q, ok := channels[channel]
	return q, ok
}

// UnregisterOutbound removes one channel's outbound queue, e.g. after
// a Session reaches End.
func (b *FrameBus) UnregisterOutbound(connID string, channel uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.outbound[connID], channel)
}

// UnregisterConnection drops every outbound queue for connID, e.g.
// once the connection reaches End and its writer task has exited.
func (b *FrameBus) UnregisterConnection(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.outbound, connID)
}

// QueueDepths reports the current length and capacity of every
// registered outbound queue, keyed by "connID/channel", for the admin
// /connections endpoint.
func (b *FrameBus) QueueDepths() map[string][2]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string][2]int)
	for connID, channels := range b.outbound {
		for ch, q := range channels {
			out[connID+"/"+strconv.Itoa(int(ch))] = [2]int{q.Len(), q.Cap()}
		}
	}
	return out
}
