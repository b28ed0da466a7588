package broker

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/buffer"
	"github.com/amqp-broker/brokerd/internal/encoding"
	"github.com/amqp-broker/brokerd/internal/frames"
)

func bufferOf(b []byte) *buffer.Buffer { return buffer.New(b) }

// ConnState is the C6 connection state machine's state set.
type ConnState int

const (
	StateHdrExchanged ConnState = iota
	StateOpenSent
	StateOpenRcvd
	StateOpened
	StateCloseSent
	StateEnd
)

func (s ConnState) String() string {
	switch s {
	case StateHdrExchanged:
		return "HdrExchanged"
	case StateOpenSent:
		return "OpenSent"
	case StateOpenRcvd:
		return "OpenRcvd"
	case StateOpened:
		return "Opened"
	case StateCloseSent:
		return "CloseSent"
	case StateEnd:
		return "End"
	}
	return "Unknown"
}

const minMaxFrameSize = 512

// Connection is the per-socket C6 state machine. It owns the Sessions
// mapped to its channels and negotiates the effective max-frame-size,
// channel-max, and idle-timeout with the remote peer on Open.
type Connection struct {
	ID          string
	ContainerID string

	LocalMaxFrameSize uint32
	LocalChannelMax   uint16
	LocalIdleTimeout  uint32 // milliseconds, 0 = disabled

	mu    sync.Mutex
	state ConnState

	EffectiveMaxFrameSize uint32
	EffectiveChannelMax   uint16
	EffectiveIdleTimeout  uint32 // local send interval, milliseconds

	sessions map[uint16]*Session

	bus *FrameBus
}

// NewConnection builds a Connection in HdrExchanged, the state C11
// hands off to once the protocol header exchange succeeds.
func NewConnection(id, containerID string, bus *FrameBus) *Connection {
	return &Connection{
		ID:                id,
		ContainerID:       containerID,
		LocalMaxFrameSize: 4294967295,
		LocalChannelMax:   65535,
		state:             StateHdrExchanged,
		sessions:          make(map[uint16]*Session),
		bus:               bus,
	}
}

// State returns the current connection state under lock.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LocalOpen builds the Open performative this connection sends.
func (c *Connection) LocalOpen() *frames.Open {
	var idle *uint32
	if c.LocalIdleTimeout != 0 {
		idle = &c.LocalIdleTimeout
	}
	return &frames.Open{
		ContainerID:  c.ContainerID,
		MaxFrameSize: c.LocalMaxFrameSize,
		ChannelMax:   c.LocalChannelMax,
		IdleTimeout:  idle,
	}
}

// SendOpen transitions HdrExchanged->OpenSent.
func (c *Connection) SendOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateHdrExchanged {
		return errors.Errorf("connection %s: cannot send Open from state %s", c.ID, c.state)
	}
	c.state = StateOpenSent
	return nil
}

// HandleOpen processes a received Open performative, negotiating the
// effective connection parameters per spec.md §4.6, and advances the
// state machine: HdrExchanged/OpenSent -> OpenRcvd/Opened.
func (c *Connection) HandleOpen(remote *frames.Open) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateHdrExchanged:
		c.state = StateOpenRcvd
	case StateOpenSent:
		c.state = StateOpened
	case StateOpened:
		return &ProtocolViolation{Condition: frames.ConditionFramingError, Description: "duplicate Open"}
	default:
		return errors.Errorf("connection %s: unexpected Open in state %s", c.ID, c.state)
	}

	effMax := remote.MaxFrameSize
	if c.LocalMaxFrameSize < effMax {
		effMax = c.LocalMaxFrameSize
	}
	if effMax < minMaxFrameSize {
		effMax = minMaxFrameSize
	}
	c.EffectiveMaxFrameSize = effMax

	effChMax := remote.ChannelMax
	if c.LocalChannelMax < effChMax {
		effChMax = c.LocalChannelMax
	}
	c.EffectiveChannelMax = effChMax

	if remote.IdleTimeout != nil && *remote.IdleTimeout > 0 {
		c.EffectiveIdleTimeout = *remote.IdleTimeout / 2
	}
	return nil
}

// FinalizeOpenRcvd transitions OpenRcvd->Opened after we send our own
// Open in reply.
func (c *Connection) FinalizeOpenRcvd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpenRcvd {
		return errors.Errorf("connection %s: cannot finalize from state %s", c.ID, c.state)
	}
	c.state = StateOpened
	return nil
}

// SendClose transitions Opened->CloseSent.
func (c *Connection) SendClose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpened {
		return errors.Errorf("connection %s: cannot send Close from state %s", c.ID, c.state)
	}
	c.state = StateCloseSent
	return nil
}

// HandleClose processes a received Close: Opened->End (after emitting
// a reply Close, which the caller is responsible for sending) or
// CloseSent->End.
func (c *Connection) HandleClose() (replyNeeded bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateOpened:
		c.state = StateEnd
		return true, nil
	case StateCloseSent:
		c.state = StateEnd
		return false, nil
	default:
		return false, errors.Errorf("connection %s: unexpected Close in state %s", c.ID, c.state)
	}
}

// Shutdown forces the connection to End, e.g. on socket EOF or idle
// timeout.
func (c *Connection) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateEnd
	if c.bus != nil {
		c.bus.UnregisterConnection(c.ID)
	}
}

// AttachSession registers a Session at a local channel number.
func (c *Connection) AttachSession(channel uint16, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[channel] = s
}

// DetachSession removes a Session once it reaches Unmapped (after End).
func (c *Connection) DetachSession(channel uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, channel)
}

// SessionForChannel implements the C6 channel demux: every non-zero
// channel frame is dispatched to its registered Session, or a
// framing-error if the channel is unknown.
func (c *Connection) SessionForChannel(channel uint16) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[channel]
	if !ok {
		return nil, &ProtocolViolation{
			Condition:   frames.ConditionFramingError,
			Description: "frame for unknown channel",
		}
	}
	return s, nil
}

// ProtocolViolation is returned by state machine methods when the
// peer's behavior requires a Close/End/Detach carrying an AMQP error
// condition, distinguishing it from a local/transport failure.
type ProtocolViolation struct {
	Condition   string
	Description string
}

func (p *ProtocolViolation) Error() string {
	return p.Condition + ": " + p.Description
}

// ToError converts a ProtocolViolation into the wire Error composite.
func (p *ProtocolViolation) ToError() *frames.Error {
	return &frames.Error{Condition: p.Condition, Description: p.Description}
}

// DecodeFrameBody decodes one frame's body bytes into a Constructor,
// the shared first step for both connection- and session-level
// dispatch.
func DecodeFrameBody(f frames.Frame) (encoding.Constructor, error) {
	return encoding.DecodeConstructor(bufferOf(f.Body), 0)
}

// DecodeFramePerformative decodes a frame's performative composite and
// returns whatever bytes remain in the body afterward — the payload
// section spec.md §4.9 defines for Transfer frames, empty for every
// other performative.
func DecodeFramePerformative(f frames.Frame) (frames.Performative, []byte, error) {
	buf := bufferOf(f.Body)
	c, err := encoding.DecodeConstructor(buf, 0)
	if err != nil {
		return nil, nil, err
	}
	perf, err := frames.DecodePerformative(c)
	if err != nil {
		return nil, nil, err
	}
	return perf, append([]byte(nil), buf.Bytes()...), nil
}

// EncodeTransferFrame serializes a Transfer performative and appends
// its payload bytes after the composite, mirroring how the wire format
// splits the two (the composite carries no length-prefixed payload
// field of its own).
func EncodeTransferFrame(channel uint16, t *frames.Transfer) frames.Frame {
	body := EncodeBody(t.Marshal())
	body = append(body, t.Payload...)
	return frames.Frame{Channel: channel, Type: frames.TypeAMQP, Body: body}
}

// EncodeBody is DecodeFrameBody's inverse: it serializes a performative
// body for the writer task to wrap in a frame header.
func EncodeBody(c encoding.Constructor) []byte {
	buf := buffer.New(nil)
	if err := encoding.EncodeConstructor(buf, c); err != nil {
		return nil
	}
	return buf.Detach()
}
