package broker

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/frames"
)

// SessionState is the C7 session state machine's state set.
type SessionState int

const (
	SessionUnmapped SessionState = iota
	SessionBeginSent
	SessionBeginRcvd
	SessionMapped
	SessionEndSent
	SessionEndRcvd
	SessionDiscarding
	SessionEnded
)

func (s SessionState) String() string {
	switch s {
	case SessionUnmapped:
		return "Unmapped"
	case SessionBeginSent:
		return "BeginSent"
	case SessionBeginRcvd:
		return "BeginRcvd"
	case SessionMapped:
		return "Mapped"
	case SessionEndSent:
		return "EndSent"
	case SessionEndRcvd:
		return "EndRcvd"
	case SessionDiscarding:
		return "Discarding"
	case SessionEnded:
		return "Ended"
	}
	return "Unknown"
}

// SerialCompare implements the RFC 1982 serial-number comparison rule
// spec.md §4.7 requires for next-outgoing-id/next-incoming-id
// arithmetic: returns -1, 0, or 1 as a precedes, equals, or follows b,
// correctly wrapping at the 32-bit boundary.
func SerialCompare(a, b uint32) int {
	d := int32(a - b)
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// Session is the per-channel C7 state machine. It owns the Links
// attached to it (keyed by handle) and the incoming/outgoing
// transfer-window arithmetic.
type Session struct {
	LocalChannel  uint16
	RemoteChannel *uint16

	NextOutgoingID uint32
	NextIncomingID uint32
	IncomingWindow uint32
	OutgoingWindow uint32
	HandleMax      uint32

	mu    sync.Mutex
	state SessionState
	links map[uint32]*Link // by local handle

	conn *Connection
}

// NewSession builds a Session in Unmapped with the given initial
// window sizes and handle-max.
func NewSession(localChannel uint16, incomingWindow, outgoingWindow, handleMax uint32, conn *Connection) *Session {
	return &Session{
		LocalChannel:   localChannel,
		IncomingWindow: incomingWindow,
		OutgoingWindow: outgoingWindow,
		HandleMax:      handleMax,
		state:          SessionUnmapped,
		links:          make(map[uint32]*Link),
		conn:           conn,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LocalBegin builds the Begin performative this session sends.
func (s *Session) LocalBegin() *frames.Begin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &frames.Begin{
		RemoteChannel:  s.RemoteChannel,
		NextOutgoingID: s.NextOutgoingID,
		IncomingWindow: s.IncomingWindow,
		OutgoingWindow: s.OutgoingWindow,
		HandleMax:      s.HandleMax,
	}
}

// SendBegin transitions Unmapped->BeginSent.
func (s *Session) SendBegin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionUnmapped {
		return errors.Errorf("session %d: cannot send Begin from state %s", s.LocalChannel, s.state)
	}
	s.state = SessionBeginSent
	return nil
}

// HandleBegin processes a received Begin: Unmapped->BeginRcvd or
// BeginSent->Mapped, recording the remote's window/handle-max.
func (s *Session) HandleBegin(remoteChannel uint16, remote *frames.Begin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case SessionUnmapped:
		s.state = SessionBeginRcvd
	case SessionBeginSent:
		s.state = SessionMapped
	default:
		return errors.Errorf("session %d: unexpected Begin in state %s", s.LocalChannel, s.state)
	}
	ch := remoteChannel
	s.RemoteChannel = &ch
	s.NextIncomingID = remote.NextOutgoingID
	if remote.IncomingWindow < s.OutgoingWindow {
		s.OutgoingWindow = remote.IncomingWindow
	}
	return nil
}

// FinalizeBeginRcvd transitions BeginRcvd->Mapped after sending our
// reply Begin.
func (s *Session) FinalizeBeginRcvd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionBeginRcvd {
		return errors.Errorf("session %d: cannot finalize from state %s", s.LocalChannel, s.state)
	}
	s.state = SessionMapped
	return nil
}

// SendEnd transitions Mapped->EndSent.
func (s *Session) SendEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionMapped && s.state != SessionDiscarding {
		return errors.Errorf("session %d: cannot send End from state %s", s.LocalChannel, s.state)
	}
	s.state = SessionEndSent
	return nil
}

// HandleEnd processes a received End: Mapped->EndRcvd (reply needed)
// or EndSent->Ended.
func (s *Session) HandleEnd() (replyNeeded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case SessionMapped, SessionDiscarding:
		s.state = SessionEndRcvd
		return true, nil
	case SessionEndSent:
		s.state = SessionEnded
		return false, nil
	default:
		return false, errors.Errorf("session %d: unexpected End in state %s", s.LocalChannel, s.state)
	}
}

// FinalizeEndRcvd transitions EndRcvd->Ended after sending our reply
// End.
func (s *Session) FinalizeEndRcvd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionEndRcvd {
		return errors.Errorf("session %d: cannot finalize from state %s", s.LocalChannel, s.state)
	}
	s.state = SessionEnded
	return nil
}

// Discard forces the session into Discarding, e.g. after a local
// protocol violation; while discarding, every non-End frame for this
// channel is silently dropped by the caller.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionDiscarding
}

// ShouldDrop reports whether the session is discarding non-End frames.
func (s *Session) ShouldDrop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SessionDiscarding
}

// AttachLink registers a Link at a local handle, enforcing handle-max
// and the per-(session,role) name-uniqueness rule from spec.md §4.8.
func (s *Session) AttachLink(handle uint32, name string, role bool, l *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint32(len(s.links)) >= s.HandleMax {
		return &ProtocolViolation{
			Condition:   frames.ConditionSessionHandleMaxExceeded,
			Description: "handle-max exceeded",
		}
	}
	if _, exists := s.links[handle]; exists {
		return &ProtocolViolation{
			Condition:   frames.ConditionLinkHandleInUse,
			Description: "handle already in use",
		}
	}
	for _, existing := range s.links {
		if existing.Name == name && existing.Role == role {
			return &ProtocolViolation{
				Condition:   frames.ConditionNotAllowed,
				Description: "link name already attached for this role",
			}
		}
	}
	s.links[handle] = l
	return nil
}

// DetachLink removes a Link once it reaches Detached.
func (s *Session) DetachLink(handle uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, handle)
}

// LinkByHandle looks up an attached link.
func (s *Session) LinkByHandle(handle uint32) (*Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[handle]
	return l, ok
}

// AdvanceIncoming records receipt of one Transfer, shrinking the
// incoming window and advancing next-incoming-id, per spec.md §4.7.
func (s *Session) AdvanceIncoming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextIncomingID++
	if s.IncomingWindow > 0 {
		s.IncomingWindow--
	}
}

// GrowIncomingWindow widens the incoming window, e.g. when the local
// application has drained buffered deliveries and we send a Flow
// advertising more room.
func (s *Session) GrowIncomingWindow(by uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IncomingWindow += by
}
