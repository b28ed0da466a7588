package broker

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/frames"
)

// LinkState is the C8 link state machine's state set.
type LinkState int

const (
	LinkUnattached LinkState = iota
	LinkAttachSent
	LinkAttachRcvd
	LinkAttached
	LinkDetachSent
	LinkDetachRcvd
	LinkDetached
)

func (s LinkState) String() string {
	switch s {
	case LinkUnattached:
		return "Unattached"
	case LinkAttachSent:
		return "AttachSent"
	case LinkAttachRcvd:
		return "AttachRcvd"
	case LinkAttached:
		return "Attached"
	case LinkDetachSent:
		return "DetachSent"
	case LinkDetachRcvd:
		return "DetachRcvd"
	case LinkDetached:
		return "Detached"
	}
	return "Unknown"
}

// Delivery is one reassembled message: the concatenated payload of a
// (possibly multi-Transfer) delivery plus its tag.
type Delivery struct {
	DeliveryID  uint32
	DeliveryTag []byte
	Payload     []byte
}

// Link is the per-handle C8 state machine, grounded on the teacher's
// own link.go/sender.go shape (attach/detach lifecycle plus a
// mux-style credit and reassembly state kept under a single mutex
// rather than Azure-amqp's channel-select mux loop, since this core
// drives its link state synchronously from the session's single
// dispatch task per spec.md §5's "no lock needed for session/link
// state" ordering guarantee — a mutex here is belt-and-suspenders for
// any future multi-task access, not a concurrency requirement).
type Link struct {
	Name string
	// Role: false = this end is the sender, true = this end is the receiver.
	Role   bool
	Handle uint32

	mu    sync.Mutex
	state LinkState

	DeliveryCount uint32
	LinkCredit    uint32
	Available     uint32
	Drain         bool

	// unsettled holds outgoing Transfers (sender side) awaiting
	// Disposition, keyed by the string form of their delivery tag.
	unsettled map[string]*frames.Transfer

	partial     bytes.Buffer
	partialTag  []byte
	hasPartial  bool
}

// NewLink builds a Link in Unattached.
func NewLink(name string, handle uint32, role bool) *Link {
	return &Link{
		Name:      name,
		Role:      role,
		Handle:    handle,
		state:     LinkUnattached,
		unsettled: make(map[string]*frames.Transfer),
	}
}

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SendAttach transitions Unattached->AttachSent.
func (l *Link) SendAttach() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LinkUnattached {
		return errors.Errorf("link %s: cannot send Attach from state %s", l.Name, l.state)
	}
	l.state = LinkAttachSent
	return nil
}

// HandleAttach transitions Unattached->AttachRcvd or AttachSent->Attached.
func (l *Link) HandleAttach(remote *frames.Attach) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case LinkUnattached:
		l.state = LinkAttachRcvd
	case LinkAttachSent:
		l.state = LinkAttached
	default:
		return errors.Errorf("link %s: unexpected Attach in state %s", l.Name, l.state)
	}
	if remote.InitialDeliveryCount != nil {
		l.DeliveryCount = *remote.InitialDeliveryCount
	}
	return nil
}

// FinalizeAttachRcvd transitions AttachRcvd->Attached.
func (l *Link) FinalizeAttachRcvd() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LinkAttachRcvd {
		return errors.Errorf("link %s: cannot finalize from state %s", l.Name, l.state)
	}
	l.state = LinkAttached
	return nil
}

// SendDetach transitions Attached->DetachSent.
func (l *Link) SendDetach() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LinkAttached {
		return errors.Errorf("link %s: cannot send Detach from state %s", l.Name, l.state)
	}
	l.state = LinkDetachSent
	return nil
}

// HandleDetach transitions Attached->DetachRcvd (reply needed) or
// DetachSent->Detached.
func (l *Link) HandleDetach() (replyNeeded bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case LinkAttached:
		l.state = LinkDetachRcvd
		return true, nil
	case LinkDetachSent:
		l.state = LinkDetached
		return false, nil
	default:
		return false, errors.Errorf("link %s: unexpected Detach in state %s", l.Name, l.state)
	}
}

// FinalizeDetachRcvd transitions DetachRcvd->Detached.
func (l *Link) FinalizeDetachRcvd() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LinkDetachRcvd {
		return errors.Errorf("link %s: cannot finalize from state %s", l.Name, l.state)
	}
	l.state = LinkDetached
	return nil
}

// ApplyFlow updates credit/drain state from a received Flow, per
// spec.md §4.8: a receiver grants link-credit; a sender consults it
// before sending and must honor drain by exhausting the granted
// credit (advancing delivery-count) when it has nothing to send.
func (l *Link) ApplyFlow(f *frames.Flow) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f.LinkCredit != nil {
		l.LinkCredit = *f.LinkCredit
	}
	if f.DeliveryCount != nil {
		l.DeliveryCount = *f.DeliveryCount
	}
	if f.Available != nil {
		l.Available = *f.Available
	}
	l.Drain = f.Drain
}

// CanSend reports whether this sender link currently has credit to
// send a Transfer. A sender with zero credit MUST NOT send.
func (l *Link) CanSend() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.LinkCredit > 0
}

// ConsumeCredit decrements link-credit and advances delivery-count by
// one outgoing Transfer.
func (l *Link) ConsumeCredit() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LinkCredit == 0 {
		return errors.Errorf("link %s: send attempted with zero link-credit", l.Name)
	}
	l.LinkCredit--
	l.DeliveryCount++
	return nil
}

// ExhaustOnDrain advances delivery-count by the full remaining credit
// and zeroes it, implementing the "advance delivery-count to exhaust
// credit" half of the drain contract when there's nothing left to
// send.
func (l *Link) ExhaustOnDrain() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.DeliveryCount += l.LinkCredit
	l.LinkCredit = 0
}

// MarkUnsettled records an outgoing Transfer awaiting Disposition.
func (l *Link) MarkUnsettled(deliveryTag []byte, t *frames.Transfer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unsettled[string(deliveryTag)] = t
}

// Settle removes a delivery from the unsettled map, e.g. on a matching
// Disposition.
func (l *Link) Settle(deliveryTag []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.unsettled, string(deliveryTag))
}

// UnsettledCount reports how many outgoing deliveries await settlement.
func (l *Link) UnsettledCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.unsettled)
}

// ReceiveTransfer implements Transfer reassembly (spec.md §4.8): a
// Transfer with more=true buffers its payload; aborted=true discards
// the buffer; the final Transfer (more=false) returns the concatenated
// Delivery.
func (l *Link) ReceiveTransfer(t *frames.Transfer) (Delivery, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.Aborted {
		l.partial.Reset()
		l.hasPartial = false
		return Delivery{}, false, nil
	}

	if l.hasPartial {
		l.partial.Write(t.Payload)
	} else {
		l.partial.Reset()
		l.partial.Write(t.Payload)
		l.partialTag = t.DeliveryTag
		l.hasPartial = true
	}

	if t.More {
		return Delivery{}, false, nil
	}

	payload := append([]byte(nil), l.partial.Bytes()...)
	tag := l.partialTag
	l.partial.Reset()
	l.hasPartial = false

	var deliveryID uint32
	if t.DeliveryID != nil {
		deliveryID = *t.DeliveryID
	}
	return Delivery{DeliveryID: deliveryID, DeliveryTag: tag, Payload: payload}, true, nil
}
