package broker

import "sync"

// Route identifies one outbound link a delivery should be forwarded
// to.
type Route struct {
	ConnID  string
	Channel uint16
	Handle  uint32
}

// DeliveryEvent is what C10 receives for each completed inbound
// delivery: the identity of the link it arrived on, the address that
// link was attached to, and the reassembled payload (C8's
// ReceiveTransfer output).
type DeliveryEvent struct {
	SourceConnID  string
	SourceChannel uint16
	SourceHandle  uint32
	SourceAddress string
	Payload       []byte
}

// DispatchHook is the narrow capability spec.md §4.10 exposes to the
// broker harness: given a completed delivery, decide which attached
// receiver links it fans out to. Real routing policy is out of scope
// for the core (Non-goal); this interface is the seam a harness uses
// to plug one in.
type DispatchHook interface {
	Dispatch(ev DeliveryEvent) []Route
}

// EchoHook is the default DispatchHook: it routes every delivery back
// to its own source link, the "identity mapping" spec.md §4.10
// specifies.
type EchoHook struct{}

func (EchoHook) Dispatch(ev DeliveryEvent) []Route {
	return []Route{{ConnID: ev.SourceConnID, Channel: ev.SourceChannel, Handle: ev.SourceHandle}}
}

// FanoutRegistry is the subscriber map recovered from
// original_source/src/user.rs, event.rs, and event_processor.rs: a
// address -> subscribing-links table that a DispatchHook can consult
// to fan a delivery out to every receiver currently attached to that
// address, instead of only echoing it back to the sender. It still
// implements no topic/queue semantics (no persistence, no matching
// beyond exact address equality) — that routing policy remains a
// Non-goal; this is the generic mechanism the prototype already had.
type FanoutRegistry struct {
	mu   sync.Mutex
	subs map[string][]Route
}

// NewFanoutRegistry creates an empty registry.
func NewFanoutRegistry() *FanoutRegistry {
	return &FanoutRegistry{subs: make(map[string][]Route)}
}

// Subscribe registers route as a recipient for deliveries published to
// address (e.g. called when a receiver link attaches with that source
// address).
func (r *FanoutRegistry) Subscribe(address string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[address] = append(r.subs[address], route)
}

// Unsubscribe removes route from address's subscriber list, e.g. on
// link detach.
func (r *FanoutRegistry) Unsubscribe(address string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[address]
	for i, existing := range list {
		if existing == route {
			r.subs[address] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.subs[address]) == 0 {
		delete(r.subs, address)
	}
}

// Dispatch implements DispatchHook by copying out the current
// subscriber list under lock and returning it — callers then send to
// each route without holding the registry's mutex, per spec.md §5's
// "holders may not await while the mutex is held" rule.
func (r *FanoutRegistry) Dispatch(ev DeliveryEvent) []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[ev.SourceAddress]
	if len(list) == 0 {
		return nil
	}
	out := make([]Route, len(list))
	copy(out, list)
	return out
}

// ComposeHooks runs every hook in order and concatenates their routes,
// letting a harness combine EchoHook with a FanoutRegistry (the
// "composes with" relationship SPEC_FULL.md describes).
func ComposeHooks(hooks ...DispatchHook) DispatchHook {
	return composedHook(hooks)
}

type composedHook []DispatchHook

func (c composedHook) Dispatch(ev DeliveryEvent) []Route {
	var out []Route
	for _, h := range c {
		out = append(out, h.Dispatch(ev)...)
	}
	return out
}
