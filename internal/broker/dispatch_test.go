package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEchoHookRoutesBackToSource(t *testing.T) {
	hook := EchoHook{}
	routes := hook.Dispatch(DeliveryEvent{SourceConnID: "c1", SourceChannel: 2, SourceHandle: 3})
	assert.Equal(t, []Route{{ConnID: "c1", Channel: 2, Handle: 3}}, routes)
}

func TestFanoutRegistryDispatchesToAllSubscribers(t *testing.T) {
	reg := NewFanoutRegistry()
	reg.Subscribe("orders", Route{ConnID: "a", Handle: 1})
	reg.Subscribe("orders", Route{ConnID: "b", Handle: 2})

	routes := reg.Dispatch(DeliveryEvent{SourceAddress: "orders"})
	assert.ElementsMatch(t, []Route{{ConnID: "a", Handle: 1}, {ConnID: "b", Handle: 2}}, routes)
}

func TestFanoutRegistryUnsubscribe(t *testing.T) {
	reg := NewFanoutRegistry()
	route := Route{ConnID: "a", Handle: 1}
	reg.Subscribe("orders", route)
	reg.Unsubscribe("orders", route)
	assert.Empty(t, reg.Dispatch(DeliveryEvent{SourceAddress: "orders"}))
}

func TestComposeHooksConcatenatesRoutes(t *testing.T) {
	reg := NewFanoutRegistry()
	reg.Subscribe("orders", Route{ConnID: "b", Handle: 2})
	combined := ComposeHooks(EchoHook{}, reg)

	routes := combined.Dispatch(DeliveryEvent{SourceConnID: "a", SourceHandle: 1, SourceAddress: "orders"})
	assert.ElementsMatch(t, []Route{{ConnID: "a", Handle: 1}, {ConnID: "b", Handle: 2}}, routes)
}
