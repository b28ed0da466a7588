// Package broker implements the connection/session/link state machines
// (C6-C8), the frame bus (C9), the dispatch hook (C10), the
// protocol-header negotiator (C11), and the terminus handler pair
// (C12) on top of internal/encoding and internal/frames.
package broker

import (
	"io"

	"github.com/pkg/errors"
)

// ProtocolHeader is the literal 8-octet AMQP 1.0 header (spec.md §6.2):
// "AMQP" followed by protocol-id 0x00 and version 1.0.0.
var ProtocolHeader = [8]byte{'A', 'M', 'Q', 'P', 0x00, 0x01, 0x00, 0x00}

// NegotiateHeader implements C11: read exactly 8 octets, compare
// against ProtocolHeader, and write the same 8 octets back regardless
// of the comparison outcome — a conformant peer echoes its own
// supported header back when it disagrees, so echoing unconditionally
// lets the peer's own logic decide whether to continue.
//
// Returns nil on a matching header; a non-nil error means the caller
// must close the connection after the echo has been written (which
// NegotiateHeader always attempts first).
func NegotiateHeader(rw io.ReadWriter) error {
	var got [8]byte
	if _, err := io.ReadFull(rw, got[:]); err != nil {
		return errors.Wrap(err, "negotiator: reading protocol header")
	}

	_, writeErr := rw.Write(ProtocolHeader[:])

	if got != ProtocolHeader {
		if writeErr != nil {
			return errors.Wrap(writeErr, "negotiator: echoing header after mismatch")
		}
		return errors.Errorf("negotiator: unsupported protocol header % x", got)
	}
	return errors.Wrap(writeErr, "negotiator: echoing header")
}
