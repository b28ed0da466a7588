// Package frames implements the AMQP 1.0 frame framer (C4) and the
// performative composite decoder/encoder (C5): turning an 8-octet frame
// header plus body into a typed Performative, and back.
package frames

import (
	"github.com/pkg/errors"

	"github.com/amqp-broker/brokerd/internal/buffer"
)

// Type identifies the frame's AMQP frame-type octet.
type Type uint8

const (
	TypeAMQP Type = 0x00
	TypeSASL Type = 0x05
)

// MinFrameSize is the smallest legal DOFF*4 value: the 8-byte header
// itself, with no extended header.
const MinFrameSize = 8

// Frame is one decoded AMQP frame: the fixed header fields plus the
// still-undecoded body (empty for a heartbeat).
type Frame struct {
	Channel    uint16
	Type       Type
	ExtendedHeader []byte
	Body       []byte
}

// IsHeartbeat reports whether this frame is the empty 8-byte keepalive
// frame (size == 8, no body).
func (f Frame) IsHeartbeat() bool {
	return len(f.Body) == 0 && len(f.ExtendedHeader) == 0
}

// ReadFrame parses one frame from r, which must contain at least
// MinFrameSize bytes. The caller is responsible for having already read
// exactly `size` bytes (the first 4 octets of the header) off the wire
// into r — ReadFrame re-derives and validates that length.
func ReadFrame(r *buffer.Buffer) (Frame, error) {
	size, err := r.ReadUint32()
	if err != nil {
		return Frame{}, errors.Wrap(err, "frame: reading size")
	}
	if size < MinFrameSize {
		return Frame{}, errors.Errorf("frame: size %d below minimum %d", size, MinFrameSize)
	}
	doff, err := r.ReadByte()
	if err != nil {
		return Frame{}, errors.Wrap(err, "frame: reading doff")
	}
	if doff < 2 {
		return Frame{}, errors.Errorf("frame: doff %d below minimum 2", doff)
	}
	typ, err := r.ReadByte()
	if err != nil {
		return Frame{}, errors.Wrap(err, "frame: reading type")
	}
	channel, err := r.ReadUint16()
	if err != nil {
		return Frame{}, errors.Wrap(err, "frame: reading channel")
	}

	headerLen := int(doff)*4 - 8
	var extended []byte
	if headerLen > 0 {
		extended, err = r.ReadBytes(headerLen)
		if err != nil {
			return Frame{}, errors.Wrap(err, "frame: reading extended header")
		}
	}

	bodyLen := int(size) - int(doff)*4
	if bodyLen < 0 {
		return Frame{}, errors.Errorf("frame: doff %d exceeds declared size %d", doff, size)
	}
	var body []byte
	if bodyLen > 0 {
		body, err = r.ReadBytes(bodyLen)
		if err != nil {
			return Frame{}, errors.Wrap(err, "frame: reading body")
		}
	}

	return Frame{
		Channel:        channel,
		Type:           Type(typ),
		ExtendedHeader: append([]byte(nil), extended...),
		Body:           append([]byte(nil), body...),
	}, nil
}

// WriteFrame serializes f's header and body into w, computing DOFF and
// size from the actual extended-header and body lengths.
func WriteFrame(w *buffer.Buffer, f Frame) error {
	doff := 2 + (len(f.ExtendedHeader)+3)/4
	size := doff*4 + len(f.Body)

	w.WriteUint32(uint32(size))
	if err := w.WriteByte(byte(doff)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(f.Type)); err != nil {
		return err
	}
	w.WriteUint16(f.Channel)
	if pad := doff*4 - 8 - len(f.ExtendedHeader); pad >= 0 {
		w.Append(f.ExtendedHeader)
		for i := 0; i < pad; i++ {
			_ = w.WriteByte(0)
		}
	}
	w.Append(f.Body)
	return nil
}

// WriteHeartbeat writes the empty 8-byte keepalive frame for channel 0.
func WriteHeartbeat(w *buffer.Buffer) {
	w.WriteUint32(MinFrameSize)
	_ = w.WriteByte(2)
	_ = w.WriteByte(byte(TypeAMQP))
	w.WriteUint16(0)
}
