package broker

import (
	"context"
	"io"
	"sync"

	"github.com/amqp-broker/brokerd/internal/buffer"
	"github.com/amqp-broker/brokerd/internal/frames"
)

// RunReader implements the reader half of C12: loop reading frames off
// r and enqueueing them on the bus's inbound queue tagged with connID,
// until a read fails or ctx is cancelled. It returns the terminating
// error (ctx.Err() when ctx is cancelled during a publish).
func RunReader(ctx context.Context, connID string, r io.Reader, bus *FrameBus) error {
	br := bufferedReader{r: r}
	for {
		header, err := br.readN(4)
		if err != nil {
			return err
		}
		size := beUint32(header)
		rest, err := br.readN(int(size) - 4)
		if err != nil {
			return err
		}
		full := append(header, rest...)
		f, err := frames.ReadFrame(buffer.New(full))
		if err != nil {
			return err
		}
		if err := bus.PublishInbound(ctx, connID, f); err != nil {
			return err
		}
	}
}

// RunWriter implements the writer half of C12: loop dequeuing frames
// from the connection's channel-0 outbound queue (the connection-level
// control queue; session/link frames are routed through their own
// per-channel queues the same way, each with its own RunWriter-style
// drain loop in the harness) and emitting them via the framer, until
// ctx is cancelled.
func RunWriter(ctx context.Context, w io.Writer, q *queueReader) error {
	for {
		f, ok := q.pop(ctx)
		if !ok {
			return ctx.Err()
		}
		buf := buffer.New(nil)
		if err := frames.WriteFrame(buf, f); err != nil {
			return err
		}
		if _, err := w.Write(buf.Detach()); err != nil {
			return err
		}
	}
}

// queueReader narrows *queue.Queue[frames.Frame] to just Pop, avoiding
// a generics import cycle between broker and its callers' queue
// instantiations.
type queueReader struct {
	pop func(ctx context.Context) (frames.Frame, bool)
}

// NewQueueReader adapts a pop function (typically
// (*queue.Queue[frames.Frame]).Pop) into a queueReader for RunWriter.
func NewQueueReader(pop func(ctx context.Context) (frames.Frame, bool)) *queueReader {
	return &queueReader{pop: pop}
}

// bufferedReader does the minimal buffering RunReader needs: read
// exactly n bytes, blocking across multiple underlying Read calls.
type bufferedReader struct {
	r io.Reader
}

func (br *bufferedReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// StartConnection wires C11 and C12 together for one accepted socket:
// negotiate the protocol header, then spawn the reader and writer
// tasks against the shared frame bus. It returns once negotiation
// completes (successfully or not); the reader/writer run in their own
// goroutines and signal completion via the returned WaitGroup.
func StartConnection(ctx context.Context, connID string, conn io.ReadWriteCloser, bus *FrameBus, writerQueue *queueReader) (*sync.WaitGroup, error) {
	if err := NegotiateHeader(conn); err != nil {
		conn.Close()
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		RunReader(ctx, connID, conn, bus)
		conn.Close()
	}()
	go func() {
		defer wg.Done()
		RunWriter(ctx, conn, writerQueue)
		conn.Close()
	}()
	return &wg, nil
}
