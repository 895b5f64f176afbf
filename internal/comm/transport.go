package comm

import (
	"context"
	"fmt"

	"github.com/san-kum/mdcore/internal/dynamo"
)

// linkDepth bounds the messages in flight on one directed link. A rank
// never runs more than a couple of phases ahead of a neighbor it exchanges
// with, so sends do not block in practice.
const linkDepth = 64

// Message is one unit of communication between two ranks.
type Message struct {
	Kind  string
	Seq   uint64
	Count int
	Body  []byte
}

// World is the set of ranks of one run and the links between them.
type World struct {
	size  int
	links [][]chan Message // links[from][to]
	pool  *BufferPool
}

// NewWorld returns a fully connected world of size ranks.
func NewWorld(size int) *World {
	w := &World{size: size, links: make([][]chan Message, size), pool: NewBufferPool(4096)}
	for from := range w.links {
		w.links[from] = make([]chan Message, size)
		for to := range w.links[from] {
			w.links[from][to] = make(chan Message, linkDepth)
		}
	}
	return w
}

// Size returns the number of ranks.
func (w *World) Size() int { return w.size }

// Endpoint returns the communication handle of rank. Each rank must use
// exactly one endpoint, from one goroutine.
func (w *World) Endpoint(rank int) *Endpoint {
	return &Endpoint{
		world: w,
		rank:  rank,
		sent:  make([]uint64, w.size),
		recvd: make([]uint64, w.size),
	}
}

// Endpoint is one rank's view of the world.
type Endpoint struct {
	world *World
	rank  int
	sent  []uint64
	recvd []uint64
}

func (e *Endpoint) Rank() int { return e.rank }
func (e *Endpoint) Size() int { return e.world.size }

// Buffer returns a pooled buffer for a message body.
func (e *Endpoint) Buffer() []byte { return e.world.pool.Get() }

// Release hands a received body back to the pool.
func (e *Endpoint) Release(b []byte) { e.world.pool.Put(b) }

// Send queues a message for rank to. Ownership of body passes to the
// receiver.
func (e *Endpoint) Send(ctx context.Context, to int, kind string, count int, body []byte) error {
	msg := Message{Kind: kind, Seq: e.sent[to], Count: count, Body: body}
	e.sent[to]++
	select {
	case e.world.links[e.rank][to] <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rank %d send %s to %d: %w", e.rank, kind, to, dynamo.ErrAborted)
	}
}

// Recv blocks for the next message from rank from and checks that it is
// the one this rank expects. A mismatch is fatal.
func (e *Endpoint) Recv(ctx context.Context, from int, kind string) (Message, error) {
	var msg Message
	select {
	case msg = <-e.world.links[from][e.rank]:
	case <-ctx.Done():
		return Message{}, fmt.Errorf("rank %d recv %s from %d: %w", e.rank, kind, from, dynamo.ErrAborted)
	}
	want := e.recvd[from]
	e.recvd[from]++
	if msg.Kind != kind || msg.Seq != want {
		return Message{}, &dynamo.CommMismatchError{
			Rank: e.rank, Peer: from, Phase: kind,
			Want: fmt.Sprintf("%s #%d", kind, want),
			Got:  fmt.Sprintf("%s #%d", msg.Kind, msg.Seq),
		}
	}
	return msg, nil
}

// RecvSized is Recv plus a check that the body holds Count items of
// itemSize bytes, and optionally that Count equals want (want < 0 skips).
func (e *Endpoint) RecvSized(ctx context.Context, from int, kind string, itemSize, want int) (Message, error) {
	msg, err := e.Recv(ctx, from, kind)
	if err != nil {
		return msg, err
	}
	if len(msg.Body) != msg.Count*itemSize || (want >= 0 && msg.Count != want) {
		expect := want
		if expect < 0 {
			expect = msg.Count
		}
		return Message{}, &dynamo.CommMismatchError{
			Rank: e.rank, Peer: from, Phase: kind,
			Want: fmt.Sprintf("%d items (%d bytes)", expect, expect*itemSize),
			Got:  fmt.Sprintf("%d items (%d bytes)", msg.Count, len(msg.Body)),
		}
	}
	return msg, nil
}
