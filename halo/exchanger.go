package halo

import (
	"fmt"

	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/recovery"
	"github.com/notargets/anisocfd/utils"
)

type message struct {
	tag    FieldTag
	stride int
	data   []float64
}

// Exchanger connects the partitions of one mesh running in the same
// process through a mailbox with one thread per partition. A partition
// posts and delivers all of its sends before receiving, so a
// synchronization completes once every partition has entered it.
type Exchanger struct {
	parts []*mesh.Partition
	mb    *utils.MailBox[message]
}

func NewExchanger(parts []*mesh.Partition) *Exchanger {
	return &Exchanger{
		parts: parts,
		// A partition never runs more than one synchronization ahead of a
		// neighbor
		mb: utils.NewMailBox[message](len(parts), 4),
	}
}

// Endpoint returns the synchronizer used by partition rank
func (x *Exchanger) Endpoint(rank int) *Endpoint {
	return &Endpoint{x: x, part: x.parts[rank]}
}

// Abort releases every partition blocked in, or later entering, a
// synchronization. Partitions call it when they fail so their neighbors do
// not wait forever for data that will never be sent.
func (x *Exchanger) Abort(err error) {
	x.mb.Abort(err)
}

func aborted(err error) error {
	return fmt.Errorf("halo exchange aborted: %w", err)
}

type Endpoint struct {
	x    *Exchanger
	part *mesh.Partition
}

func (e *Endpoint) Rank() int { return e.part.Rank }

// Synchronize sends the owned values neighbors keep halo copies of, then
// overwrites the local halo copies with the values received from their
// owners.
func (e *Endpoint) Synchronize(tag FieldTag, f *recovery.Field) error {
	var (
		mb     = e.x.mb
		rank   = e.part.Rank
		stride = f.Layout.Stride()
	)
	if err := mb.Err(); err != nil {
		return aborted(err)
	}
	if f.NumVertices != e.part.Mesh.NumVertices {
		return fmt.Errorf("partition %d: field %s has %d vertices, partition mesh has %d",
			rank, f.Name, f.NumVertices, e.part.Mesh.NumVertices)
	}
	for q, send := range e.part.Send {
		msg := message{tag: tag, stride: stride, data: make([]float64, 0, len(send)*stride)}
		for _, lv := range send {
			msg.data = append(msg.data, f.Vertex(lv)...)
		}
		mb.PostMessage(rank, q, msg)
	}
	if err := mb.DeliverMyMessages(rank); err != nil {
		return aborted(err)
	}
	for q, recv := range e.part.Recv {
		msgs, err := mb.ReceiveMyMessages(rank, q)
		if err != nil {
			return aborted(err)
		}
		if len(msgs) != 1 {
			return fmt.Errorf("partition %d: expected one %v message from partition %d, got %d",
				rank, tag, q, len(msgs))
		}
		msg := msgs[0]
		if msg.tag != tag || msg.stride != stride || len(msg.data) != len(recv)*stride {
			return fmt.Errorf("partition %d: expected %v with stride %d for %d vertices from partition %d, got %v with stride %d and %d values",
				rank, tag, stride, len(recv), q, msg.tag, msg.stride, len(msg.data))
		}
		for i, lv := range recv {
			copy(f.Vertex(lv), msg.data[i*stride:(i+1)*stride])
		}
	}
	return nil
}
