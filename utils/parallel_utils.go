package utils

import (
	"fmt"
	"runtime"
	"sync"
)

// MailBox carries messages of type T between NP threads. The pattern is:
// for range messages {Post}; Deliver; Receive from each expected sender.
// Every ordered pair of threads has its own queue, so a receiver can wait on
// a specific sender. Delivery and receipt block until Abort is called.
type MailBox[T any] struct {
	NP           int
	MessageChans [][]chan []T  // [from][to]
	PostMsgQs    []map[int][]T // One for each thread, key is target thread
	done         chan struct{}
	once         sync.Once
	err          error
}

// NewMailBox allows a sender to run up to depth deliveries ahead of each
// receiver before blocking.
func NewMailBox[T any](NP, depth int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([][]chan []T, NP),
		PostMsgQs:    make([]map[int][]T, NP),
		done:         make(chan struct{}),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make([]chan []T, NP)
		for m := 0; m < NP; m++ {
			if m != n {
				mb.MessageChans[n][m] = make(chan []T, depth)
			}
		}
		mb.PostMsgQs[n] = make(map[int][]T)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myThread, targetThread int, msg T) {
	if targetThread < 0 || targetThread > mb.NP-1 || targetThread == myThread {
		panic(fmt.Sprintf("target thread %d invalid for thread %d of %d", targetThread, myThread, mb.NP))
	}
	mb.PostMsgQs[myThread][targetThread] = append(mb.PostMsgQs[myThread][targetThread], msg)
}

// DeliverMyMessages hands everything posted by myThread to its targets and
// empties the outbox. It returns the abort error once the mailbox is aborted.
func (mb *MailBox[T]) DeliverMyMessages(myThread int) error {
	if err := mb.Err(); err != nil {
		return err
	}
	for targetThread, msgs := range mb.PostMsgQs[myThread] {
		select {
		case mb.MessageChans[myThread][targetThread] <- msgs:
		case <-mb.done:
			return mb.Err()
		}
		delete(mb.PostMsgQs[myThread], targetThread)
	}
	return nil
}

// ReceiveMyMessages waits for the next delivery from fromThread to myThread
func (mb *MailBox[T]) ReceiveMyMessages(myThread, fromThread int) (msgs []T, err error) {
	select {
	case msgs = <-mb.MessageChans[fromThread][myThread]:
		return msgs, nil
	case <-mb.done:
		return nil, mb.Err()
	}
}

// Abort releases every thread blocked in, or later entering, a delivery or
// a receipt. The first error wins.
func (mb *MailBox[T]) Abort(err error) {
	mb.once.Do(func() {
		mb.err = fmt.Errorf("mailbox aborted: %w", err)
		close(mb.done)
	})
}

// Err is nil until the mailbox is aborted
func (mb *MailBox[T]) Err() error {
	select {
	case <-mb.done:
		return mb.err
	default:
		return nil
	}
}

// PartitionMap splits MaxIndex items into ParallelDegree contiguous buckets
// whose sizes differ by at most one item.
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// This routine splits one dimension into pm.ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// ParallelDegree resolves a requested worker count against the number of
// items to share out. A request of zero or less means one worker per CPU.
func ParallelDegree(requested, items int) (np int) {
	np = requested
	if np <= 0 {
		np = runtime.NumCPU()
	}
	if np > items {
		np = items
	}
	if np < 1 {
		np = 1
	}
	return
}
