// Package queue implements a committed FIFO queue gadget.
//
// A queue is summarised by a head commitment, a tail commitment and a
// length. The producer absorbs items into the tail; the consumer pops by
// absorbing the claimed item witness into the head. When every item has
// been consumed the head chain has replayed the tail chain, so the
// final consistency check is that head and tail commitments are equal.
// The compression function is any [hash.FieldHasher] supplied by the
// caller.
package queue

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
)

// State is a queue commitment triple. It appears both in circuit
// witnesses (carried FSM state) and as a live queue summary.
type State struct {
	Head   frontend.Variable
	Tail   frontend.Variable
	Length frontend.Variable
}

// StateValue is the native-side counterpart of State, used when building
// witnesses and continuation snapshots.
type StateValue struct {
	Head   *big.Int
	Tail   *big.Int
	Length uint64
}

// Assign returns the witness assignment for the state value.
func (v StateValue) Assign() State {
	return State{Head: v.Head, Tail: v.Tail, Length: v.Length}
}

// EmptyStateValue returns the state of a freshly created queue.
func EmptyStateValue() StateValue {
	return StateValue{Head: big.NewInt(0), Tail: big.NewInt(0), Length: 0}
}

// SelectState returns a if cond is 1 and b otherwise.
func SelectState(api frontend.API, cond frontend.Variable, a, b State) State {
	return State{
		Head:   api.Select(cond, a.Head, b.Head),
		Tail:   api.Select(cond, a.Tail, b.Tail),
		Length: api.Select(cond, a.Length, b.Length),
	}
}

// EnforceTrivialHead asserts that no item has been consumed from the
// queue yet. Externally supplied initial states must satisfy this.
func (s State) EnforceTrivialHead(api frontend.API) {
	api.AssertIsEqual(s.Head, 0)
}

// Queue is a live queue built from a state commitment.
type Queue struct {
	api frontend.API
	h   hash.FieldHasher

	head   frontend.Variable
	tail   frontend.Variable
	length frontend.Variable
}

// FromState attaches a queue to the given state commitment.
func FromState(api frontend.API, h hash.FieldHasher, st State) *Queue {
	return &Queue{api: api, h: h, head: st.Head, tail: st.Tail, length: st.Length}
}

// State returns the current commitment triple.
func (q *Queue) State() State {
	return State{Head: q.head, Tail: q.tail, Length: q.length}
}

// IsEmpty returns 1 when the queue holds no unconsumed items.
func (q *Queue) IsEmpty() frontend.Variable {
	return q.api.IsZero(q.length)
}

func (q *Queue) absorb(state frontend.Variable, item []frontend.Variable) frontend.Variable {
	q.h.Reset()
	q.h.Write(state)
	q.h.Write(item...)
	return q.h.Sum()
}

// Push appends the encoded item when enable is 1 and is a no-op
// otherwise.
func (q *Queue) Push(enable frontend.Variable, item []frontend.Variable) {
	next := q.absorb(q.tail, item)
	q.tail = q.api.Select(enable, next, q.tail)
	q.length = q.api.Add(q.length, enable)
}

// Pop consumes the front item when enable is 1. The caller provides the
// item as an auxiliary witness; soundness comes from the head chain
// having to replay the committed tail chain by the time the queue is
// drained. Popping from an empty queue is rejected.
func (q *Queue) Pop(enable frontend.Variable, item []frontend.Variable) {
	// enable => length != 0
	q.api.AssertIsEqual(q.api.Mul(enable, q.api.IsZero(q.length)), 0)
	next := q.absorb(q.head, item)
	q.head = q.api.Select(enable, next, q.head)
	q.length = q.api.Sub(q.length, enable)
}

// EnforceConsistency asserts that, if the queue is drained, the replayed
// head chain matches the committed tail chain. It returns the drained
// flag.
func (q *Queue) EnforceConsistency() frontend.Variable {
	empty := q.IsEmpty()
	q.api.AssertIsEqual(q.api.Mul(empty, q.api.Sub(q.head, q.tail)), 0)
	return empty
}
