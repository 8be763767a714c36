package hardware

import (
	"unsafe"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/utils"
	"github.com/pkg/errors"
)

// BufferPadding is the number of guard entries past the rounded length. It covers
// SIMD padding at the widest vector width plus small shifted accesses.
const BufferPadding = 16

// Buffer is a typed device allocation bound to one queue. The Buffer value
// stays the same across Resize so expression nodes referring to it stay valid.
type Buffer struct {
	q        *Queue
	t        element.TypeID
	n        int
	capacity int
	mem      DeviceMemory
}

var _ element.Memory = (*Buffer)(nil)

// NewBuffer allocates n entries of type t on queue q
func NewBuffer(q *Queue, t element.TypeID, n int) (*Buffer, error) {
	if q == nil {
		panic("queue cannot be nil")
	}
	if !t.Valid() {
		return nil, utils.Contract("NewBuffer", "invalid element type %v", t)
	}
	if n < 0 {
		return nil, utils.Contract("NewBuffer", "negative length %d", n)
	}
	b := &Buffer{q: q, t: t}
	if err := b.allocate(n); err != nil {
		return nil, err
	}
	return b, nil
}

// Capacity returns the padded entry count for n entries
func Capacity(n int) int {
	return (n+BufferPadding-1)/BufferPadding*BufferPadding + BufferPadding
}

func (b *Buffer) allocate(n int) error {
	capacity := Capacity(n)
	mem, err := b.q.dev.Malloc(int64(capacity * b.t.Size()))
	if err != nil {
		return errors.Wrapf(err, "allocating %d %s entries on %s", capacity, b.t, b.q.name)
	}
	if b.mem != nil {
		b.mem.Free()
	}
	b.mem, b.n, b.capacity = mem, n, capacity
	return nil
}

func (b *Buffer) Type() element.TypeID { return b.t }
func (b *Buffer) Len() int             { return b.n }
func (b *Buffer) Capacity() int        { return b.capacity }
func (b *Buffer) Queue() *Queue        { return b.q }
func (b *Buffer) QueueName() string    { return b.q.name }
func (b *Buffer) Bytes() int64         { return int64(b.n * b.t.Size()) }

// Arg is the current device handle; it changes when a resize reallocates
func (b *Buffer) Arg() interface{} {
	if b.mem == nil {
		return nil
	}
	return b.mem.Handle()
}

// Resize sets the logical length to n. Contents are kept while n fits the
// current allocation and undefined after a reallocation.
func (b *Buffer) Resize(n int) error {
	if n < 0 {
		return utils.Contract("Buffer.Resize", "negative length %d", n)
	}
	if b.mem != nil && Capacity(n) <= b.capacity {
		b.n = n
		return nil
	}
	return b.allocate(n)
}

// Write copies n entries from host memory at src into the buffer
func (b *Buffer) Write(src unsafe.Pointer, n int) error {
	if n > b.n {
		return utils.Contract("Buffer.Write", "%d entries written into a buffer of %d", n, b.n)
	}
	if n == 0 {
		return nil
	}
	return b.mem.Write(src, int64(n*b.t.Size()))
}

// Read copies n entries of the buffer into host memory at dst
func (b *Buffer) Read(dst unsafe.Pointer, n int) error {
	if n > b.n {
		return utils.Contract("Buffer.Read", "%d entries read from a buffer of %d", n, b.n)
	}
	if n == 0 {
		return nil
	}
	return b.mem.Read(dst, int64(n*b.t.Size()))
}

// Free releases the device allocation
func (b *Buffer) Free() {
	if b.mem != nil {
		b.mem.Free()
		b.mem = nil
	}
	b.n, b.capacity = 0, 0
}
