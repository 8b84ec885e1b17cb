package video

import "sync/atomic"

// Buffer is a fixed-capacity circular store of frames shared between one
// producer and any number of consumers. The producer advances the write
// cursor one slot per write, wrapping at capacity, and never blocks on
// consumers: a slot holding an unread frame is simply overwritten. That is
// the delivery policy: a lagging consumer silently loses frames and stays
// bounded in staleness. It is not backpressured delivery.
//
// Each consumer owns its own cursor and chases the write cursor; there is
// no cross-consumer coordination. A slot write is a whole-pointer
// replacement, so a reader racing a write observes either the old frame or
// the new one, never a blend. At pins the frame it returns; an evicted
// frame's pixels are freed only when the last pin is released, so a reader
// lapped mid-read still holds live memory.
type Buffer struct {
	slots    []atomic.Pointer[Frame]
	capacity int

	// writeIdx is the slot index of the most recent write. It starts at
	// capacity-1 so the first write lands in slot 0.
	writeIdx atomic.Int64

	// count is the cumulative number of frames ever written, used for
	// liveness reporting. It never wraps with the cursor.
	count atomic.Uint64

	notify chan struct{}
}

// NewBuffer creates a buffer with the given slot capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer{
		slots:    make([]atomic.Pointer[Frame], capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
	b.writeIdx.Store(int64(capacity - 1))
	return b
}

// Capacity returns the number of slots.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// WriteIndex returns the slot index of the most recent write.
func (b *Buffer) WriteIndex() int {
	return int(b.writeIdx.Load())
}

// FrameCount returns the cumulative number of frames written.
func (b *Buffer) FrameCount() uint64 {
	return b.count.Load()
}

// At returns the frame stored in slot i pinned with a reference the caller
// must Release, or nil if the slot has not been written yet. The pin keeps
// the pixel buffer alive even if the producer overwrites the slot while the
// caller is still reading.
func (b *Buffer) At(i int) *Frame {
	if i < 0 || i >= b.capacity {
		return nil
	}
	f := b.slots[i].Load()
	if f == nil || !f.retain() {
		return nil
	}
	return f
}

// Write stores a frame in the next slot and advances the write cursor.
// The buffer's reference on the evicted frame, if any, is dropped; the
// frame's pixels survive until any reader holding a pin releases it.
// Write never blocks.
func (b *Buffer) Write(f *Frame) {
	next := (int(b.writeIdx.Load()) + 1) % b.capacity
	old := b.slots[next].Swap(f)
	b.writeIdx.Store(int64(next))
	b.count.Add(1)
	if old != nil {
		old.Release()
	}

	// Wake one waiting consumer without ever blocking the producer.
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Wait returns a channel that receives when a new frame has been written.
// Consumers use it to cut polling latency; it carries at most one pending
// signal, so a caught-up consumer still re-checks the cursor after waking.
func (b *Buffer) Wait() <-chan struct{} {
	return b.notify
}
