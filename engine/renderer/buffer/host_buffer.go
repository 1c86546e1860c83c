package buffer

import (
	"sync"

	"github.com/Carmen-Shannon/grain-go/common"
)

type hostBuffer struct {
	mu *sync.Mutex

	label string
	usage Usage
	size  uint64

	// words backs the storage so atomics on Uint32s are always aligned
	words    []uint64
	released bool
}

var _ HostBuffer = &hostBuffer{}

// NewHostBuffer creates a Buffer backed by host memory.
//
// Parameters:
//   - label: the debug label
//   - options: variadic BufferBuilderOption functions configuring usage, size and contents
//
// Returns:
//   - HostBuffer: the new buffer
func NewHostBuffer(label string, options ...BufferBuilderOption) HostBuffer {
	c := newBufferConfig(options)
	b := &hostBuffer{
		mu:    &sync.Mutex{},
		label: label,
		usage: c.usage,
		size:  c.size,
		words: make([]uint64, (c.size+7)/8),
	}
	copy(b.bytesLocked(), c.data)
	return b
}

func (b *hostBuffer) Label() string {
	return b.label
}

func (b *hostBuffer) Usage() Usage {
	return b.usage
}

func (b *hostBuffer) Size() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *hostBuffer) Grow(size uint64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return false, ErrReleased
	}
	if size <= b.size {
		return false, nil
	}
	newSize := nextCapacity(b.size, size)
	words := make([]uint64, (newSize+7)/8)
	copy(words, b.words)
	b.words = words
	b.size = newSize
	return true, nil
}

func (b *hostBuffer) Write(offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrReleased
	}
	if err := checkRange(offset, uint64(len(data)), b.size); err != nil {
		return err
	}
	copy(b.bytesLocked()[offset:], data)
	return nil
}

func (b *hostBuffer) Read(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	if err := checkRange(offset, size, b.size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, b.bytesLocked()[offset:offset+size])
	return out, nil
}

func (b *hostBuffer) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrReleased
	}
	clear(b.words)
	return nil
}

func (b *hostBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.words = nil
	b.size = 0
	b.released = true
}

func (b *hostBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytesLocked()
}

func (b *hostBuffer) Uint32s() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return common.BytesToSlice[uint32](b.bytesLocked())
}

func (b *hostBuffer) bytesLocked() []byte {
	raw := common.SliceToBytes(b.words)
	if raw == nil {
		return nil
	}
	return raw[:b.size]
}
