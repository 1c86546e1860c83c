package buffer

import (
	"errors"
)

// Usage describes how a Buffer is bound. Flags may be combined.
type Usage uint32

const (
	// UsageVertex allows the buffer to be bound as a vertex buffer.
	UsageVertex Usage = 1 << iota
	// UsageIndex allows the buffer to be bound as an index buffer.
	UsageIndex
	// UsageStorage allows the buffer to be bound as a structured or atomic storage block.
	UsageStorage
	// UsageUniform allows the buffer to be bound as a uniform block.
	UsageUniform
	// UsageIndirect allows the buffer to hold indirect draw or dispatch arguments.
	UsageIndirect
)

var (
	// ErrOutOfRange is returned when a read or write exceeds the buffer size.
	ErrOutOfRange = errors.New("buffer: access out of range")
	// ErrReleased is returned when a released buffer is used.
	ErrReleased = errors.New("buffer: use after release")
)

// Buffer is a typed, growable region of device memory. Buffers are owned by the component
// that created them; other components receive them only as borrowed handles for the
// duration of a frame.
type Buffer interface {
	// Label returns the debug label of the buffer.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Usage returns the binding usage flags the buffer was created with.
	//
	// Returns:
	//   - Usage: the usage flags
	Usage() Usage

	// Size returns the current allocated size in bytes.
	//
	// Returns:
	//   - uint64: the buffer size in bytes
	Size() uint64

	// Grow ensures the buffer holds at least size bytes. Existing contents are preserved.
	// Capacity grows geometrically so repeated small increases do not reallocate every frame.
	// When the buffer is reallocated any bind group referencing it must be rebuilt.
	//
	// Parameters:
	//   - size: the minimum required size in bytes
	//
	// Returns:
	//   - bool: true if the underlying storage was reallocated
	//   - error: an error if the allocation failed
	Grow(size uint64) (bool, error)

	// Write copies data into the buffer at the given byte offset.
	//
	// Parameters:
	//   - offset: the destination byte offset
	//   - data: the bytes to copy
	//
	// Returns:
	//   - error: ErrOutOfRange if the write exceeds Size
	Write(offset uint64, data []byte) error

	// Read synchronously copies size bytes starting at offset back to the host.
	// On device buffers this stalls until all previously submitted work has completed.
	//
	// Parameters:
	//   - offset: the source byte offset
	//   - size: the number of bytes to read
	//
	// Returns:
	//   - []byte: a host copy of the requested range
	//   - error: ErrOutOfRange if the range exceeds Size, or a mapping error
	Read(offset, size uint64) ([]byte, error)

	// Clear zeroes the whole buffer.
	//
	// Returns:
	//   - error: an error if the buffer was released
	Clear() error

	// Release frees the underlying storage. Further use returns ErrReleased.
	Release()
}

// HostBuffer is a Buffer backed by host memory. It is used by the software compute
// backends and by tests, and exposes its storage directly for in-place kernels.
type HostBuffer interface {
	Buffer

	// Bytes returns the backing storage. The slice is invalidated by Grow and Release.
	//
	// Returns:
	//   - []byte: the live backing bytes
	Bytes() []byte

	// Uint32s returns the backing storage viewed as 32-bit words, suitable for sync/atomic.
	// The slice is invalidated by Grow and Release.
	//
	// Returns:
	//   - []uint32: the live backing words
	Uint32s() []uint32
}

func checkRange(offset, length, size uint64) error {
	if offset > size || length > size-offset {
		return ErrOutOfRange
	}
	return nil
}

func nextCapacity(current, required uint64) uint64 {
	c := max(current, 256)
	for c < required {
		c *= 2
	}
	return c
}
