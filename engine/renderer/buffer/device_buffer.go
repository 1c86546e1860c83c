package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceBuffer is a Buffer backed by a wgpu buffer.
type DeviceBuffer interface {
	Buffer

	// GPUBuffer returns the underlying wgpu buffer. The handle changes when Grow reallocates.
	//
	// Returns:
	//   - *wgpu.Buffer: the live wgpu buffer, or nil after Release
	GPUBuffer() *wgpu.Buffer
}

type deviceBuffer struct {
	mu *sync.Mutex

	device *wgpu.Device
	queue  *wgpu.Queue

	label  string
	usage  Usage
	size   uint64
	buffer *wgpu.Buffer
}

var _ DeviceBuffer = &deviceBuffer{}

// NewDeviceBuffer creates a Buffer in device memory. Every device buffer is also a copy
// source and destination so it can be grown, cleared and read back.
//
// Parameters:
//   - device: the wgpu device to allocate on
//   - queue: the queue used for uploads and readback copies
//   - label: the debug label
//   - options: variadic BufferBuilderOption functions configuring usage, size and contents
//
// Returns:
//   - DeviceBuffer: the new buffer
//   - error: an error if allocation fails
func NewDeviceBuffer(device *wgpu.Device, queue *wgpu.Queue, label string, options ...BufferBuilderOption) (DeviceBuffer, error) {
	c := newBufferConfig(options)
	b := &deviceBuffer{
		mu:     &sync.Mutex{},
		device: device,
		queue:  queue,
		label:  label,
		usage:  c.usage,
	}
	buf, err := b.allocate(max(c.size, 4))
	if err != nil {
		return nil, err
	}
	b.buffer = buf
	b.size = max(c.size, 4)
	if len(c.data) > 0 {
		b.queue.WriteBuffer(b.buffer, 0, c.data)
	}
	return b, nil
}

func (b *deviceBuffer) Label() string {
	return b.label
}

func (b *deviceBuffer) Usage() Usage {
	return b.usage
}

func (b *deviceBuffer) Size() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *deviceBuffer) GPUBuffer() *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer
}

func (b *deviceBuffer) Grow(size uint64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buffer == nil {
		return false, ErrReleased
	}
	if size <= b.size {
		return false, nil
	}

	newSize := nextCapacity(b.size, size)
	buf, err := b.allocate(newSize)
	if err != nil {
		return false, err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		buf.Release()
		return false, err
	}
	encoder.CopyBufferToBuffer(b.buffer, 0, buf, 0, b.size)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		buf.Release()
		return false, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	b.buffer.Release()
	b.buffer = buf
	b.size = newSize
	return true, nil
}

func (b *deviceBuffer) Write(offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buffer == nil {
		return ErrReleased
	}
	if err := checkRange(offset, uint64(len(data)), b.size); err != nil {
		return err
	}
	b.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

func (b *deviceBuffer) Read(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buffer == nil {
		return nil, ErrReleased
	}
	if err := checkRange(offset, size, b.size); err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	aligned := (size + 3) &^ 3

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label + " Readback",
		Size:  aligned,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(b.buffer, offset, staging, 0, aligned)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return nil, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, aligned, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, fmt.Errorf("buffer %q: map failed: %w", b.label, err)
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.New("buffer " + b.label + ": map was not successful")
	}

	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(aligned)))
	staging.Unmap()
	return out, nil
}

func (b *deviceBuffer) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buffer == nil {
		return ErrReleased
	}
	b.queue.WriteBuffer(b.buffer, 0, make([]byte, b.size))
	return nil
}

func (b *deviceBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
	b.size = 0
}

func (b *deviceBuffer) allocate(size uint64) (*wgpu.Buffer, error) {
	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label,
		Size:  size,
		Usage: wgpuUsage(b.usage),
	})
}

// wgpuUsage maps Usage flags onto wgpu buffer usage flags.
func wgpuUsage(u Usage) wgpu.BufferUsage {
	usage := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if u&UsageVertex != 0 {
		usage |= wgpu.BufferUsageVertex
	}
	if u&UsageIndex != 0 {
		usage |= wgpu.BufferUsageIndex
	}
	if u&UsageStorage != 0 {
		usage |= wgpu.BufferUsageStorage
	}
	if u&UsageUniform != 0 {
		usage |= wgpu.BufferUsageUniform
	}
	if u&UsageIndirect != 0 {
		usage |= wgpu.BufferUsageIndirect
	}
	return usage
}
