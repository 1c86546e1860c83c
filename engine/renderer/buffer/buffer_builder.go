package buffer

// BufferBuilderOption is a functional option applied to a buffer during construction.
type BufferBuilderOption func(*bufferConfig)

type bufferConfig struct {
	usage Usage
	size  uint64
	data  []byte
}

// WithUsage sets the binding usage flags of the buffer.
//
// Parameters:
//   - usage: the usage flags to create the buffer with
//
// Returns:
//   - BufferBuilderOption: a function that applies the usage option
func WithUsage(usage Usage) BufferBuilderOption {
	return func(c *bufferConfig) {
		c.usage |= usage
	}
}

// WithSize sets the initial size of the buffer in bytes.
//
// Parameters:
//   - size: the initial size in bytes
//
// Returns:
//   - BufferBuilderOption: a function that applies the size option
func WithSize(size uint64) BufferBuilderOption {
	return func(c *bufferConfig) {
		c.size = size
	}
}

// WithData uploads initial contents. The buffer is sized to at least len(data).
//
// Parameters:
//   - data: the initial contents
//
// Returns:
//   - BufferBuilderOption: a function that applies the data option
func WithData(data []byte) BufferBuilderOption {
	return func(c *bufferConfig) {
		c.data = data
		c.size = max(c.size, uint64(len(data)))
	}
}

func newBufferConfig(options []BufferBuilderOption) bufferConfig {
	var c bufferConfig
	for _, opt := range options {
		opt(&c)
	}
	// storage and uniform bindings must be a multiple of 4 bytes
	c.size = (c.size + 3) &^ 3
	return c
}
