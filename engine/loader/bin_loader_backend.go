package loader

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// binLoaderBackend reads raw little-endian float32 xyz triplets with no header.
type binLoaderBackend struct{}

var _ pointBackend = &binLoaderBackend{}

func newBinLoaderBackend() *binLoaderBackend {
	return &binLoaderBackend{}
}

func (b *binLoaderBackend) LoadPoints(r io.Reader) ([]float32, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw)%12 != 0 {
		return nil, fmt.Errorf("bin: %d bytes is not a whole number of xyz float32 triplets", len(raw))
	}
	positions := make([]float32, len(raw)/4)
	for i := range positions {
		v := math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("bin: point %d is not finite", i/3)
		}
		positions[i] = v
	}
	return positions, nil
}
