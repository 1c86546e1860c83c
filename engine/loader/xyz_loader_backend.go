package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// xyzLoaderBackend reads text point files: one point per line as at least three whitespace
// separated numbers. Extra columns (colors, normals) are ignored, as are blank lines and
// lines starting with '#'.
type xyzLoaderBackend struct{}

var _ pointBackend = &xyzLoaderBackend{}

func newXYZLoaderBackend() *xyzLoaderBackend {
	return &xyzLoaderBackend{}
}

func (x *xyzLoaderBackend) LoadPoints(r io.Reader) ([]float32, error) {
	var positions []float32
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("xyz: line %d: expected 3 coordinates, got %d", line, len(fields))
		}
		for _, f := range fields[:3] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("xyz: line %d: %w", line, err)
			}
			positions = append(positions, float32(v))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return positions, nil
}
