package loader

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/grain-go/engine/model"
	"github.com/chewxy/math32"
)

// objLoaderBackend reads Wavefront OBJ meshes with their MTL material libraries. Polygons
// are fan triangulated. Vertices without a normal use the direction from the origin, which
// suits the convex grain meshes this loader is used for.
type objLoaderBackend struct{}

var _ meshBackend = &objLoaderBackend{}

func newOBJLoaderBackend() *objLoaderBackend {
	return &objLoaderBackend{}
}

type objCorner struct {
	v, vt, vn int
}

func (o *objLoaderBackend) LoadMesh(r io.Reader, open func(name string) (io.ReadCloser, error)) (*ImportedMesh, error) {
	var (
		positions [][3]float32
		normals   [][3]float32
		uvs       [][2]float32
		library   = map[string]MaterialDesc{}
		used      []string
		mesh      = &ImportedMesh{}
		corners   = map[objCorner]uint32{}
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v", "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: %w", line, err)
			}
			if fields[0] == "v" {
				positions = append(positions, [3]float32{v[0], v[1], v[2]})
			} else {
				normals = append(normals, [3]float32{v[0], v[1], v[2]})
			}
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("obj: line %d: %w", line, err)
			}
			uvs = append(uvs, [2]float32{v[0], v[1]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: line %d: face needs 3 vertices", line)
			}
			face := make([]uint32, 0, len(fields)-1)
			for _, spec := range fields[1:] {
				c, err := parseCorner(spec, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				idx, ok := corners[c]
				if !ok {
					idx = uint32(len(mesh.Vertices))
					corners[c] = idx
					mesh.Vertices = append(mesh.Vertices, buildVertex(c, positions, uvs, normals))
				}
				face = append(face, idx)
			}
			for i := 1; i+1 < len(face); i++ {
				mesh.Indices = append(mesh.Indices, face[0], face[i], face[i+1])
			}
		case "usemtl":
			if len(fields) > 1 && !slices.Contains(used, fields[1]) {
				used = append(used, fields[1])
			}
		case "mtllib":
			if open == nil || len(fields) < 2 {
				continue
			}
			if err := loadMTL(open, fields[1], library); err != nil {
				return nil, fmt.Errorf("obj: line %d: %w", line, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("obj: no faces")
	}

	for _, name := range used {
		desc, ok := library[name]
		if !ok {
			desc = MaterialDesc{Name: name, BaseColor: [3]float32{1, 1, 1}, Roughness: 0.5}
		}
		mesh.Materials = append(mesh.Materials, desc)
	}
	return mesh, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d numbers, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := range n {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseCorner resolves a face corner "v", "v/vt", "v//vn" or "v/vt/vn" to zero based
// indices, -1 meaning absent. Negative OBJ indices count back from the latest element.
func parseCorner(spec string, nv, nvt, nvn int) (objCorner, error) {
	c := objCorner{v: -1, vt: -1, vn: -1}
	parts := strings.Split(spec, "/")
	counts := []int{nv, nvt, nvn}
	dst := []*int{&c.v, &c.vt, &c.vn}
	for i, p := range parts {
		if i > 2 {
			break
		}
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return c, fmt.Errorf("bad face index %q", spec)
		}
		if n < 0 {
			n = counts[i] + n
		} else {
			n--
		}
		if n < 0 || n >= counts[i] {
			return c, fmt.Errorf("face index %q out of range", spec)
		}
		*dst[i] = n
	}
	if c.v < 0 {
		return c, fmt.Errorf("face corner %q has no position", spec)
	}
	return c, nil
}

func buildVertex(c objCorner, positions [][3]float32, uvs [][2]float32, normals [][3]float32) model.GPUVertex {
	v := model.GPUVertex{Position: positions[c.v]}
	if c.vt >= 0 {
		v.TexCoord = uvs[c.vt]
	}
	if c.vn >= 0 {
		v.Normal = normals[c.vn]
	} else {
		p := v.Position
		if l := math32.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2]); l > 0 {
			v.Normal = [3]float32{p[0] / l, p[1] / l, p[2] / l}
		}
	}
	return v
}

// loadMTL reads the subset of MTL used by grain materials: Kd as the base color and the PBR
// extension keys Pm (metallic) and Pr (roughness).
func loadMTL(open func(string) (io.ReadCloser, error), name string, library map[string]MaterialDesc) error {
	f, err := open(name)
	if err != nil {
		return fmt.Errorf("mtllib %s: %w", name, err)
	}
	defer f.Close()

	var current *MaterialDesc
	flush := func() {
		if current != nil {
			library[current.Name] = *current
		}
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "newmtl":
			flush()
			current = &MaterialDesc{Name: fields[1], BaseColor: [3]float32{1, 1, 1}, Roughness: 0.5}
		case "Kd":
			if v, err := parseFloats(fields[1:], 3); err == nil && current != nil {
				current.BaseColor = [3]float32{v[0], v[1], v[2]}
			}
		case "Pm":
			if v, err := parseFloats(fields[1:], 1); err == nil && current != nil {
				current.Metallic = v[0]
			}
		case "Pr":
			if v, err := parseFloats(fields[1:], 1); err == nil && current != nil {
				current.Roughness = v[0]
			}
		}
	}
	flush()
	return scanner.Err()
}
