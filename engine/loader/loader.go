package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/grain-go/engine/model"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/material"
)

// Format identifies a file format handled by the Loader.
type Format string

const (
	// FormatBin is raw little-endian float32 xyz triplets.
	FormatBin Format = ".bin"
	// FormatXYZ is a text file with one point per line.
	FormatXYZ Format = ".xyz"
	// FormatOBJ is a Wavefront OBJ mesh.
	FormatOBJ Format = ".obj"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	renderer renderer.Renderer

	cloudCache map[string]pointcloud.PointCloud
	meshCache  map[string]model.Model

	frameCount uint32
	fps        float32

	points map[Format]pointBackend
	meshes map[Format]meshBackend
}

// Loader loads and caches the point clouds and grain meshes the viewer draws. The backend
// is selected from the file extension. Loaded resources are cached by path, or by name
// for streams.
type Loader interface {
	// LoadPoints imports a point cloud file and caches the result.
	// If the cloud is already cached (by file path), the cached version is returned.
	//
	// Parameters:
	//   - path: the file path to the point file (.bin or .xyz)
	//
	// Returns:
	//   - pointcloud.PointCloud: the loaded and cached cloud
	//   - error: error if the format is unsupported or decoding fails
	LoadPoints(path string) (pointcloud.PointCloud, error)

	// LoadPointsReader imports a point cloud from a reader stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key for the loaded cloud
	//   - r: the reader providing point data
	//   - format: the stream format
	//
	// Returns:
	//   - pointcloud.PointCloud: the loaded cloud
	//   - error: error if the format is unsupported or decoding fails
	LoadPointsReader(name string, r io.Reader, format Format) (pointcloud.PointCloud, error)

	// LoadMesh imports a grain mesh file and caches the result. With a Renderer configured the
	// mesh buffers are uploaded and attached as the model's mesh provider.
	//
	// Parameters:
	//   - path: the file path to the mesh file (.obj)
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading or uploading fails
	LoadMesh(path string) (model.Model, error)

	// LoadMeshReader imports a grain mesh from a reader stream and caches it by the given name.
	// Material libraries cannot be resolved from a stream and are skipped.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing mesh data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading or uploading fails
	LoadMeshReader(name string, r io.Reader) (model.Model, error)

	// UploadMesh creates the GPU vertex and index buffers of a model built elsewhere, such as
	// a procedural icosphere. It is a no-op without a Renderer or when already uploaded.
	//
	// Parameters:
	//   - m: the model to upload
	//
	// Returns:
	//   - error: error if the buffers could not be created
	UploadMesh(m model.Model) error

	// Cloud retrieves a cached point cloud by name. Returns nil if not found.
	Cloud(name string) pointcloud.PointCloud

	// Mesh retrieves a cached model by name. Returns nil if not found.
	Mesh(name string) model.Model

	// Release frees every cached point cloud and clears both caches.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with every built-in backend registered and the options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:         sync.RWMutex{},
		cloudCache: make(map[string]pointcloud.PointCloud),
		meshCache:  make(map[string]model.Model),
		frameCount: 1,
		fps:        pointcloud.DefaultFPS,
		points: map[Format]pointBackend{
			FormatBin: newBinLoaderBackend(),
			FormatXYZ: newXYZLoaderBackend(),
		},
		meshes: map[Format]meshBackend{
			FormatOBJ: newOBJLoaderBackend(),
		},
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) LoadPoints(path string) (pointcloud.PointCloud, error) {
	l.mu.RLock()
	if cached, ok := l.cloudCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolvePointBackend(formatOf(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	defer f.Close()

	return l.decodePoints(path, f, backend)
}

func (l *loader) LoadPointsReader(name string, r io.Reader, format Format) (pointcloud.PointCloud, error) {
	l.mu.RLock()
	if cached, ok := l.cloudCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolvePointBackend(format)
	if err != nil {
		return nil, err
	}
	return l.decodePoints(name, r, backend)
}

func (l *loader) LoadMesh(path string) (model.Model, error) {
	l.mu.RLock()
	if cached, ok := l.meshCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveMeshBackend(formatOf(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	open := func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(dir, name))
	}
	return l.decodeMesh(path, f, backend, open)
}

func (l *loader) LoadMeshReader(name string, r io.Reader) (model.Model, error) {
	l.mu.RLock()
	if cached, ok := l.meshCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveMeshBackend(FormatOBJ)
	if err != nil {
		return nil, err
	}
	return l.decodeMesh(name, r, backend, nil)
}

func (l *loader) UploadMesh(m model.Model) error {
	if l.renderer == nil || m.MeshProvider() != nil {
		return nil
	}
	provider := bind_group_provider.NewBindGroupProvider(m.Name() + "_mesh")
	if err := l.renderer.InitMeshBuffers(provider, m.VertexData(), m.IndexData(), m.IndexCount()); err != nil {
		return fmt.Errorf("failed to init mesh buffers for %q: %w", m.Name(), err)
	}
	m.SetMeshProvider(provider)
	return nil
}

func (l *loader) Cloud(name string) pointcloud.PointCloud {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cloudCache[name]
}

func (l *loader) Mesh(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.meshCache[name]
}

func (l *loader) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, pc := range l.cloudCache {
		pc.Release()
	}
	clear(l.cloudCache)
	for _, m := range l.meshCache {
		if p := m.MeshProvider(); p != nil {
			p.Release()
		}
	}
	clear(l.meshCache)
}

func (l *loader) decodePoints(key string, r io.Reader, backend pointBackend) (pointcloud.PointCloud, error) {
	positions, err := backend.LoadPoints(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	pc, err := pointcloud.NewPointCloud(key, positions,
		pointcloud.WithFrameCount(l.frameCount),
		pointcloud.WithFPS(l.fps),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}

	l.mu.Lock()
	l.cloudCache[key] = pc
	l.mu.Unlock()
	return pc, nil
}

func (l *loader) decodeMesh(key string, r io.Reader, backend meshBackend, open func(string) (io.ReadCloser, error)) (model.Model, error) {
	imported, err := backend.LoadMesh(r, open)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}

	mats := make([]material.Material, len(imported.Materials))
	for i, d := range imported.Materials {
		mats[i] = material.NewMaterial(
			material.WithName(d.Name),
			material.WithBaseColor(d.BaseColor),
			material.WithMetallic(d.Metallic),
			material.WithRoughness(d.Roughness),
		)
	}
	m := model.NewModel(
		model.WithName(key),
		model.WithMesh(imported.Vertices, imported.Indices),
		model.WithMaterials(mats),
	)
	if err := l.UploadMesh(m); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.meshCache[key] = m
	l.mu.Unlock()
	return m, nil
}

// resolvePointBackend selects the point backend registered for a format.
func (l *loader) resolvePointBackend(format Format) (pointBackend, error) {
	if b, ok := l.points[format]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("unsupported point format: %s", format)
}

// resolveMeshBackend selects the mesh backend registered for a format.
func (l *loader) resolveMeshBackend(format Format) (meshBackend, error) {
	if b, ok := l.meshes[format]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("unsupported mesh format: %s", format)
}

func formatOf(path string) Format {
	return Format(strings.ToLower(filepath.Ext(path)))
}
