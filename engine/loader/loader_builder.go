package loader

import (
	"github.com/Carmen-Shannon/grain-go/engine/model"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithRenderer is an option builder that sets the Renderer used to upload meshes.
//
// Parameters:
//   - r: the renderer instance
//
// Returns:
//   - LoaderBuilderOption: a function that applies the renderer option to a loader
func WithRenderer(r renderer.Renderer) LoaderBuilderOption {
	return func(l *loader) {
		l.renderer = r
	}
}

// WithFrameCount declares how many animation frames loaded point files hold. The points of
// each frame follow each other in the file.
//
// Parameters:
//   - n: the frame count
//
// Returns:
//   - LoaderBuilderOption: a function that applies the frame count to a loader
func WithFrameCount(n uint32) LoaderBuilderOption {
	return func(l *loader) {
		l.frameCount = max(n, 1)
	}
}

// WithFPS sets the playback rate of loaded animated clouds.
func WithFPS(fps float32) LoaderBuilderOption {
	return func(l *loader) {
		l.fps = fps
	}
}

// WithCloud is an option builder that pre-populates the point cloud cache.
//
// Parameters:
//   - key: the cache key for the cloud
//   - pc: the cloud to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the cloud option to a loader
func WithCloud(key string, pc pointcloud.PointCloud) LoaderBuilderOption {
	return func(l *loader) {
		l.cloudCache[key] = pc
	}
}

// WithMesh is an option builder that pre-populates the mesh cache.
//
// Parameters:
//   - key: the cache key for the model
//   - m: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the mesh option to a loader
func WithMesh(key string, m model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.meshCache[key] = m
	}
}
