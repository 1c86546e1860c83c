package scene

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/camera"
	"github.com/Carmen-Shannon/grain-go/engine/culling"
	"github.com/Carmen-Shannon/grain-go/engine/grain"
	"github.com/Carmen-Shannon/grain-go/engine/loader"
	"github.com/Carmen-Shannon/grain-go/engine/model"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/chewxy/math32"
)

// DefaultPointCount is the size of the generated heap when a document names no points.
const DefaultPointCount = 100_000

const degrees = math32.Pi / 180

// Stats describes the last rendered frame of a scene.
type Stats struct {
	Frames     uint64
	Time       float32
	PointFrame uint32
	Points     uint32

	// Occlusion is true when the frame was culled against an occluder map.
	Occlusion bool

	Splitter splitter.Stats
	Culling  time.Duration
	Compose  time.Duration
}

type scene struct {
	mu  *sync.Mutex
	doc *Document

	settings Settings
	cam      camera.Camera

	renderer renderer.Renderer
	enc      grain.Encoder
	compiler shader.Compiler
	scratch  framebuffer.ScratchPool
	loader   loader.Loader
	pool     worker.DynamicWorkerPool
	workers  int
	headless bool

	ownsScratch, ownsLoader, ownsPool bool

	width, height int

	cloud      pointcloud.PointCloud
	data       pointcloud.Data
	uploaded   bool
	split      splitter.Splitter
	cull       culling.Pass
	compositor grain.Compositor
	atlases    *grain.AtlasTextures

	time   float32
	paused bool
	stats  Stats

	// culling and splitting failures are logged once until the pass recovers
	cullWarned  bool
	splitWarned bool
}

// Scene is a loaded GrainViewer scene: one point cloud, the camera framing it, and the
// per-frame pipeline of occlusion culling, splitting and composition.
//
// Without a Renderer the scene runs the software splitter and culling pass only; Render then
// classifies the frame without drawing it, which is what benchmarks and tests use.
type Scene interface {
	// Name returns the scene name.
	Name() string

	// Document returns the document the scene was built from.
	Document() *Document

	Camera() camera.Camera

	// Points returns the host point cloud.
	Points() pointcloud.PointCloud

	Splitter() splitter.Splitter

	// Culling returns the occlusion culling pass.
	Culling() culling.Pass

	// Compositor returns the compositor, or nil without a Renderer.
	Compositor() grain.Compositor

	// Settings returns the current component settings.
	Settings() Settings

	// SetSettings replaces the component settings. They apply from the next frame.
	//
	// Parameters:
	//   - s: the new settings
	SetSettings(s Settings)

	// Time returns the scene time in seconds.
	Time() float32

	Paused() bool

	// SetPaused stops or resumes the point cloud animation. The camera keeps moving.
	SetPaused(paused bool)

	// Update advances the scene time and the camera.
	//
	// Parameters:
	//   - dt: elapsed time since the last update in seconds
	Update(dt float32)

	// Render culls, splits and composes one frame. A culling failure degrades to culling
	// without occlusion and a range overflow only empties the offending render model; both
	// are logged and the frame goes on.
	//
	// Parameters:
	//   - ctx: cancels the host side of the frame
	//
	// Returns:
	//   - error: an error if the frame could not be split or composed
	Render(ctx context.Context) error

	// Resize adapts the camera, the culling pass and the render targets to a new viewport.
	//
	// Parameters:
	//   - width: the viewport width
	//   - height: the viewport height
	//
	// Returns:
	//   - error: a render target error
	Resize(width, height int) error

	// Reload drops every compiled shader variant of the scene.
	Reload()

	// Stats returns the statistics of the last frame.
	Stats() Stats

	// ToggleModel enables or disables a render model.
	//
	// Parameters:
	//   - m: Instance, Impostor or Point
	//
	// Returns:
	//   - bool: true if the model is now enabled
	ToggleModel(m splitter.RenderModel) bool

	// ToggleOcclusion enables or disables occlusion culling.
	//
	// Returns:
	//   - bool: true if occlusion culling is now enabled
	ToggleOcclusion() bool

	// ToggleShadows enables or disables the shadow map.
	//
	// Returns:
	//   - bool: true if shadows are now enabled
	ToggleShadows() bool

	// Release frees everything the scene created.
	Release()
}

var _ Scene = &scene{}
var _ shader.Reloader = &scene{}

// NewScene builds the scene described by a document.
//
// Configuration problems in the property sections are logged and the defaults are used in
// their place; missing points, meshes or atlases fail the scene.
//
// Parameters:
//   - doc: the scene document
//   - options: variadic SceneBuilderOption functions
//
// Returns:
//   - Scene: the scene
//   - error: an error if a resource could not be loaded
func NewScene(doc *Document, options ...SceneBuilderOption) (Scene, error) {
	s := &scene{
		mu:      &sync.Mutex{},
		doc:     doc,
		workers: max(runtime.NumCPU()-1, 1),
		width:   1280,
		height:  720,
	}
	for _, opt := range options {
		opt(s)
	}

	settings, err := doc.Settings()
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			log.Printf("[Scene] %s: %s, using the default", doc.Name, line)
		}
	}
	s.settings = settings

	if s.renderer != nil && s.enc == nil {
		s.enc = grain.NewEncoder(s.renderer)
	}
	if s.enc != nil && s.compiler == nil {
		return nil, fmt.Errorf("scene %s: a shader compiler is required to render", doc.Name)
	}
	if s.pool == nil {
		s.pool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
		s.ownsPool = true
	}
	if s.loader == nil {
		s.loader = s.newLoader()
		s.ownsLoader = true
	}

	if err := s.build(); err != nil {
		s.Release()
		return nil, fmt.Errorf("scene %s: %w", doc.Name, err)
	}
	log.Printf("[Scene] %s: %d points, %d frames", doc.Name, s.cloud.PointCount(), s.cloud.FrameCount())
	return s, nil
}

func (s *scene) newLoader() loader.Loader {
	opts := []loader.LoaderBuilderOption{}
	if s.renderer != nil {
		opts = append(opts, loader.WithRenderer(s.renderer))
	}
	if s.doc.Points.Frames > 0 {
		opts = append(opts, loader.WithFrameCount(s.doc.Points.Frames))
	}
	if s.doc.Points.FPS > 0 {
		opts = append(opts, loader.WithFPS(s.doc.Points.FPS))
	}
	return loader.NewLoader(opts...)
}

func (s *scene) build() error {
	if err := s.loadPoints(); err != nil {
		return err
	}
	s.setupCamera()

	if s.renderer != nil {
		data, err := pointcloud.Upload(s.cloud, s.renderer.Device(), s.renderer.Queue())
		if err != nil {
			return err
		}
		s.data, s.uploaded = data, true
	} else {
		s.data = s.cloud
	}

	splitOpts := []splitter.SplitterBuilderOption{
		splitter.WithProperties(s.settings.Splitter),
		splitter.WithPool(s.pool),
	}
	if s.renderer != nil {
		splitOpts = append(splitOpts,
			splitter.WithBackendType(splitter.BackendWGPU),
			splitter.WithRenderer(s.renderer),
			splitter.WithCompiler(s.compiler),
		)
	}
	split, err := splitter.NewSplitter(s.data, splitOpts...)
	if err != nil {
		return err
	}
	s.split = split

	if s.enc == nil {
		s.cull = culling.NewSoftwarePass(s.width, s.height, culling.WithPool(s.pool))
		return nil
	}

	if s.scratch == nil {
		if s.renderer == nil {
			return errors.New("a scratch pool is required without a renderer")
		}
		s.scratch = framebuffer.NewScratchPool(framebuffer.DefaultOwnership(), framebuffer.DeviceFactory(s.renderer.Device()), s.width, s.height)
		s.ownsScratch = true
	}
	if s.renderer != nil {
		s.cull = culling.NewGPUPass(s.renderer, s.scratch, s.compiler)
	} else {
		s.cull = culling.NewSoftwarePass(s.width, s.height, culling.WithPool(s.pool))
	}
	return s.buildCompositor()
}

func (s *scene) loadPoints() error {
	if file := s.doc.Points.File; file != "" {
		pc, err := s.loader.LoadPoints(s.doc.Resolve(file))
		if err != nil {
			return err
		}
		s.cloud = pc
		return nil
	}

	gen := s.doc.Points.Generate
	if gen == nil {
		gen = &GenerateSection{Count: DefaultPointCount}
	}
	shape := pointcloud.ShapeHeap
	switch strings.ToLower(gen.Shape) {
	case "", "heap":
	case "box":
		shape = pointcloud.ShapeBox
	default:
		log.Printf("[Scene] %s: unknown shape %q, generating a heap", s.doc.Name, gen.Shape)
	}
	opts := []pointcloud.GeneratorBuilderOption{
		pointcloud.WithShape(shape),
		pointcloud.WithExtent(gen.Extent, gen.Height),
		pointcloud.WithPool(s.pool),
	}
	if gen.Seed != 0 {
		opts = append(opts, pointcloud.WithSeed(gen.Seed))
	}
	if gen.Frames > 1 {
		opts = append(opts, pointcloud.WithFrames(gen.Frames, common.Coalesce(gen.Drop, 0.5)))
	}
	if s.doc.Points.FPS > 0 {
		opts = append(opts, pointcloud.WithGeneratorFPS(s.doc.Points.FPS))
	}
	pc, err := pointcloud.NewGenerator(common.Coalesce(gen.Count, DefaultPointCount), opts...).Generate(s.doc.Name)
	if err != nil {
		return err
	}
	s.cloud = pc
	return nil
}

func (s *scene) setupCamera() {
	c := s.doc.Camera
	if s.cam == nil {
		s.cam = camera.NewCamera(
			camera.WithAspect(float32(s.width)/float32(max(s.height, 1))),
			camera.WithController(camera.NewCameraController(camera.WithElevationBounds(-math32.Pi/2+0.01, math32.Pi/2-0.01))),
		)
	}
	if c.Fov > 0 {
		s.cam.SetFov(c.Fov * degrees)
	}
	if c.Fit == nil || *c.Fit {
		s.cam.FitBounds(s.cloud.Bounds())
	}

	cc := s.cam.Controller()
	if cc == nil {
		return
	}
	cc.SetAzimuth(c.Azimuth * degrees)
	if c.Elevation != 0 {
		cc.SetElevation(c.Elevation * degrees)
	}
	if c.Distance > 0 {
		cc.SetRadius(c.Distance)
	}
	cc.SetAutoRotate(c.AutoRotate * degrees)
	s.cam.Update()
}

func (s *scene) buildCompositor() error {
	var mesh model.Model
	if s.doc.Mesh != "" {
		m, err := s.loader.LoadMesh(s.doc.Resolve(s.doc.Mesh))
		if err != nil {
			return err
		}
		mesh = m
	} else {
		mesh = model.NewIcosphere("grain", 2, 1)
		if err := s.loader.UploadMesh(mesh); err != nil {
			return err
		}
	}

	atlases := grain.AtlasSet{}
	if len(s.doc.Atlases) > 0 && s.renderer != nil {
		files := make([]grain.AtlasFile, 0, len(s.doc.Atlases))
		for _, a := range s.doc.Atlases {
			files = append(files, grain.AtlasFile{
				Name:      a.Name,
				ViewCount: a.ViewCount,
				BaseColor: s.doc.Resolve(a.BaseColor),
				Normal:    s.doc.Resolve(a.Normal),
			})
		}
		tex, err := grain.LoadAtlases(s.renderer.Device(), s.renderer.Queue(), files)
		if err != nil {
			return err
		}
		s.atlases = tex
		atlases = tex.Set
	}

	renderers := grain.Renderers{
		Instance: grain.NewInstanceRenderer(s.enc, s.compiler,
			grain.WithMesh(mesh),
			grain.WithMaterials(s.settings.Materials),
		),
		Impostor: grain.NewImpostorRenderer(s.enc, s.compiler,
			grain.WithImpostorProperties(s.settings.Impostor),
			grain.WithAtlases(atlases),
		),
		Far: grain.NewFarRenderer(s.enc, s.compiler, grain.WithFarProperties(s.settings.Far)),
	}

	b := s.cloud.Bounds()
	opts := []grain.CompositorBuilderOption{
		grain.WithGrainProperties(s.settings.Grain),
		grain.WithDeferredProperties(s.settings.Deferred),
		grain.WithBounds(b.Center(), b.Radius()),
	}
	if s.headless {
		opts = append(opts, grain.WithHeadless())
	}
	s.compositor = grain.NewCompositor(s.enc, s.scratch, renderers, s.compiler, s.width, s.height, opts...)
	return nil
}

func (s *scene) Name() string {
	return s.doc.Name
}

func (s *scene) Document() *Document {
	return s.doc
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Points() pointcloud.PointCloud {
	return s.cloud
}

func (s *scene) Splitter() splitter.Splitter {
	return s.split
}

func (s *scene) Culling() culling.Pass {
	return s.cull
}

func (s *scene) Compositor() grain.Compositor {
	return s.compositor
}

func (s *scene) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *scene) SetSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySettings(settings)
}

// applySettings pushes the settings into every component. The caller holds mu.
func (s *scene) applySettings(settings Settings) {
	s.settings = settings
	s.split.SetProperties(settings.Splitter)
	if s.compositor == nil {
		return
	}
	s.compositor.SetProperties(settings.Grain)
	s.compositor.SetDeferredProperties(settings.Deferred)

	rs := s.compositor.Renderers()
	if rs.Impostor != nil {
		rs.Impostor.SetProperties(settings.Impostor)
	}
	if rs.Far != nil {
		rs.Far.SetProperties(settings.Far)
	}
	if rs.Instance != nil && settings.Materials != nil {
		rs.Instance.SetMaterials(settings.Materials)
	}
}

func (s *scene) Time() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

func (s *scene) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *scene) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *scene) Update(dt float32) {
	s.mu.Lock()
	if !s.paused {
		s.time += dt
	}
	s.mu.Unlock()

	if cc := s.cam.Controller(); cc != nil {
		cc.Advance(dt)
	}
	s.cam.Update()
}

func (s *scene) Render(ctx context.Context) error {
	s.mu.Lock()
	props := s.settings
	t := s.time
	s.mu.Unlock()

	model := common.IdentityMatrix()
	view := s.cam.ViewMatrix()
	proj := s.cam.ProjectionMatrix()
	pointFrame := s.cloud.FrameAt(t)

	if s.scratch != nil {
		s.scratch.BeginFrame()
	}

	var occluder culling.OccluderMap
	cullStart := time.Now()
	if props.Splitter.EnableOcclusionCulling && s.cull != nil {
		m, err := s.cull.Render(ctx, culling.Input{
			Points:      s.data,
			Frame:       pointFrame,
			Model:       model,
			View:        view,
			Projection:  proj,
			GrainRadius: props.Splitter.GrainRadius,
			SpriteScale: props.Splitter.OccluderMapSpriteScale,
			ZPrepass:    props.Splitter.ZPrepass,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !s.cullWarned {
				log.Printf("[Scene] %s: culling without occlusion: %v", s.doc.Name, err)
				s.cullWarned = true
			}
		} else {
			occluder = m
			s.cullWarned = false
		}
	}
	cullElapsed := time.Since(cullStart)

	err := s.split.PreRender(ctx, splitter.FrameInput{
		Model:      model,
		View:       view,
		Projection: proj,
		Frame:      pointFrame,
		Occluder:   occluder,
	})
	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, splitter.ErrRangeOverflow):
		log.Printf("[Scene] %s: %v", s.doc.Name, err)
	case err != nil:
		// the splitter publishes empty views, so the frame draws less
		if !s.splitWarned {
			log.Printf("[Scene] %s: splitting failed, drawing without fresh views: %v", s.doc.Name, err)
			s.splitWarned = true
		}
	default:
		s.splitWarned = false
	}

	var composeElapsed time.Duration
	var renderErr error
	if s.compositor != nil {
		composeStart := time.Now()
		renderErr = s.compositor.Render(s.split, grain.FrameInput{
			Model:      model,
			View:       view,
			Projection: proj,
			PointFrame: pointFrame,
			Time:       t,
		})
		composeElapsed = time.Since(composeStart)
	}

	s.mu.Lock()
	s.stats = Stats{
		Frames:     s.stats.Frames + 1,
		Time:       t,
		PointFrame: pointFrame,
		Points:     s.cloud.PointCount(),
		Occlusion:  occluder != nil,
		Splitter:   s.split.Stats(),
		Culling:    cullElapsed,
		Compose:    composeElapsed,
	}
	s.mu.Unlock()

	if renderErr != nil {
		return fmt.Errorf("scene %s: %w", s.doc.Name, renderErr)
	}
	return nil
}

func (s *scene) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.width, s.height = width, height
	s.cam.SetAspect(float32(width) / float32(height))
	if s.cull != nil {
		s.cull.Resize(width, height)
	}
	if s.compositor != nil {
		// the compositor resizes the scratch targets with its G-buffer
		return s.compositor.Resize(width, height)
	}
	return nil
}

func (s *scene) Reload() {
	for _, c := range []any{s.split, s.cull} {
		if r, ok := c.(shader.Reloader); ok {
			r.Reload()
		}
	}
	if s.compositor != nil {
		s.compositor.Reload()
	}
	log.Printf("[Scene] %s: shaders reloaded", s.doc.Name)
}

func (s *scene) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *scene) ToggleModel(m splitter.RenderModel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings
	var enabled bool
	switch m {
	case splitter.RenderModelInstance:
		settings.Grain.DisableInstances = !settings.Grain.DisableInstances
		enabled = !settings.Grain.DisableInstances
	case splitter.RenderModelImpostor:
		settings.Grain.DisableImpostors = !settings.Grain.DisableImpostors
		enabled = !settings.Grain.DisableImpostors
	case splitter.RenderModelPoint:
		settings.Grain.DisablePoints = !settings.Grain.DisablePoints
		enabled = !settings.Grain.DisablePoints
	default:
		return false
	}
	s.applySettings(settings)
	return enabled
}

func (s *scene) ToggleOcclusion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings
	settings.Splitter.EnableOcclusionCulling = !settings.Splitter.EnableOcclusionCulling
	s.applySettings(settings)
	return settings.Splitter.EnableOcclusionCulling
}

func (s *scene) ToggleShadows() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings
	settings.Deferred.Shadows = !settings.Deferred.Shadows
	s.applySettings(settings)
	return settings.Deferred.Shadows
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compositor != nil {
		s.compositor.Release()
		s.compositor = nil
	}
	if s.atlases != nil {
		s.atlases.Release()
		s.atlases = nil
	}
	if s.cull != nil {
		s.cull.Release()
		s.cull = nil
	}
	if s.split != nil {
		s.split.Release()
		s.split = nil
	}
	if d, ok := s.data.(interface{ Release() }); ok && s.uploaded {
		d.Release()
	}
	s.data, s.uploaded = nil, false
	if s.scratch != nil && s.ownsScratch {
		s.scratch.Release()
	}
	s.scratch = nil
	// loaded clouds belong to the loader cache
	if s.cloud != nil && s.doc.Points.File == "" {
		s.cloud.Release()
	}
	if s.ownsLoader && s.loader != nil {
		s.loader.Release()
	}
	s.loader = nil
	if s.ownsPool && s.pool != nil {
		s.pool.Stop()
	}
	s.pool = nil
}
