package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/camera"
	"github.com/Carmen-Shannon/grain-go/engine/profiler"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/scene"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/Carmen-Shannon/grain-go/engine/window"
)

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	watcher  shader.Watcher

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	sceneMu sync.Mutex
	scene   scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	// requests raised by the window and the shader watcher, applied by the render goroutine
	pendingResize atomic.Pointer[[2]int]
	pendingReload atomic.Bool

	// errors are logged once until a frame succeeds again
	frameFailing bool
}

// Engine is the main entry point for the viewer.
// It orchestrates the tick loop, the render loop, window input and shader hot reload around
// one grain scene.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance, nil when headless
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The scene and the tick callback are updated at this rate.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick after the scene update.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// SetScene replaces the displayed scene and returns the previous one, which the caller
	// releases. The scene is registered with the shader watcher.
	//
	// Parameters:
	//   - s: the scene to display
	//
	// Returns:
	//   - scene.Scene: the previous scene, or nil
	SetScene(s scene.Scene) scene.Scene

	// Scene returns the displayed scene, or nil.
	Scene() scene.Scene

	// RequestReload drops the compiled shaders of the scene before the next frame.
	RequestReload()

	// Run starts the engine loops and blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// reloadRequest forwards watcher reloads to the render goroutine.
type reloadRequest struct {
	e *engine
}

func (r reloadRequest) Reload() {
	r.e.RequestReload()
}

// NewEngine creates a new Engine instance with the provided options.
// Initializes channels and the profiler with sensible defaults, then binds the window input
// to the scene camera and toggles.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		wg:              sync.WaitGroup{},
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithOnReport(func(r profiler.Report) {
			if e.window != nil {
				e.window.SetTitle("GrainViewer | " + r.Summary())
			}
		}))
	}
	if e.watcher != nil {
		e.watcher.Add(reloadRequest{e: e})
	}
	if e.window != nil {
		e.bindInput()
	}
	return e
}

// bindInput wires the window callbacks to the turntable camera and the scene toggles.
// Left drag orbits, right or middle drag pans, the wheel zooms.
func (e *engine) bindInput() {
	e.window.SetResizeCallback(func(width, height int) {
		e.pendingResize.Store(&[2]int{width, height})
	})

	e.window.SetScrollCallback(func(delta float32) {
		if cc := e.controller(); cc != nil {
			cc.Zoom(delta)
		}
	})

	e.window.SetMouseDownCallback(func(button window.MouseButton, x, y int32) {
		cc := e.controller()
		if cc == nil {
			return
		}
		mode := camera.DragPan
		if button == window.MouseLeft {
			mode = camera.DragOrbit
		}
		cc.BeginDrag(mode, x, y)
	})
	e.window.SetMouseUpCallback(func(window.MouseButton, int32, int32) {
		if cc := e.controller(); cc != nil {
			cc.EndDrag()
		}
	})
	e.window.SetMouseMoveCallback(func(x, y int32) {
		if cc := e.controller(); cc != nil {
			cc.DragTo(x, y)
		}
	})

	e.window.SetKeyDownCallback(e.handleKey)
}

// handleKey applies a key press to the scene.
func (e *engine) handleKey(keyCode uint32) {
	s := e.Scene()
	if s == nil {
		return
	}
	cc := s.Camera().Controller()

	switch keyCode {
	case common.KeyI:
		log.Printf("[Engine] instances: %v", s.ToggleModel(splitter.RenderModelInstance))
	case common.KeyO:
		log.Printf("[Engine] impostors: %v", s.ToggleModel(splitter.RenderModelImpostor))
	case common.KeyP:
		log.Printf("[Engine] far points: %v", s.ToggleModel(splitter.RenderModelPoint))
	case common.KeyC:
		log.Printf("[Engine] occlusion culling: %v", s.ToggleOcclusion())
	case common.KeyS:
		log.Printf("[Engine] shadows: %v", s.ToggleShadows())
	case common.KeySpace:
		s.SetPaused(!s.Paused())
	case common.KeyR:
		e.RequestReload()
	case common.KeyF:
		s.Camera().FitBounds(s.Points().Bounds())
	}
	if cc == nil {
		return
	}
	switch keyCode {
	case common.KeyA:
		if cc.AutoRotate() != 0 {
			cc.SetAutoRotate(0)
		} else {
			cc.SetAutoRotate(0.5)
		}
	case common.KeyLeft:
		cc.OrbitLeft()
	case common.KeyRight:
		cc.OrbitRight()
	case common.KeyUp:
		cc.OrbitUp()
	case common.KeyDown:
		cc.OrbitDown()
	case common.KeyEqual:
		cc.Zoom(1)
	case common.KeyMinus:
		cc.Zoom(-1)
	}
}

func (e *engine) controller() camera.CameraController {
	s := e.Scene()
	if s == nil {
		return nil
	}
	return s.Camera().Controller()
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) SetScene(s scene.Scene) scene.Scene {
	e.sceneMu.Lock()
	prev := e.scene
	e.scene = s
	e.sceneMu.Unlock()

	if s != nil && e.window != nil {
		e.pendingResize.Store(&[2]int{e.window.Width(), e.window.Height()})
	}
	return prev
}

func (e *engine) Scene() scene.Scene {
	e.sceneMu.Lock()
	defer e.sceneMu.Unlock()
	return e.scene
}

func (e *engine) RequestReload() {
	e.pendingReload.Store(true)
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Advances the scene and fires the tick callback at the configured tick rate, and listens
// for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if s := e.Scene(); s != nil {
				s.Update(dt)
			}
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Applies pending resizes and reloads, then renders the scene: occlusion culling, splitting
// and composition. Recovers from panics to avoid crashing the process and signals quit on
// recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-e.quitChannel
		cancel()
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			s := e.Scene()
			e.applyPending(s)
			if s != nil {
				e.renderScene(ctx, s)
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// applyPending applies the resize and reload requests raised since the last frame.
func (e *engine) applyPending(s scene.Scene) {
	if size := e.pendingResize.Swap(nil); size != nil && size[0] > 0 && size[1] > 0 {
		if e.renderer != nil {
			e.renderer.Resize(size[0], size[1])
		}
		if s != nil {
			if err := s.Resize(size[0], size[1]); err != nil {
				log.Printf("[Engine] resize to %dx%d: %v", size[0], size[1], err)
			}
		}
	}
	if e.pendingReload.Swap(false) && s != nil {
		s.Reload()
	}
}

func (e *engine) renderScene(ctx context.Context, s scene.Scene) {
	if err := s.Render(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		if !e.frameFailing {
			log.Printf("[Engine] frame failed: %v", err)
			e.frameFailing = true
		}
	} else {
		e.frameFailing = false
	}

	if e.profilingEnabled {
		st := s.Stats()
		e.profiler.Record(profiler.Sample{
			Counts:  st.Splitter.Counts,
			Culled:  st.Splitter.Culled,
			Culling: st.Culling,
			Split:   st.Splitter.Elapsed,
			Compose: st.Compose,
		})
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
