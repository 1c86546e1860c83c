package main

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/grain-go/engine"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/scene"
	"github.com/Carmen-Shannon/grain-go/engine/window"
	"github.com/spf13/cobra"
)

type runOptions struct {
	shaders    string
	points     uint32
	width      int
	height     int
	minSize    []int
	maxSize    []int
	vsync      bool
	msaa       bool
	software   bool
	profile    bool
	tickRate   float64
	frameLimit float64
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "Open a window and render a scene",
		Long: "run renders a .toml or .yaml scene document, or a generated heap of sand without one.\n\n" +
			"Left drag orbits, right drag pans and the wheel zooms. I, O and P toggle instances, " +
			"impostors and far points, C occlusion culling, S shadows, Space the animation, " +
			"A the turntable, F frames the points and R reloads the shaders.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViewer(args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.shaders, "shaders", "", "load WGSL sources from this directory and reload them on change")
	f.Uint32Var(&opts.points, "points", scene.DefaultPointCount, "grains generated when no scene is given")
	f.IntVar(&opts.width, "width", 1280, "window width")
	f.IntVar(&opts.height, "height", 720, "window height")
	f.IntSliceVar(&opts.minSize, "min-size", []int{320, 200}, "smallest window size as width,height")
	f.IntSliceVar(&opts.maxSize, "max-size", []int{3840, 2160}, "largest window size as width,height")
	f.BoolVar(&opts.vsync, "vsync", true, "wait for vertical blank before presenting")
	f.BoolVar(&opts.msaa, "msaa", false, "multisample the swapchain pass")
	f.BoolVar(&opts.software, "software", false, "force a software adapter")
	f.BoolVar(&opts.profile, "profile", true, "log frame statistics every second")
	f.Float64Var(&opts.tickRate, "tick-rate", 60, "scene updates per second")
	f.Float64Var(&opts.frameLimit, "fps-limit", 0, "render frame cap, 0 for none")
	return cmd
}

// windowOptions builds the window configuration from the run flags.
func windowOptions(title string, opts runOptions) ([]window.WindowBuilderOption, error) {
	for _, size := range []struct {
		flag string
		v    []int
	}{{"--min-size", opts.minSize}, {"--max-size", opts.maxSize}} {
		if len(size.v) != 2 || size.v[0] <= 0 || size.v[1] <= 0 {
			return nil, fmt.Errorf("run: %s wants two positive sizes, got %v", size.flag, size.v)
		}
	}
	if opts.minSize[0] > opts.maxSize[0] || opts.minSize[1] > opts.maxSize[1] {
		return nil, fmt.Errorf("run: --min-size %v exceeds --max-size %v", opts.minSize, opts.maxSize)
	}
	return []window.WindowBuilderOption{
		window.WithTitle(title),
		window.WithWidth(opts.width),
		window.WithHeight(opts.height),
		window.WithMinSize(opts.minSize[0], opts.minSize[1]),
		window.WithMaxSize(opts.maxSize[0], opts.maxSize[1]),
	}, nil
}

func runViewer(args []string, opts runOptions) error {
	doc, err := loadDocument(args, opts.points)
	if err != nil {
		return err
	}
	lib, err := shaderLibrary(doc, opts.shaders)
	if err != nil {
		return err
	}

	winOpts, err := windowOptions("GrainViewer | "+doc.Name, opts)
	if err != nil {
		return err
	}
	w := window.NewWindow(winOpts...)
	rendererOpts := []renderer.RendererBuilderOption{renderer.WithForceSoftwareRenderer(opts.software)}
	if !opts.vsync {
		rendererOpts = append(rendererOpts, renderer.WithPresentMode(renderer.PresentModeUncapped))
	}
	if opts.msaa {
		rendererOpts = append(rendererOpts, renderer.WithMSAA(renderer.MSAA4x))
	}
	r := renderer.NewRenderer(renderer.BackendTypeWGPU, w, rendererOpts...)

	compiler := shader.NewCompiler(lib, shader.WithValidator(shader.NewNagaValidator()))
	s, err := scene.NewScene(doc,
		scene.WithRenderer(r),
		scene.WithCompiler(compiler),
		scene.WithSize(w.Width(), w.Height()),
	)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer s.Release()
	log.Printf("[Grainviewer] %s: %d points, %d frames", s.Name(), s.Points().PointCount(), s.Points().FrameCount())

	engineOpts := []engine.EngineBuilderOption{
		engine.WithWindow(w),
		engine.WithRenderer(r),
		engine.WithScene(s),
		engine.WithProfiling(opts.profile),
		engine.WithTickRate(opts.tickRate),
		engine.WithRenderFrameLimit(opts.frameLimit),
	}
	if opts.shaders != "" {
		watcher, err := shader.NewWatcher(opts.shaders)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer watcher.Close()
		engineOpts = append(engineOpts, engine.WithWatcher(watcher))
		log.Printf("[Grainviewer] watching %s", opts.shaders)
	}

	engine.NewEngine(engineOpts...).Run()
	return nil
}
