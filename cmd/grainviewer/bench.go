package main

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/grain-go/engine/profiler"
	"github.com/Carmen-Shannon/grain-go/engine/scene"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	frames  int
	points  uint32
	width   int
	height  int
	workers int
	orbit   float32
	dt      float32
}

func newBenchCommand() *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "Split and cull a scene headless and report the frame statistics",
		Long: "bench runs the software splitter and occlusion culling over a fixed number of frames " +
			"while the camera orbits the points, then prints the averaged per frame work.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args, opts.points)
			if err != nil {
				return err
			}
			if opts.orbit != 0 {
				doc.Camera.AutoRotate = opts.orbit
			}
			sceneOpts := []scene.SceneBuilderOption{scene.WithHeadless(), scene.WithSize(opts.width, opts.height)}
			if opts.workers > 0 {
				sceneOpts = append(sceneOpts, scene.WithWorkers(opts.workers))
			}
			s, err := scene.NewScene(doc, sceneOpts...)
			if err != nil {
				return fmt.Errorf("bench: %w", err)
			}
			defer s.Release()

			prof := profiler.NewProfiler(profiler.WithInterval(time.Hour), profiler.WithQuiet())
			for i := range opts.frames {
				s.Update(opts.dt)
				if err := s.Render(cmd.Context()); err != nil {
					return fmt.Errorf("bench: frame %d: %w", i, err)
				}
				st := s.Stats()
				prof.Record(profiler.Sample{
					Counts:  st.Splitter.Counts,
					Culled:  st.Splitter.Culled,
					Culling: st.Culling,
					Split:   st.Splitter.Elapsed,
					Compose: st.Compose,
				})
			}

			r := prof.Flush()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d points, %dx%d, %d frames in %s\n",
				s.Name(), s.Points().PointCount(), opts.width, opts.height, r.Frames, r.Elapsed.Round(time.Millisecond))
			fmt.Fprintln(out, r)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.frames, "frames", 300, "frames to render")
	f.Uint32Var(&opts.points, "points", scene.DefaultPointCount, "grains generated when no scene is given")
	f.IntVar(&opts.width, "width", 1280, "viewport width")
	f.IntVar(&opts.height, "height", 720, "viewport height")
	f.IntVar(&opts.workers, "workers", 0, "worker goroutines, 0 for one per spare CPU")
	f.Float32Var(&opts.orbit, "orbit", 30, "camera turntable speed in degrees per second")
	f.Float32Var(&opts.dt, "dt", 1.0/60, "scene time step per frame in seconds")
	return cmd
}
