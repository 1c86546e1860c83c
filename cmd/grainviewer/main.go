// Command grainviewer renders dense granular point clouds with the multi-LOD grain pipeline.
//
// Usage:
//
//	grainviewer run [scene.toml]
//	grainviewer bench --frames 600 [scene.yaml]
//	grainviewer validate-shaders --shaders ./shaders
//	grainviewer init sand.toml
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
