package main

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/grain-go/engine/assets"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/scene"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "grainviewer",
		Short: "Multi-LOD viewer for granular point clouds",
		Long: "grainviewer splits a point cloud into instanced grains, impostors and far points " +
			"every frame and composes them through a deferred shading pass.",
		SilenceUsage: true,
	}
	root.AddCommand(
		newRunCommand(),
		newBenchCommand(),
		newValidateShadersCommand(),
		newInitCommand(),
	)
	return root
}

// loadDocument reads the scene given on the command line, or a default scene of points
// generated grains when there is none.
func loadDocument(args []string, points uint32) (*scene.Document, error) {
	if len(args) == 0 {
		return scene.DefaultDocument(points), nil
	}
	return scene.LoadDocument(args[0])
}

// shaderLibrary returns the bundled shaders, or the sources of dir when one is given. The
// shaders section of doc is registered on top either way.
func shaderLibrary(doc *scene.Document, dir string) (shader.Library, error) {
	entries := doc.ShaderEntries()
	if dir == "" {
		return assets.NewLibrary(entries...), nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("shader directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("shader directory: %s is not a directory", dir)
	}
	return shader.NewLibrary(os.DirFS(dir), entries...), nil
}
