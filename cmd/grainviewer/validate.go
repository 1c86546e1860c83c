package main

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/grain-go/engine/culling"
	"github.com/Carmen-Shannon/grain-go/engine/grain"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/spf13/cobra"
)

type validateOptions struct {
	shaders string
	naga    bool
	quiet   bool
}

func newValidateShadersCommand() *cobra.Command {
	opts := validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate-shaders [scene]",
		Short: "Compile every shader variant and report the failures",
		Long: "validate-shaders preprocesses every permutation of every pipeline shader and runs the " +
			"result through the naga WGSL validator. The shaders section of an optional scene " +
			"document is applied first.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args, 0)
			if err != nil {
				return err
			}
			lib, err := shaderLibrary(doc, opts.shaders)
			if err != nil {
				return err
			}
			var compilerOpts []shader.CompilerBuilderOption
			if opts.naga {
				compilerOpts = append(compilerOpts, shader.WithValidator(shader.NewNagaValidator()))
			}
			return validateVariants(cmd.OutOrStdout(), shader.NewCompiler(lib, compilerOpts...), opts.quiet)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.shaders, "shaders", "", "validate the WGSL sources of this directory instead of the bundled ones")
	f.BoolVar(&opts.naga, "naga", true, "validate the preprocessed sources with naga")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only print failures")
	return cmd
}

// pipelineVariants lists every variant the pipeline can request, each cache compiling
// through c.
func pipelineVariants(c shader.Compiler) []splitter.ShaderVariant {
	caches := []shader.VariantCache{
		shader.NewVariantCache("InstanceSand", grain.InstanceFlagNames, c),
		shader.NewVariantCache("ImpostorSand", grain.ImpostorFlagNames, c),
		shader.NewVariantCache("FarSand", grain.FarFlagNames, c),
		shader.NewVariantCache("FarSandEpsilonZBuffer", nil, c),
		shader.NewVariantCache("Deferred", grain.DeferredFlagNames, c),
		shader.NewVariantCache(culling.ShaderName, culling.FlagNames, c),
	}
	var out []splitter.ShaderVariant
	for _, cache := range caches {
		for flags := range uint32(1) << len(cache.FlagNames()) {
			out = append(out, splitter.ShaderVariant{Cache: cache, Key: flags})
		}
	}
	return append(out, splitter.ShaderVariants(c)...)
}

func validateVariants(out io.Writer, compiler shader.Compiler, quiet bool) error {
	failed := 0
	checked := shader.CompilerFunc(func(name, base string, defines []string) (shader.Program, error) {
		p, err := compiler.Compile(name, base, defines)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", name, err)
		case !quiet:
			fmt.Fprintf(out, "ok   %s\n", name)
		}
		return p, err
	})

	variants := pipelineVariants(checked)
	for _, v := range variants {
		v.Cache.Get(v.Key)
	}
	fmt.Fprintf(out, "%d variants, %d failed\n", len(variants), failed)
	if failed > 0 {
		return fmt.Errorf("validate-shaders: %d of %d variants failed", failed, len(variants))
	}
	return nil
}
