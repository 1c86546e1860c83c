package grain

import (
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/grain-go/engine/model"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/material"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
)

// Variant flags of the InstanceSand shader, in bit order.
const (
	InstancePassShadowMap uint32 = 1 << iota
)

// InstanceFlagNames are the InstanceSand defines, in bit order.
var InstanceFlagNames = []string{"PASS_SHADOW_MAP"}

// defaultMeshSubdivisions is the subdivision level of the icosphere drawn without a mesh.
const defaultMeshSubdivisions = 1

type instanceRenderer struct {
	mu        *sync.Mutex
	enc       Encoder
	variants  shader.VariantCache
	bindings  Binder
	mesh      model.Model
	ownMesh   bool
	meshScale float32
	materials []material.Material
	warned    warnings
}

// InstanceRenderer draws the closest grains as full meshes, one instance per point of the
// instance range.
type InstanceRenderer interface {
	// Render draws a view into the frame destination. A nil view, a view with no points or
	// a missing mesh draws nothing.
	//
	// Parameters:
	//   - v: the instance view
	//   - f: the frame
	//
	// Returns:
	//   - error: ErrSparseView for a sparse view, or a draw error
	Render(v splitter.View, f Frame) error

	// SetMesh replaces the grain mesh. The previous upload is released.
	SetMesh(m model.Model)

	// SetMaterials replaces the configured materials. Slots the mesh also provides are
	// overridden, the rest come from the mesh.
	SetMaterials(mats []material.Material)

	// Materials returns the materials the next draw binds.
	//
	// Returns:
	//   - []material.Material: the merged materials, never empty
	Materials() []material.Material

	Variants() shader.VariantCache
	Reload()
	Release()
}

var _ InstanceRenderer = &instanceRenderer{}

// NewInstanceRenderer creates the instance renderer.
//
// Parameters:
//   - enc: the encoder the draws are recorded with
//   - compiler: compiles the InstanceSand variants
//   - options: variadic InstanceRendererBuilderOption functions
//
// Returns:
//   - InstanceRenderer: the renderer
func NewInstanceRenderer(enc Encoder, compiler shader.Compiler, options ...InstanceRendererBuilderOption) InstanceRenderer {
	r := &instanceRenderer{
		mu:       &sync.Mutex{},
		enc:      enc,
		variants: shader.NewVariantCache("InstanceSand", InstanceFlagNames, compiler),
		warned:   warnings{},
	}
	for _, opt := range options {
		opt(r)
	}
	r.bindings = enc.NewBindings("InstanceSand")
	return r
}

func (r *instanceRenderer) Render(v splitter.View, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v != nil && v.Sparse() {
		r.warned.once("sparse", "[Instance] sparse %s view refused, use a compacting strategy", v.Model())
		return fmt.Errorf("instance: %w", ErrSparseView)
	}
	src, ok, err := resolveView(v, f.PointFrame)
	if err != nil {
		return fmt.Errorf("instance: %w", err)
	}
	if !ok {
		return nil
	}

	mesh, err := r.uploadedMesh(f.Grain)
	if err != nil {
		return fmt.Errorf("instance: %w", err)
	}
	if mesh == nil {
		return nil
	}

	var flags uint32
	if f.Target == TargetShadowMap {
		flags |= InstancePassShadowMap
	}
	prog, err := variant(r.variants, flags)
	if err != nil {
		return fmt.Errorf("instance: %w", err)
	}

	key := prog.Name() + "|" + f.Target.String()
	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithDepthFormat(f.Destination.DepthFormat()),
	}
	if f.Target == TargetShadowMap {
		opts = append(opts, pipeline.WithDepthOnly())
	} else {
		opts = append(opts, pipeline.WithTargets(f.Destination.ColorFormats()...), pipeline.WithBlendEnabled(false))
	}
	if err := ensurePipeline(r.enc, key, prog, opts...); err != nil {
		return fmt.Errorf("instance: %w", err)
	}

	w, h := destinationSize(f)
	res := pointResources(src, packFrameUniforms(f, frameDraw{src: src, width: w, height: h}), PropertyTable.Pack(&f.Grain))
	res["materials"] = renderer.Resource{Data: material.MarshalMaterials(r.resolvedMaterials(mesh))}
	groups, err := r.bindings.Bind(prog, res)
	if err != nil {
		return fmt.Errorf("instance: %w", err)
	}

	if err := r.enc.BeginPass(renderer.PassDescriptor{
		Label:     "InstanceSand " + f.Target.String(),
		Target:    f.Destination,
		LoadColor: true,
		LoadDepth: true,
	}); err != nil {
		return fmt.Errorf("instance: %w", err)
	}
	defer r.enc.EndPass()
	return r.enc.DrawCall(key, renderer.DrawArgs{
		Mesh:          mesh.MeshProvider(),
		InstanceCount: src.count,
		FirstInstance: src.offset,
		BindGroups:    groups,
	})
}

// uploadedMesh returns the mesh with its buffers on the device. Without a configured mesh
// an icosphere is built whose radius matches the grain radius once scaled.
func (r *instanceRenderer) uploadedMesh(p Properties) (model.Model, error) {
	if r.mesh == nil || r.ownMesh {
		if p.GrainMeshScale <= 0 {
			return nil, nil
		}
		scale := p.GrainRadius / p.GrainMeshScale
		if r.mesh == nil || scale != r.meshScale {
			r.releaseMesh()
			r.mesh = model.NewIcosphere("grain", defaultMeshSubdivisions, scale)
			r.ownMesh, r.meshScale = true, scale
		}
	}
	if r.mesh.IndexCount() == 0 {
		return nil, nil
	}
	if r.mesh.MeshProvider() != nil {
		return r.mesh, nil
	}

	provider := bind_group_provider.NewBindGroupProvider(r.mesh.Name() + " mesh")
	if err := r.enc.InitMeshBuffers(provider, r.mesh.VertexData(), r.mesh.IndexData(), r.mesh.IndexCount()); err != nil {
		provider.Release()
		return nil, fmt.Errorf("mesh %s: %w", r.mesh.Name(), err)
	}
	r.mesh.SetMeshProvider(provider)
	log.Printf("[Instance] uploaded mesh %s (%d indices)", r.mesh.Name(), r.mesh.IndexCount())
	return r.mesh, nil
}

func (r *instanceRenderer) resolvedMaterials(mesh model.Model) []material.Material {
	var fromMesh []material.Material
	if mesh != nil {
		fromMesh = mesh.Materials()
	}
	mats := material.Resolve(r.materials, fromMesh)
	if len(mats) == 0 {
		mats = []material.Material{material.NewMaterial(material.WithBaseColor(sandBaseColor), material.WithRoughness(sandRoughness))}
	}
	if len(mats) > material.MaxMaterials {
		r.warned.once("materials", "[Instance] %d materials, only the first %d are bound", len(mats), material.MaxMaterials)
	}
	return mats
}

func (r *instanceRenderer) SetMesh(m model.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseMesh()
	r.mesh, r.ownMesh = m, false
}

func (r *instanceRenderer) SetMaterials(mats []material.Material) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.materials = mats
}

func (r *instanceRenderer) Materials() []material.Material {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolvedMaterials(r.mesh)
}

func (r *instanceRenderer) Variants() shader.VariantCache {
	return r.variants
}

func (r *instanceRenderer) Reload() {
	r.variants.Reload()
	r.enc.EvictPipelines("InstanceSand")
}

func (r *instanceRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseMesh()
	r.bindings.Release()
}

func (r *instanceRenderer) releaseMesh() {
	if r.mesh == nil {
		return
	}
	if p := r.mesh.MeshProvider(); p != nil {
		p.Release()
		r.mesh.SetMeshProvider(nil)
	}
}
