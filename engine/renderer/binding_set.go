package renderer

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Resource is one shader resource bound by its WGSL variable name. Exactly one field is set.
type Resource struct {
	// Data is written into a buffer owned by the BindingSet, sized to fit.
	Data []byte

	// Buffer is a borrowed buffer, typically a splitter or point cloud buffer.
	Buffer *wgpu.Buffer

	// Size limits the bound range of Buffer to its first Size bytes. Zero binds all of it.
	Size uint64

	// TextureView is a borrowed view, typically a framebuffer attachment.
	TextureView *wgpu.TextureView

	// Sampler is created once on first bind.
	Sampler *common.SamplerStagingData
}

// bindingPlan is the resource resolved for one binding of one group.
type bindingPlan struct {
	binding  int
	name     string
	resource Resource
}

type groupPlan struct {
	group      int
	descriptor wgpu.BindGroupLayoutDescriptor
	bindings   []bindingPlan
}

type bindingSet struct {
	mu       *sync.Mutex
	renderer Renderer
	label    string

	// providers holds one provider per group for every program bound so far, keyed by program name.
	providers map[string][]bind_group_provider.BindGroupProvider
}

// BindingSet binds resources to compiled programs by variable name. It owns one
// BindGroupProvider per bind group of every program it has seen, creates uniform buffers
// on demand and rebuilds a bind group only when a borrowed resource changes.
type BindingSet interface {
	// Bind resolves every binding the program declares against resources, uploads Data
	// resources and returns the providers in group order, ready for DrawCall or DispatchCompute.
	//
	// Parameters:
	//   - prog: the program whose bindings are resolved
	//   - resources: the resources keyed by WGSL variable name
	//
	// Returns:
	//   - []bind_group_provider.BindGroupProvider: the providers, index = group
	//   - error: an error naming the first unresolved variable, or a GPU creation error
	Bind(prog shader.Program, resources map[string]Resource) ([]bind_group_provider.BindGroupProvider, error)

	// Release releases every provider and the buffers it owns. Borrowed resources are left alone.
	Release()
}

var _ BindingSet = &bindingSet{}

// NewBindingSet creates an empty BindingSet bound to a Renderer.
//
// Parameters:
//   - r: the renderer creating the bind groups
//   - label: the debug label prefix of the providers
//
// Returns:
//   - BindingSet: the binding set
func NewBindingSet(r Renderer, label string) BindingSet {
	return &bindingSet{
		mu:        &sync.Mutex{},
		renderer:  r,
		label:     label,
		providers: make(map[string][]bind_group_provider.BindGroupProvider),
	}
}

func (s *bindingSet) Bind(prog shader.Program, resources map[string]Resource) ([]bind_group_provider.BindGroupProvider, error) {
	plans, err := planBindings(prog, resources)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	providers, ok := s.providers[prog.Name()]
	if !ok {
		n := 0
		if len(plans) > 0 {
			n = plans[len(plans)-1].group + 1
		}
		providers = make([]bind_group_provider.BindGroupProvider, n)
		for _, gp := range plans {
			providers[gp.group] = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s %s g%d", s.label, prog.Name(), gp.group))
		}
		s.providers[prog.Name()] = providers
	}

	var writes []bind_group_provider.BufferWrite
	for _, gp := range plans {
		provider := providers[gp.group]
		dirty := provider.BindGroup() == nil
		sizes := map[int]uint64{}
		for _, bp := range gp.bindings {
			r := bp.resource
			switch {
			case r.Buffer != nil:
				if provider.Buffer(bp.binding) != r.Buffer {
					provider.BorrowBuffer(bp.binding, r.Buffer)
					dirty = true
				}
				if r.Size > 0 {
					sizes[bp.binding] = r.Size
				}
			case r.TextureView != nil:
				if provider.TextureView(bp.binding) != r.TextureView {
					provider.BorrowTextureView(bp.binding, r.TextureView)
					dirty = true
				}
			case r.Sampler != nil:
				if provider.Sampler(bp.binding) == nil {
					if err := s.renderer.InitSampler(provider, bp.binding, *r.Sampler); err != nil {
						return nil, fmt.Errorf("%s: sampler %q: %w", prog.Name(), bp.name, err)
					}
					dirty = true
				}
			default:
				need := max(uint64(len(r.Data)+15)&^15, 16)
				if buf := provider.Buffer(bp.binding); buf == nil || buf.GetSize() < need {
					if buf != nil {
						buf.Release()
						provider.SetBuffer(bp.binding, nil)
					}
					sizes[bp.binding] = need
					dirty = true
				}
				writes = append(writes, bind_group_provider.BufferWrite{
					Provider: provider,
					Binding:  bp.binding,
					Data:     r.Data,
				})
			}
		}
		if dirty {
			if err := s.renderer.InitBindGroup(provider, gp.descriptor, nil, sizes); err != nil {
				return nil, fmt.Errorf("%s: group %d: %w", prog.Name(), gp.group, err)
			}
		}
	}
	if len(writes) > 0 {
		s.renderer.WriteBuffers(writes)
	}
	return providers, nil
}

func (s *bindingSet) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, providers := range s.providers {
		for _, p := range providers {
			if p != nil {
				p.Release()
			}
		}
	}
	clear(s.providers)
}

// planBindings merges the bind group layouts of every stage of prog and resolves each
// binding to a named resource. Groups are returned in ascending order.
func planBindings(prog shader.Program, resources map[string]Resource) ([]groupPlan, error) {
	var stages []shader.Shader
	for _, t := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment, shader.ShaderTypeCompute} {
		if st := prog.Stage(t); st != nil {
			stages = append(stages, st)
		}
	}

	descriptors := map[int]wgpu.BindGroupLayoutDescriptor{}
	for _, st := range stages {
		descriptors = mergeBindGroupLayouts(descriptors, st.BindGroupLayoutDescriptors())
	}

	groups := make([]int, 0, len(descriptors))
	for g := range descriptors {
		groups = append(groups, g)
	}
	slices.Sort(groups)

	plans := make([]groupPlan, 0, len(groups))
	for _, g := range groups {
		desc := descriptors[g]
		gp := groupPlan{group: g, descriptor: desc}
		for _, e := range desc.Entries {
			binding := int(e.Binding)
			var name string
			for _, st := range stages {
				if name = st.BindGroupVarName(g, binding); name != "" {
					break
				}
			}
			r, ok := resources[name]
			if !ok {
				return nil, fmt.Errorf("%s: no resource for %q (group %d, binding %d)", prog.Name(), name, g, binding)
			}
			gp.bindings = append(gp.bindings, bindingPlan{binding: binding, name: name, resource: r})
		}
		plans = append(plans, gp)
	}
	return plans, nil
}
