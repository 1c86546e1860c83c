package splitter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
)

// Library names of the splitter kernels.
const (
	GlobalAtomicShader = "GlobalAtomic"
	PrefixSumShader    = "PrefixSum"
)

// countersSize is the size of the Counters block: count, cursor, offset and padding.
const countersSize = 48

// uniformsSize is the size of the SplitterUniforms block.
const uniformsSize = 304

// Steps of the GlobalAtomic kernel.
const (
	atomicStepPrecompute uint32 = iota
	atomicStepReset
	atomicStepCount
	atomicStepOffset
	atomicStepWrite
)

// Steps of the PrefixSum kernel.
const (
	prefixStepPrecompute uint32 = iota
	prefixStepReset
	prefixStepMark
	prefixStepGroup
	prefixStepScan
	prefixStepOffset
	prefixStepWrite
)

// Variant key layout: the step in bits 0-2, the caching mode in bits 3-4, then flags.
const (
	keyCachingShift     = 3
	keyRestartPrimitive = 1 << 5
	keyOcclusionCulling = 1 << 6
	atomicKeyBits       = 7
	prefixKeyBits       = 7
	uniformFlagFrustum  = 1
	uniformFlagBbox     = 2
)

var (
	cachingDefines    = []string{"RENDER_TYPE_FORGET", "RENDER_TYPE_CACHE", "RENDER_TYPE_PRECOMPUTE"}
	atomicStepDefines = []string{"STEP_PRECOMPUTE", "STEP_RESET", "STEP_COUNT", "STEP_OFFSET", "STEP_WRITE"}
	prefixStepDefines = []string{"STEP_PRECOMPUTE", "STEP_RESET", "STEP_MARK", "STEP_GROUP", "STEP_SCAN", "STEP_OFFSET", "STEP_WRITE"}
	errKernelMissing  = errors.New("splitter kernel unavailable")
)

func variantKey(c Caching, step uint32, flags uint32) uint32 {
	return step | uint32(c)<<keyCachingShift | flags
}

func describeVariant(steps []string) func(key uint32) []string {
	return func(key uint32) []string {
		var defines []string
		if c := int(key>>keyCachingShift) & 3; c < len(cachingDefines) {
			defines = append(defines, cachingDefines[c])
		}
		if s := int(key & 7); s < len(steps) {
			defines = append(defines, steps[s])
		}
		if key&keyRestartPrimitive != 0 {
			defines = append(defines, "RESTART_PRIMITIVE")
		}
		if key&keyOcclusionCulling != 0 {
			defines = append(defines, "OCCLUSION_CULLING")
		}
		return defines
	}
}

type wgpuDispatch struct {
	variants shader.VariantCache
	key      uint32
	grid     [3]uint32
}

// single is the grid of the steps run by one invocation.
var single = [3]uint32{1, 1, 1}

// pointStride is the size of one point record in the points binding.
const pointStride = 16

// dispatchGrid folds a workgroup count into x and y so neither exceeds maxPerDim. The
// kernels rebuild the linear workgroup index as wid.x + wid.y * grid[0].
//
// Parameters:
//   - groups: the number of workgroups
//   - maxPerDim: the device limit on workgroups per dimension
//
// Returns:
//   - [3]uint32: the dispatch grid
//   - error: ErrDeviceLimit if even the folded grid is too large
func dispatchGrid(groups, maxPerDim uint32) ([3]uint32, error) {
	maxPerDim = max(maxPerDim, 1)
	if groups <= maxPerDim {
		return [3]uint32{groups, 1, 1}, nil
	}
	y := common.CeilDiv(groups, maxPerDim)
	if y > maxPerDim {
		return [3]uint32{}, fmt.Errorf("%w: %d workgroups", ErrDeviceLimit, groups)
	}
	return [3]uint32{common.CeilDiv(groups, y), y, 1}, nil
}

// bindablePoints returns how many points of a frame starting at record first fit in a
// storage binding of maxBinding bytes. The binding starts at the buffer head.
func bindablePoints(n, first uint32, maxBinding uint64) uint32 {
	records := maxBinding / pointStride
	if uint64(first) >= records {
		return 0
	}
	return uint32(min(uint64(n), records-uint64(first)))
}

// frameOffset is the record index of the first point of the frame being split.
func frameOffset(points pointcloud.Data, frame uint32) uint32 {
	n := points.PointCount()
	return frame%max(points.FrameCount(), 1)*n + points.PointOffset()
}

type wgpuSplitterBackend struct {
	renderer renderer.Renderer
	points   pointcloud.Data
	vertices buffer.DeviceBuffer

	atomicVariants shader.VariantCache
	prefixVariants shader.VariantCache
	bindings       renderer.BindingSet

	counters   buffer.DeviceBuffer
	elements   buffer.DeviceBuffer
	sparse     buffer.DeviceBuffer
	cache      buffer.DeviceBuffer
	localIndex buffer.DeviceBuffer
	groupSums  buffer.DeviceBuffer

	// warnedLimit is set once points were skipped for exceeding the device limits.
	warnedLimit bool
}

var _ splitterBackend = &wgpuSplitterBackend{}
var _ shader.Reloader = &wgpuSplitterBackend{}

func newWGPUSplitterBackend(r renderer.Renderer, compiler shader.Compiler, points pointcloud.Data) (*wgpuSplitterBackend, error) {
	vertices, ok := points.Vertices().(buffer.DeviceBuffer)
	if !ok {
		return nil, errors.New("wgpu splitter: points are not device resident")
	}
	b := &wgpuSplitterBackend{
		renderer:       r,
		points:         points,
		vertices:       vertices,
		atomicVariants: shader.NewVariantCache(GlobalAtomicShader, nil, compiler, shader.WithKeyedVariants(atomicKeyBits, describeVariant(atomicStepDefines))),
		prefixVariants: shader.NewVariantCache(PrefixSumShader, nil, compiler, shader.WithKeyedVariants(prefixKeyBits, describeVariant(prefixStepDefines))),
		bindings:       renderer.NewBindingSet(r, "Splitter"),
	}

	n := uint64(points.PointCount())
	groups := uint64(common.CeilDiv(uint32(n), LocalSizeX))
	allocs := []struct {
		dst   *buffer.DeviceBuffer
		label string
		size  uint64
		usage buffer.Usage
	}{
		{&b.counters, "Splitter Counters", countersSize, buffer.UsageStorage},
		{&b.elements, "Splitter Elements", n * 4, buffer.UsageStorage | buffer.UsageIndex},
		{&b.sparse, "Splitter Sparse Elements", n * 4, buffer.UsageStorage | buffer.UsageIndex},
		{&b.cache, "Splitter Render Type Cache", n * 4, buffer.UsageStorage},
		{&b.localIndex, "Splitter Local Index", n * 4, buffer.UsageStorage},
		{&b.groupSums, "Splitter Group Sums", groups * 16, buffer.UsageStorage},
	}
	for _, a := range allocs {
		buf, err := buffer.NewDeviceBuffer(r.Device(), r.Queue(), a.label, buffer.WithUsage(a.usage), buffer.WithSize(max(a.size, 16)))
		if err != nil {
			b.Release()
			return nil, fmt.Errorf("wgpu splitter: %w", err)
		}
		*a.dst = buf
	}
	return b, nil
}

func (b *wgpuSplitterBackend) Elements() buffer.Buffer {
	return b.elements
}

func (b *wgpuSplitterBackend) SparseElements() buffer.Buffer {
	return b.sparse
}

func (b *wgpuSplitterBackend) Reload() {
	b.atomicVariants.Reload()
	b.prefixVariants.Reload()
	b.renderer.EvictPipelines(GlobalAtomicShader)
	b.renderer.EvictPipelines(PrefixSumShader)
}

func (b *wgpuSplitterBackend) Release() {
	b.bindings.Release()
	for _, buf := range []buffer.DeviceBuffer{b.counters, b.elements, b.sparse, b.cache, b.localIndex, b.groupSums} {
		if buf != nil {
			buf.Release()
		}
	}
}

// dispatches lists the kernels of one frame in submission order. Per point steps run on
// grid, the others on a single workgroup.
func (b *wgpuSplitterBackend) dispatches(job splitterJob, grid [3]uint32, occlusion bool) []wgpuDispatch {
	caching := job.props.Caching()
	var flags uint32
	if occlusion {
		flags |= keyOcclusionCulling
	}

	if job.props.CullingStrategy() == StrategyPrefixSum {
		v := b.prefixVariants
		var out []wgpuDispatch
		if job.precompute {
			out = append(out, wgpuDispatch{v, variantKey(caching, prefixStepPrecompute, flags), grid})
		}
		out = append(out, wgpuDispatch{v, variantKey(caching, prefixStepReset, flags), single})
		// with CachingPrecompute the cache already holds the marks
		if caching != CachingPrecompute {
			out = append(out, wgpuDispatch{v, variantKey(caching, prefixStepMark, flags), grid})
		}
		return append(out,
			wgpuDispatch{v, variantKey(caching, prefixStepGroup, flags), grid},
			wgpuDispatch{v, variantKey(caching, prefixStepScan, flags), single},
			wgpuDispatch{v, variantKey(caching, prefixStepOffset, flags), single},
			wgpuDispatch{v, variantKey(caching, prefixStepWrite, flags), grid},
		)
	}

	if job.props.CullingStrategy() == StrategyRestartPrimitive {
		flags |= keyRestartPrimitive
	}
	v := b.atomicVariants
	var out []wgpuDispatch
	if job.precompute {
		out = append(out, wgpuDispatch{v, variantKey(caching, atomicStepPrecompute, flags), grid})
	}
	return append(out,
		wgpuDispatch{v, variantKey(caching, atomicStepReset, flags), single},
		wgpuDispatch{v, variantKey(caching, atomicStepCount, flags), grid},
		wgpuDispatch{v, variantKey(caching, atomicStepOffset, flags), single},
		wgpuDispatch{v, variantKey(caching, atomicStepWrite, flags), grid},
	)
}

func (b *wgpuSplitterBackend) Run(ctx context.Context, job splitterJob) (splitterResult, error) {
	limits := b.renderer.Limits()
	n := b.points.PointCount()
	count := bindablePoints(n, frameOffset(b.points, job.input.Frame), limits.MaxStorageBufferBindingSize)
	groups := common.CeilDiv(count, LocalSizeX)
	grid, err := dispatchGrid(groups, limits.MaxComputeWorkgroupsPerDimension)
	if err != nil {
		count, grid = 0, [3]uint32{}
	}
	if count < n && !b.warnedLimit {
		log.Printf("[Splitter] %d of %d points exceed the device limits and are not drawn", n-count, n)
		b.warnedLimit = true
	}

	// bounded binds at most the device binding limit of a buffer; no index past count is read.
	bounded := func(buf buffer.DeviceBuffer) renderer.Resource {
		r := renderer.Resource{Buffer: buf.GPUBuffer()}
		if buf.Size() > limits.MaxStorageBufferBindingSize {
			r.Size = limits.MaxStorageBufferBindingSize / pointStride * pointStride
		}
		return r
	}
	occluder := job.classifier.occluder
	occlusion := occluder != nil && occluder.TextureView() != nil

	resources := map[string]renderer.Resource{
		"splitter":        {Data: packSplitterUniforms(job, b.points, count, groups, grid[0])},
		"points":          bounded(b.vertices),
		"counters":        {Buffer: b.counters.GPUBuffer()},
		"elements":        bounded(b.elements),
		"renderTypeCache": bounded(b.cache),
		"sparseElements":  bounded(b.sparse),
		"localIndex":      bounded(b.localIndex),
		"groupSums":       bounded(b.groupSums),
	}
	if occlusion {
		resources["occluderMap"] = renderer.Resource{TextureView: occluder.TextureView()}
	}

	type bound struct {
		key    string
		groups []bind_group_provider.BindGroupProvider
		grid   [3]uint32
	}
	plan := b.dispatches(job, grid, occlusion)
	encoded := make([]bound, 0, len(plan))
	for _, d := range plan {
		prog := d.variants.Get(d.key)
		if prog == nil {
			return splitterResult{}, fmt.Errorf("wgpu splitter: %s: %w", d.variants.Name(d.key), errKernelMissing)
		}
		if b.renderer.Pipeline(prog.Name()) == nil {
			if err := b.renderer.RegisterPipelines(pipeline.NewPipeline(prog.Name(), pipeline.PipelineTypeCompute, pipeline.WithProgram(prog))); err != nil {
				log.Printf("[Splitter] failed to create pipeline %s: %v", prog.Name(), err)
				return splitterResult{}, fmt.Errorf("wgpu splitter: %w", err)
			}
		}
		bg, err := b.bindings.Bind(prog, resources)
		if err != nil {
			return splitterResult{}, fmt.Errorf("wgpu splitter: %w", err)
		}
		encoded = append(encoded, bound{key: prog.Name(), groups: bg, grid: d.grid})
	}
	if err := ctx.Err(); err != nil {
		return splitterResult{}, err
	}

	if err := b.renderer.BeginComputeFrame(); err != nil {
		return splitterResult{}, fmt.Errorf("wgpu splitter: %w", err)
	}
	for _, e := range encoded {
		if err := b.renderer.DispatchCompute(e.key, e.groups, e.grid); err != nil {
			b.renderer.EndComputeFrame()
			return splitterResult{}, fmt.Errorf("wgpu splitter: %w", err)
		}
	}
	b.renderer.EndComputeFrame()

	raw, err := b.counters.Read(0, countersSize)
	if err != nil {
		return splitterResult{}, fmt.Errorf("wgpu splitter: counter readback: %w", err)
	}
	return splitterResult{counters: unpackCounters(raw), dispatches: len(encoded)}, nil
}

// unpackCounters reads the count and offset arrays of the Counters block.
func unpackCounters(raw []byte) [3]Counter {
	words := common.BytesToSlice[uint32](raw)
	var out [3]Counter
	for i := range out {
		out[i] = Counter{Count: words[i], Offset: words[6+i]}
	}
	return out
}

// packSplitterUniforms lays out the SplitterUniforms block for count points of the frame,
// split by groups workgroups dispatched groupsX wide.
func packSplitterUniforms(job splitterJob, points pointcloud.Data, count, groups, groupsX uint32) []byte {
	c := &job.classifier
	buf := make([]byte, 0, uniformsSize)
	f32 := func(vs ...float32) {
		for _, v := range vs {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	u32 := func(vs ...uint32) {
		for _, v := range vs {
			buf = binary.LittleEndian.AppendUint32(buf, v)
		}
	}

	f32(c.mvp[:]...)
	f32(c.viewModel[:]...)
	for _, p := range c.frustum.Planes {
		f32(p.Normal[0], p.Normal[1], p.Normal[2], p.Distance)
	}
	f32(c.bbox.Min[0], c.bbox.Min[1], c.bbox.Min[2], c.instanceLimit)
	f32(c.bbox.Max[0], c.bbox.Max[1], c.bbox.Max[2], c.impostorLimit)

	var flags uint32
	if c.useFrustum {
		flags |= uniformFlagFrustum
	}
	if c.useBbox {
		flags |= uniformFlagBbox
	}
	u32(count, frameOffset(points, job.input.Frame), flags)
	f32(c.radius)

	var w, h float32
	if c.occluder != nil {
		w, h = float32(c.occluder.Width()), float32(c.occluder.Height())
	}
	proj := job.input.Projection
	f32(w, h, proj[10], proj[14])
	f32(c.radius)
	u32(groups, groupsX, 0)
	return buf
}

// ShaderVariant is one compute kernel permutation the GPU splitter can dispatch.
type ShaderVariant struct {
	Cache shader.VariantCache
	Key   uint32
}

// ShaderVariants enumerates every kernel permutation of both splitting algorithms, each
// caching mode and step combined with the restart and occlusion flags. Used to compile all
// of them ahead of time.
//
// Parameters:
//   - compiler: the compiler backing the returned caches
//
// Returns:
//   - []ShaderVariant: the permutations, GlobalAtomic first
func ShaderVariants(compiler shader.Compiler) []ShaderVariant {
	kernels := []struct {
		cache shader.VariantCache
		steps int
	}{
		{shader.NewVariantCache(GlobalAtomicShader, nil, compiler, shader.WithKeyedVariants(atomicKeyBits, describeVariant(atomicStepDefines))), len(atomicStepDefines)},
		{shader.NewVariantCache(PrefixSumShader, nil, compiler, shader.WithKeyedVariants(prefixKeyBits, describeVariant(prefixStepDefines))), len(prefixStepDefines)},
	}
	var out []ShaderVariant
	for _, k := range kernels {
		for c := range len(cachingDefines) {
			for step := range k.steps {
				for _, flags := range []uint32{0, keyRestartPrimitive, keyOcclusionCulling, keyRestartPrimitive | keyOcclusionCulling} {
					out = append(out, ShaderVariant{k.cache, variantKey(Caching(c), uint32(step), flags)})
				}
			}
		}
	}
	return out
}
