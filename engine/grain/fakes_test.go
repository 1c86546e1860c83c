package grain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"math"
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/assets"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/cogentcore/webgpu/wgpu"
)

type drawRecord struct {
	key  string
	args renderer.DrawArgs
}

type passRecord struct {
	desc  renderer.PassDescriptor
	draws []drawRecord
}

// fakeEncoder records passes and draws instead of encoding them.
type fakeEncoder struct {
	pipelines    map[string]pipeline.Pipeline
	passes       []*passRecord
	open         bool
	binders      map[string]*fakeBinder
	framebuffers []*fakeFramebuffer
	meshUploads  int
	frames       []string
	evicted      []string
}

var _ Encoder = &fakeEncoder{}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{
		pipelines: map[string]pipeline.Pipeline{},
		binders:   map[string]*fakeBinder{},
	}
}

func (e *fakeEncoder) Pipeline(key string) pipeline.Pipeline {
	return e.pipelines[key]
}

func (e *fakeEncoder) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		e.pipelines[p.PipelineKey()] = p
	}
	return nil
}

func (e *fakeEncoder) EvictPipelines(prefix string) int {
	e.evicted = append(e.evicted, prefix)
	n := 0
	for k := range e.pipelines {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(e.pipelines, k)
			n++
		}
	}
	return n
}

func (e *fakeEncoder) NewBindings(label string) Binder {
	b := &fakeBinder{label: label}
	e.binders[label] = b
	return b
}

func (e *fakeEncoder) NewFramebuffer(label string, spec framebuffer.Spec) (framebuffer.Framebuffer, error) {
	fb := newFakeFramebuffer(label, spec)
	e.framebuffers = append(e.framebuffers, fb)
	return fb, nil
}

func (e *fakeEncoder) InitMeshBuffers(bind_group_provider.BindGroupProvider, []byte, []byte, int) error {
	e.meshUploads++
	return nil
}

func (e *fakeEncoder) BeginFrame() error {
	e.frames = append(e.frames, "begin")
	return nil
}

func (e *fakeEncoder) BeginOffscreenFrame() error {
	e.frames = append(e.frames, "offscreen")
	return nil
}

func (e *fakeEncoder) BeginPass(desc renderer.PassDescriptor) error {
	if e.open {
		return errors.New("pass already open")
	}
	e.open = true
	e.passes = append(e.passes, &passRecord{desc: desc})
	return nil
}

func (e *fakeEncoder) DrawCall(key string, args renderer.DrawArgs) error {
	if !e.open {
		return errors.New("draw outside a pass")
	}
	if e.pipelines[key] == nil {
		return fmt.Errorf("pipeline %q not found", key)
	}
	p := e.passes[len(e.passes)-1]
	p.draws = append(p.draws, drawRecord{key: key, args: args})
	return nil
}

func (e *fakeEncoder) EndPass() {
	e.open = false
}

func (e *fakeEncoder) EndFrame() {
	e.frames = append(e.frames, "end")
}

func (e *fakeEncoder) Present() {
	e.frames = append(e.frames, "present")
}

func (e *fakeEncoder) labels() []string {
	out := make([]string, len(e.passes))
	for i, p := range e.passes {
		out[i] = p.desc.Label
	}
	return out
}

func (e *fakeEncoder) draws() []drawRecord {
	var out []drawRecord
	for _, p := range e.passes {
		out = append(out, p.draws...)
	}
	return out
}

type bindCall struct {
	program   string
	resources map[string]renderer.Resource
}

// fakeBinder fails like the real binding set when a declared binding has no resource.
type fakeBinder struct {
	label    string
	calls    []bindCall
	released bool
}

func (b *fakeBinder) Bind(prog shader.Program, resources map[string]renderer.Resource) ([]bind_group_provider.BindGroupProvider, error) {
	for _, t := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
		s := prog.Stage(t)
		if s == nil {
			continue
		}
		for g, desc := range s.BindGroupLayoutDescriptors() {
			for _, entry := range desc.Entries {
				name := s.BindGroupVarName(g, int(entry.Binding))
				if _, ok := resources[name]; !ok {
					return nil, fmt.Errorf("%s: no resource for %q", prog.Name(), name)
				}
			}
		}
	}
	b.calls = append(b.calls, bindCall{program: prog.Name(), resources: maps.Clone(resources)})
	return make([]bind_group_provider.BindGroupProvider, 1), nil
}

func (b *fakeBinder) Release() {
	b.released = true
}

func (b *fakeBinder) last() bindCall {
	return b.calls[len(b.calls)-1]
}

type fakeFramebuffer struct {
	label         string
	spec          framebuffer.Spec
	released      bool
	width, height int
}

func newFakeFramebuffer(label string, spec framebuffer.Spec) *fakeFramebuffer {
	return &fakeFramebuffer{label: label, spec: spec, width: spec.Width, height: spec.Height}
}

func (f *fakeFramebuffer) Label() string                      { return f.label }
func (f *fakeFramebuffer) Size() (int, int)                   { return f.width, f.height }
func (f *fakeFramebuffer) ColorFormats() []wgpu.TextureFormat { return f.spec.Color }
func (f *fakeFramebuffer) DepthFormat() wgpu.TextureFormat    { return f.spec.Depth }
func (f *fakeFramebuffer) Release()                           { f.released = true }

func (f *fakeFramebuffer) ColorView(i int) *wgpu.TextureView {
	if i < 0 || i >= len(f.spec.Color) {
		return nil
	}
	return &wgpu.TextureView{}
}

func (f *fakeFramebuffer) DepthView() *wgpu.TextureView {
	if f.spec.Depth == wgpu.TextureFormatUndefined {
		return nil
	}
	return &wgpu.TextureView{}
}

func (f *fakeFramebuffer) Resize(w, h int) error {
	f.width, f.height = w, h
	return nil
}

func newFakeScratch(width, height int) framebuffer.ScratchPool {
	factory := func(kind framebuffer.ScratchKind, w, h int) (framebuffer.Framebuffer, error) {
		return newFakeFramebuffer(kind.String(), framebuffer.KindSpec(kind, w, h)), nil
	}
	return framebuffer.NewScratchPool(framebuffer.DefaultOwnership(), factory, width, height)
}

// fakeDeviceBuffer stands in for a device buffer; only its handle is ever used.
type fakeDeviceBuffer struct {
	label string
	size  uint64
}

var _ buffer.DeviceBuffer = &fakeDeviceBuffer{}

func (b *fakeDeviceBuffer) Label() string                       { return b.label }
func (b *fakeDeviceBuffer) Usage() buffer.Usage                 { return buffer.UsageStorage }
func (b *fakeDeviceBuffer) Size() uint64                        { return b.size }
func (b *fakeDeviceBuffer) Grow(uint64) (bool, error)           { return false, nil }
func (b *fakeDeviceBuffer) Write(uint64, []byte) error          { return nil }
func (b *fakeDeviceBuffer) Read(uint64, uint64) ([]byte, error) { return nil, nil }
func (b *fakeDeviceBuffer) Clear() error                        { return nil }
func (b *fakeDeviceBuffer) Release()                            {}
func (b *fakeDeviceBuffer) GPUBuffer() *wgpu.Buffer             { return &wgpu.Buffer{} }

type fakeData struct {
	count, frames, offset uint32
	vertices, elements    buffer.Buffer
}

var _ pointcloud.Data = &fakeData{}

func (d *fakeData) PointCount() uint32      { return d.count }
func (d *fakeData) FrameCount() uint32      { return d.frames }
func (d *fakeData) PointOffset() uint32     { return d.offset }
func (d *fakeData) Vertices() buffer.Buffer { return d.vertices }
func (d *fakeData) Elements() buffer.Buffer { return d.elements }

type fakeView struct {
	model   splitter.RenderModel
	sparse  bool
	counter splitter.Counter
	source  pointcloud.Data
	data    pointcloud.Data
	err     error
}

var _ splitter.View = &fakeView{}

func (v *fakeView) Model() splitter.RenderModel { return v.model }
func (v *fakeView) Frame() uint64               { return 1 }
func (v *fakeView) Sparse() bool                { return v.sparse }
func (v *fakeView) Counter() splitter.Counter   { return v.counter }
func (v *fakeView) Source() pointcloud.Data     { return v.source }

func (v *fakeView) Data() (pointcloud.Data, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.data, nil
}

// newTestView returns a view of count elements starting at offset, over a 1000 point
// source of four frames.
func newTestView(model splitter.RenderModel, count, offset uint32) *fakeView {
	source := &fakeData{count: 1000, frames: 4, vertices: &fakeDeviceBuffer{label: "points"}}
	return &fakeView{
		model:   model,
		counter: splitter.Counter{Count: count, Offset: offset},
		source:  source,
		data: &fakeData{
			count:    count,
			frames:   4,
			offset:   offset,
			vertices: source.vertices,
			elements: &fakeDeviceBuffer{label: "elements"},
		},
	}
}

type fakeViews map[splitter.RenderModel]splitter.View

func (f fakeViews) View(m splitter.RenderModel) splitter.View {
	return f[m]
}

func testCompiler(t *testing.T) shader.Compiler {
	t.Helper()
	return shader.NewCompiler(assets.NewLibrary())
}

func testFrame(target Target, dest framebuffer.Framebuffer, scratch framebuffer.ScratchPool) Frame {
	id := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	return Frame{
		Target:      target,
		Destination: dest,
		Scratch:     scratch,
		Model:       id,
		View:        id,
		Projection:  id,
		Grain:       DefaultProperties(),
	}
}

func testGBuffer() *fakeFramebuffer {
	return newFakeFramebuffer("GBuffer", framebuffer.GBufferSpec(64, 48))
}

func u32At(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(u32At(buf, off))
}
