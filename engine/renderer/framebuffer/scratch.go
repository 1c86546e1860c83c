package framebuffer

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrScratchInUse is returned when a pass checks out its scratch target twice in one frame.
	ErrScratchInUse = errors.New("scratch framebuffer already checked out this frame")

	// ErrUnownedPass is returned when a pass without an ownership entry asks for a scratch target.
	ErrUnownedPass = errors.New("pass owns no scratch framebuffer")

	// ErrSharedScratch is returned when two passes claim the same scratch kind.
	ErrSharedScratch = errors.New("scratch kind owned by more than one pass")
)

// ScratchKind identifies a dedicated scratch framebuffer.
type ScratchKind int

const (
	// ScratchOccluderMap is the low resolution depth proxy written by the occlusion pass.
	ScratchOccluderMap ScratchKind = iota

	// ScratchImpostorAux is the linear accumulation target of no-discard impostors.
	ScratchImpostorAux

	// ScratchShadowMap is the depth target of the shadow map pass.
	ScratchShadowMap

	// ScratchFarEpsilonDepth is the epsilon depth buffer of the first far point pass.
	ScratchFarEpsilonDepth

	// ScratchFarAccum is the additive accumulation target of the second far point pass.
	ScratchFarAccum
)

func (k ScratchKind) String() string {
	switch k {
	case ScratchOccluderMap:
		return "OccluderMap"
	case ScratchImpostorAux:
		return "ImpostorAux"
	case ScratchShadowMap:
		return "ShadowMap"
	case ScratchFarEpsilonDepth:
		return "FarSandEpsilonZBuffer"
	case ScratchFarAccum:
		return "FarSandAccum"
	default:
		return fmt.Sprintf("ScratchKind(%d)", int(k))
	}
}

// Pass names a render pass that may own a scratch framebuffer.
type Pass string

const (
	PassOcclusion   Pass = "occlusion"
	PassImpostorAux Pass = "impostor.aux"
	PassShadow      Pass = "shadow"
	PassFarEpsilon  Pass = "far.epsilon"
	PassFarAccum    Pass = "far.accum"
)

// Attachment formats of the scratch targets and the G-buffer.
const (
	AccumFormat = wgpu.TextureFormatRGBA16Float
	DepthFormat = wgpu.TextureFormatDepth32Float
)

// occluderMapDivisor is how much smaller than the viewport the occluder map is on each axis.
const occluderMapDivisor = 4

// KindSpec returns the attachment description of a scratch kind for a viewport size.
//
// Parameters:
//   - kind: the scratch kind
//   - width: the viewport width
//   - height: the viewport height
//
// Returns:
//   - Spec: the attachment description
func KindSpec(kind ScratchKind, width, height int) Spec {
	switch kind {
	case ScratchOccluderMap:
		return Spec{
			Width:  max(width/occluderMapDivisor, 1),
			Height: max(height/occluderMapDivisor, 1),
			Depth:  DepthFormat,
		}
	case ScratchShadowMap, ScratchFarEpsilonDepth:
		return Spec{Width: width, Height: height, Depth: DepthFormat}
	case ScratchImpostorAux:
		// the depth attachment holds the prerendered surface
		return Spec{Width: width, Height: height, Color: []wgpu.TextureFormat{AccumFormat, AccumFormat}, Depth: DepthFormat}
	case ScratchFarAccum:
		// color * weight, then normal * weight with the weighted depth in w
		return Spec{Width: width, Height: height, Color: []wgpu.TextureFormat{AccumFormat, AccumFormat}}
	default:
		return Spec{Width: width, Height: height}
	}
}

// GBufferSpec describes the main framebuffer every renderer draws into: albedo with
// roughness in w, then the view space normal with the linear view depth in w.
//
// Parameters:
//   - width: the viewport width
//   - height: the viewport height
//
// Returns:
//   - Spec: the attachment description
func GBufferSpec(width, height int) Spec {
	return Spec{Width: width, Height: height, Color: []wgpu.TextureFormat{AccumFormat, AccumFormat}, Depth: DepthFormat}
}

// OwnershipTable maps every pass that renders offscreen to the one scratch kind it owns.
type OwnershipTable struct {
	owners map[Pass]ScratchKind
}

// NewOwnershipTable validates that no scratch kind is owned by two passes.
//
// Parameters:
//   - owners: pass to scratch kind
//
// Returns:
//   - OwnershipTable: the validated table
//   - error: ErrSharedScratch naming the conflicting passes
func NewOwnershipTable(owners map[Pass]ScratchKind) (OwnershipTable, error) {
	passes := make([]Pass, 0, len(owners))
	for p := range owners {
		passes = append(passes, p)
	}
	sort.Slice(passes, func(i, j int) bool { return passes[i] < passes[j] })

	seen := make(map[ScratchKind]Pass, len(owners))
	for _, p := range passes {
		kind := owners[p]
		if other, ok := seen[kind]; ok {
			return OwnershipTable{}, fmt.Errorf("%w: %s claimed by %q and %q", ErrSharedScratch, kind, other, p)
		}
		seen[kind] = p
	}

	t := OwnershipTable{owners: make(map[Pass]ScratchKind, len(owners))}
	for p, k := range owners {
		t.owners[p] = k
	}
	return t, nil
}

// DefaultOwnership is the table used by the compositor.
func DefaultOwnership() OwnershipTable {
	t, _ := NewOwnershipTable(map[Pass]ScratchKind{
		PassOcclusion:   ScratchOccluderMap,
		PassImpostorAux: ScratchImpostorAux,
		PassShadow:      ScratchShadowMap,
		PassFarEpsilon:  ScratchFarEpsilonDepth,
		PassFarAccum:    ScratchFarAccum,
	})
	return t
}

// Owner returns the scratch kind owned by a pass.
func (t OwnershipTable) Owner(pass Pass) (ScratchKind, bool) {
	k, ok := t.owners[pass]
	return k, ok
}

// Factory creates the framebuffer backing a scratch kind at the given viewport size.
type Factory func(kind ScratchKind, width, height int) (Framebuffer, error)

// DeviceFactory creates scratch framebuffers on a GPU device using KindSpec.
func DeviceFactory(device *wgpu.Device) Factory {
	return func(kind ScratchKind, width, height int) (Framebuffer, error) {
		return NewFramebuffer(device, kind.String(), KindSpec(kind, width, height))
	}
}

// scratchPool is the implementation of the ScratchPool interface.
type scratchPool struct {
	mu      *sync.Mutex
	table   OwnershipTable
	factory Factory

	width, height int
	targets       map[ScratchKind]Framebuffer
	leased        map[Pass]bool
}

// ScratchPool hands out the scratch framebuffer each pass owns, at most once per frame.
type ScratchPool interface {
	// BeginFrame clears every lease.
	BeginFrame()

	// Checkout returns the scratch framebuffer owned by a pass, creating it on first use.
	//
	// Parameters:
	//   - pass: the requesting pass
	//
	// Returns:
	//   - Framebuffer: the pass's scratch target
	//   - error: ErrUnownedPass, ErrScratchInUse, or a creation error
	Checkout(pass Pass) (Framebuffer, error)

	// Resize resizes every created scratch target to the new viewport size.
	//
	// Parameters:
	//   - width: the viewport width
	//   - height: the viewport height
	//
	// Returns:
	//   - error: the first resize error
	Resize(width, height int) error

	// Release releases every created scratch target.
	Release()
}

var _ ScratchPool = &scratchPool{}

// NewScratchPool creates an empty pool. Targets are created lazily on first checkout.
//
// Parameters:
//   - table: the pass ownership table
//   - factory: creates the framebuffer for a kind
//   - width: the initial viewport width
//   - height: the initial viewport height
//
// Returns:
//   - ScratchPool: the pool
func NewScratchPool(table OwnershipTable, factory Factory, width, height int) ScratchPool {
	return &scratchPool{
		mu:      &sync.Mutex{},
		table:   table,
		factory: factory,
		width:   width,
		height:  height,
		targets: make(map[ScratchKind]Framebuffer),
		leased:  make(map[Pass]bool),
	}
}

func (s *scratchPool) BeginFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.leased)
}

func (s *scratchPool) Checkout(pass Pass) (Framebuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, ok := s.table.Owner(pass)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnownedPass, pass)
	}
	if s.leased[pass] {
		return nil, fmt.Errorf("%w: %q", ErrScratchInUse, pass)
	}

	fb, ok := s.targets[kind]
	if !ok {
		var err error
		fb, err = s.factory(kind, s.width, s.height)
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch %s: %w", kind, err)
		}
		log.Printf("[Framebuffer] created scratch %s for pass %q", kind, pass)
		s.targets[kind] = fb
	}
	s.leased[pass] = true
	return fb, nil
}

func (s *scratchPool) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.width, s.height = width, height
	for kind, fb := range s.targets {
		spec := KindSpec(kind, width, height)
		if err := fb.Resize(spec.Width, spec.Height); err != nil {
			return fmt.Errorf("failed to resize scratch %s: %w", kind, err)
		}
	}
	return nil
}

func (s *scratchPool) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, fb := range s.targets {
		fb.Release()
		delete(s.targets, kind)
	}
}
