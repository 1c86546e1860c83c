package splitter

import (
	"github.com/Carmen-Shannon/grain-go/engine/property"
)

// Properties is the user-facing configuration of a Splitter. It is comparable so a change
// can be detected with ==.
type Properties struct {
	RenderTypeCaching      int
	Strategy               int
	EnableOcclusionCulling bool
	EnableFrustumCulling   bool

	// InstanceLimit and ImpostorLimit are view space distances. Points closer than
	// InstanceLimit are instanced, closer than ImpostorLimit are impostors, the rest are
	// points. The bounds are half-open.
	InstanceLimit float32
	ImpostorLimit float32

	ZPrepass bool
	UseBbox  bool
	BboxMin  [3]float32
	BboxMax  [3]float32

	OccluderMapSpriteScale float32
	GrainRadius            float32
}

// DefaultProperties returns the splitter defaults.
func DefaultProperties() Properties {
	return Properties{
		RenderTypeCaching:      int(CachingForget),
		Strategy:               int(StrategyAtomicSum),
		EnableOcclusionCulling: true,
		EnableFrustumCulling:   true,
		InstanceLimit:          1.05,
		ImpostorLimit:          10,
		ZPrepass:               true,
		BboxMin:                [3]float32{-1, -1, -1},
		BboxMax:                [3]float32{1, 1, 1},
		OccluderMapSpriteScale: 0.2,
		GrainRadius:            0.007,
	}
}

// Caching returns the caching mode.
func (p Properties) Caching() Caching {
	return Caching(p.RenderTypeCaching)
}

// CullingStrategy returns the range strategy.
func (p Properties) CullingStrategy() Strategy {
	return Strategy(p.Strategy)
}

// PropertyTable describes how Properties are read from scene documents and shown in the UI.
var PropertyTable = property.Table[Properties]{
	Name: "splitter",
	Fields: []property.Field[Properties]{
		property.Enum("renderTypeCaching", "", []property.EnumValue{
			{Name: "Forget", Value: int(CachingForget)},
			{Name: "Cache", Value: int(CachingCache)},
			{Name: "Precompute", Value: int(CachingPrecompute)},
		}, func(p *Properties) *int { return &p.RenderTypeCaching }),
		property.Enum("strategy", "", []property.EnumValue{
			{Name: "AtomicSum", Value: int(StrategyAtomicSum)},
			{Name: "PrefixSum", Value: int(StrategyPrefixSum)},
			{Name: "RestartPrimitive", Value: int(StrategyRestartPrimitive)},
		}, func(p *Properties) *int { return &p.Strategy }),
		property.Bool("enableOcclusionCulling", "uEnableOcclusionCulling", func(p *Properties) *bool { return &p.EnableOcclusionCulling }),
		property.Bool("enableFrustumCulling", "uEnableFrustumCulling", func(p *Properties) *bool { return &p.EnableFrustumCulling }),
		property.Float("instanceLimit", "uInstanceLimit", 0.01, 3, func(p *Properties) *float32 { return &p.InstanceLimit }),
		property.Float("impostorLimit", "uImpostorLimit", 0.01, 20, func(p *Properties) *float32 { return &p.ImpostorLimit }),
		property.Bool("zPrepass", "", func(p *Properties) *bool { return &p.ZPrepass }),
		property.Bool("useBbox", "uUseBbox", func(p *Properties) *bool { return &p.UseBbox }),
		property.Vec3("bboxMin", "uBboxMin", 0, 0, func(p *Properties) *[3]float32 { return &p.BboxMin }),
		property.Vec3("bboxMax", "uBboxMax", 0, 0, func(p *Properties) *[3]float32 { return &p.BboxMax }),
		property.Float("occluderMapSpriteScale", "", 0, 1, func(p *Properties) *float32 { return &p.OccluderMapSpriteScale }),
		property.Float("grainRadius", "uGrainRadius", 0, 0, func(p *Properties) *float32 { return &p.GrainRadius }).Hidden(),
	},
}
