package splitter

import (
	"bytes"
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	strategies = []Strategy{StrategyAtomicSum, StrategyPrefixSum, StrategyRestartPrimitive}
	cachings   = []Caching{CachingForget, CachingCache, CachingPrecompute}
)

func boxCloud(t *testing.T, n uint32) pointcloud.PointCloud {
	t.Helper()
	pc, err := pointcloud.NewGenerator(n, pointcloud.WithSeed(3), pointcloud.WithShape(pointcloud.ShapeBox), pointcloud.WithWorkers(1)).Generate("box")
	require.NoError(t, err)
	return pc
}

func boxFrame() FrameInput {
	in := FrameInput{Model: common.IdentityMatrix()}
	common.LookAt(in.View[:], [3]float32{0, 1.5, 3}, [3]float32{0, 0.2, 0}, [3]float32{0, 1, 0})
	common.Perspective(in.Projection[:], 0.5, 1, 0.01, 100)
	return in
}

func boxProperties(strategy Strategy, caching Caching) Properties {
	p := DefaultProperties()
	p.Strategy = int(strategy)
	p.RenderTypeCaching = int(caching)
	p.InstanceLimit = 2.8
	p.ImpostorLimit = 3.4
	return p
}

// collect reads back the element ranges of the current frame and checks that they form a
// partition of a subset of the points.
func collect(t *testing.T, s Splitter) [3][]uint32 {
	t.Helper()
	n := s.Points().PointCount()
	seen := make(map[uint32]RenderModel)
	var out [3][]uint32
	for i, m := range Models {
		v := s.View(m)
		require.NotNil(t, v)
		d, err := v.Data()
		require.NoError(t, err)

		words := d.Elements().(buffer.HostBuffer).Uint32s()
		var ids []uint32
		if v.Sparse() {
			assert.Equal(t, n, d.PointCount())
			for slot, e := range words[:n] {
				if e == RestartIndex {
					continue
				}
				require.Equal(t, uint32(slot), e, "sparse slots hold their own index")
				ids = append(ids, e)
			}
			require.Len(t, ids, int(v.Counter().Count))
		} else {
			assert.Equal(t, v.Counter().Count, d.PointCount())
			assert.Equal(t, v.Counter().Offset, d.PointOffset())
			ids = slices.Clone(words[d.PointOffset() : d.PointOffset()+d.PointCount()])
		}
		for _, id := range ids {
			require.Less(t, id, n)
			prev, dup := seen[id]
			require.False(t, dup, "point %d in %s and %s", id, prev, m)
			seen[id] = m
		}
		out[i] = ids
	}
	return out
}

func sorted(ids []uint32) []uint32 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

func TestClassForDistanceIsHalfOpen(t *testing.T) {
	tests := []struct {
		d    float32
		want RenderModel
	}{
		{0, RenderModelInstance},
		{1.049, RenderModelInstance},
		{1.05, RenderModelImpostor},
		{9.99, RenderModelImpostor},
		{10, RenderModelPoint},
		{1e6, RenderModelPoint},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassForDistance(tt.d, 1.05, 10), "d=%v", tt.d)
	}
}

func TestClassForDistanceInvertedLimits(t *testing.T) {
	assert.Equal(t, RenderModelInstance, ClassForDistance(4, 10, 5))
	assert.Equal(t, RenderModelInstance, ClassForDistance(5, 10, 5))
	assert.Equal(t, RenderModelPoint, ClassForDistance(10, 10, 5))
	assert.Equal(t, RenderModelPoint, ClassForDistance(12, 10, 5))
	for d := float32(0); d < 20; d += 0.25 {
		assert.NotEqual(t, RenderModelImpostor, ClassForDistance(d, 10, 5), "d=%v", d)
	}
}

func TestSplitterPartition(t *testing.T) {
	pc := boxCloud(t, 20000)
	in := boxFrame()
	for _, strategy := range strategies {
		for _, caching := range cachings {
			t.Run(strategy.String()+"/"+caching.String(), func(t *testing.T) {
				props := boxProperties(strategy, caching)
				s, err := NewSplitter(pc, WithProperties(props), WithWorkers(4))
				require.NoError(t, err)
				defer s.Release()

				require.NoError(t, s.PreRender(context.Background(), in))
				sets := collect(t, s)

				ref := newClassifier(props, in)
				total := 0
				for i, m := range Models {
					assert.NotEmpty(t, sets[i], "%s is empty", m)
					for _, id := range sets[i] {
						require.Equal(t, m, ref.classify(pc.Point(0, id)))
					}
					total += len(sets[i])
				}
				stats := s.Stats()
				assert.Equal(t, pc.PointCount(), uint32(total)+stats.Culled)
				assert.NotZero(t, stats.Culled, "the frustum cuts the box corners")

				culled := 0
				for i := range pc.PointCount() {
					if ref.classify(pc.Point(0, i)) == RenderModelNone {
						culled++
					}
				}
				assert.Equal(t, culled, int(stats.Culled))
			})
		}
	}
}

func TestSplitterStrategiesAgree(t *testing.T) {
	pc := boxCloud(t, 5000)
	in := boxFrame()
	var want [3][]uint32
	for i, strategy := range strategies {
		s, err := NewSplitter(pc, WithProperties(boxProperties(strategy, CachingCache)), WithWorkers(3))
		require.NoError(t, err)
		require.NoError(t, s.PreRender(context.Background(), in))
		sets := collect(t, s)
		s.Release()
		for m := range sets {
			sets[m] = sorted(sets[m])
		}
		if i == 0 {
			want = sets
			continue
		}
		assert.Equal(t, want, sets, strategy.String())
	}
}

func TestPrefixSumKeepsPointOrder(t *testing.T) {
	pc := boxCloud(t, 3000)
	s, err := NewSplitter(pc, WithProperties(boxProperties(StrategyPrefixSum, CachingForget)), WithWorkers(4))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	for i, ids := range collect(t, s) {
		assert.True(t, slices.IsSorted(ids), "%s range is ordered", Models[i])
	}
}

func TestSplitterResetIsIdempotent(t *testing.T) {
	pc := boxCloud(t, 4000)
	in := boxFrame()
	for _, strategy := range strategies {
		s, err := NewSplitter(pc, WithProperties(boxProperties(strategy, CachingForget)), WithWorkers(2))
		require.NoError(t, err)

		require.NoError(t, s.PreRender(context.Background(), in))
		first, firstSets := s.Counters(), collect(t, s)
		require.NoError(t, s.PreRender(context.Background(), in))
		assert.Equal(t, first, s.Counters(), strategy.String())
		secondSets := collect(t, s)
		for m := range firstSets {
			assert.Equal(t, sorted(firstSets[m]), sorted(secondSets[m]))
		}
		s.Release()
	}
}

func TestSplitterBboxFilter(t *testing.T) {
	pc, err := pointcloud.NewPointCloud("line", []float32{
		0, 0, -1,
		0, 0, -2,
		0, 0, -3,
		5, 0, -3,
	})
	require.NoError(t, err)

	props := DefaultProperties()
	props.EnableFrustumCulling = false
	props.UseBbox = true
	props.BboxMin = [3]float32{-1, -1, -2.5}
	props.BboxMax = [3]float32{1, 1, 0}
	props.InstanceLimit, props.ImpostorLimit = 1.5, 10

	s, err := NewSplitter(pc, WithProperties(props), WithWorkers(1))
	require.NoError(t, err)
	defer s.Release()

	in := FrameInput{Model: common.IdentityMatrix(), View: common.IdentityMatrix(), Projection: common.IdentityMatrix()}
	require.NoError(t, s.PreRender(context.Background(), in))
	sets := collect(t, s)
	assert.Equal(t, []uint32{0}, sets[RenderModelInstance])
	assert.Equal(t, []uint32{1}, sets[RenderModelImpostor])
	assert.Empty(t, sets[RenderModelPoint])
	assert.Equal(t, uint32(2), s.Stats().Culled)
}

func TestSplitterEmptyCloud(t *testing.T) {
	pc, err := pointcloud.NewPointCloud("empty", nil)
	require.NoError(t, err)
	s, err := NewSplitter(pc, WithWorkers(1))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	assert.Equal(t, [3]Counter{}, s.Counters())
	assert.Zero(t, s.Stats().Dispatches)
	d, err := s.View(RenderModelImpostor).Data()
	require.NoError(t, err)
	assert.Zero(t, d.PointCount())
}

func TestSplitterViewGoesStale(t *testing.T) {
	pc := boxCloud(t, 1000)
	s, err := NewSplitter(pc, WithProperties(boxProperties(StrategyAtomicSum, CachingForget)), WithWorkers(1))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	v := s.View(RenderModelImpostor)
	assert.Equal(t, s.Frame(), v.Frame())
	_, err = v.Data()
	require.NoError(t, err)

	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	_, err = v.Data()
	assert.ErrorIs(t, err, ErrStaleView)
	_, err = s.View(RenderModelImpostor).Data()
	assert.NoError(t, err)
	assert.Nil(t, s.View(RenderModelNone))
}

func TestRestartPrimitiveSparseView(t *testing.T) {
	pc := boxCloud(t, 2000)
	s, err := NewSplitter(pc, WithProperties(boxProperties(StrategyRestartPrimitive, CachingForget)), WithWorkers(2))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	impostors := s.View(RenderModelImpostor)
	require.True(t, impostors.Sparse())
	assert.False(t, s.View(RenderModelInstance).Sparse())
	assert.False(t, s.View(RenderModelPoint).Sparse())

	c := s.Counters()
	assert.Zero(t, c[RenderModelImpostor].Offset)
	assert.Equal(t, c[RenderModelInstance].Count, c[RenderModelPoint].Offset, "points follow instances in the compacted buffer")
	assert.NotSame(t, impostors.(*view).elements, s.View(RenderModelInstance).(*view).elements)
}

func TestPrecomputeSkipsUnchangedFrames(t *testing.T) {
	pc := boxCloud(t, 3000)
	s, err := NewSplitter(pc, WithProperties(boxProperties(StrategyAtomicSum, CachingPrecompute)), WithWorkers(2))
	require.NoError(t, err)
	defer s.Release()

	in := boxFrame()
	require.NoError(t, s.PreRender(context.Background(), in))
	assert.True(t, s.Stats().Precomputed)
	first := s.Counters()
	dispatches := s.Stats().Dispatches

	require.NoError(t, s.PreRender(context.Background(), in))
	assert.False(t, s.Stats().Precomputed)
	assert.Equal(t, dispatches-1, s.Stats().Dispatches)
	assert.Equal(t, first, s.Counters())

	in.View[12] += 0.5
	require.NoError(t, s.PreRender(context.Background(), in))
	assert.True(t, s.Stats().Precomputed)

	occ := &farWall{limit: 100}
	in.Occluder = occ
	require.NoError(t, s.PreRender(context.Background(), in))
	assert.True(t, s.Stats().Precomputed, "a new occluder map invalidates the cache")
	require.NoError(t, s.PreRender(context.Background(), in))
	assert.False(t, s.Stats().Precomputed)
	occ.generation++
	require.NoError(t, s.PreRender(context.Background(), in))
	assert.True(t, s.Stats().Precomputed)
}

func TestInvertedLimitsWarnOnce(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	pc := boxCloud(t, 2000)
	props := boxProperties(StrategyPrefixSum, CachingForget)
	props.InstanceLimit, props.ImpostorLimit = 3.4, 2.8
	s, err := NewSplitter(pc, WithProperties(props), WithWorkers(1))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	assert.Equal(t, 1, strings.Count(logs.String(), "[Splitter] instanceLimit"))

	sets := collect(t, s)
	assert.Empty(t, sets[RenderModelImpostor])
	assert.NotEmpty(t, sets[RenderModelInstance])
	assert.NotEmpty(t, sets[RenderModelPoint])
}

// farWall occludes everything beyond a view distance.
type farWall struct {
	limit      float32
	generation uint64
}

func (w *farWall) Width() int                     { return 1 }
func (w *farWall) Height() int                    { return 1 }
func (w *farWall) Generation() uint64             { return w.generation }
func (w *farWall) Occludes(clip [4]float32) bool  { return clip[3] > w.limit }
func (w *farWall) TextureView() *wgpu.TextureView { return nil }

func TestSplitterOcclusion(t *testing.T) {
	pc := boxCloud(t, 4000)
	in := boxFrame()
	in.Occluder = &farWall{limit: 3}

	props := boxProperties(StrategyAtomicSum, CachingForget)
	s, err := NewSplitter(pc, WithProperties(props), WithWorkers(2))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.PreRender(context.Background(), in))
	ref := newClassifier(props, in)
	for _, ids := range collect(t, s) {
		for _, id := range ids {
			clip := common.TransformPoint(ref.mvp[:], pc.Point(0, id))
			require.LessOrEqual(t, clip[3], float32(3))
		}
	}
	occluded := s.Stats().Culled

	props.EnableOcclusionCulling = false
	s.SetProperties(props)
	require.NoError(t, s.PreRender(context.Background(), in))
	assert.Less(t, s.Stats().Culled, occluded)
}

func TestSplitterCancelled(t *testing.T) {
	pc := boxCloud(t, 100)
	s, err := NewSplitter(pc, WithWorkers(1))
	require.NoError(t, err)
	defer s.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.PreRender(ctx, boxFrame()), context.Canceled)
	assert.Equal(t, [3]Counter{}, s.Counters())
}

func TestFailedSplitPublishesEmptyViews(t *testing.T) {
	pc := boxCloud(t, 500)
	s, err := NewSplitter(pc, WithProperties(boxProperties(StrategyAtomicSum, CachingForget)), WithWorkers(1))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.PreRender(context.Background(), boxFrame()))
	require.NotEqual(t, [3]Counter{}, s.Counters())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.PreRender(ctx, boxFrame()))
	assert.Equal(t, [3]Counter{}, s.Counters())
	for _, m := range Models {
		d, err := s.View(m).Data()
		require.NoError(t, err)
		assert.Zero(t, d.PointCount(), m.String())
	}
}

func TestCheckRanges(t *testing.T) {
	counters, err := checkRanges([3]Counter{{Count: 4}, {Count: 3, Offset: 4}, {Count: 5, Offset: 6}}, 10)
	assert.ErrorIs(t, err, ErrRangeOverflow)
	assert.Equal(t, Counter{Count: 4}, counters[RenderModelInstance])
	assert.Equal(t, Counter{Count: 3, Offset: 4}, counters[RenderModelImpostor])
	assert.Equal(t, Counter{}, counters[RenderModelPoint])

	_, err = checkRanges([3]Counter{{Count: 4}, {Count: 6, Offset: 4}, {Offset: 10}}, 10)
	assert.NoError(t, err)
}

type indexedData struct {
	pointcloud.Data
}

func (indexedData) Elements() buffer.Buffer {
	return buffer.NewHostBuffer("indexed")
}

func TestNewSplitterErrors(t *testing.T) {
	_, err := NewSplitter(nil)
	assert.Error(t, err)

	pc := boxCloud(t, 10)
	_, err = NewSplitter(indexedData{pc})
	assert.ErrorIs(t, err, ErrIndexedInput)

	_, err = NewSplitter(pc, WithBackendType(BackendWGPU))
	assert.Error(t, err)
}

func TestDescribeVariant(t *testing.T) {
	describe := describeVariant(atomicStepDefines)
	assert.Equal(t, []string{"RENDER_TYPE_CACHE", "STEP_WRITE", "RESTART_PRIMITIVE"},
		describe(variantKey(CachingCache, atomicStepWrite, keyRestartPrimitive)))
	assert.Equal(t, []string{"RENDER_TYPE_FORGET", "STEP_RESET"},
		describe(variantKey(CachingForget, atomicStepReset, 0)))

	describe = describeVariant(prefixStepDefines)
	assert.Equal(t, []string{"RENDER_TYPE_PRECOMPUTE", "STEP_SCAN", "OCCLUSION_CULLING"},
		describe(variantKey(CachingPrecompute, prefixStepScan, keyOcclusionCulling)))
	assert.Less(t, variantKey(CachingPrecompute, prefixStepWrite, keyOcclusionCulling|keyRestartPrimitive), uint32(1<<atomicKeyBits))
}

func TestShaderVariantsAreDistinct(t *testing.T) {
	variants := ShaderVariants(shader.CompilerFunc(func(name, base string, defines []string) (shader.Program, error) {
		return nil, nil
	}))
	require.Len(t, variants, 3*4*(len(atomicStepDefines)+len(prefixStepDefines)))

	names := map[string]bool{}
	for _, v := range variants {
		name := v.Cache.Name(v.Key)
		assert.False(t, names[name], name)
		names[name] = true
		assert.Len(t, v.Cache.Defines(v.Key), 2+int(v.Key>>5&1)+int(v.Key>>6&1), name)
	}
}

func TestPackSplitterUniforms(t *testing.T) {
	pc, err := pointcloud.NewPointCloud("anim", make([]float32, 3*10), pointcloud.WithFrameCount(2))
	require.NoError(t, err)
	props := DefaultProperties()
	props.UseBbox = true
	in := boxFrame()
	in.Frame = 3

	buf := packSplitterUniforms(splitterJob{props: props, input: in, classifier: newClassifier(props, in)}, pc, 5, 7, 3)
	require.Len(t, buf, uniformsSize)
	f := common.BytesToSlice[float32](buf)
	u := common.BytesToSlice[uint32](buf)
	assert.Equal(t, props.InstanceLimit, f[59])
	assert.Equal(t, props.ImpostorLimit, f[63])
	assert.Equal(t, uint32(5), u[64], "points per frame")
	assert.Equal(t, uint32(5), u[65], "frame 3 wraps to frame 1")
	assert.Equal(t, uint32(uniformFlagFrustum|uniformFlagBbox), u[66])
	assert.Equal(t, props.GrainRadius, f[67])
	assert.Equal(t, in.Projection[10], f[70])
	assert.Equal(t, uint32(7), u[73])
	assert.Equal(t, uint32(3), u[74], "workgroups per row")
}

func TestDispatchGrid(t *testing.T) {
	grid, err := dispatchGrid(512, 65535)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{512, 1, 1}, grid)

	// ten million points in workgroups of 128
	groups := common.CeilDiv(10_000_000, LocalSizeX)
	grid, err = dispatchGrid(groups, 65535)
	require.NoError(t, err)
	assert.LessOrEqual(t, grid[0], uint32(65535))
	assert.LessOrEqual(t, grid[1], uint32(65535))
	assert.Equal(t, uint32(1), grid[2])
	assert.GreaterOrEqual(t, uint64(grid[0])*uint64(grid[1]), uint64(groups))
	assert.Less(t, uint64(grid[0])*uint64(grid[1]-1), uint64(groups), "no spare row")

	_, err = dispatchGrid(100*100+1, 100)
	assert.ErrorIs(t, err, ErrDeviceLimit)
}

func TestBindablePoints(t *testing.T) {
	assert.Equal(t, uint32(1000), bindablePoints(1000, 0, 128<<20))
	// 64 records fit, the frame starts at record 40
	assert.Equal(t, uint32(24), bindablePoints(100, 40, 64*pointStride))
	assert.Equal(t, uint32(0), bindablePoints(100, 64, 64*pointStride))
	assert.Equal(t, uint32(0), bindablePoints(100, 80, 64*pointStride))
}

func TestDispatchesFoldDenseClouds(t *testing.T) {
	compiler := shader.CompilerFunc(func(name, base string, defines []string) (shader.Program, error) {
		return nil, nil
	})
	b := &wgpuSplitterBackend{
		atomicVariants: shader.NewVariantCache(GlobalAtomicShader, nil, compiler, shader.WithKeyedVariants(atomicKeyBits, describeVariant(atomicStepDefines))),
		prefixVariants: shader.NewVariantCache(PrefixSumShader, nil, compiler, shader.WithKeyedVariants(prefixKeyBits, describeVariant(prefixStepDefines))),
	}
	n := uint32(10_000_000)
	grid, err := dispatchGrid(common.CeilDiv(n, LocalSizeX), 65535)
	require.NoError(t, err)

	for _, strategy := range strategies {
		props := DefaultProperties()
		props.Strategy = int(strategy)
		props.RenderTypeCaching = int(CachingPrecompute)
		plan := b.dispatches(splitterJob{props: props, precompute: true}, grid, false)
		require.NotEmpty(t, plan)
		perPoint := 0
		for _, d := range plan {
			for _, dim := range d.grid {
				assert.LessOrEqual(t, dim, uint32(65535), strategy.String())
			}
			if d.grid == single {
				continue
			}
			perPoint++
			assert.GreaterOrEqual(t, uint64(d.grid[0])*uint64(d.grid[1])*LocalSizeX, uint64(n), strategy.String())
		}
		assert.Positive(t, perPoint, strategy.String())
	}
}

func TestScanGroupSums(t *testing.T) {
	for _, groups := range []int{0, 1, 5, 127, 128, 129, 1000, 78125} {
		sums := make([][3]uint32, groups)
		want := make([][3]uint32, groups)
		var total [3]uint32
		for g := range sums {
			sums[g] = [3]uint32{uint32(g % 7), uint32(g % 3), 1}
			want[g] = total
			for m := range total {
				total[m] += sums[g][m]
			}
		}
		assert.Equal(t, total, scanGroupSums(sums), "groups %d", groups)
		assert.Equal(t, want, sums, "groups %d", groups)
	}
}

func TestUnpackCounters(t *testing.T) {
	raw := common.SliceToBytes([]uint32{3, 4, 5, 9, 9, 9, 0, 3, 7, 0, 0, 0})
	assert.Equal(t, [3]Counter{{3, 0}, {4, 3}, {5, 7}}, unpackCounters(raw))
}

func TestPropertyTableDecode(t *testing.T) {
	p := DefaultProperties()
	err := PropertyTable.Decode(&p, map[string]any{
		"renderTypeCaching": "Precompute",
		"strategy":          "PrefixSum",
		"instanceLimit":     2.0,
		"bogus":             1,
	})
	assert.ErrorContains(t, err, "bogus")
	assert.Equal(t, CachingPrecompute, p.Caching())
	assert.Equal(t, StrategyPrefixSum, p.CullingStrategy())
	assert.Equal(t, float32(2), p.InstanceLimit)
}
