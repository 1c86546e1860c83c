package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/profiler"
	"github.com/Carmen-Shannon/grain-go/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScene(t *testing.T) scene.Scene {
	t.Helper()
	doc := &scene.Document{
		Name:   "engine",
		Points: scene.PointsSection{Generate: &scene.GenerateSection{Count: 1000, Seed: 2}},
	}
	s, err := scene.NewScene(doc, scene.WithWorkers(2), scene.WithSize(64, 64))
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func TestEngineRendersUntilQuit(t *testing.T) {
	s := newTestScene(t)

	var reports atomic.Int32
	e := NewEngine(
		WithScene(s),
		WithTickRate(200),
		WithProfiling(true),
		WithProfiler(profiler.NewProfiler(profiler.WithInterval(0), profiler.WithQuiet(), profiler.WithOnReport(func(profiler.Report) {
			reports.Add(1)
		}))),
	)

	var frames atomic.Int32
	e.SetRenderCallback(func(float32) {
		if frames.Add(1) == 3 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("engine did not stop")
	}

	assert.GreaterOrEqual(t, frames.Load(), int32(3))
	assert.GreaterOrEqual(t, reports.Load(), int32(3))
	assert.GreaterOrEqual(t, s.Stats().Frames, uint64(3))
}

func TestEngineKeysDriveScene(t *testing.T) {
	s := newTestScene(t)
	e := NewEngine(WithScene(s)).(*engine)

	e.handleKey(common.KeySpace)
	assert.True(t, s.Paused())
	e.handleKey(common.KeySpace)
	assert.False(t, s.Paused())

	e.handleKey(common.KeyI)
	assert.True(t, s.Settings().Grain.DisableInstances)

	occlusion := s.Settings().Splitter.EnableOcclusionCulling
	e.handleKey(common.KeyC)
	assert.Equal(t, !occlusion, s.Settings().Splitter.EnableOcclusionCulling)

	cc := s.Camera().Controller()
	az := cc.Azimuth()
	e.handleKey(common.KeyLeft)
	assert.NotEqual(t, az, cc.Azimuth())

	e.handleKey(common.KeyA)
	assert.NotZero(t, cc.AutoRotate())
	e.handleKey(common.KeyA)
	assert.Zero(t, cc.AutoRotate())

	e.handleKey(common.KeyR)
	assert.True(t, e.pendingReload.Load())
	e.applyPending(s)
	assert.False(t, e.pendingReload.Load())
}

func TestEngineResizeIsDeferred(t *testing.T) {
	s := newTestScene(t)
	e := NewEngine(WithScene(s)).(*engine)

	e.pendingResize.Store(&[2]int{300, 100})
	assert.NotEqual(t, float32(3), s.Camera().Aspect())
	e.applyPending(s)
	assert.Equal(t, float32(3), s.Camera().Aspect())
	assert.Nil(t, e.pendingResize.Load())
}

func TestSetSceneReturnsPrevious(t *testing.T) {
	a, b := newTestScene(t), newTestScene(t)
	e := NewEngine(WithScene(a))
	assert.Equal(t, a, e.SetScene(b))
	assert.Equal(t, b, e.Scene())
}

func TestSetTickRate(t *testing.T) {
	e := NewEngine().(*engine)
	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.engineTickRate)
	e.SetTickRate(120)
	assert.Equal(t, time.Second/120, e.engineTickRate)
	e.SetRenderFrameLimit(50)
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)
}
