package framebuffer

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFramebuffer struct {
	kind          ScratchKind
	width, height int
	released      bool
}

func (f *fakeFramebuffer) Label() string                      { return f.kind.String() }
func (f *fakeFramebuffer) Size() (int, int)                   { return f.width, f.height }
func (f *fakeFramebuffer) ColorFormats() []wgpu.TextureFormat { return nil }
func (f *fakeFramebuffer) DepthFormat() wgpu.TextureFormat    { return DepthFormat }
func (f *fakeFramebuffer) ColorView(int) *wgpu.TextureView    { return nil }
func (f *fakeFramebuffer) DepthView() *wgpu.TextureView       { return nil }
func (f *fakeFramebuffer) Release()                           { f.released = true }
func (f *fakeFramebuffer) Resize(w, h int) error {
	f.width, f.height = w, h
	return nil
}

type fakeFactory struct {
	created []*fakeFramebuffer
	fail    bool
}

func (ff *fakeFactory) create(kind ScratchKind, width, height int) (Framebuffer, error) {
	if ff.fail {
		return nil, errors.New("out of memory")
	}
	spec := KindSpec(kind, width, height)
	fb := &fakeFramebuffer{kind: kind, width: spec.Width, height: spec.Height}
	ff.created = append(ff.created, fb)
	return fb, nil
}

func TestOwnershipTableRejectsSharedKind(t *testing.T) {
	_, err := NewOwnershipTable(map[Pass]ScratchKind{
		PassImpostorAux: ScratchImpostorAux,
		PassFarAccum:    ScratchImpostorAux,
	})
	require.ErrorIs(t, err, ErrSharedScratch)
	assert.Contains(t, err.Error(), "far.accum")

	table := DefaultOwnership()
	kind, ok := table.Owner(PassFarEpsilon)
	assert.True(t, ok)
	assert.Equal(t, ScratchFarEpsilonDepth, kind)
}

func TestScratchPoolCheckoutOncePerFrame(t *testing.T) {
	ff := &fakeFactory{}
	pool := NewScratchPool(DefaultOwnership(), ff.create, 800, 600)

	fb, err := pool.Checkout(PassImpostorAux)
	require.NoError(t, err)
	w, h := fb.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	_, err = pool.Checkout(PassImpostorAux)
	assert.ErrorIs(t, err, ErrScratchInUse)

	other, err := pool.Checkout(PassOcclusion)
	require.NoError(t, err)
	w, _ = other.Size()
	assert.Equal(t, 200, w)

	pool.BeginFrame()
	again, err := pool.Checkout(PassImpostorAux)
	require.NoError(t, err)
	assert.Same(t, fb, again)
	assert.Len(t, ff.created, 2)
}

func TestScratchPoolUnownedPass(t *testing.T) {
	pool := NewScratchPool(DefaultOwnership(), (&fakeFactory{}).create, 64, 64)
	_, err := pool.Checkout(Pass("gbuffer"))
	assert.ErrorIs(t, err, ErrUnownedPass)
}

func TestScratchPoolFactoryFailureDoesNotLease(t *testing.T) {
	ff := &fakeFactory{fail: true}
	pool := NewScratchPool(DefaultOwnership(), ff.create, 64, 64)
	_, err := pool.Checkout(PassFarAccum)
	require.Error(t, err)

	ff.fail = false
	_, err = pool.Checkout(PassFarAccum)
	assert.NoError(t, err)
}

func TestScratchPoolResizeAndRelease(t *testing.T) {
	ff := &fakeFactory{}
	pool := NewScratchPool(DefaultOwnership(), ff.create, 64, 64)
	_, err := pool.Checkout(PassOcclusion)
	require.NoError(t, err)

	require.NoError(t, pool.Resize(1024, 512))
	assert.Equal(t, 256, ff.created[0].width)
	assert.Equal(t, 128, ff.created[0].height)

	pool.Release()
	assert.True(t, ff.created[0].released)
}
