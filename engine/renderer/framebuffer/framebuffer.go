package framebuffer

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Spec describes the attachments of a framebuffer.
type Spec struct {
	Width, Height int

	// Color lists the color attachment formats in attachment order.
	Color []wgpu.TextureFormat

	// Depth is the depth attachment format, wgpu.TextureFormatUndefined for none.
	Depth wgpu.TextureFormat
}

// framebuffer is the implementation of the Framebuffer interface.
type framebuffer struct {
	mu     *sync.Mutex
	device *wgpu.Device
	label  string
	spec   Spec

	colorTextures []*wgpu.Texture
	colorViews    []*wgpu.TextureView
	depthTexture  *wgpu.Texture
	depthView     *wgpu.TextureView
}

// Framebuffer is a set of offscreen attachments sized to the viewport (or a fraction of it).
// Attachments are recreated on Resize; views handed out before a resize must not be used after it.
type Framebuffer interface {
	// Label returns the debug label of the framebuffer.
	Label() string

	// Size returns the current attachment size in texels.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	Size() (int, int)

	// ColorFormats returns the color attachment formats in attachment order.
	ColorFormats() []wgpu.TextureFormat

	// DepthFormat returns the depth attachment format, or wgpu.TextureFormatUndefined.
	DepthFormat() wgpu.TextureFormat

	// ColorView returns the view of the i-th color attachment, or nil when out of range.
	//
	// Parameters:
	//   - i: the attachment index
	//
	// Returns:
	//   - *wgpu.TextureView: the attachment view
	ColorView(i int) *wgpu.TextureView

	// DepthView returns the depth attachment view, or nil when the framebuffer has none.
	DepthView() *wgpu.TextureView

	// Resize recreates every attachment at the new size. Resizing to the current size is a no-op.
	//
	// Parameters:
	//   - width: the new width in texels
	//   - height: the new height in texels
	//
	// Returns:
	//   - error: an error if an attachment could not be created
	Resize(width, height int) error

	// Release releases every attachment.
	Release()
}

var _ Framebuffer = &framebuffer{}

// NewFramebuffer creates the attachments described by spec on the given device. Attachments are
// usable both as render targets and as sampled textures.
//
// Parameters:
//   - device: the GPU device
//   - label: the debug label
//   - spec: the attachment description
//
// Returns:
//   - Framebuffer: the framebuffer
//   - error: an error if an attachment could not be created
func NewFramebuffer(device *wgpu.Device, label string, spec Spec) (Framebuffer, error) {
	f := &framebuffer{
		mu:     &sync.Mutex{},
		device: device,
		label:  label,
		spec:   spec,
	}
	if err := f.create(); err != nil {
		f.release()
		return nil, err
	}
	return f, nil
}

func (f *framebuffer) Label() string {
	return f.label
}

func (f *framebuffer) Size() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spec.Width, f.spec.Height
}

func (f *framebuffer) ColorFormats() []wgpu.TextureFormat {
	return f.spec.Color
}

func (f *framebuffer) DepthFormat() wgpu.TextureFormat {
	return f.spec.Depth
}

func (f *framebuffer) ColorView(i int) *wgpu.TextureView {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.colorViews) {
		return nil
	}
	return f.colorViews[i]
}

func (f *framebuffer) DepthView() *wgpu.TextureView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depthView
}

func (f *framebuffer) Resize(width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if width == f.spec.Width && height == f.spec.Height {
		return nil
	}
	f.release()
	f.spec.Width, f.spec.Height = width, height
	return f.create()
}

func (f *framebuffer) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.release()
}

func (f *framebuffer) create() error {
	w, h := uint32(max(f.spec.Width, 1)), uint32(max(f.spec.Height, 1))
	for i, format := range f.spec.Color {
		tex, view, err := f.attachment(fmt.Sprintf("%s Color %d", f.label, i), format, w, h)
		if err != nil {
			return err
		}
		f.colorTextures = append(f.colorTextures, tex)
		f.colorViews = append(f.colorViews, view)
	}
	if f.spec.Depth != wgpu.TextureFormatUndefined {
		tex, view, err := f.attachment(f.label+" Depth", f.spec.Depth, w, h)
		if err != nil {
			return err
		}
		f.depthTexture, f.depthView = tex, view
	}
	return nil
}

func (f *framebuffer) attachment(label string, format wgpu.TextureFormat, width, height uint32) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := f.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("failed to create %s view: %w", label, err)
	}
	return tex, view, nil
}

func (f *framebuffer) release() {
	for _, v := range f.colorViews {
		v.Release()
	}
	for _, t := range f.colorTextures {
		t.Release()
	}
	f.colorViews, f.colorTextures = nil, nil
	if f.depthView != nil {
		f.depthView.Release()
		f.depthView = nil
	}
	if f.depthTexture != nil {
		f.depthTexture.Release()
		f.depthTexture = nil
	}
}
