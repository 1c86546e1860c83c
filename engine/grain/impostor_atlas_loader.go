package grain

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// AtlasFile names the two baked images of one impostor atlas.
type AtlasFile struct {
	Name      string
	ViewCount int
	BaseColor string
	Normal    string
}

// AtlasTextures owns the array textures behind an AtlasSet.
type AtlasTextures struct {
	Set      AtlasSet
	textures []*wgpu.Texture
}

// Release frees the textures. The set must not be sampled afterwards.
func (t *AtlasTextures) Release() {
	for _, tex := range t.textures {
		tex.Release()
	}
	t.textures = nil
	t.Set = AtlasSet{}
}

// stageAtlases decodes every image and checks that the layers can share one array texture.
func stageAtlases(files []AtlasFile, load func(string) (common.TextureStagingData, error)) (color, normal []common.TextureStagingData, err error) {
	if len(files) > MaxAtlases {
		return nil, nil, fmt.Errorf("impostor atlases: %d atlases, at most %d are supported", len(files), MaxAtlases)
	}
	for _, f := range files {
		if f.ViewCount <= 0 {
			return nil, nil, fmt.Errorf("impostor atlas %s: view count must be positive", f.Name)
		}
		c, err := load(f.BaseColor)
		if err != nil {
			return nil, nil, fmt.Errorf("impostor atlas %s: %w", f.Name, err)
		}
		n, err := load(f.Normal)
		if err != nil {
			return nil, nil, fmt.Errorf("impostor atlas %s: %w", f.Name, err)
		}
		if c.Width != n.Width || c.Height != n.Height {
			return nil, nil, fmt.Errorf("impostor atlas %s: base color is %dx%d but normal is %dx%d", f.Name, c.Width, c.Height, n.Width, n.Height)
		}
		if len(color) > 0 && (c.Width != color[0].Width || c.Height != color[0].Height) {
			return nil, nil, fmt.Errorf("impostor atlas %s: size %dx%d differs from the first atlas", f.Name, c.Width, c.Height)
		}
		color = append(color, c)
		normal = append(normal, n)
	}
	return color, normal, nil
}

// LoadAtlases decodes the baked atlas images and uploads them as two RGBA8 array textures,
// one layer per atlas.
//
// Parameters:
//   - device: the GPU device
//   - queue: the queue the layers are written with
//   - files: the atlases, at most MaxAtlases of the same size
//
// Returns:
//   - *AtlasTextures: the uploaded set, empty when files is empty
//   - error: a decoding or size error
func LoadAtlases(device *wgpu.Device, queue *wgpu.Queue, files []AtlasFile) (*AtlasTextures, error) {
	out := &AtlasTextures{}
	if len(files) == 0 {
		return out, nil
	}
	color, normal, err := stageAtlases(files, common.LoadTextureStagingData)
	if err != nil {
		return nil, err
	}

	colorView, err := uploadLayers(device, queue, out, "Impostor BaseColor", color)
	if err != nil {
		out.Release()
		return nil, err
	}
	normalView, err := uploadLayers(device, queue, out, "Impostor Normal", normal)
	if err != nil {
		out.Release()
		return nil, err
	}

	out.Set = AtlasSet{BaseColor: colorView, Normal: normalView}
	for _, f := range files {
		out.Set.Atlases = append(out.Set.Atlases, Atlas{Name: f.Name, ViewCount: f.ViewCount})
	}
	return out, nil
}

func uploadLayers(device *wgpu.Device, queue *wgpu.Queue, owner *AtlasTextures, label string, layers []common.TextureStagingData) (*wgpu.TextureView, error) {
	if len(layers) == 0 {
		return nil, errors.New("impostor atlases: no layers")
	}
	w, h := layers[0].Width, layers[0].Height
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              w,
			Height:             h,
			DepthOrArrayLayers: uint32(len(layers)),
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	owner.textures = append(owner.textures, tex)

	for i, layer := range layers {
		queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture: tex,
				Origin:  wgpu.Origin3D{Z: uint32(i)},
				Aspect:  wgpu.TextureAspectAll,
			},
			layer.Pixels,
			&wgpu.TextureDataLayout{
				BytesPerRow:  w * 4,
				RowsPerImage: h,
			},
			&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		)
	}

	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " View",
		Format:          wgpu.TextureFormatRGBA8Unorm,
		Dimension:       wgpu.TextureViewDimension2DArray,
		MipLevelCount:   1,
		ArrayLayerCount: uint32(len(layers)),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return view, nil
}
