package splitter

import (
	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/culling"
)

// ClassForDistance assigns a render model from the view space distance of a visible point.
//
// Parameters:
//   - d: the distance from the camera
//   - instanceLimit: the upper bound of the instance range, exclusive
//   - impostorLimit: the upper bound of the impostor range, exclusive
//
// Returns:
//   - RenderModel: Instance, Impostor or Point
func ClassForDistance(d, instanceLimit, impostorLimit float32) RenderModel {
	switch {
	case d < instanceLimit:
		return RenderModelInstance
	case d < impostorLimit:
		return RenderModelImpostor
	default:
		return RenderModelPoint
	}
}

// classifier holds everything needed to classify the points of one frame. Filters run
// in order: bounding box, frustum, occlusion, then distance.
type classifier struct {
	viewModel [16]float32
	mvp       [16]float32
	frustum   common.Frustum
	bbox      common.BBox
	occluder  culling.OccluderMap

	useBbox    bool
	useFrustum bool
	radius     float32

	instanceLimit float32
	impostorLimit float32
}

func newClassifier(props Properties, in FrameInput) classifier {
	c := classifier{
		bbox:          common.BBox{Min: props.BboxMin, Max: props.BboxMax},
		useBbox:       props.UseBbox,
		useFrustum:    props.EnableFrustumCulling,
		radius:        props.GrainRadius,
		instanceLimit: props.InstanceLimit,
		impostorLimit: props.ImpostorLimit,
	}
	common.Mul4(c.viewModel[:], in.View[:], in.Model[:])
	common.Mul4(c.mvp[:], in.Projection[:], c.viewModel[:])
	// planes of the full transform are expressed in model space
	c.frustum = common.ExtractFrustumFromMatrix(c.mvp[:])
	if props.EnableOcclusionCulling {
		c.occluder = in.Occluder
	}
	return c
}

func (c *classifier) classify(p [3]float32) RenderModel {
	if c.useBbox && !c.bbox.Contains(p) {
		return RenderModelNone
	}
	if c.useFrustum && !c.frustum.ContainsSphere(p, c.radius) {
		return RenderModelNone
	}
	if c.occluder != nil && c.occluder.Occludes(common.TransformPoint(c.mvp[:], p)) {
		return RenderModelNone
	}
	v := common.TransformPoint(c.viewModel[:], p)
	return ClassForDistance(common.Length3(v[0], v[1], v[2]), c.instanceLimit, c.impostorLimit)
}
