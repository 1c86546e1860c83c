package pointcloud

// PointCloudBuilderOption is a functional option applied to a point cloud during construction via NewPointCloud.
type PointCloudBuilderOption func(*pointCloud)

// WithFrameCount declares how many animation frames the positions hold.
//
// Parameters:
//   - n: the frame count, values below 1 mean a static cloud
//
// Returns:
//   - PointCloudBuilderOption: a function that applies the frame count
func WithFrameCount(n uint32) PointCloudBuilderOption {
	return func(pc *pointCloud) {
		pc.frameCount = n
	}
}

// WithFPS sets the animation playback rate.
func WithFPS(fps float32) PointCloudBuilderOption {
	return func(pc *pointCloud) {
		if fps > 0 {
			pc.fps = fps
		}
	}
}
