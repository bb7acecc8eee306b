// Package detector 人脸存在检测
package detector

import "github.com/maryammo2000/fast-flow-web/internal/models"

// FaceDetector 给定一帧，返回检测到的人脸区域（可能为空）。每次调用无状态。
type FaceDetector interface {
	DetectFaces(frame *models.FrameEvent) []models.FaceRegion
}

// RegionDetector 过滤边缘端上报的人脸区域
type RegionDetector struct {
	MinConfidence float64 // 置信度下限（含）
	MinSize       int     // 区域宽高下限（像素），0 表示不限制
}

// NewRegionDetector 创建区域检测器
func NewRegionDetector(minConfidence float64, minSize int) *RegionDetector {
	return &RegionDetector{MinConfidence: minConfidence, MinSize: minSize}
}

// DetectFaces 实现 FaceDetector
func (d *RegionDetector) DetectFaces(frame *models.FrameEvent) []models.FaceRegion {
	if frame == nil {
		return nil
	}
	var faces []models.FaceRegion
	for _, f := range frame.Faces {
		if f.Confidence < d.MinConfidence {
			continue
		}
		if d.MinSize > 0 && (f.W < d.MinSize || f.H < d.MinSize) {
			continue
		}
		faces = append(faces, f)
	}
	return faces
}

// Present 一个或多个人脸区域即为存在
func Present(d FaceDetector, frame *models.FrameEvent) bool {
	if d == nil || frame == nil {
		return false
	}
	return len(d.DetectFaces(frame)) > 0
}
