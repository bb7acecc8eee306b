package models

import "time"

// FaceRegion 人脸区域（由边缘端检测器给出）
type FaceRegion struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	W          int     `json:"w"`
	H          int     `json:"h"`
	Confidence float64 `json:"confidence"`
}

// FrameEvent 单帧观测
//
// 摄像头端只上报帧的像素统计和人脸区域，不传原始图像。
// CapturedAt 是墙上时间，仅用于日志；采样状态机使用接收时的单调时钟。
type FrameEvent struct {
	SessionID     string       `json:"session_id,omitempty"`
	CameraID      string       `json:"camera_id,omitempty"`
	Seq           uint64       `json:"seq"`
	CapturedAt    time.Time    `json:"captured_at"`
	Width         int          `json:"width"`
	Height        int          `json:"height"`
	MeanIntensity float64      `json:"mean_intensity"` // 0-255
	MeanRed       float64      `json:"mean_red"`
	MeanGreen     float64      `json:"mean_green"`
	MeanBlue      float64      `json:"mean_blue"`
	Faces         []FaceRegion `json:"faces"`
}
