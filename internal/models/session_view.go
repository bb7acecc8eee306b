package models

// VitalStatus 单项体征分级
type VitalStatus string

const (
	StatusLow    VitalStatus = "Low"
	StatusNormal VitalStatus = "Normal"
	StatusHigh   VitalStatus = "High"
)

// SessionView 展示层读取的会话快照（HTTP 返回 / Redis 实时缓存）
type SessionView struct {
	SessionID    string                 `json:"session_id"`
	CameraID     string                 `json:"camera_id,omitempty"`
	Phase        string                 `json:"phase"` // NoFace / FaceAcquired
	FaceDetected bool                   `json:"face_detected"`
	Current      *RawReading            `json:"current,omitempty"`
	Stabilized   *RawReading            `json:"stabilized,omitempty"`
	Submittable  bool                   `json:"submittable"`
	Status       map[string]VitalStatus `json:"status,omitempty"`
	ElapsedSec   float64                `json:"elapsed_sec"` // 距会话开始的秒数
	Frames       uint64                 `json:"frames"`
	UpdatedAt    int64                  `json:"updated_at"` // unix 秒
}
