package models

import "time"

// 提交来源
const (
	SourceCurrent    = "current"
	SourceStabilized = "stabilized"
)

// Submission 一条提交到持久化端的记录（只追加）
type Submission struct {
	SubmissionID    string    `json:"submission_id"`
	SessionID       string    `json:"session_id"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Age             int       `json:"age"`
	Gender          string    `json:"gender"`
	HeartRate       int       `json:"heart_rate"`
	RespiratoryRate int       `json:"respiratory_rate"`
	Temperature     float64   `json:"temperature"`
	SpO2            float64   `json:"spo2"`
	Systolic        int       `json:"systolic"`
	Diastolic       int       `json:"diastolic"`
	Source          string    `json:"source"`
}

// Row 按表格列顺序输出：时间、年龄、性别、HR、RR、SpO2、体温、收缩压、舒张压
func (s *Submission) Row() []interface{} {
	return []interface{}{
		s.SubmittedAt.Format("2006-01-02 15:04:05"),
		s.Age,
		s.Gender,
		s.HeartRate,
		s.RespiratoryRate,
		s.SpO2,
		s.Temperature,
		s.Systolic,
		s.Diastolic,
	}
}

// SubmissionHeader 表头，与 Row 顺序一致
var SubmissionHeader = []string{
	"Timestamp",
	"Age",
	"Gender",
	"Heart Rate (BPM)",
	"Respiratory Rate (BPM)",
	"SpO2 (%)",
	"Temperature (C)",
	"Systolic BP (mmHg)",
	"Diastolic BP (mmHg)",
}
