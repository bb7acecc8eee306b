package models

// RawReading 一次采样得到的合成体征数据（由指标提取器产生）
type RawReading struct {
	HeartRate       int     `json:"heart_rate"`       // 心率 bpm
	RespiratoryRate int     `json:"respiratory_rate"` // 呼吸率 次/分
	Temperature     float64 `json:"temperature"`      // 体温 °C
	SpO2            float64 `json:"spo2"`             // 血氧 %
	Systolic        int     `json:"systolic"`         // 收缩压 mmHg
	Diastolic       int     `json:"diastolic"`        // 舒张压 mmHg
}

// Clone 返回副本指针；nil 安全
func (r *RawReading) Clone() *RawReading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
