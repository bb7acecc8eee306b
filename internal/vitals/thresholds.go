// Package vitals 体征正常范围与分级
//
// 各版本原型的阈值不一致（体温上限 37.2 与 37.5、血压正常区间两种定义），
// 这里取一组显式默认值，并允许通过环境变量或 YAML 文件覆盖。
package vitals

import (
	"fmt"
	"os"

	"github.com/maryammo2000/fast-flow-web/internal/models"

	"gopkg.in/yaml.v3"
)

// Band 正常区间 [Min, Max]（含端点）
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Classify 低于 Min 为 Low，高于 Max 为 High
func (b Band) Classify(v float64) models.VitalStatus {
	switch {
	case v < b.Min:
		return models.StatusLow
	case v > b.Max:
		return models.StatusHigh
	default:
		return models.StatusNormal
	}
}

// Thresholds 各项体征正常区间
type Thresholds struct {
	HeartRate       Band `yaml:"heart_rate" json:"heart_rate"`
	RespiratoryRate Band `yaml:"respiratory_rate" json:"respiratory_rate"`
	Temperature     Band `yaml:"temperature" json:"temperature"`
	SpO2            Band `yaml:"spo2" json:"spo2"`
	Systolic        Band `yaml:"systolic" json:"systolic"`
	Diastolic       Band `yaml:"diastolic" json:"diastolic"`
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRate:       Band{Min: 60, Max: 100},
		RespiratoryRate: Band{Min: 12, Max: 20},
		Temperature:     Band{Min: 36.1, Max: 37.5},
		SpO2:            Band{Min: 95, Max: 100},
		Systolic:        Band{Min: 90, Max: 120},
		Diastolic:       Band{Min: 60, Max: 80},
	}
}

// Validate 检查每个区间 Min <= Max
func (t Thresholds) Validate() error {
	bands := map[string]Band{
		"heart_rate":       t.HeartRate,
		"respiratory_rate": t.RespiratoryRate,
		"temperature":      t.Temperature,
		"spo2":             t.SpO2,
		"systolic":         t.Systolic,
		"diastolic":        t.Diastolic,
	}
	for name, b := range bands {
		if b.Min > b.Max {
			return fmt.Errorf("invalid %s band: min %.1f > max %.1f", name, b.Min, b.Max)
		}
	}
	return nil
}

// LoadThresholdsFile 用 YAML 文件覆盖 base 中出现的字段
func LoadThresholdsFile(path string, base Thresholds) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	t := base
	if err := yaml.Unmarshal(data, &t); err != nil {
		return base, fmt.Errorf("failed to parse thresholds file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return base, err
	}
	return t, nil
}

// Classify 对一条读数分级；nil 返回 nil
func (t Thresholds) Classify(r *models.RawReading) map[string]models.VitalStatus {
	if r == nil {
		return nil
	}
	return map[string]models.VitalStatus{
		"heart_rate":       t.HeartRate.Classify(float64(r.HeartRate)),
		"respiratory_rate": t.RespiratoryRate.Classify(float64(r.RespiratoryRate)),
		"temperature":      t.Temperature.Classify(r.Temperature),
		"spo2":             t.SpO2.Classify(r.SpO2),
		"systolic":         t.Systolic.Classify(float64(r.Systolic)),
		"diastolic":        t.Diastolic.Classify(float64(r.Diastolic)),
	}
}
