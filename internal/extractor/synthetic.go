// Package extractor 合成体征指标提取器
//
// 数值来自像素统计和有界随机数，不具备生理学意义，仅用于演示。
package extractor

import (
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/maryammo2000/fast-flow-web/internal/models"
	"github.com/maryammo2000/fast-flow-web/internal/sampler"
)

// ErrNoFrame 没有可用的帧
var ErrNoFrame = errors.New("no frame to extract from")

// Synthetic 合成提取器；并发安全
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthetic 创建提取器，seed 相同则随机序列相同
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{rng: rand.New(rand.NewSource(seed))}
}

// Measure 从一帧的像素统计生成读数
func (s *Synthetic) Measure(frame *models.FrameEvent) models.RawReading {
	s.mu.Lock()
	hr := 70 + s.rng.Intn(20) // [70,90)
	rr := 12 + s.rng.Intn(6)  // [12,18)
	s.mu.Unlock()

	temp := 36.0 + 2.0*clamp(frame.MeanIntensity, 0, 255)/255
	spo2 := 100 - 10*math.Abs(frame.MeanRed-frame.MeanBlue)/255
	sys, dia := BloodPressure(hr, rr)

	return models.RawReading{
		HeartRate:       hr,
		RespiratoryRate: rr,
		Temperature:     round1(temp),
		SpO2:            round1(clamp(spo2, 90, 100)),
		Systolic:        sys,
		Diastolic:       dia,
	}
}

// ForFrame 绑定到某一帧的 Extractor，只有在状态机需要新样本时才会执行
func (s *Synthetic) ForFrame(frame *models.FrameEvent) sampler.Extractor {
	return sampler.ExtractorFunc(func() (models.RawReading, error) {
		if frame == nil {
			return models.RawReading{}, ErrNoFrame
		}
		return s.Measure(frame), nil
	})
}

// BloodPressure 由心率和呼吸率推导血压
func BloodPressure(hr, rr int) (systolic, diastolic int) {
	return hr + 3*rr, hr + rr/5
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
