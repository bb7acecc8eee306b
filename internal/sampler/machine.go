// Package sampler 采样状态机
//
// 把高频、带噪声的帧事件（帧到达 + 是否有人脸）转换为低频、受人脸门控的
// 体征读数序列，并在每个会话中只捕获一次"稳定快照"。
//
// 所有时间判断都是时间戳比较，不做任何阻塞等待。调用方传入的 now 应来自
// time.Now()（带单调时钟读数），Sub 会使用单调时钟，不受系统时间调整影响。
//
// Machine 本身不加锁；同一会话的 Update 必须串行调用（见 session 包）。
package sampler

import (
	"errors"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/models"
)

const (
	// DefaultDebounceInterval 两次采样之间的最小间隔
	DefaultDebounceInterval = time.Second
	// DefaultStabilizationDelay 会话开始后捕获稳定快照前的预热时长
	DefaultStabilizationDelay = 30 * time.Second
)

// ErrExtractorUnavailable 没有可用的指标提取器
var ErrExtractorUnavailable = errors.New("extractor unavailable")

// Phase 主状态
type Phase string

const (
	PhaseNoFace       Phase = "NoFace"
	PhaseFaceAcquired Phase = "FaceAcquired"
)

// Config 状态机参数，零值使用默认值
type Config struct {
	DebounceInterval   time.Duration
	StabilizationDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = DefaultDebounceInterval
	}
	if c.StabilizationDelay <= 0 {
		c.StabilizationDelay = DefaultStabilizationDelay
	}
	return c
}

// Extractor 指标提取器，只在需要新样本时调用
type Extractor interface {
	Extract() (models.RawReading, error)
}

// ExtractorFunc 函数适配器
type ExtractorFunc func() (models.RawReading, error)

// Extract 实现 Extractor
func (f ExtractorFunc) Extract() (models.RawReading, error) {
	return f()
}

// State 会话状态
type State struct {
	FaceDetected     bool
	Current          *models.RawReading
	LastSampleTime   time.Time
	SessionStartTime time.Time
	Stabilized       *models.RawReading
}

// Phase 由 FaceDetected 推导主状态；Stabilized 是独立的标志
func (s State) Phase() Phase {
	if s.FaceDetected {
		return PhaseFaceAcquired
	}
	return PhaseNoFace
}

// IsSubmittable 是否存在可提交的非过期读数
func (s State) IsSubmittable() bool {
	return s.Current != nil
}

func (s State) clone() State {
	c := s
	c.Current = s.Current.Clone()
	c.Stabilized = s.Stabilized.Clone()
	return c
}

// Step 一次 Update 的结果
type Step struct {
	State State
	// Sampled 本次调用了提取器并接受了新读数
	Sampled bool
	// StabilizedNow 本次捕获了稳定快照
	StabilizedNow bool
	// ExtractErr 提取器暂时不可用；State 仍然有效，保留上一读数
	ExtractErr error
}

// Machine 采样/去抖/稳定状态机
type Machine struct {
	cfg       Config
	state     State
	hasSample bool
}

// New 创建状态机，now 作为会话开始时间
func New(cfg Config, now time.Time) *Machine {
	return &Machine{
		cfg:   cfg.withDefaults(),
		state: State{SessionStartTime: now},
	}
}

// Config 返回生效的参数
func (m *Machine) Config() Config {
	return m.cfg
}

// Update 处理一帧事件
func (m *Machine) Update(facePresent bool, now time.Time, extract Extractor) Step {
	var step Step

	if !facePresent {
		// 人脸丢失立即清空当前读数，稳定快照保留
		m.state.FaceDetected = false
		m.state.Current = nil
	} else {
		m.state.FaceDetected = true
		if m.sampleDue(now) {
			reading, err := m.extract(extract)
			if err != nil {
				// 暂时性故障：保留上一读数，不推进 LastSampleTime，下一帧重试
				step.ExtractErr = err
			} else {
				m.state.Current = &reading
				m.state.LastSampleTime = now
				m.hasSample = true
				step.Sampled = true
			}
		}
	}

	if m.state.Stabilized == nil && m.state.Current != nil &&
		now.Sub(m.state.SessionStartTime) >= m.cfg.StabilizationDelay {
		m.state.Stabilized = m.state.Current.Clone()
		step.StabilizedNow = true
	}

	step.State = m.state.clone()
	return step
}

func (m *Machine) sampleDue(now time.Time) bool {
	if !m.hasSample {
		return true
	}
	return now.Sub(m.state.LastSampleTime) >= m.cfg.DebounceInterval
}

func (m *Machine) extract(extract Extractor) (models.RawReading, error) {
	if extract == nil {
		return models.RawReading{}, ErrExtractorUnavailable
	}
	if f, ok := extract.(ExtractorFunc); ok && f == nil {
		return models.RawReading{}, ErrExtractorUnavailable
	}
	return extract.Extract()
}

// IsSubmittable 当前是否有可提交读数
func (m *Machine) IsSubmittable() bool {
	return m.state.IsSubmittable()
}

// State 返回状态副本
func (m *Machine) State() State {
	return m.state.clone()
}

// Reset 显式重启会话：清空所有字段，会话开始时间设为 now
func (m *Machine) Reset(now time.Time) {
	m.state = State{SessionStartTime: now}
	m.hasSample = false
}
