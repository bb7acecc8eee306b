package consumer

import (
	"sync"
	"time"
)

// Metrics 帧消费指标
type Metrics struct {
	mu sync.RWMutex

	FramesReceived int64 // 收到的消息总数
	FramesQueued   int64 // 成功投递到会话信箱
	FramesDropped  int64 // 信箱中被新帧覆盖的旧帧
	FramesSkipped  int64 // 无绑定会话
	FramesRejected int64 // 会话绑定了其它摄像头
	ErrorsParse    int64 // 主题或负载解析失败

	LastFrameTime time.Time
	StartTime     time.Time
}

// NewMetrics 创建指标
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		FramesReceived: m.FramesReceived,
		FramesQueued:   m.FramesQueued,
		FramesDropped:  m.FramesDropped,
		FramesSkipped:  m.FramesSkipped,
		FramesRejected: m.FramesRejected,
		ErrorsParse:    m.ErrorsParse,
		LastFrameTime:  m.LastFrameTime,
		StartTime:      m.StartTime,
	}
}

func (m *Metrics) incrementReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesReceived++
	m.LastFrameTime = time.Now()
}

func (m *Metrics) incrementQueued(dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesQueued++
	if dropped {
		m.FramesDropped++
	}
}

func (m *Metrics) incrementSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesSkipped++
}

func (m *Metrics) incrementParseError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorsParse++
}

func (m *Metrics) incrementRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesRejected++
}
