// Package session 监测会话管理
//
// 每个会话独占一个采样状态机，会话之间不共享任何状态。
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/detector"
	"github.com/maryammo2000/fast-flow-web/internal/models"
	"github.com/maryammo2000/fast-flow-web/internal/sampler"
	"github.com/maryammo2000/fast-flow-web/internal/vitals"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config 会话管理配置
type Config struct {
	Sampler     sampler.Config
	IdleTimeout time.Duration // 无帧超过该时长的会话被回收，0 表示不回收
	ReapEvery   time.Duration // 回收检查间隔，默认 30 秒
}

// Manager 会话管理器
type Manager struct {
	cfg        Config
	detector   detector.FaceDetector
	extractors ExtractorFactory
	thresholds vitals.Thresholds
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	byCamera map[string]string // camera_id -> session_id
	observer Observer
	onClose  func(ctx context.Context, sessionID string)

	clock  func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager 创建会话管理器
func NewManager(
	cfg Config,
	faceDetector detector.FaceDetector,
	extractors ExtractorFactory,
	thresholds vitals.Thresholds,
	logger *zap.Logger,
) *Manager {
	if cfg.ReapEvery <= 0 {
		cfg.ReapEvery = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		detector:   faceDetector,
		extractors: extractors,
		thresholds: thresholds,
		logger:     logger,
		sessions:   make(map[string]*Session),
		byCamera:   make(map[string]string),
		clock:      time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetObserver 设置状态更新回调（如写入实时缓存）；需在 Open 之前调用
func (m *Manager) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

// SetCloseHook 设置会话关闭回调
func (m *Manager) SetCloseHook(fn func(ctx context.Context, sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// Open 打开新会话；consent 为 false 时拒绝
// cameraID 非空时绑定摄像头，同一摄像头的旧会话会被关闭
func (m *Manager) Open(consent bool, cameraID string) (*Session, error) {
	if !consent {
		return nil, ErrConsentRequired
	}

	m.mu.Lock()
	var replaced string
	if cameraID != "" {
		replaced = m.byCamera[cameraID]
	}

	s := &Session{
		id:         uuid.New().String(),
		cameraID:   cameraID,
		machine:    sampler.New(m.cfg.Sampler, m.clock()),
		detector:   m.detector,
		extractors: m.extractors,
		thresholds: m.thresholds,
		observer:   m.observer,
		clock:      m.clock,
		logger:     m.logger,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	m.sessions[s.id] = s
	if cameraID != "" {
		m.byCamera[cameraID] = s.id
	}
	m.mu.Unlock()

	if replaced != "" {
		if err := m.Close(m.ctx, replaced); err != nil {
			m.logger.Warn("Failed to close replaced session",
				zap.String("session_id", replaced),
				zap.Error(err),
			)
		}
	}

	go s.run(m.ctx)

	m.logger.Info("Session opened",
		zap.String("session_id", s.id),
		zap.String("camera_id", cameraID),
	)
	return s, nil
}

// Get 按 ID 获取会话
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// ForCamera 获取摄像头当前绑定的会话
func (m *Manager) ForCamera(cameraID string) (*Session, error) {
	m.mu.RLock()
	id, ok := m.byCamera[cameraID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: camera %s", ErrSessionNotFound, cameraID)
	}
	return m.Get(id)
}

// Close 关闭并移除会话
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	if s.cameraID != "" && m.byCamera[s.cameraID] == id {
		delete(m.byCamera, s.cameraID)
	}
	onClose := m.onClose
	m.mu.Unlock()

	s.Close()
	if onClose != nil {
		onClose(ctx, id)
	}

	m.logger.Info("Session closed", zap.String("session_id", id))
	return nil
}

// List 所有会话的展示快照，按会话 ID 排序
func (m *Manager) List() []models.SessionView {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	views := make([]models.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].SessionID < views[j].SessionID })
	return views
}

// Count 当前会话数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle 关闭空闲超时的会话，返回关闭数量
func (m *Manager) ReapIdle(ctx context.Context) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	now := m.clock()

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.idleSince(now) >= m.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if err := m.Close(ctx, id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		m.logger.Info("Reaped idle sessions", zap.Int("count", closed))
	}
	return closed
}

// Run 定时回收空闲会话，直到 ctx 取消
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ReapEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReapIdle(ctx)
		}
	}
}

// Shutdown 关闭所有会话并停止信箱消费
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Close(ctx, id)
	}
	m.cancel()
}
