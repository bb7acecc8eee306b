package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/detector"
	"github.com/maryammo2000/fast-flow-web/internal/models"
	"github.com/maryammo2000/fast-flow-web/internal/sampler"
	"github.com/maryammo2000/fast-flow-web/internal/vitals"

	"go.uber.org/zap"
)

var (
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = errors.New("session not found")
	// ErrConsentRequired 未同意匿名数据共享
	ErrConsentRequired = errors.New("consent required")
)

// ExtractorFactory 为一帧创建提取器；返回 nil 视为提取器不可用
type ExtractorFactory func(frame *models.FrameEvent) sampler.Extractor

// Observer 每次状态更新后接收展示快照；在会话锁内调用，不能回调会话方法
type Observer func(ctx context.Context, view models.SessionView)

// Session 一个监测会话，独占一个状态机
//
// 同一会话同一时刻只有一个 Update 在执行；Close 与 Update 使用同一把锁，
// 因此关闭时正在执行的更新要么完整生效，要么在关闭后被拒绝。
type Session struct {
	id       string
	cameraID string

	mu        sync.Mutex
	machine   *sampler.Machine
	closed    bool
	frames    uint64
	lastFrame time.Time

	detector   detector.FaceDetector
	extractors ExtractorFactory
	thresholds vitals.Thresholds
	observer   Observer
	clock      func() time.Time
	logger     *zap.Logger

	// 最新帧信箱：新帧覆盖未消费的旧帧
	inboxMu sync.Mutex
	inbox   *models.FrameEvent
	notify  chan struct{}
	done    chan struct{}
	drops   uint64
}

// ID 会话 ID
func (s *Session) ID() string {
	return s.id
}

// CameraID 绑定的摄像头
func (s *Session) CameraID() string {
	return s.cameraID
}

// HandleFrame 同步处理一帧：人脸检测 -> 状态机更新
func (s *Session) HandleFrame(ctx context.Context, frame *models.FrameEvent) (models.SessionView, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.SessionView{}, ErrSessionClosed
	}

	now := s.clock()
	present := detector.Present(s.detector, frame)

	var extract sampler.Extractor
	if present && s.extractors != nil {
		if e := s.extractors(frame); e != nil {
			extract = e
		}
	}

	step := s.machine.Update(present, now, extract)
	s.frames++
	s.lastFrame = now
	view := s.viewLocked(now, step.State)

	// 持锁发布，会话关闭后不再写入缓存
	if s.observer != nil {
		s.observer(ctx, view)
	}
	s.mu.Unlock()

	if step.ExtractErr != nil {
		var seq uint64
		if frame != nil {
			seq = frame.Seq
		}
		s.logger.Warn("Extractor unavailable, keeping previous reading",
			zap.String("session_id", s.id),
			zap.Uint64("seq", seq),
			zap.Error(step.ExtractErr),
		)
	}
	if step.StabilizedNow {
		s.logger.Info("Stabilized reading captured",
			zap.String("session_id", s.id),
			zap.Float64("elapsed_sec", view.ElapsedSec),
			zap.Int("heart_rate", view.Stabilized.HeartRate),
		)
	}
	return view, nil
}

// Offer 非阻塞投递一帧；信箱中未处理的旧帧被覆盖并计入丢帧，返回是否覆盖了旧帧
func (s *Session) Offer(frame *models.FrameEvent) bool {
	s.inboxMu.Lock()
	replaced := s.inbox != nil
	if replaced {
		atomic.AddUint64(&s.drops, 1)
	}
	s.inbox = frame
	s.inboxMu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return replaced
}

// Drops 被覆盖的帧数
func (s *Session) Drops() uint64 {
	return atomic.LoadUint64(&s.drops)
}

func (s *Session) takeInbox() *models.FrameEvent {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	f := s.inbox
	s.inbox = nil
	return f
}

// run 消费信箱，直到会话关闭或 ctx 取消
func (s *Session) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.notify:
			frame := s.takeInbox()
			if frame == nil {
				continue
			}
			if _, err := s.HandleFrame(ctx, frame); err != nil {
				if errors.Is(err, ErrSessionClosed) {
					return
				}
				s.logger.Error("Failed to handle frame",
					zap.String("session_id", s.id),
					zap.Error(err),
				)
			}
		}
	}
}

// Reset 显式重启会话
func (s *Session) Reset(ctx context.Context) (models.SessionView, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.SessionView{}, ErrSessionClosed
	}
	now := s.clock()
	s.machine.Reset(now)
	s.frames = 0
	// 重启前投递的帧不计入新会话
	s.takeInbox()
	view := s.viewLocked(now, s.machine.State())
	if s.observer != nil {
		s.observer(ctx, view)
	}
	s.mu.Unlock()

	s.logger.Info("Session reset", zap.String("session_id", s.id))
	return view, nil
}

// State 状态机状态副本
func (s *Session) State() sampler.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// IsSubmittable 是否有可提交读数
func (s *Session) IsSubmittable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.machine.IsSubmittable()
}

// View 展示快照
func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(s.clock(), s.machine.State())
}

// idleSince 最后一帧（无帧则为会话开始）到 now 的时长
func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastFrame
	if last.IsZero() {
		last = s.machine.State().SessionStartTime
	}
	return now.Sub(last)
}

// Close 关闭会话并停止信箱消费；重复调用安全
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Session) viewLocked(now time.Time, st sampler.State) models.SessionView {
	view := models.SessionView{
		SessionID:    s.id,
		CameraID:     s.cameraID,
		Phase:        string(st.Phase()),
		FaceDetected: st.FaceDetected,
		Current:      st.Current,
		Stabilized:   st.Stabilized,
		Submittable:  st.IsSubmittable(),
		ElapsedSec:   now.Sub(st.SessionStartTime).Seconds(),
		Frames:       s.frames,
		UpdatedAt:    time.Now().Unix(),
	}
	if st.Current != nil {
		view.Status = s.thresholds.Classify(st.Current)
	}
	return view
}
