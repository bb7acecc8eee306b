// Package consumer 摄像头帧事件入口
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mqttcommon "github.com/maryammo2000/fast-flow-web/common/mqtt"
	"github.com/maryammo2000/fast-flow-web/internal/models"
	"github.com/maryammo2000/fast-flow-web/internal/session"

	"go.uber.org/zap"
)

// ErrCameraMismatch 帧来源摄像头与会话绑定的摄像头不一致
var ErrCameraMismatch = errors.New("camera mismatch")

// Subscriber MQTT 订阅（由 common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// SessionRouter 按会话 ID 或摄像头查找会话（由 session.Manager 实现）
type SessionRouter interface {
	Get(id string) (*session.Session, error)
	ForCamera(cameraID string) (*session.Session, error)
}

// FrameConsumer 订阅摄像头帧事件并投递到对应会话
//
// 投递只写会话信箱，不在 MQTT 回调中执行状态机更新。
type FrameConsumer struct {
	subscriber Subscriber
	router     SessionRouter
	topic      string
	qos        byte
	metrics    *Metrics
	logger     *zap.Logger
}

// NewFrameConsumer 创建帧消费者
func NewFrameConsumer(subscriber Subscriber, router SessionRouter, topic string, qos byte, logger *zap.Logger) *FrameConsumer {
	return &FrameConsumer{
		subscriber: subscriber,
		router:     router,
		topic:      topic,
		qos:        qos,
		metrics:    NewMetrics(),
		logger:     logger,
	}
}

// Start 订阅并阻塞到 ctx 取消
func (c *FrameConsumer) Start(ctx context.Context) error {
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to frame topic: %w", err)
	}

	c.logger.Info("Frame consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *FrameConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	snapshot := c.metrics.GetSnapshot()
	c.logger.Info("Frame consumer stopped",
		zap.Int64("frames_received", snapshot.FramesReceived),
		zap.Int64("frames_queued", snapshot.FramesQueued),
		zap.Int64("frames_dropped", snapshot.FramesDropped),
		zap.Int64("frames_skipped", snapshot.FramesSkipped),
		zap.Int64("frames_rejected", snapshot.FramesRejected),
		zap.Int64("errors_parse", snapshot.ErrorsParse),
	)
	return nil
}

// Metrics 指标快照
func (c *FrameConsumer) Metrics() Metrics {
	return c.metrics.GetSnapshot()
}

// handleMessage 处理一条帧消息
// 主题格式: camera/{camera_id}/frame
func (c *FrameConsumer) handleMessage(topic string, payload []byte) error {
	c.metrics.incrementReceived()

	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		c.metrics.incrementParseError()
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	cameraID := parts[1]

	var frame models.FrameEvent
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.metrics.incrementParseError()
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	// 主题中的摄像头为准
	frame.CameraID = cameraID

	sess, err := c.route(&frame)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			// 摄像头在没有会话时也会持续推流
			c.metrics.incrementSkipped()
			c.logger.Debug("No session for frame",
				zap.String("camera_id", frame.CameraID),
				zap.String("session_id", frame.SessionID),
			)
			return nil
		}
		return err
	}
	if bound := sess.CameraID(); bound != "" && bound != cameraID {
		c.metrics.incrementRejected()
		return fmt.Errorf("%w: session %s is bound to camera %s, frame from %s",
			ErrCameraMismatch, sess.ID(), bound, cameraID)
	}

	dropped := sess.Offer(&frame)
	c.metrics.incrementQueued(dropped)
	if dropped {
		c.logger.Debug("Pending frame overwritten",
			zap.String("session_id", sess.ID()),
			zap.Uint64("seq", frame.Seq),
		)
	}
	return nil
}

// route 优先按负载中的 session_id，其次按摄像头绑定
func (c *FrameConsumer) route(frame *models.FrameEvent) (*session.Session, error) {
	if frame.SessionID != "" {
		return c.router.Get(frame.SessionID)
	}
	return c.router.ForCamera(frame.CameraID)
}
