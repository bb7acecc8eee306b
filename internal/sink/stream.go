package sink

import (
	"context"
	"fmt"

	rediscommon "github.com/maryammo2000/fast-flow-web/common/redis"
	"github.com/maryammo2000/fast-flow-web/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultStream 默认提交流
const DefaultStream = "vital:submissions:stream"

// StreamSink 发布到 Redis Streams，由下游消费者写入表格或数据库
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamSink 创建 Redis Streams 持久化端
func NewStreamSink(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

// Append XADD 一条消息
func (s *StreamSink) Append(ctx context.Context, sub *models.Submission) error {
	id, err := rediscommon.PublishJSONToStream(ctx, s.client, s.stream, s.maxLen, sub)
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	s.logger.Info("Published submission to Redis Streams",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("stream", s.stream),
		zap.String("stream_id", id),
	)
	return nil
}

// Close Redis 连接由服务统一关闭
func (s *StreamSink) Close() error {
	return nil
}
