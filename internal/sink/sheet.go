package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SheetAppendRequest 远程表格追加请求
type SheetAppendRequest struct {
	Sheet  string          `json:"sheet"`
	Values [][]interface{} `json:"values"`
}

// SheetSink 通过 HTTP 追加到远程表格
//
// 不自动重试：提交由用户触发，失败后由用户重新提交。
type SheetSink struct {
	httpClient *resty.Client
	url        string
	sheet      string
	logger     *zap.Logger
}

// NewSheetSink 创建远程表格持久化端
func NewSheetSink(url, token, sheet string, timeout time.Duration, logger *zap.Logger) *SheetSink {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &SheetSink{
		httpClient: client,
		url:        url,
		sheet:      sheet,
		logger:     logger,
	}
}

// Append 追加一行
func (s *SheetSink) Append(ctx context.Context, sub *models.Submission) error {
	req := SheetAppendRequest{
		Sheet:  s.sheet,
		Values: [][]interface{}{sub.Row()},
	}

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		Post(s.url)
	if err != nil {
		s.logger.Error("Sheet append call failed",
			zap.String("submission_id", sub.SubmissionID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call sheet API: %w", err)
	}

	if resp.IsError() {
		s.logger.Error("Sheet API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("sheet API error: status %d", resp.StatusCode())
	}

	s.logger.Info("Appended submission to remote sheet",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("sheet", s.sheet),
	)
	return nil
}

// Close 无连接需要释放
func (s *SheetSink) Close() error {
	return nil
}
