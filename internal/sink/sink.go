// Package sink 提交记录的持久化端（只追加）
package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maryammo2000/fast-flow-web/internal/config"
	"github.com/maryammo2000/fast-flow-web/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 持久化端类型
const (
	TypePostgres = "postgres"
	TypeExcel    = "excel"
	TypeSheet    = "sheet"
	TypeStream   = "stream"
)

// RowSink 追加写入一条提交记录；不支持更新和删除
type RowSink interface {
	Append(ctx context.Context, s *models.Submission) error
	Close() error
}

// Deps 各实现需要的外部连接，按类型按需提供
type Deps struct {
	DB     *sql.DB
	Redis  *redis.Client
	Logger *zap.Logger
}

// New 按配置创建持久化端
func New(cfg *config.Config, deps Deps) (RowSink, error) {
	switch cfg.Sink.Type {
	case TypePostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres sink requires a database connection")
		}
		return NewPostgresSink(deps.DB, deps.Logger), nil
	case TypeExcel:
		return NewExcelSink(cfg.Sink.Excel.Path, cfg.Sink.Excel.Sheet, deps.Logger), nil
	case TypeSheet:
		if cfg.Sink.Sheet.URL == "" {
			return nil, fmt.Errorf("sheet sink requires SINK_SHEET_URL")
		}
		return NewSheetSink(cfg.Sink.Sheet.URL, cfg.Sink.Sheet.Token, cfg.Sink.Sheet.Name, cfg.Sink.Sheet.Timeout, deps.Logger), nil
	case TypeStream:
		if deps.Redis == nil {
			return nil, fmt.Errorf("stream sink requires a redis connection")
		}
		return NewStreamSink(deps.Redis, cfg.Sink.Stream.Name, cfg.Sink.Stream.MaxLen, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Sink.Type)
	}
}
