package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maryammo2000/fast-flow-web/internal/models"

	"go.uber.org/zap"
)

const createSubmissionsTable = `
	CREATE TABLE IF NOT EXISTS vital_submissions (
		submission_id    UUID PRIMARY KEY,
		session_id       UUID NOT NULL,
		submitted_at     TIMESTAMPTZ NOT NULL,
		age              INTEGER NOT NULL,
		gender           TEXT NOT NULL,
		heart_rate       INTEGER NOT NULL,
		respiratory_rate INTEGER NOT NULL,
		temperature      DOUBLE PRECISION NOT NULL,
		spo2             DOUBLE PRECISION NOT NULL,
		systolic         INTEGER NOT NULL,
		diastolic        INTEGER NOT NULL,
		source           TEXT NOT NULL
	)
`

// PostgresSink 写入 vital_submissions 表
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSink 创建 PostgreSQL 持久化端
func NewPostgresSink(db *sql.DB, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（已存在则跳过）
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createSubmissionsTable); err != nil {
		return fmt.Errorf("failed to create vital_submissions table: %w", err)
	}
	return nil
}

// Append 插入一行
func (p *PostgresSink) Append(ctx context.Context, s *models.Submission) error {
	query := `
		INSERT INTO vital_submissions (
			submission_id, session_id, submitted_at, age, gender,
			heart_rate, respiratory_rate, temperature, spo2,
			systolic, diastolic, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := p.db.ExecContext(ctx, query,
		s.SubmissionID,
		s.SessionID,
		s.SubmittedAt,
		s.Age,
		s.Gender,
		s.HeartRate,
		s.RespiratoryRate,
		s.Temperature,
		s.SpO2,
		s.Systolic,
		s.Diastolic,
		s.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	p.logger.Debug("Inserted submission",
		zap.String("submission_id", s.SubmissionID),
		zap.String("session_id", s.SessionID),
	)
	return nil
}

// Close 数据库连接由服务统一关闭
func (p *PostgresSink) Close() error {
	return nil
}
