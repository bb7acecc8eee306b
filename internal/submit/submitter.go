// Package submit 用户触发的读数提交
//
// 每次提交只写一次持久化端，失败直接返回给调用方，由用户决定是否重新提交。
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/models"
	"github.com/maryammo2000/fast-flow-web/internal/sampler"
	"github.com/maryammo2000/fast-flow-web/internal/sink"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrConsentRequired 未同意匿名数据共享
	ErrConsentRequired = errors.New("consent required")
	// ErrNotSubmittable 没有可提交的读数
	ErrNotSubmittable = errors.New("no reading to submit")
	// ErrInvalidInput 表单或读数超出允许范围
	ErrInvalidInput = errors.New("invalid input")
	// ErrSinkFailed 持久化端写入失败
	ErrSinkFailed = errors.New("sink append failed")
)

// 表单可选性别
const (
	GenderFemale = "Female"
	GenderMale   = "Male"
)

// Request 提交请求
type Request struct {
	Consent       bool   `json:"consent"`
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	UseStabilized bool   `json:"use_stabilized"` // 有稳定快照时优先提交稳定快照
}

// Submitter 校验并写入持久化端
type Submitter struct {
	sink   sink.RowSink
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewSubmitter 创建提交器
func NewSubmitter(rowSink sink.RowSink, logger *zap.Logger) *Submitter {
	return &Submitter{
		sink:   rowSink,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Submit 提交会话的当前读数（或稳定快照）
func (s *Submitter) Submit(ctx context.Context, sessionID string, state sampler.State, req Request) (*models.Submission, error) {
	if !req.Consent {
		return nil, ErrConsentRequired
	}
	if !state.IsSubmittable() {
		return nil, ErrNotSubmittable
	}

	reading, source := state.Current, models.SourceCurrent
	if req.UseStabilized && state.Stabilized != nil {
		reading, source = state.Stabilized, models.SourceStabilized
	}

	sub := &models.Submission{
		SubmissionID:    s.newID(),
		SessionID:       sessionID,
		SubmittedAt:     s.now(),
		Age:             req.Age,
		Gender:          req.Gender,
		HeartRate:       reading.HeartRate,
		RespiratoryRate: reading.RespiratoryRate,
		Temperature:     reading.Temperature,
		SpO2:            reading.SpO2,
		Systolic:        reading.Systolic,
		Diastolic:       reading.Diastolic,
		Source:          source,
	}
	if err := Validate(sub); err != nil {
		return nil, err
	}

	if err := s.sink.Append(ctx, sub); err != nil {
		s.logger.Error("Failed to append submission",
			zap.String("session_id", sessionID),
			zap.String("submission_id", sub.SubmissionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrSinkFailed, err)
	}

	s.logger.Info("Submission appended",
		zap.String("session_id", sessionID),
		zap.String("submission_id", sub.SubmissionID),
		zap.String("source", source),
	)
	return sub, nil
}

type rangeCheck struct {
	name     string
	value    float64
	min, max float64
}

// Validate 按录入表单的范围校验
func Validate(sub *models.Submission) error {
	if sub.Gender != GenderFemale && sub.Gender != GenderMale {
		return fmt.Errorf("%w: gender must be %s or %s", ErrInvalidInput, GenderFemale, GenderMale)
	}

	checks := []rangeCheck{
		{"age", float64(sub.Age), 1, 120},
		{"heart_rate", float64(sub.HeartRate), 30, 200},
		{"respiratory_rate", float64(sub.RespiratoryRate), 5, 40},
		{"spo2", sub.SpO2, 70, 100},
		{"temperature", sub.Temperature, 34, 42},
		{"systolic", float64(sub.Systolic), 70, 200},
		{"diastolic", float64(sub.Diastolic), 40, 130},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: %s %v out of range [%v, %v]", ErrInvalidInput, c.name, c.value, c.min, c.max)
		}
	}
	return nil
}
