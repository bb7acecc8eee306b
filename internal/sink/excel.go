package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/maryammo2000/fast-flow-web/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// DefaultSheetName 默认工作表名
const DefaultSheetName = "Fast Flow Data"

// ExcelSink 追加到本地 .xlsx 工作簿
type ExcelSink struct {
	mu     sync.Mutex
	path   string
	sheet  string
	logger *zap.Logger
}

// NewExcelSink 创建 Excel 持久化端；文件不存在时在首次写入时创建
func NewExcelSink(path, sheet string, logger *zap.Logger) *ExcelSink {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &ExcelSink{
		path:   path,
		sheet:  sheet,
		logger: logger,
	}
}

// Append 在最后一行之后写入一行
func (e *ExcelSink) Append(ctx context.Context, s *models.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(e.sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", e.sheet, err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	row := s.Row()
	if err := f.SetSheetRow(e.sheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write row %s: %w", cell, err)
	}

	if err := f.SaveAs(e.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Debug("Appended submission to workbook",
		zap.String("path", e.path),
		zap.String("cell", cell),
		zap.String("submission_id", s.SubmissionID),
	)
	return nil
}

// open 打开工作簿；不存在则新建并写入表头
func (e *ExcelSink) open() (*excelize.File, error) {
	if _, err := os.Stat(e.path); err == nil {
		f, err := excelize.OpenFile(e.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		if idx, _ := f.GetSheetIndex(e.sheet); idx < 0 {
			if err := e.initSheet(f); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat workbook: %w", err)
	}

	f := excelize.NewFile()
	// 新工作簿直接把默认的 Sheet1 改名
	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := e.writeHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (e *ExcelSink) initSheet(f *excelize.File) error {
	if _, err := f.NewSheet(e.sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return e.writeHeader(f)
}

// writeHeader 写入加粗表头
func (e *ExcelSink) writeHeader(f *excelize.File) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := models.SubmissionHeader
	if err := f.SetSheetRow(e.sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(e.sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(e.sheet, "A", "A", 22); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return nil
}

// Close 无需释放资源（每次写入都会关闭文件）
func (e *ExcelSink) Close() error {
	return nil
}
