package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/config"
	"github.com/maryammo2000/fast-flow-web/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func testSubmission() *models.Submission {
	return &models.Submission{
		SubmissionID:    "7d0c5e4e-8f1a-4a57-9d0e-3b1f2c4d5e6f",
		SessionID:       "1b2c3d4e-5f60-4718-8293-a4b5c6d7e8f9",
		SubmittedAt:     time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Age:             34,
		Gender:          "Female",
		HeartRate:       78,
		RespiratoryRate: 16,
		Temperature:     36.9,
		SpO2:            98.2,
		Systolic:        126,
		Diastolic:       81,
		Source:          models.SourceCurrent,
	}
}

func TestPostgresSink_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := testSubmission()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vital_submissions")).
		WithArgs(s.SubmissionID, s.SessionID, s.SubmittedAt, s.Age, s.Gender,
			s.HeartRate, s.RespiratoryRate, s.Temperature, s.SpO2,
			s.Systolic, s.Diastolic, s.Source).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewPostgresSink(db, zap.NewNop())
	require.NoError(t, sink.Append(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_AppendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vital_submissions")).
		WillReturnError(assert.AnError)

	sink := NewPostgresSink(db, zap.NewNop())
	err = sink.Append(context.Background(), testSubmission())
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS vital_submissions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sink := NewPostgresSink(db, zap.NewNop())
	require.NoError(t, sink.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExcelSink_CreatesWorkbookAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	sink := NewExcelSink(path, "", zap.NewNop())
	ctx := context.Background()

	first := testSubmission()
	second := testSubmission()
	second.Age = 52
	second.Gender = "Male"

	require.NoError(t, sink.Append(ctx, first))
	require.NoError(t, sink.Append(ctx, second))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DefaultSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.SubmissionHeader, rows[0])
	assert.Equal(t, "2024-05-01 09:30:00", rows[1][0])
	assert.Equal(t, "34", rows[1][1])
	assert.Equal(t, "Female", rows[1][2])
	assert.Equal(t, "78", rows[1][3])
	assert.Equal(t, "52", rows[2][1])
	assert.Equal(t, "Male", rows[2][2])

	idx, err := f.GetSheetIndex("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}

func TestExcelSink_CanceledContext(t *testing.T) {
	sink := NewExcelSink(filepath.Join(t.TempDir(), "data.xlsx"), "", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Append(ctx, testSubmission()), context.Canceled)
}

func TestSheetSink_Append(t *testing.T) {
	var got SheetAppendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"updated_rows":1}`))
	}))
	defer server.Close()

	sink := NewSheetSink(server.URL, "secret", "", time.Second, zap.NewNop())
	require.NoError(t, sink.Append(context.Background(), testSubmission()))

	assert.Equal(t, DefaultSheetName, got.Sheet)
	require.Len(t, got.Values, 1)
	require.Len(t, got.Values[0], len(models.SubmissionHeader))
	assert.Equal(t, "2024-05-01 09:30:00", got.Values[0][0])
	assert.Equal(t, "Female", got.Values[0][2])
}

func TestSheetSink_ErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sink := NewSheetSink(server.URL, "", "", time.Second, zap.NewNop())
	err := sink.Append(context.Background(), testSubmission())
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStreamSink_Append(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewStreamSink(client, "", 100, zap.NewNop())
	require.NoError(t, sink.Append(context.Background(), testSubmission()))

	entries, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got models.Submission
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &got))
	assert.Equal(t, "7d0c5e4e-8f1a-4a57-9d0e-3b1f2c4d5e6f", got.SubmissionID)
	assert.Equal(t, 126, got.Systolic)
}

func TestNew_SelectsSinkByType(t *testing.T) {
	cfg := &config.Config{}
	deps := Deps{Logger: zap.NewNop()}

	cfg.Sink.Type = TypeExcel
	cfg.Sink.Excel.Path = filepath.Join(t.TempDir(), "x.xlsx")
	s, err := New(cfg, deps)
	require.NoError(t, err)
	assert.IsType(t, &ExcelSink{}, s)

	cfg.Sink.Type = TypeSheet
	_, err = New(cfg, deps)
	assert.Error(t, err)
	cfg.Sink.Sheet.URL = "http://localhost:1"
	s, err = New(cfg, deps)
	require.NoError(t, err)
	assert.IsType(t, &SheetSink{}, s)

	cfg.Sink.Type = TypePostgres
	_, err = New(cfg, deps)
	assert.Error(t, err)

	cfg.Sink.Type = TypeStream
	_, err = New(cfg, deps)
	assert.Error(t, err)

	cfg.Sink.Type = "ftp"
	_, err = New(cfg, deps)
	assert.Error(t, err)
}
