package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	mqttcommon "github.com/maryammo2000/fast-flow-web/common/mqtt"
	"github.com/maryammo2000/fast-flow-web/internal/detector"
	"github.com/maryammo2000/fast-flow-web/internal/models"
	"github.com/maryammo2000/fast-flow-web/internal/sampler"
	"github.com/maryammo2000/fast-flow-web/internal/session"
	"github.com/maryammo2000/fast-flow-web/internal/vitals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	topic    string
	handler  mqttcommon.MessageHandler
	unsubbed []string
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubbed = append(f.unsubbed, topics...)
	return nil
}

func setupConsumer(t *testing.T) (*FrameConsumer, *session.Manager, chan models.SessionView) {
	t.Helper()
	factory := func(frame *models.FrameEvent) sampler.Extractor {
		return sampler.ExtractorFunc(func() (models.RawReading, error) {
			return models.RawReading{HeartRate: 72, RespiratoryRate: 14, Temperature: 36.6, SpO2: 98, Systolic: 114, Diastolic: 76}, nil
		})
	}
	m := session.NewManager(session.Config{}, detector.NewRegionDetector(0.5, 0), factory, vitals.DefaultThresholds(), zap.NewNop())
	views := make(chan models.SessionView, 16)
	m.SetObserver(func(ctx context.Context, v models.SessionView) { views <- v })
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	c := NewFrameConsumer(&fakeSubscriber{}, m, "camera/+/frame", 0, zap.NewNop())
	return c, m, views
}

const facePayload = `{"seq": 1, "width": 640, "height": 480, "mean_intensity": 120,
	"faces": [{"x": 200, "y": 120, "w": 180, "h": 180, "confidence": 0.93}]}`

func TestFrameConsumer_RoutesByCamera(t *testing.T) {
	c, m, views := setupConsumer(t)
	s, err := m.Open(true, "cam-3")
	require.NoError(t, err)

	require.NoError(t, c.handleMessage("camera/cam-3/frame", []byte(facePayload)))

	select {
	case v := <-views:
		assert.Equal(t, s.ID(), v.SessionID)
		assert.True(t, v.FaceDetected)
		require.NotNil(t, v.Current)
		assert.Equal(t, 72, v.Current.HeartRate)
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not processed")
	}

	snapshot := c.Metrics()
	assert.Equal(t, int64(1), snapshot.FramesReceived)
	assert.Equal(t, int64(1), snapshot.FramesQueued)
}

func TestFrameConsumer_RoutesBySessionID(t *testing.T) {
	c, m, views := setupConsumer(t)
	s, err := m.Open(true, "")
	require.NoError(t, err)

	payload := `{"session_id": "` + s.ID() + `", "seq": 9, "faces": []}`
	require.NoError(t, c.handleMessage("camera/lobby/frame", []byte(payload)))

	select {
	case v := <-views:
		assert.Equal(t, s.ID(), v.SessionID)
		assert.False(t, v.FaceDetected)
		assert.Nil(t, v.Current)
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not processed")
	}
}

func TestFrameConsumer_SkipsUnboundCamera(t *testing.T) {
	c, _, _ := setupConsumer(t)

	require.NoError(t, c.handleMessage("camera/cam-9/frame", []byte(facePayload)))
	assert.Equal(t, int64(1), c.Metrics().FramesSkipped)
	assert.Equal(t, int64(0), c.Metrics().FramesQueued)
}

func TestFrameConsumer_ParseErrors(t *testing.T) {
	c, _, _ := setupConsumer(t)

	assert.Error(t, c.handleMessage("camera", []byte(facePayload)))
	assert.Error(t, c.handleMessage("camera/cam-1/frame", []byte("{not json")))
	assert.Equal(t, int64(2), c.Metrics().ErrorsParse)
}

func TestFrameConsumer_StartStop(t *testing.T) {
	c, _, _ := setupConsumer(t)
	sub := c.subscriber.(*fakeSubscriber)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.handler != nil
	}, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, "camera/+/frame", sub.topic)
	assert.Equal(t, []string{"camera/+/frame"}, sub.unsubbed)
}

func TestFrameConsumer_RejectsFrameFromOtherCamera(t *testing.T) {
	c, m, views := setupConsumer(t)
	s, err := m.Open(true, "cam-b")
	require.NoError(t, err)

	payload := `{"session_id": "` + s.ID() + `", "seq": 1, "faces": [{"x": 0, "y": 0, "w": 100, "h": 100, "confidence": 0.9}]}`
	err = c.handleMessage("camera/cam-a/frame", []byte(payload))
	assert.ErrorIs(t, err, ErrCameraMismatch)

	snapshot := c.Metrics()
	assert.Equal(t, int64(1), snapshot.FramesRejected)
	assert.Equal(t, int64(0), snapshot.FramesQueued)
	assert.Equal(t, uint64(0), s.View().Frames)

	select {
	case <-views:
		t.Fatal("frame from another camera reached the session")
	case <-time.After(50 * time.Millisecond):
	}

	// 同一摄像头携带 session_id 仍然可以投递
	payload = `{"session_id": "` + s.ID() + `", "seq": 2, "faces": []}`
	require.NoError(t, c.handleMessage("camera/cam-b/frame", []byte(payload)))
	assert.Equal(t, int64(1), c.Metrics().FramesQueued)
}
