package sampler

import (
	"errors"
	"testing"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedReading = models.RawReading{
	HeartRate:       80,
	RespiratoryRate: 15,
	Temperature:     36.8,
	SpO2:            97,
	Systolic:        125,
	Diastolic:       83,
}

// countingExtractor 记录调用次数的确定性提取器
type countingExtractor struct {
	calls   int
	reading models.RawReading
	err     error
}

func (c *countingExtractor) Extract() (models.RawReading, error) {
	c.calls++
	if c.err != nil {
		return models.RawReading{}, c.err
	}
	return c.reading, nil
}

func at(base time.Time, sec float64) time.Time {
	return base.Add(time.Duration(sec * float64(time.Second)))
}

func newTestMachine(base time.Time) *Machine {
	return New(Config{DebounceInterval: time.Second, StabilizationDelay: 30 * time.Second}, base)
}

func TestNew_DefaultsApplied(t *testing.T) {
	m := New(Config{}, time.Now())
	assert.Equal(t, DefaultDebounceInterval, m.Config().DebounceInterval)
	assert.Equal(t, DefaultStabilizationDelay, m.Config().StabilizationDelay)

	st := m.State()
	assert.Equal(t, PhaseNoFace, st.Phase())
	assert.Nil(t, st.Current)
	assert.Nil(t, st.Stabilized)
	assert.False(t, m.IsSubmittable())
}

func TestUpdate_HalfSecondFramesForThirtySeconds(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	ex := &countingExtractor{reading: fixedReading}

	for i := 0; i <= 60; i++ {
		now := base.Add(time.Duration(i) * 500 * time.Millisecond)
		step := m.Update(true, now, ex)

		require.NotNil(t, step.State.Current, "current missing at step %d", i)
		assert.True(t, step.State.FaceDetected)
		assert.Equal(t, i%2 == 0, step.Sampled, "sampling at step %d", i)

		if i < 60 {
			assert.Nil(t, step.State.Stabilized, "stabilized too early at step %d", i)
		} else {
			require.NotNil(t, step.State.Stabilized)
			assert.Equal(t, fixedReading, *step.State.Stabilized)
			assert.True(t, step.StabilizedNow)
		}
	}

	// t=0,1,...,30
	assert.Equal(t, 31, ex.calls)
	assert.True(t, m.IsSubmittable())
}

func TestUpdate_NoFaceThroughout(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	ex := &countingExtractor{reading: fixedReading}

	for i := 0; i <= 90; i++ {
		step := m.Update(false, at(base, float64(i)), ex)
		assert.Nil(t, step.State.Current)
		assert.Nil(t, step.State.Stabilized)
		assert.False(t, step.State.FaceDetected)
		assert.False(t, m.IsSubmittable())
		assert.Equal(t, PhaseNoFace, step.State.Phase())
	}
	assert.Zero(t, ex.calls)
}

func TestUpdate_FaceLossKeepsStabilized(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	ex := &countingExtractor{reading: fixedReading}

	for sec := 0.0; sec <= 40; sec += 0.5 {
		m.Update(true, at(base, sec), ex)
	}
	stabilized := m.State().Stabilized
	require.NotNil(t, stabilized)

	for sec := 40.5; sec <= 45; sec += 0.5 {
		step := m.Update(false, at(base, sec), ex)
		assert.Nil(t, step.State.Current)
		assert.False(t, step.State.IsSubmittable())
		assert.Equal(t, stabilized, step.State.Stabilized)
	}

	ex.reading.HeartRate = 88
	step := m.Update(true, at(base, 45.5), ex)
	require.NotNil(t, step.State.Current)
	assert.Equal(t, 88, step.State.Current.HeartRate)
	assert.Equal(t, stabilized, step.State.Stabilized)
	assert.Equal(t, 80, step.State.Stabilized.HeartRate)
}

func TestUpdate_ToggleWithinDebounceSamplesOnce(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	ex := &countingExtractor{reading: fixedReading}

	m.Update(true, at(base, 0), ex)
	m.Update(false, at(base, 0.3), ex)
	step := m.Update(true, at(base, 0.6), ex)
	assert.Equal(t, 1, ex.calls)
	// 上一读数已随人脸丢失清空，去抖期内不会重新采样
	assert.Nil(t, step.State.Current)
	assert.True(t, step.State.FaceDetected)

	step = m.Update(true, at(base, 1.0), ex)
	assert.Equal(t, 2, ex.calls)
	assert.NotNil(t, step.State.Current)
}

func TestUpdate_StabilizedOnlyWithCurrent(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	ex := &countingExtractor{reading: fixedReading}

	m.Update(true, at(base, 10), ex)
	step := m.Update(false, at(base, 31), ex)
	assert.Nil(t, step.State.Stabilized, "no current at the moment delay is exceeded")

	step = m.Update(true, at(base, 35), ex)
	require.NotNil(t, step.State.Stabilized)
	assert.True(t, step.StabilizedNow)

	ex.reading.HeartRate = 71
	for sec := 36.0; sec < 50; sec++ {
		step = m.Update(true, at(base, sec), ex)
		assert.False(t, step.StabilizedNow)
		assert.Equal(t, 80, step.State.Stabilized.HeartRate)
	}
}

func TestUpdate_ExtractorFaultRetainsPreviousAndRetries(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	ex := &countingExtractor{reading: fixedReading}

	m.Update(true, at(base, 0), ex)

	ex.err = errors.New("camera busy")
	step := m.Update(true, at(base, 1), ex)
	assert.ErrorContains(t, step.ExtractErr, "camera busy")
	assert.False(t, step.Sampled)
	require.NotNil(t, step.State.Current)
	assert.Equal(t, at(base, 0), step.State.LastSampleTime)

	// 未推进 LastSampleTime，下一帧立即重试
	ex.err = nil
	ex.reading.HeartRate = 75
	step = m.Update(true, at(base, 1.1), ex)
	assert.True(t, step.Sampled)
	assert.Equal(t, 75, step.State.Current.HeartRate)
	assert.Equal(t, 3, ex.calls)
}

func TestUpdate_NilExtractor(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)

	step := m.Update(true, base, nil)
	assert.ErrorIs(t, step.ExtractErr, ErrExtractorUnavailable)
	assert.Nil(t, step.State.Current)
	assert.True(t, step.State.FaceDetected)

	var fn ExtractorFunc
	step = m.Update(true, at(base, 0.1), fn)
	assert.ErrorIs(t, step.ExtractErr, ErrExtractorUnavailable)

	step = m.Update(true, at(base, 0.2), ExtractorFunc(func() (models.RawReading, error) {
		return fixedReading, nil
	}))
	assert.NoError(t, step.ExtractErr)
	assert.True(t, step.Sampled)
}

func TestReset_BehavesLikeFreshMachine(t *testing.T) {
	base := time.Now()
	cfg := Config{DebounceInterval: time.Second, StabilizationDelay: 30 * time.Second}

	used := New(cfg, base.Add(-time.Hour))
	warm := &countingExtractor{reading: fixedReading}
	for sec := -3600.0; sec < -3560; sec += 0.5 {
		used.Update(true, at(base, sec), warm)
	}
	require.NotNil(t, used.State().Stabilized)
	used.Reset(base)

	fresh := New(cfg, base)
	assert.Equal(t, fresh.State(), used.State())

	exA := &countingExtractor{reading: fixedReading}
	exB := &countingExtractor{reading: fixedReading}
	pattern := []bool{true, true, false, true, true, true, false, false, true}
	for i := 0; i < 100; i++ {
		present := pattern[i%len(pattern)]
		now := at(base, float64(i)*0.4)
		a := fresh.Update(present, now, exA)
		b := used.Update(present, now, exB)
		require.Equal(t, a, b, "diverged at step %d", i)
	}
	assert.Equal(t, exA.calls, exB.calls)
}

func TestState_ReturnsCopies(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	ex := &countingExtractor{reading: fixedReading}

	step := m.Update(true, base, ex)
	step.State.Current.HeartRate = 1

	assert.Equal(t, 80, m.State().Current.HeartRate)
}
