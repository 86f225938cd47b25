package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	assert.Equal(t, 15.0, Advance(0, 15, 85))
	assert.Equal(t, 85.0, Advance(80, 15, 85))
	assert.Equal(t, 85.0, Advance(85, 15, 85))
	assert.Equal(t, 90.0, Advance(90, 15, 85), "values past the ceiling are left alone")
	assert.Equal(t, 40.0, Advance(40, 0, 85))
	assert.Equal(t, 40.0, Advance(40, -3, 85))
}

func TestProfiles(t *testing.T) {
	assert.Less(t, FileConvert.Ceiling, 100.0)
	assert.Less(t, URLConvert.Ceiling, FileConvert.Ceiling)
	assert.Greater(t, URLConvert.Interval, FileConvert.Interval)
	assert.Less(t, MetadataEdit.Interval, FileConvert.Interval)
	assert.Greater(t, MetadataEdit.MaxStep, FileConvert.MaxStep)
}

type recorder struct {
	mu     sync.Mutex
	values []float64
}

func (r *recorder) add(v float64) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values...)
}

func TestStartRisesToCeiling(t *testing.T) {
	var rec recorder
	sim := Simulator{Rand: func() float64 { return 1 }}
	p := Profile{Interval: time.Millisecond, MaxStep: 15, Ceiling: 85}

	h := sim.Start(p, 0, rec.add)
	require.Eventually(t, func() bool {
		v := rec.snapshot()
		return len(v) > 0 && v[len(v)-1] == 85
	}, time.Second, time.Millisecond)
	h.Stop()

	assert.Equal(t, []float64{15, 30, 45, 60, 75, 85}, rec.snapshot())
}

func TestStartIsMonotonicWithRandomSteps(t *testing.T) {
	var rec recorder
	h := Simulator{}.Start(Profile{Interval: time.Millisecond, MaxStep: 20, Ceiling: 80}, 0, rec.add)
	time.Sleep(30 * time.Millisecond)
	h.Stop()

	values := rec.snapshot()
	prev := 0.0
	for _, v := range values {
		assert.Greater(t, v, prev)
		assert.LessOrEqual(t, v, 80.0)
		prev = v
	}
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	var rec recorder
	sim := Simulator{Rand: func() float64 { return 0.01 }}
	h := sim.Start(Profile{Interval: time.Millisecond, MaxStep: 1, Ceiling: 99}, 0, rec.add)

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 2 }, time.Second, time.Millisecond)
	h.Stop()
	after := len(rec.snapshot())

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.snapshot(), after)

	h.Stop()
	var nilHandle *Handle
	nilHandle.Stop()
}
