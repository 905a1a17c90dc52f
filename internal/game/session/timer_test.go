package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_Fires(t *testing.T) {
	var called atomic.Int32
	tm := NewTimer(20*time.Millisecond, func() { called.Add(1) })
	assert.Eventually(t, func() bool { return called.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, tm.Fired())
}

func TestTimer_Stop_PreventsCallback(t *testing.T) {
	var called atomic.Int32
	tm := NewTimer(50*time.Millisecond, func() { called.Add(1) })
	assert.True(t, tm.Stop())
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), called.Load())
	assert.False(t, tm.Fired())
}

func TestTimer_StopIdempotent(t *testing.T) {
	tm := NewTimer(50*time.Millisecond, func() {})
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	assert.False(t, tm.Stop())
}

func TestTimer_StopAfterFire(t *testing.T) {
	var called atomic.Int32
	tm := NewTimer(5*time.Millisecond, func() { called.Add(1) })
	assert.Eventually(t, tm.Fired, time.Second, 2*time.Millisecond)
	assert.False(t, tm.Stop(), "stopping a fired timer is a no-op")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), called.Load())
}
