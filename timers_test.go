package iec104

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerSet(t *testing.T) {
	ts := newTimerSet(30*time.Second, 15*time.Second, 10*time.Second, 20*time.Second)
	base := time.Unix(1700000000, 0)

	for tm := T0; tm < timerCount; tm++ {
		assert.False(t, ts.expired(tm, base.Add(time.Hour)), "%s not armed", tm)
	}

	ts.arm(T2, base)
	ts.arm(T3, base)
	assert.False(t, ts.expired(T2, base.Add(10*time.Second)))
	assert.True(t, ts.expired(T2, base.Add(10*time.Second+time.Millisecond)))
	assert.False(t, ts.expired(T3, base.Add(15*time.Second)))

	ts.arm(T3, base.Add(15*time.Second))
	assert.False(t, ts.expired(T3, base.Add(30*time.Second)))
	assert.Equal(t, 15*time.Second, ts.elapsed(T3, base.Add(30*time.Second)))

	ts.disarm(T2)
	assert.False(t, ts.expired(T2, base.Add(time.Hour)))

	ts.reset()
	assert.False(t, ts.isArmed(T3))
}

func TestTimerString(t *testing.T) {
	assert.Equal(t, "T0", T0.String())
	assert.Equal(t, "T3", T3.String())
	assert.Equal(t, "Timer(7)", Timer(7).String())
}
