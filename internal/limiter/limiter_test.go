package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agesweep/internal/fsops"
)

func TestNewDeleterDisabled(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	assert.Same(t, fake, NewDeleter(fake, 0))
	assert.Same(t, fake, NewDeleter(fake, -5))
}

func TestDeleterPacesCalls(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	d := NewDeleter(fake, 20)

	start := time.Now()
	// burst of 20 is free, the next 5 need ~250ms
	for i := 0; i < 25; i++ {
		require.NoError(t, d.Remove("/x"))
	}
	require.NoError(t, d.RemoveDir("/y"))
	elapsed := time.Since(start)

	assert.Len(t, fake.Calls, 26)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
}

func TestSetRate(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	d := NewDeleter(fake, 1).(*Deleter)
	d.SetRate(1000)

	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, d.Remove("/x"))
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}
