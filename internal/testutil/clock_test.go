package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_DefaultsToEpoch(t *testing.T) {
	clock := NewFixedClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestFixedClock_DoesNotMoveOnItsOwn(t *testing.T) {
	clock := NewFixedClock(Epoch)
	first := clock.Now()
	time.Sleep(time.Millisecond)
	assert.Equal(t, first, clock.Now())
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	clock := NewFixedClock(Epoch)

	clock.Advance(time.Hour)
	assert.Equal(t, Epoch.Add(time.Hour), clock.Now())

	later := Epoch.Add(48 * time.Hour)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(Epoch)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(100*time.Second), clock.Now())
}
