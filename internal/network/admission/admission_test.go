package admission

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestTryAdmit(t *testing.T) {
	const limit = 8
	c := New(limit)
	assert.Equal(t, limit, c.Limit())

	for i := 0; i < limit; i++ {
		assert.True(t, c.TryAdmit())
	}
	assert.Equal(t, limit, c.InUse())
	assert.Equal(t, 0, c.Available())

	// a failed admission leaves the count untouched.
	assert.False(t, c.TryAdmit())
	assert.Equal(t, limit, c.InUse())

	c.Release()
	assert.Equal(t, limit-1, c.InUse())
	assert.True(t, c.TryAdmit())
	assert.False(t, c.TryAdmit())
}

func TestReleaseNeverNegative(t *testing.T) {
	c := New(2)
	c.Release()
	assert.Equal(t, 0, c.InUse())

	assert.True(t, c.TryAdmit())
	c.Release()
	c.Release()
	assert.Equal(t, 0, c.InUse())
	assert.Equal(t, 2, c.Available())
}

func TestLimitFloor(t *testing.T) {
	c := New(0)
	assert.Equal(t, 1, c.Limit())
	assert.True(t, c.TryAdmit())
	assert.False(t, c.TryAdmit())
}

func TestConcurrentAdmission(t *testing.T) {
	const (
		limit   = 8
		workers = 64
		rounds  = 500
	)
	c := New(limit)

	var (
		wg      sync.WaitGroup
		holders atomic.Int64
		maxSeen atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if !c.TryAdmit() {
					continue
				}
				n := holders.Inc()
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				holders.Dec()
				c.Release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(limit))
	assert.Equal(t, 0, c.InUse())
}
