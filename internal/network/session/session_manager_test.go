package session

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type fakeSession struct {
	id     uint64
	closed atomic.Int32
}

func (s *fakeSession) ID() uint64               { return s.id }
func (s *fakeSession) Context() context.Context { return context.Background() }
func (s *fakeSession) RemoteAddr() net.Addr     { return nil }
func (s *fakeSession) LocalAddr() net.Addr      { return nil }
func (s *fakeSession) State() State {
	if s.closed.Load() > 0 {
		return StateClosed
	}
	return StateActive
}
func (s *fakeSession) Close() error { s.closed.Inc(); return nil }

func TestRegistry(t *testing.T) {
	m := NewRegistry()
	require.NoError(t, m.Register(&fakeSession{id: 1}))
	require.NoError(t, m.Register(&fakeSession{id: 2}))
	require.NoError(t, m.Register(nil))
	assert.Error(t, m.Register(&fakeSession{id: 1}))
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.Unregister(2))
	assert.Error(t, m.Unregister(2))
	assert.Equal(t, 1, m.Count())

	var visited []uint64
	m.Range(func(sess Session) bool {
		visited = append(visited, sess.ID())
		return false
	})
	assert.Equal(t, []uint64{1}, visited)
	m.Range(nil)
}

func TestCloseAll(t *testing.T) {
	m := NewRegistry()
	sessions := []*fakeSession{{id: 1}, {id: 2}, {id: 3}}
	for _, s := range sessions {
		require.NoError(t, m.Register(s))
	}

	assert.Equal(t, 3, CloseAll(m))
	for _, s := range sessions {
		assert.EqualValues(t, 1, s.closed.Load())
		assert.Equal(t, StateClosed, s.State())
	}
	// closing only drops connections; sessions unregister themselves on exit.
	assert.Equal(t, 3, m.Count())
	assert.Zero(t, CloseAll(nil))
}

func TestUint64IDGenerator(t *testing.T) {
	var g Uint64IDGenerator
	assert.Equal(t, uint64(1), g.Next())
	assert.Equal(t, uint64(2), g.Next())

	const workers, perWorker = 8, 100
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]struct{}, workers*perWorker)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := g.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(9).String())
}
