package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chat_delivery_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// fakeConn in-memory ChannelConn capturing sent frames. stall simulates
// a peer with a full send buffer: the write blocks until the deadline
// passes, then fails like a real socket would.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	failSend bool
	stall    bool
	deadline time.Time
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	if f.failSend {
		f.mu.Unlock()
		return errors.New("broken pipe")
	}
	if f.stall {
		deadline := f.deadline
		f.mu.Unlock()
		if deadline.IsZero() {
			deadline = time.Now().Add(3 * time.Second)
		}
		time.Sleep(time.Until(deadline))
		return errors.New("i/o timeout")
	}
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestRegistry() (*ConnectionRegistry, *MockPresenceRepository) {
	logger.SetNewNop()
	presence := new(MockPresenceRepository)
	presence.On("MarkOnline", mock.Anything, mock.Anything).Return(nil)
	return NewConnectionRegistry(presence), presence
}

func TestConnectionRegistry_ConnectDisconnect(t *testing.T) {
	ctx := context.Background()
	registry, presence := newTestRegistry()

	chA := NewChannel(7, &fakeConn{})
	chB := NewChannel(7, &fakeConn{})

	registry.Connect(ctx, 7, chA)
	registry.Connect(ctx, 7, chB) // second device
	assert.Equal(t, 2, registry.LiveChannels(7))

	registry.Disconnect(ctx, 7, chA)
	assert.Equal(t, 1, registry.LiveChannels(7))

	// duplicate disconnect is a no-op
	registry.Disconnect(ctx, 7, chA)
	assert.Equal(t, 1, registry.LiveChannels(7))

	registry.Disconnect(ctx, 7, chB)
	assert.Equal(t, 0, registry.LiveChannels(7))

	presence.AssertNumberOfCalls(t, "MarkOnline", 2)
}

func TestConnectionRegistry_DisconnectUnknownChannel(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	// never registered, must not panic or fail
	stray := NewChannel(9, &fakeConn{})
	registry.Disconnect(ctx, 9, stray)
	assert.Equal(t, 0, registry.LiveChannels(9))
}

func TestConnectionRegistry_BroadcastOfflineRecipient(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	conn := &fakeConn{}
	ch := NewChannel(1, conn)
	registry.Connect(ctx, 1, ch)

	report := registry.Broadcast(ctx, []int64{1, 2}, map[string]string{"hello": "world"})

	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []int64{2}, report.Offline)
	assert.Equal(t, 1, conn.frameCount())
}

func TestConnectionRegistry_BroadcastDropsDeadChannel(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	healthy := &fakeConn{}
	dead := &fakeConn{failSend: true}
	chHealthy := NewChannel(1, healthy)
	chDead := NewChannel(1, dead)
	registry.Connect(ctx, 1, chHealthy)
	registry.Connect(ctx, 1, chDead)

	other := &fakeConn{}
	chOther := NewChannel(2, other)
	registry.Connect(ctx, 2, chOther)

	report := registry.Broadcast(ctx, []int64{1, 2}, "payload")

	// the broken channel is dropped, everyone else still gets the frame
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, report.Offline)
	assert.Equal(t, 1, registry.LiveChannels(1))
	assert.Equal(t, 1, healthy.frameCount())
	assert.Equal(t, 1, other.frameCount())
	assert.True(t, dead.isClosed())
}

func TestConnectionRegistry_BroadcastStalledChannelIsBounded(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	stalled := &fakeConn{stall: true}
	chStalled := NewChannel(1, stalled)
	chStalled.sendTimeout = 50 * time.Millisecond
	registry.Connect(ctx, 1, chStalled)

	healthy := &fakeConn{}
	registry.Connect(ctx, 2, NewChannel(2, healthy))

	start := time.Now()
	report := registry.Broadcast(ctx, []int64{1, 2}, "payload")

	// the stalled peer costs at most its own send timeout, the other
	// recipient still gets the frame
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, healthy.frameCount())
	assert.True(t, stalled.isClosed())
	assert.Equal(t, 0, registry.LiveChannels(1))
}

func TestConnectionRegistry_BroadcastUnmarshalablePayload(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	conn := &fakeConn{}
	registry.Connect(ctx, 1, NewChannel(1, conn))

	report := registry.Broadcast(ctx, []int64{1, 2, 1}, make(chan int))

	// nothing sendable: nobody counts as delivered, every distinct
	// recipient is reported back
	assert.Equal(t, 0, report.Delivered)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []int64{1, 2}, report.Offline)
	assert.Equal(t, 0, conn.frameCount())
}

func TestConnectionRegistry_BroadcastDeduplicatesRecipients(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	conn := &fakeConn{}
	registry.Connect(ctx, 5, NewChannel(5, conn))

	report := registry.Broadcast(ctx, []int64{5, 5, 5}, "once")

	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, conn.frameCount())
}

func TestConnectionRegistry_CloseAll(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	connA := &fakeConn{}
	connB := &fakeConn{}
	registry.Connect(ctx, 1, NewChannel(1, connA))
	registry.Connect(ctx, 2, NewChannel(2, connB))

	registry.CloseAll(ctx)

	assert.Equal(t, 0, registry.LiveChannels(1))
	assert.Equal(t, 0, registry.LiveChannels(2))
	assert.True(t, connA.isClosed())
	assert.True(t, connB.isClosed())
}

func TestConnectionRegistry_ConcurrentLifecycle(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			ch := NewChannel(userID, &fakeConn{})
			registry.Connect(ctx, userID, ch)
			registry.Broadcast(ctx, []int64{userID}, "ping")
			registry.Disconnect(ctx, userID, ch)
		}(int64(i % 5))
	}
	wg.Wait()

	for userID := int64(0); userID < 5; userID++ {
		assert.Equal(t, 0, registry.LiveChannels(userID))
	}
}
