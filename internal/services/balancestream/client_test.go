package balancestream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/transport"
)

type fakeSocket struct {
	handlers  map[string]transport.Handler
	onConnect []func()
	connected bool
	emitted   []emittedEvent
}

type emittedEvent struct {
	event string
	data  any
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{handlers: make(map[string]transport.Handler)}
}

func (f *fakeSocket) On(event string, h transport.Handler) { f.handlers[event] = h }
func (f *fakeSocket) OnConnect(fn func())                  { f.onConnect = append(f.onConnect, fn) }
func (f *fakeSocket) Connect(ctx context.Context) {
	f.connected = true
	for _, fn := range f.onConnect {
		fn()
	}
}
func (f *fakeSocket) Disconnect()     { f.connected = false }
func (f *fakeSocket) Connected() bool { return f.connected }
func (f *fakeSocket) Emit(event string, v any) error {
	f.emitted = append(f.emitted, emittedEvent{event: event, data: v})
	return nil
}

func (f *fakeSocket) push(t *testing.T, snap domain.BalanceSnapshot) {
	t.Helper()
	h, ok := f.handlers[eventUpdate]
	require.True(t, ok)
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	h(raw)
}

func TestClient_JoinsRoomOnConnect(t *testing.T) {
	sock := newFakeSocket()
	c := New(sock, nil)

	c.Connect(context.Background(), "user-42")

	require.Len(t, sock.emitted, 1)
	assert.Equal(t, eventJoin, sock.emitted[0].event)
	assert.Equal(t, joinWire{UserID: "user-42"}, sock.emitted[0].data)
}

func TestClient_RejoinsOnReconnect(t *testing.T) {
	sock := newFakeSocket()
	c := New(sock, nil)
	c.Connect(context.Background(), "user-42")
	sock.emitted = nil

	// the transport re-fires the connect hook after a redial
	for _, fn := range sock.onConnect {
		fn()
	}

	require.Len(t, sock.emitted, 1)
	assert.Equal(t, eventJoin, sock.emitted[0].event)
}

func TestClient_NoJoinWithoutUser(t *testing.T) {
	sock := newFakeSocket()
	New(sock, nil)

	for _, fn := range sock.onConnect {
		fn()
	}
	assert.Empty(t, sock.emitted)
}

func TestClient_DeliversPushedSnapshots(t *testing.T) {
	sock := newFakeSocket()
	c := New(sock, nil)
	c.Connect(context.Background(), "user-42")

	snap := domain.BalanceSnapshot{
		TotalValueUSD: decimal.NewFromInt(1234),
		LastUpdated:   time.Now().UTC(),
	}
	sock.push(t, snap)

	select {
	case got := <-c.Snapshots():
		assert.True(t, got.TotalValueUSD.Equal(snap.TotalValueUSD))
	default:
		t.Fatal("expected a snapshot on the channel")
	}
}

func TestClient_OverflowEvictsOldest(t *testing.T) {
	sock := newFakeSocket()
	c := New(sock, nil)
	c.Connect(context.Background(), "user-42")

	// push one past the buffer without draining
	for i := 0; i <= snapshotBuffer; i++ {
		sock.push(t, domain.BalanceSnapshot{TotalValueUSD: decimal.NewFromInt(int64(i))})
	}

	// the first snapshot was evicted; delivery resumes from 1
	got := <-c.Snapshots()
	assert.True(t, got.TotalValueUSD.Equal(decimal.NewFromInt(1)), "got %s", got.TotalValueUSD)

	// every remaining slot holds a newer snapshot
	drained := 1
	for {
		select {
		case <-c.Snapshots():
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, snapshotBuffer, drained)
}

func TestClient_MalformedPushIgnored(t *testing.T) {
	sock := newFakeSocket()
	c := New(sock, nil)
	c.Connect(context.Background(), "user-42")

	h := sock.handlers[eventUpdate]
	h(json.RawMessage(`{not json`))

	select {
	case <-c.Snapshots():
		t.Fatal("malformed push must not produce a snapshot")
	default:
	}
}
