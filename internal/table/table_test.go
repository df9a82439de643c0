package table

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testTick = 5 * time.Millisecond

func newTestTable(t *testing.T, mutate func(*Options)) *Table {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	opts := Options{
		Code:       "test",
		Rules:      engine.DefaultRules(),
		TickPeriod: testTick,
		Rand:       rand.New(rand.NewPCG(1, 1)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	tb := New(ctx, opts, zaptest.NewLogger(t))
	t.Cleanup(func() {
		cancel()
		<-tb.Done()
	})
	return tb
}

// helper: receive one payload with a timeout so tests never hang
func recvPayload(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return b
	case <-time.After(within):
		t.Fatalf("timed out waiting for payload")
		return nil // unreachable
	}
}

func msgType(t *testing.T, b []byte) string {
	t.Helper()
	var env struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(b, &env))
	return env.Type
}

// waitForState drains ch until a state message satisfies pred.
func waitForState(t *testing.T, ch <-chan []byte, pred func(types.StateMessage) bool) types.StateMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case b, ok := <-ch:
			require.True(t, ok, "outbox closed while waiting for state")
			if msgType(t, b) != types.MsgState {
				continue
			}
			var st types.StateMessage
			require.NoError(t, json.Unmarshal(b, &st))
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for matching state")
			return types.StateMessage{}
		}
	}
}

func join(t *testing.T, tb *Table, id string) (JoinResult, chan []byte) {
	t.Helper()
	out := make(chan []byte, 64)
	reply := make(chan JoinResult, 1)
	tb.Inbox() <- Join{PlayerID: id, Outbox: out, Reply: reply}
	select {
	case res := <-reply:
		return res, out
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for join reply")
		return JoinResult{}, nil
	}
}

func view(t *testing.T, tb *Table) View {
	t.Helper()
	v, ok := tb.State()
	require.True(t, ok, "table stopped")
	return v
}

func TestTable_JoinSendsInitBeforeState(t *testing.T) {
	tb := newTestTable(t, nil)

	res, out := join(t, tb, "a")
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Slot)

	first := recvPayload(t, out, 100*time.Millisecond)
	var init types.InitMessage
	require.NoError(t, json.Unmarshal(first, &init))
	assert.Equal(t, types.MsgInit, init.Type)
	assert.Equal(t, "a", init.ID)
	assert.Equal(t, 0, init.PlayerPosition)

	next := recvPayload(t, out, 100*time.Millisecond)
	assert.Equal(t, types.MsgState, msgType(t, next))
}

func TestTable_MoveShowsUpInBroadcast(t *testing.T) {
	tb := newTestTable(t, nil)

	resA, outA := join(t, tb, "a")
	resB, outB := join(t, tb, "b")
	require.NoError(t, resA.Err)
	require.NoError(t, resB.Err)
	assert.Equal(t, 1, resB.Slot)

	tb.Inbox() <- Move{PlayerID: "a", Position: engine.Vec3{X: 1}}

	for _, out := range []chan []byte{outA, outB} {
		st := waitForState(t, out, func(st types.StateMessage) bool {
			return st.Players["a"].X == 1
		})
		assert.Equal(t, types.PlayerState{X: 1, Slot: 0}, st.Players["a"])
		assert.Equal(t, types.PlayerState{Slot: 1}, st.Players["b"])
	}
}

func TestTable_RejectsThirdPlayer(t *testing.T) {
	tb := newTestTable(t, nil)
	join(t, tb, "a")
	_, outB := join(t, tb, "b")

	res, outC := join(t, tb, "c")
	require.ErrorIs(t, res.Err, engine.ErrTableFull)

	v := view(t, tb)
	assert.Equal(t, 2, v.NumClients)
	assert.Len(t, v.Snapshot.Players, 2)

	st := waitForState(t, outB, func(types.StateMessage) bool { return true })
	assert.NotContains(t, st.Players, "c")

	select {
	case b := <-outC:
		t.Fatalf("rejected player got a payload: %s", b)
	default:
	}
}

func TestTable_LeaveClosesOutboxAndNotifiesOthers(t *testing.T) {
	tb := newTestTable(t, nil)
	_, outA := join(t, tb, "a")
	_, outB := join(t, tb, "b")

	tb.Inbox() <- Leave{PlayerID: "a"}

	deadline := time.After(time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-outA:
			closed = !ok
		case <-deadline:
			t.Fatalf("outbox for a was never closed")
		}
	}

	sawRemove := false
	for !sawRemove {
		b := recvPayload(t, outB, time.Second)
		if msgType(t, b) == types.MsgRemove {
			var rm types.RemoveMessage
			require.NoError(t, json.Unmarshal(b, &rm))
			assert.Equal(t, "a", rm.ID)
			sawRemove = true
		}
	}

	st := waitForState(t, outB, func(types.StateMessage) bool { return true })
	assert.NotContains(t, st.Players, "a")
	assert.Equal(t, 1, view(t, tb).NumClients)
}

func TestTable_StalledClientDoesNotBlockOthers(t *testing.T) {
	tb := newTestTable(t, nil)

	stalled := make(chan []byte, 1)
	reply := make(chan JoinResult, 1)
	tb.Inbox() <- Join{PlayerID: "slow", Outbox: stalled, Reply: reply}
	require.NoError(t, (<-reply).Err)

	_, out := join(t, tb, "fast")
	first := waitForState(t, out, func(types.StateMessage) bool { return true })
	waitForState(t, out, func(st types.StateMessage) bool { return st.Tick >= first.Tick+5 })

	assert.Equal(t, 2, view(t, tb).NumClients)
}

func TestTable_ValidatorRunsBeforeMove(t *testing.T) {
	tb := newTestTable(t, func(o *Options) {
		o.Validate = func(id string, p engine.Vec3) (engine.Vec3, bool) {
			if p.Y < 0 {
				return p, false
			}
			p.X = min(p.X, 1)
			return p, true
		}
	})
	join(t, tb, "a")

	tb.Inbox() <- Move{PlayerID: "a", Position: engine.Vec3{X: 5, Y: 1}}
	tb.Inbox() <- Move{PlayerID: "a", Position: engine.Vec3{X: 0, Y: -1}}

	v := view(t, tb)
	require.Len(t, v.Snapshot.Players, 1)
	assert.Equal(t, engine.Vec3{X: 1, Y: 1}, v.Snapshot.Players[0].Position)
}

func TestTable_HitLaunchesBall(t *testing.T) {
	tb := newTestTable(t, nil)
	join(t, tb, "a")

	target := engine.Vec3{X: 0, Y: 0.76, Z: 0.6}
	tb.Inbox() <- Hit{PlayerID: "a", Target: &target}
	tb.Inbox() <- Hit{PlayerID: "ghost"}

	v := view(t, tb)
	assert.Equal(t, engine.InFlight, v.Snapshot.Ball.State)
}

func TestTable_ShutdownClosesOutboxes(t *testing.T) {
	tb := newTestTable(t, nil)
	_, out := join(t, tb, "a")

	tb.Inbox() <- Shutdown{}

	select {
	case <-tb.Done():
	case <-time.After(time.Second):
		t.Fatalf("table did not stop")
	}
	for range out {
	}
	assert.False(t, tb.Send(Leave{PlayerID: "a"}))
}

func TestTable_ConcurrentMovesNeverTear(t *testing.T) {
	tb := newTestTable(t, func(o *Options) { o.Rules.MaxPlayers = 3 })
	_, _ = join(t, tb, "a")
	_, _ = join(t, tb, "b")
	_, obs := join(t, tb, "obs")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				v := float64(i)
				if !tb.Send(Move{PlayerID: id, Position: engine.Vec3{X: v, Y: v, Z: v}}) {
					return
				}
				if i%50 == 0 {
					tb.Send(Hit{PlayerID: id})
				}
			}
		}()
	}

	states := 0
	deadline := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case b := <-obs:
			if msgType(t, b) != types.MsgState {
				continue
			}
			var st types.StateMessage
			require.NoError(t, json.Unmarshal(b, &st))
			for id, p := range st.Players {
				if id == "obs" {
					continue
				}
				require.True(t, p.X == p.Y && p.Y == p.Z, "torn position for %s: %+v", id, p)
			}
			states++
		case <-deadline:
			break loop
		}
	}
	close(stop)
	wg.Wait()
	assert.Greater(t, states, 5)
}
