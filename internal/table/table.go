package table

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/types"
	"go.uber.org/zap"
)

// MoveValidator can rewrite or reject a submitted paddle position before
// it reaches the world.
type MoveValidator func(id string, pos engine.Vec3) (engine.Vec3, bool)

type Options struct {
	Code       string
	Rules      engine.Rules
	TickPeriod time.Duration
	Validate   MoveValidator
	Now        func() time.Time
	Rand       *rand.Rand // owned by one table; nil seeds from the clock
}

// Table runs one world on its own goroutine. Every mutation and every
// snapshot happens on that goroutine, so no lock is held across network
// writes: the loop only ever does non-blocking sends into outboxes.
type Table struct {
	code     string
	inbox    chan Msg
	world    *engine.World
	clients  map[string]chan []byte
	period   time.Duration
	validate MoveValidator
	now      func() time.Time
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(parent context.Context, opts Options, log *zap.Logger) *Table {
	ctx, cancel := context.WithCancel(parent)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = 33 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}

	t := &Table{
		code:     opts.Code,
		inbox:    make(chan Msg, 64),
		world:    engine.NewWorld(opts.Rules, opts.Rand),
		clients:  make(map[string]chan []byte),
		period:   opts.TickPeriod,
		validate: opts.Validate,
		now:      opts.Now,
		log:      log.With(zap.String("table", opts.Code)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go t.loop()
	return t
}

func (t *Table) loop() {
	defer close(t.done)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			t.shutdown()
			return

		case <-ticker.C:
			t.tick()

		case m := <-t.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- t.join(msg)

			case Leave:
				t.leave(msg.PlayerID)

			case Move:
				pos := msg.Position
				if t.validate != nil {
					var ok bool
					if pos, ok = t.validate(msg.PlayerID, pos); !ok {
						break
					}
				}
				if !t.world.ApplyMove(msg.PlayerID, pos) {
					t.log.Debug("move from unknown player", zap.String("player", msg.PlayerID))
				}

			case Hit:
				if evt, ok := t.world.Hit(msg.PlayerID, msg.Target, t.now()); ok {
					t.logEvent(evt)
				}

			case GetState:
				msg.Reply <- View{
					Code:       t.code,
					NumClients: len(t.clients),
					Snapshot:   t.world.Snapshot(),
				}

			case Shutdown:
				t.shutdown()
				return
			}
		}
	}
}

func (t *Table) join(msg Join) JoinResult {
	p, err := t.world.Register(msg.PlayerID)
	if err != nil {
		if errors.Is(err, engine.ErrTableFull) {
			t.log.Info("table full, rejecting player", zap.String("player", msg.PlayerID))
		}
		return JoinResult{Slot: -1, Err: err}
	}

	t.clients[p.ID] = msg.Outbox
	if payload, err := types.EncodeInit(p.ID, p.Slot); err == nil {
		t.send(p.ID, msg.Outbox, payload)
	}

	t.log.Info("player joined",
		zap.String("player", p.ID),
		zap.Int("slot", p.Slot),
		zap.Int("players", t.world.Players.Count()),
	)
	return JoinResult{Slot: p.Slot}
}

func (t *Table) leave(id string) {
	if !t.world.Unregister(id) {
		return
	}
	if ch, ok := t.clients[id]; ok {
		close(ch)
		delete(t.clients, id)
	}
	t.log.Info("player left", zap.String("player", id), zap.Int("players", t.world.Players.Count()))

	if payload, err := types.EncodeRemove(id); err == nil {
		t.broadcast(payload)
	}
}

// tick advances the world once, then serializes one snapshot and hands
// the same bytes to every client.
func (t *Table) tick() {
	for _, evt := range t.world.Advance(t.now()) {
		t.logEvent(evt)
	}
	if len(t.clients) == 0 {
		return
	}

	payload, err := types.EncodeState(t.world.Snapshot())
	if err != nil {
		t.log.Error("encode state", zap.Error(err))
		return
	}
	t.broadcast(payload)
}

func (t *Table) broadcast(payload []byte) {
	for id, ch := range t.clients {
		t.send(id, ch, payload)
	}
}

// send never blocks. A client whose outbox is full misses this payload
// and gets the next one; disconnects are cleaned up by Leave.
func (t *Table) send(id string, ch chan []byte, payload []byte) {
	select {
	case ch <- payload:
	default:
		t.log.Debug("outbox full, skipping", zap.String("player", id))
	}
}

func (t *Table) logEvent(evt engine.Event) {
	switch evt.Type {
	case engine.EvtBallHit:
		t.log.Debug("ball hit",
			zap.String("player", evt.PlayerID),
			zap.Int("slot", evt.Slot),
			zap.Any("from", evt.From),
			zap.Any("target", evt.Target),
		)
	case engine.EvtBallLanded:
		t.log.Debug("ball landed", zap.Any("at", evt.Target))
	}
}

func (t *Table) shutdown() {
	for id, ch := range t.clients {
		close(ch) // no more payloads for this client
		delete(t.clients, id)
	}
	t.cancel()
}

// Inbox exposes the raw channel for callers that must not block on done.
func (t *Table) Inbox() chan<- Msg { return t.inbox }

// Send delivers m unless the table has stopped.
func (t *Table) Send(m Msg) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.inbox <- m:
		return true
	case <-t.done:
		return false
	}
}

// State asks the loop for a consistent view. ok is false once the table
// has stopped.
func (t *Table) State() (View, bool) {
	reply := make(chan View, 1)
	if !t.Send(GetState{Reply: reply}) {
		return View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-t.done:
		return View{}, false
	}
}

func (t *Table) Code() string { return t.code }

// Done is closed once the loop has exited.
func (t *Table) Done() <-chan struct{} { return t.done }
