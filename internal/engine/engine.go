package engine

import (
	"errors"
	"math/rand/v2"
	"time"
)

var ErrTableFull = errors.New("table is full")
var ErrDuplicatePlayer = errors.New("player already registered")
var ErrEmptyPlayerID = errors.New("empty player id")

type EventType string

const (
	EvtBallHit    EventType = "BallHit"
	EvtBallLanded EventType = "BallLanded"
)

/*
	Move   -> no event, the position shows up in the next snapshot
	Hit    -> EvtBallHit (explicit, from a client message)
	Advance -> EvtBallLanded when a flight completes
	        -> EvtBallHit when a paddle is within HitRadius of the ball
*/

type Event struct {
	Type     EventType
	PlayerID string // empty for landings
	Slot     int
	From     Vec3
	Target   Vec3
}

// Geometry describes the table surface. Slot 0 defends the -Z end and
// slot 1 the +Z end.
type Geometry struct {
	Width  float64
	Length float64
	Height float64
}

type Rules struct {
	MaxPlayers     int
	FlightDuration time.Duration
	ArcAmplitude   float64
	HitRadius      float64
	BallStart      Vec3
	Table          Geometry
}

// World is the authoritative state of one table. It is not safe for
// concurrent use; the owning table goroutine serializes every call.
type World struct {
	Rules   Rules
	Players *Registry
	Ball    Ball
	Tick    uint64

	rng *rand.Rand
}

type PlayerView struct {
	ID       string
	Slot     int
	Position Vec3
}

type BallView struct {
	Position Vec3
	State    MotionState
}

// Snapshot is a point-in-time copy of the world. Nothing in it aliases
// the world's own storage.
type Snapshot struct {
	Tick    uint64
	Players []PlayerView
	Ball    BallView
}

func NewWorld(rules Rules, rng *rand.Rand) *World {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &World{
		Rules:   rules,
		Players: NewRegistry(rules.MaxPlayers),
		Ball:    NewBall(rules.BallStart),
		rng:     rng,
	}
}

func (w *World) Register(id string) (Player, error) {
	return w.Players.Register(id)
}

// Unregister removes the player. The ball keeps flying; it is not owned
// by whoever hit it.
func (w *World) Unregister(id string) bool {
	return w.Players.Unregister(id)
}

func (w *World) ApplyMove(id string, pos Vec3) bool {
	return w.Players.ApplyMove(id, pos)
}

// Hit re-arms a flight on behalf of a player. A nil target means the
// computed landing point on the opponent's half.
func (w *World) Hit(id string, target *Vec3, now time.Time) (Event, bool) {
	p, ok := w.Players.Get(id)
	if !ok {
		return Event{}, false
	}
	dest := LandingPoint(p.Slot, w.Rules.Table, w.rng)
	if target != nil {
		dest = *target
	}
	return w.launch(p, dest, now), true
}

// Advance moves the simulation to now: it steps the current flight and
// then checks every paddle against the ball once.
func (w *World) Advance(now time.Time) []Event {
	w.Tick++

	var events []Event
	if w.Ball.Advance(now) {
		events = append(events, Event{
			Type:   EvtBallLanded,
			Slot:   -1,
			From:   w.Ball.Origin,
			Target: w.Ball.Target,
		})
	}

	exclude := ""
	if w.Ball.State == InFlight {
		exclude = w.Ball.LastHitter
	}
	if p, ok := NearestPaddle(w.Ball.Position, w.Players.List(), w.Rules.HitRadius, exclude); ok {
		dest := LandingPoint(p.Slot, w.Rules.Table, w.rng)
		events = append(events, w.launch(p, dest, now))
	}
	return events
}

func (w *World) launch(p Player, dest Vec3, now time.Time) Event {
	w.Ball.Launch(now, dest, w.Rules.FlightDuration, w.Rules.ArcAmplitude)
	w.Ball.LastHitter = p.ID
	return Event{
		Type:     EvtBallHit,
		PlayerID: p.ID,
		Slot:     p.Slot,
		From:     w.Ball.Origin,
		Target:   dest,
	}
}

func (w *World) Snapshot() Snapshot {
	players := w.Players.List()
	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, PlayerView{ID: p.ID, Slot: p.Slot, Position: p.Position})
	}
	return Snapshot{
		Tick:    w.Tick,
		Players: views,
		Ball:    BallView{Position: w.Ball.Position, State: w.Ball.State},
	}
}
