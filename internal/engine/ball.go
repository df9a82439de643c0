package engine

import (
	"math"
	"time"
)

type MotionState int

const (
	Resting MotionState = iota
	InFlight
)

func (s MotionState) String() string {
	switch s {
	case Resting:
		return "resting"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Ball follows a closed-form arc: a straight line from Origin to Target
// with Amplitude*sin(t*pi) added on Y. Position is a pure function of the
// time since FlightStart, so ticks never accumulate drift.
type Ball struct {
	Position    Vec3
	State       MotionState
	FlightStart time.Time
	Origin      Vec3
	Target      Vec3
	Duration    time.Duration
	Amplitude   float64
	LastHitter  string
}

func NewBall(start Vec3) Ball {
	return Ball{Position: start, State: Resting}
}

// Launch starts a new flight from wherever the ball is at now. A flight
// already underway is abandoned, not queued.
func (b *Ball) Launch(now time.Time, target Vec3, d time.Duration, amplitude float64) {
	if b.State == InFlight {
		b.Position = b.PositionAt(now)
	}
	b.Origin = b.Position
	b.Target = target
	b.FlightStart = now
	b.Duration = d
	b.Amplitude = amplitude
	b.State = InFlight
}

// PositionAt evaluates the current flight at now without mutating the
// ball. A resting ball reports its held position.
func (b *Ball) PositionAt(now time.Time) Vec3 {
	if b.State != InFlight {
		return b.Position
	}
	t := b.progress(now)
	if t >= 1 {
		return b.Target
	}
	p := Lerp(b.Origin, b.Target, t)
	p.Y += b.Amplitude * math.Sin(t*math.Pi)
	return p
}

// Advance writes the position for now and reports whether the flight
// landed on this call. Resting balls are left untouched.
func (b *Ball) Advance(now time.Time) bool {
	if b.State != InFlight {
		return false
	}
	if now.Sub(b.FlightStart) >= b.Duration {
		b.Position = b.Target
		b.State = Resting
		return true
	}
	b.Position = b.PositionAt(now)
	return false
}

func (b *Ball) progress(now time.Time) float64 {
	if b.Duration <= 0 {
		return 1
	}
	return clamp(float64(now.Sub(b.FlightStart))/float64(b.Duration), 0, 1)
}
