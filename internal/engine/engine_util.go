package engine

import "time"

// DefaultRules mirrors a regulation table with a two second lob.
func DefaultRules() Rules {
	return Rules{
		MaxPlayers:     2,
		FlightDuration: 2 * time.Second,
		ArcAmplitude:   2,
		HitRadius:      0.3,
		BallStart:      Vec3{X: 0, Y: 2, Z: 0},
		Table:          Geometry{Width: 1.525, Length: 2.74, Height: 0.76},
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
