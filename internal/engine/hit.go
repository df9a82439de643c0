package engine

import "math/rand/v2"

// NearestPaddle picks the paddle closest to ball within radius, skipping
// exclude. Equal distances go to the lower slot, which List already
// orders by.
func NearestPaddle(ball Vec3, players []Player, radius float64, exclude string) (Player, bool) {
	var best Player
	bestDist := radius
	found := false
	for _, p := range players {
		if p.ID == exclude {
			continue
		}
		d := p.Position.Dist(ball)
		if d > radius {
			continue
		}
		if !found || d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, found
}

// LandingPoint aims at the middle of the opponent's half, anywhere across
// the width of the table.
func LandingPoint(hitterSlot int, g Geometry, rng *rand.Rand) Vec3 {
	dir := 1.0
	if hitterSlot%2 == 1 {
		dir = -1.0
	}
	return Vec3{
		X: (rng.Float64() - 0.5) * g.Width,
		Y: g.Height,
		Z: dir * g.Length / 4,
	}
}
