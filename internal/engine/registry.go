package engine

import (
	"fmt"
	"slices"
)

type Player struct {
	ID       string
	Slot     int
	Position Vec3
}

// Registry is the table of seated players keyed by connection id.
type Registry struct {
	capacity int
	players  map[string]*Player
	next     int
}

// NewRegistry returns an empty registry. A capacity <= 0 admits anyone.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		players:  make(map[string]*Player),
	}
}

// Register seats id in the next slot in join order. Slot 0 goes out
// again only once the registry has emptied.
func (r *Registry) Register(id string) (Player, error) {
	if id == "" {
		return Player{}, ErrEmptyPlayerID
	}
	if _, ok := r.players[id]; ok {
		return Player{}, fmt.Errorf("register %s: %w", id, ErrDuplicatePlayer)
	}
	if r.capacity > 0 && len(r.players) >= r.capacity {
		return Player{}, fmt.Errorf("register %s: %w", id, ErrTableFull)
	}

	if len(r.players) == 0 {
		r.next = 0
	}
	taken := make(map[int]bool, len(r.players))
	for _, p := range r.players {
		taken[p.Slot] = true
	}
	for taken[r.next] {
		r.next++
	}
	slot := r.next
	r.next++

	p := &Player{ID: id, Slot: slot}
	r.players[id] = p
	return *p, nil
}

func (r *Registry) Unregister(id string) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

func (r *Registry) Count() int { return len(r.players) }

// ApplyMove overwrites the recorded position. Unknown ids are ignored and
// reported as false; that covers moves racing a disconnect.
func (r *Registry) ApplyMove(id string, pos Vec3) bool {
	p, ok := r.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	return true
}

func (r *Registry) Get(id string) (Player, bool) {
	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// List returns copies of every player ordered by slot.
func (r *Registry) List() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Player) int { return a.Slot - b.Slot })
	return out
}
