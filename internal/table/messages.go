package table

import "github.com/DoyleJ11/rally-backend/internal/engine"

type Msg interface{ isTableMsg() }

// Join seats a player. On success the table owns Outbox: it writes init
// first, then every state broadcast, and closes it on Leave or shutdown.
type Join struct {
	PlayerID string
	Outbox   chan []byte
	Reply    chan JoinResult
}

func (Join) isTableMsg() {}

type JoinResult struct {
	Slot int
	Err  error
}

type Leave struct{ PlayerID string }

func (Leave) isTableMsg() {}

type Move struct {
	PlayerID string
	Position engine.Vec3
}

func (Move) isTableMsg() {}

type Hit struct {
	PlayerID string
	Target   *engine.Vec3
}

func (Hit) isTableMsg() {}

type Shutdown struct{}

func (Shutdown) isTableMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isTableMsg() {}

type View struct {
	Code       string
	NumClients int
	Snapshot   engine.Snapshot
}
