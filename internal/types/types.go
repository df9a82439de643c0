package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/rally-backend/internal/engine"
)

var ErrMalformed = errors.New("malformed message")
var ErrUnknownType = errors.New("unknown message type")

// Client -> Server
const (
	MsgMove = "move"
	MsgHit  = "hit"
)

// Server -> Client
const (
	MsgInit   = "init"
	MsgError  = "error"
	MsgState  = "state"
	MsgRemove = "remove"
)

// ClientMessage is the inbound envelope. Pointers let Decode tell a
// missing axis apart from a zero one.
type ClientMessage struct {
	Type   string       `json:"type" jsonschema:"description=move or hit"`
	DX     *float64     `json:"dx,omitempty" jsonschema:"description=Paddle X; required for move"`
	DY     *float64     `json:"dy,omitempty" jsonschema:"description=Paddle Y; required for move"`
	DZ     *float64     `json:"dz,omitempty" jsonschema:"description=Paddle Z; required for move"`
	Target *engine.Vec3 `json:"target,omitempty" jsonschema:"description=Optional landing point for hit"`
}

type Command interface{ isCommand() }

// Move replaces the sender's paddle position.
type Move struct {
	Position engine.Vec3
}

func (Move) isCommand() {}

// Hit asks the server to launch the ball. A nil Target means the server
// picks the landing point.
type Hit struct {
	Target *engine.Vec3
}

func (Hit) isCommand() {}

type InitMessage struct {
	Type           string `json:"type"`
	ID             string `json:"id" jsonschema:"description=Opaque player id for this connection"`
	PlayerPosition int    `json:"playerPosition" jsonschema:"description=Slot: 0 defends -z and 1 defends +z"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PlayerState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Slot int     `json:"slot"`
}

type BallState struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type StateMessage struct {
	Type    string                 `json:"type"`
	Tick    uint64                 `json:"tick"`
	Players map[string]PlayerState `json:"players" jsonschema:"description=Keyed by player id"`
	Ball    BallState              `json:"ball"`
}

type RemoveMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Protocol lists every message so one schema document covers the wire
// format.
type Protocol struct {
	Client ClientMessage `json:"client"`
	Init   InitMessage   `json:"init"`
	Error  ErrorMessage  `json:"error"`
	State  StateMessage  `json:"state"`
	Remove RemoveMessage `json:"remove"`
}

// Decode parses one inbound text frame.
func Decode(data []byte) (Command, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch cm.Type {
	case MsgMove:
		if cm.DX == nil || cm.DY == nil || cm.DZ == nil {
			return nil, fmt.Errorf("%w: move needs dx, dy and dz", ErrMalformed)
		}
		return Move{Position: engine.Vec3{X: *cm.DX, Y: *cm.DY, Z: *cm.DZ}}, nil
	case MsgHit:
		return Hit{Target: cm.Target}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cm.Type)
	}
}

func EncodeInit(id string, slot int) ([]byte, error) {
	return json.Marshal(InitMessage{Type: MsgInit, ID: id, PlayerPosition: slot})
}

func EncodeError(message string) ([]byte, error) {
	return json.Marshal(ErrorMessage{Type: MsgError, Message: message})
}

func EncodeRemove(id string) ([]byte, error) {
	return json.Marshal(RemoveMessage{Type: MsgRemove, ID: id})
}

// EncodeState serializes a snapshot once; the same bytes go to every
// connection.
func EncodeState(snap engine.Snapshot) ([]byte, error) {
	msg := StateMessage{
		Type:    MsgState,
		Tick:    snap.Tick,
		Players: make(map[string]PlayerState, len(snap.Players)),
		Ball: BallState{
			X: snap.Ball.Position.X,
			Y: snap.Ball.Position.Y,
			Z: snap.Ball.Position.Z,
		},
	}
	for _, p := range snap.Players {
		msg.Players[p.ID] = PlayerState{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z, Slot: p.Slot}
	}
	return json.Marshal(msg)
}
