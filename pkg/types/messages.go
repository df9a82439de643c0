package types

// Client -> Server
// Move (overwrites the sender's paddle position; the fields are absolute
// despite their names):
//   type: "move"
//   dx: number
//   dy: number
//   dz: number
//
// Hit:
//   type: "hit"
//   target: { x: number, y: number, z: number } // optional, defaults to the opponent's half

// Server -> Client
// Init (sent once, before any state):
//   type: "init"
//   id: string
//   playerPosition: number // slot, 0 or 1
//
// Error (followed by close 1013 when the table is full):
//   type: "error"
//   message: string
//
// State: see snapshot.go
//
// Remove (a player disconnected):
//   type: "remove"
//   id: string
//
// Machine-readable schema for all of the above: GET /protocol/schema
