package types

// State (every tick, same bytes to every client at the table):
//   type: "state"
//   tick: number
//   players: { [id]: { x: number, y: number, z: number, slot: number } }
//   ball: { x: number, y: number, z: number }
