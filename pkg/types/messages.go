package types

// Wire reference for client implementers. Every frame is
// { "event": string, "data": object }.

// Client -> Server
// joinRoom:
//   name: string (optional; server assigns "Player N" when empty)
//   initialWallet: number | numeric string (optional, default 1000)
//   isAdmin: boolean
//   roomId: string
//   roomPassword: string
//   adminPassword: string (required when isAdmin)
//
// addMoney:
//   amount: number (positive)
//
// selectWinner:
//   winnerSocketId: string
//   winnerName: string (fallback when the socket id went stale)
//
// adjustWallet:
//   playerSocketId: string
//   playerName: string (fallback)
//   amount: number (signed; may drive a wallet negative)
//
// resetPool: {}
// resetRoom: {}
//
// adjustPool:
//   amount: number (signed; pot clamps at 0)
//
// showSettlementToAll: opaque payload, relayed verbatim
//
// requestState: {}

// Server -> Client
// joined:
//   player: Player
//   isModerator: boolean
//
// gameState:
//   players: Player[] (online only, each with wins + adminGiven)
//   pot: number
//   moderatorId: string
//   ledger: { [name]: number }
//   totalGames: number
//
// moneyAdded:
//   socketId: string
//   amount: number
//   newPot: number
//
// winnerSelected:
//   winnerSocketId: string
//   winnerName: string
//   amount: number
//
// poolReset: {}
// roomReset: {}
// showSettlementToAll: whatever the moderator sent
//
// error:
//   message: string (sent only to the offending connection)
