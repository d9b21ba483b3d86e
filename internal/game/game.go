package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validation failures (malformed or missing input).
var ErrRoomRequired = errors.New("Room ID and Password required")
var ErrBadAmount = errors.New("Invalid amount")

// Auth failures (wrong password, non-moderator on a privileged op).
var ErrBadRoomPassword = errors.New("Invalid room password")
var ErrAdminRequired = errors.New("Admin password required")
var ErrBadAdminPassword = errors.New("Invalid admin password")
var ErrNotModerator = errors.New("Only the moderator can do that")

// Session / lookup failures.
var ErrNotInGame = errors.New("Not in game")
var ErrWinnerNotFound = errors.New("Winner not found")
var ErrPlayerNotFound = errors.New("Player not found")

// Funds failures. Wrapped with the current wallet so clients can display it.
var ErrInsufficientFunds = errors.New("Insufficient funds")

// ResetTarget picks what resetRoom sets wallets back to.
type ResetTarget string

const (
	ResetZero     ResetTarget = "zero"
	ResetOriginal ResetTarget = "original"
)

type Options struct {
	ResetTarget ResetTarget
}

// Player is keyed by name, which is the durable identity. ConnID is the
// transient transport binding and goes stale while the player is offline.
type Player struct {
	ConnID        string `json:"socketId"`
	Name          string `json:"name"`
	Wallet        int    `json:"wallet"`
	InitialWallet int    `json:"initialWallet"`
	IsModerator   bool   `json:"isModerator"`
	LastBid       int    `json:"lastBid"`
	TotalBid      int    `json:"totalBid"`
	Online        bool   `json:"online"`
}

// Room holds one room's authoritative state. It is not safe for concurrent
// use; the room actor serializes all access.
type Room struct {
	password      string
	adminPassword string
	players       map[string]*Player // name -> player
	conns         map[string]string  // conn id -> name, invalidated on disconnect
	pot           int
	moderatorID   string
	ledger        map[string]int // name -> cumulative admin-granted coins
	wins          map[string]int // name -> games won
	totalGames    int
	opts          Options
}

func NewRoom(opts Options) *Room {
	if opts.ResetTarget == "" {
		opts.ResetTarget = ResetZero
	}
	return &Room{
		players: make(map[string]*Player),
		conns:   make(map[string]string),
		ledger:  make(map[string]int),
		wins:    make(map[string]int),
		opts:    opts,
	}
}

type EventType string

const (
	EvtJoined         EventType = "joined"
	EvtState          EventType = "gameState"
	EvtMoneyAdded     EventType = "moneyAdded"
	EvtWinnerSelected EventType = "winnerSelected"
	EvtPoolReset      EventType = "poolReset"
	EvtRoomReset      EventType = "roomReset"
	EvtSettlement     EventType = "showSettlementToAll"
)

// Event is an outbound emission produced by an operation. To targets one
// connection; empty To means broadcast to the whole room. EvtState carries no
// data: the actor projects a fresh snapshot when it sees one.
type Event struct {
	Type EventType
	To   string
	Data any
}

type JoinedData struct {
	Player      Player `json:"player"`
	IsModerator bool   `json:"isModerator"`
}

type MoneyAddedData struct {
	SocketID string `json:"socketId"`
	Amount   int    `json:"amount"`
	NewPot   int    `json:"newPot"`
}

type WinnerSelectedData struct {
	WinnerSocketID string `json:"winnerSocketId"`
	WinnerName     string `json:"winnerName"`
	Amount         int    `json:"amount"`
}

type JoinParams struct {
	ConnID        string
	Name          string
	InitialWallet *int
	IsAdmin       bool
	RoomPassword  string
	AdminPassword string
}

// Join admits a connection into the room: password gating (with adoption for
// abandoned rooms), reconnection by name, player creation, and moderator
// election for admin joins.
func (r *Room) Join(p JoinParams) ([]Event, error) {
	// Fresh-start rule: a room whose previous occupants have all left is
	// wiped before the join is processed, so the old password no longer
	// gates it.
	if len(r.players) > 0 && r.onlineCount() == 0 {
		r.wipe()
	}

	if len(r.players) == 0 {
		r.password = p.RoomPassword
	} else if r.password != p.RoomPassword {
		return nil, ErrBadRoomPassword
	}

	if p.IsAdmin {
		if p.AdminPassword == "" {
			return nil, ErrAdminRequired
		}
		if r.adminPassword == "" {
			r.adminPassword = p.AdminPassword
		} else if r.adminPassword != p.AdminPassword {
			return nil, ErrBadAdminPassword
		}
	}

	name := p.Name
	if name == "" {
		name = fmt.Sprintf("Player %d", len(r.players)+1)
	}

	player, ok := r.players[name]
	if ok {
		// Reconnection: only the transport binding changes, wallet and
		// stats survive.
		player.ConnID = p.ConnID
		player.Online = true
	} else {
		wallet := 1000
		if p.InitialWallet != nil {
			wallet = *p.InitialWallet
		}
		player = &Player{
			ConnID:        p.ConnID,
			Name:          name,
			Wallet:        wallet,
			InitialWallet: wallet,
			IsModerator:   p.IsAdmin,
			Online:        true,
		}
		r.players[name] = player
		if _, ok := r.ledger[name]; !ok {
			r.ledger[name] = 0
		}
		if _, ok := r.wins[name]; !ok {
			r.wins[name] = 0
		}
	}
	r.conns[p.ConnID] = name

	if p.IsAdmin {
		// Demote whoever currently holds the seat, then take it.
		if prevName, ok := r.conns[r.moderatorID]; ok && prevName != name {
			if prev, ok := r.players[prevName]; ok {
				prev.IsModerator = false
			}
		}
		r.moderatorID = p.ConnID
		player.IsModerator = true
	}

	return []Event{
		{Type: EvtJoined, To: p.ConnID, Data: JoinedData{Player: *player, IsModerator: player.IsModerator}},
		{Type: EvtState},
	}, nil
}

type CommandType string

const (
	CmdAddMoney       CommandType = "addMoney"
	CmdSelectWinner   CommandType = "selectWinner"
	CmdAdjustWallet   CommandType = "adjustWallet"
	CmdResetPool      CommandType = "resetPool"
	CmdResetRoom      CommandType = "resetRoom"
	CmdAdjustPool     CommandType = "adjustPool"
	CmdShowSettlement CommandType = "showSettlementToAll"
	CmdRequestState   CommandType = "requestState"
)

var ErrUnsupportedCommand = errors.New("unsupported command")

// Command is a protocol operation from an established connection. Nil Amount
// means the client sent nothing parseable as an integer.
type Command struct {
	Type         CommandType
	Amount       *int
	WinnerConnID string
	WinnerName   string
	TargetConnID string
	TargetName   string
	Settlement   json.RawMessage
}

// Apply runs one command to completion. On error no state has changed and no
// events are emitted. A nil event slice with nil error is a silent no-op.
func (r *Room) Apply(connID string, cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdAddMoney:
		return r.addMoney(connID, cmd.Amount)
	case CmdSelectWinner:
		return r.selectWinner(connID, cmd.WinnerConnID, cmd.WinnerName)
	case CmdAdjustWallet:
		return r.adjustWallet(connID, cmd.TargetConnID, cmd.TargetName, cmd.Amount)
	case CmdResetPool:
		return r.resetPool(connID)
	case CmdResetRoom:
		return r.resetRoom(connID)
	case CmdAdjustPool:
		return r.adjustPool(connID, cmd.Amount)
	case CmdShowSettlement:
		return r.showSettlement(connID, cmd.Settlement)
	case CmdRequestState:
		return []Event{{Type: EvtState}}, nil
	default:
		return nil, ErrUnsupportedCommand
	}
}

func (r *Room) addMoney(connID string, amount *int) ([]Event, error) {
	player := r.playerByConn(connID)
	if player == nil {
		return nil, ErrNotInGame
	}
	if amount == nil || *amount <= 0 {
		return nil, ErrBadAmount
	}
	if *amount > player.Wallet {
		return nil, fmt.Errorf("%w! You only have ₹%d", ErrInsufficientFunds, player.Wallet)
	}

	player.Wallet -= *amount
	player.LastBid = *amount
	player.TotalBid += *amount
	r.pot += *amount

	return []Event{
		{Type: EvtMoneyAdded, Data: MoneyAddedData{SocketID: connID, Amount: *amount, NewPot: r.pot}},
		{Type: EvtState},
	}, nil
}

func (r *Room) selectWinner(connID, winnerConnID, winnerName string) ([]Event, error) {
	if err := r.requireModerator(connID); err != nil {
		return nil, err
	}
	// The winner's connection may have gone stale between the last
	// broadcast and this call, so fall back to the durable name key.
	winner := r.playerByConn(winnerConnID)
	if winner == nil && winnerName != "" {
		winner = r.players[winnerName]
	}
	if winner == nil {
		return nil, ErrWinnerNotFound
	}

	amount := r.pot
	winner.Wallet += amount
	r.totalGames++
	r.wins[winner.Name]++
	r.pot = 0
	r.clearBids()

	return []Event{
		{Type: EvtWinnerSelected, Data: WinnerSelectedData{WinnerSocketID: winnerConnID, WinnerName: winner.Name, Amount: amount}},
		{Type: EvtState},
	}, nil
}

func (r *Room) adjustWallet(connID, targetConnID, targetName string, amount *int) ([]Event, error) {
	if err := r.requireModerator(connID); err != nil {
		return nil, err
	}
	target := r.playerByConn(targetConnID)
	if target == nil && targetName != "" {
		target = r.players[targetName]
	}
	if target == nil {
		return nil, ErrPlayerNotFound
	}
	if amount == nil {
		// Unparseable amount is a silent no-op, kept for client
		// compatibility.
		return nil, nil
	}

	target.Wallet += *amount
	r.ledger[target.Name] += *amount

	return []Event{{Type: EvtState}}, nil
}

func (r *Room) resetPool(connID string) ([]Event, error) {
	if err := r.requireModerator(connID); err != nil {
		return nil, err
	}
	r.pot = 0
	r.clearBids()
	return []Event{
		{Type: EvtPoolReset},
		{Type: EvtState},
	}, nil
}

func (r *Room) resetRoom(connID string) ([]Event, error) {
	if err := r.requireModerator(connID); err != nil {
		return nil, err
	}
	r.pot = 0
	for _, p := range r.players {
		switch r.opts.ResetTarget {
		case ResetOriginal:
			p.Wallet = p.InitialWallet
		default:
			p.Wallet = 0
			p.InitialWallet = 0
		}
		p.LastBid = 0
		p.TotalBid = 0
	}
	r.ledger = make(map[string]int)
	return []Event{
		{Type: EvtRoomReset},
		{Type: EvtState},
	}, nil
}

func (r *Room) adjustPool(connID string, amount *int) ([]Event, error) {
	if err := r.requireModerator(connID); err != nil {
		return nil, err
	}
	if amount == nil {
		return nil, nil
	}
	r.pot += *amount
	if r.pot < 0 {
		r.pot = 0
	}
	return []Event{{Type: EvtState}}, nil
}

func (r *Room) showSettlement(connID string, payload json.RawMessage) ([]Event, error) {
	if err := r.requireModerator(connID); err != nil {
		return nil, err
	}
	// Pass-through relay, the server never inspects the contents.
	return []Event{{Type: EvtSettlement, Data: payload}}, nil
}

// Disconnect marks the player offline and retains the record for later
// reconnection. Returns true when the room emptied out and was wiped; the
// caller should skip broadcasting in that case.
func (r *Room) Disconnect(connID string) ([]Event, bool) {
	name, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	delete(r.conns, connID)
	player := r.players[name]
	if player != nil {
		player.Online = false
	}
	if connID == r.moderatorID {
		r.moderatorID = ""
		if player != nil {
			player.IsModerator = false
		}
	}
	if r.onlineCount() == 0 {
		r.wipe()
		return nil, true
	}
	return []Event{{Type: EvtState}}, false
}

// Pot reports the current shared pot, mainly for logging.
func (r *Room) Pot() int { return r.pot }

func (r *Room) requireModerator(connID string) error {
	if connID == "" || connID != r.moderatorID {
		return ErrNotModerator
	}
	return nil
}

func (r *Room) playerByConn(connID string) *Player {
	name, ok := r.conns[connID]
	if !ok {
		return nil
	}
	return r.players[name]
}

func (r *Room) clearBids() {
	for _, p := range r.players {
		p.LastBid = 0
		p.TotalBid = 0
	}
}

func (r *Room) onlineCount() int {
	n := 0
	for _, p := range r.players {
		if p.Online {
			n++
		}
	}
	return n
}

// wipe clears every mutable field so the next join sees a fresh room.
func (r *Room) wipe() {
	r.password = ""
	r.adminPassword = ""
	r.players = make(map[string]*Player)
	r.conns = make(map[string]string)
	r.pot = 0
	r.moderatorID = ""
	r.ledger = make(map[string]int)
	r.wins = make(map[string]int)
	r.totalGames = 0
}
