package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ClientMessage is the envelope for every inbound event: a tag plus the
// operation's payload, decoded per-operation in the ws layer.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// OptionalInt decodes an integer that clients may send as a number, a
// numeric string, or garbage. Anything unparseable leaves Set false rather
// than failing the whole message; the state machine decides whether unset
// means "invalid amount" or a silent no-op.
type OptionalInt struct {
	Value int
	Set   bool
}

func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	o.Set = false
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(b, &unquoted); err != nil {
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Floats truncate toward zero like the original client's parseInt.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		v = int(f)
	}
	o.Value = v
	o.Set = true
	return nil
}

// Ptr returns the decoded value, or nil when nothing parseable arrived.
func (o OptionalInt) Ptr() *int {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

type JoinRoomPayload struct {
	Name          string      `json:"name"`
	InitialWallet OptionalInt `json:"initialWallet"`
	IsAdmin       bool        `json:"isAdmin"`
	RoomID        string      `json:"roomId"`
	RoomPassword  string      `json:"roomPassword"`
	AdminPassword string      `json:"adminPassword"`
}

type AddMoneyPayload struct {
	Amount OptionalInt `json:"amount"`
}

type SelectWinnerPayload struct {
	WinnerSocketID string `json:"winnerSocketId"`
	WinnerName     string `json:"winnerName"`
}

type AdjustWalletPayload struct {
	PlayerSocketID string      `json:"playerSocketId"`
	PlayerName     string      `json:"playerName"`
	Amount         OptionalInt `json:"amount"`
}

type AdjustPoolPayload struct {
	Amount OptionalInt `json:"amount"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
