package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"potroom/internal/game"
	"potroom/internal/hub"
	"potroom/internal/room"
	"potroom/internal/types"
)

// Handler upgrades the connection and runs its session: a writer goroutine
// draining the outbox plus a reader loop translating tagged payloads into
// room messages. The connection id, not the player name, is what binds this
// session to a room.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan room.OutMsg, 16)
		log = log.With(zap.String("conn", connID))
		log.Info("connection opened")

		var current *room.Room
		defer func() {
			if current != nil {
				current.Inbox() <- room.Leave{ConnID: connID}
			}
			log.Info("connection closed")
		}()

		// Writer goroutine. The room actor owns the out channel's close; the
		// ctx case covers sessions whose outbox was never registered.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case m, ok := <-out:
					if !ok {
						return
					}
					payload, err := json.Marshal(types.ServerMessage{Event: m.Event, Data: m.Data})
					if err != nil {
						log.Error("marshal outbound", zap.String("event", m.Event), zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				case <-writeCtx.Done():
					return
				}
			}
		}()

		// Reader loop. Boundary errors are written straight to the conn so
		// we never race the room actor on the outbox.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise, just exit (room.Leave in defer):
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeErr(r.Context(), conn, "bad json")
				continue
			}

			if cm.Event == "joinRoom" {
				var p types.JoinRoomPayload
				_ = json.Unmarshal(cm.Data, &p)

				roomID := strings.TrimSpace(p.RoomID)
				roomPassword := strings.TrimSpace(p.RoomPassword)
				if roomID == "" || roomPassword == "" {
					writeErr(r.Context(), conn, game.ErrRoomRequired.Error())
					continue
				}

				if current != nil && current.ID() != roomID {
					current.Inbox() <- room.Leave{ConnID: connID}
					current = nil
				}

				reply := make(chan *room.Room, 1)
				h.Inbox() <- hub.EnsureRoom{ID: roomID, Reply: reply}
				rm := <-reply

				rm.Inbox() <- room.Join{
					ConnID: connID,
					Outbox: out,
					// Only roomId and roomPassword are trimmed; the name
					// passes through verbatim since it is the durable
					// identity key clients reconnect with.
					Params: game.JoinParams{
						ConnID:        connID,
						Name:          p.Name,
						InitialWallet: p.InitialWallet.Ptr(),
						IsAdmin:       p.IsAdmin,
						RoomPassword:  roomPassword,
						AdminPassword: p.AdminPassword,
					},
				}
				current = rm
				continue
			}

			cmd, ok := toCommand(cm)
			if !ok {
				writeErr(r.Context(), conn, "unknown event")
				continue
			}
			if current == nil {
				writeErr(r.Context(), conn, game.ErrNotInGame.Error())
				continue
			}
			current.Inbox() <- room.FromClient{ConnID: connID, Cmd: cmd}
		}
	}
}

func writeErr(ctx context.Context, conn *websocket.Conn, message string) {
	payload, _ := json.Marshal(types.ServerMessage{
		Event: "error",
		Data:  types.ErrorPayload{Message: message},
	})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func toCommand(m types.ClientMessage) (game.Command, bool) {
	switch m.Event {
	case "addMoney":
		var p types.AddMoneyPayload
		_ = json.Unmarshal(m.Data, &p)
		return game.Command{Type: game.CmdAddMoney, Amount: p.Amount.Ptr()}, true
	case "selectWinner":
		var p types.SelectWinnerPayload
		_ = json.Unmarshal(m.Data, &p)
		return game.Command{Type: game.CmdSelectWinner, WinnerConnID: p.WinnerSocketID, WinnerName: p.WinnerName}, true
	case "adjustWallet":
		var p types.AdjustWalletPayload
		_ = json.Unmarshal(m.Data, &p)
		return game.Command{Type: game.CmdAdjustWallet, TargetConnID: p.PlayerSocketID, TargetName: p.PlayerName, Amount: p.Amount.Ptr()}, true
	case "resetPool":
		return game.Command{Type: game.CmdResetPool}, true
	case "resetRoom":
		return game.Command{Type: game.CmdResetRoom}, true
	case "adjustPool":
		var p types.AdjustPoolPayload
		_ = json.Unmarshal(m.Data, &p)
		return game.Command{Type: game.CmdAdjustPool, Amount: p.Amount.Ptr()}, true
	case "showSettlementToAll":
		return game.Command{Type: game.CmdShowSettlement, Settlement: m.Data}, true
	case "requestState":
		return game.Command{Type: game.CmdRequestState}, true
	default:
		return game.Command{}, false
	}
}
