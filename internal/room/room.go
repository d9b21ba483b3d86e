package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"potroom/internal/game"
)

type Msg interface{ isRoomMsg() }

// Join admits a connection. Outbox is where this client receives events.
type Join struct {
	ConnID string
	Outbox chan OutMsg
	Params game.JoinParams
}

func (Join) isRoomMsg() {}

// Leave is the transport-level disconnect.
type Leave struct{ ConnID string }

func (Leave) isRoomMsg() {}

// FromClient carries a protocol command from an established connection.
type FromClient struct {
	ConnID string
	Cmd    game.Command
}

func (FromClient) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// GetView reflects internal state without data races; test-only.
type GetView struct {
	Reply chan View
}

func (GetView) isRoomMsg() {}

// OutMsg is one wire event headed for a client.
type OutMsg struct {
	Event string
	Data  any
}

type View struct {
	NumClients int
	State      game.Snapshot
}

type ErrorData struct {
	Message string `json:"message"`
}

// Room is the sequential actor owning one game.Room. All mutations run on the
// loop goroutine, so an operation and its broadcast are atomic with respect
// to other events on the same room.
type Room struct {
	id      string
	inbox   chan Msg
	state   *game.Room
	clients map[string]chan OutMsg
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRoom starts the actor. It lives until the parent context is canceled or
// a Shutdown message arrives: an emptied room wipes its state in place and
// keeps serving, so a Join queued behind the last Leave still lands on a live
// actor instead of vanishing with a retiring one.
func NewRoom(parent context.Context, id string, state *game.Room, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		id:      id,
		inbox:   make(chan Msg, 64),
		state:   state,
		clients: make(map[string]chan OutMsg),
		log:     log.With(zap.String("room", id)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Inbox exposes the actor's mailbox to the ws layer and tests.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				events, err := r.state.Join(msg.Params)
				if err != nil {
					// A connection that cleared the room-password
					// gate stays subscribed even when the admin
					// gate rejects it, matching how the original
					// client expects to keep receiving broadcasts.
					if errors.Is(err, game.ErrAdminRequired) || errors.Is(err, game.ErrBadAdminPassword) {
						r.clients[msg.ConnID] = msg.Outbox
					}
					r.sendTo(msg.ConnID, msg.Outbox, OutMsg{Event: "error", Data: ErrorData{Message: err.Error()}})
					r.log.Info("join rejected", zap.String("conn", msg.ConnID), zap.Error(err))
					break
				}
				r.clients[msg.ConnID] = msg.Outbox
				r.deliver(events)
				r.log.Info("player joined",
					zap.String("conn", msg.ConnID),
					zap.String("name", msg.Params.Name),
					zap.Bool("admin", msg.Params.IsAdmin))

			case Leave:
				delete(r.clients, msg.ConnID)
				events, empty := r.state.Disconnect(msg.ConnID)
				r.deliver(events)
				r.log.Info("player disconnected", zap.String("conn", msg.ConnID))
				if empty {
					r.log.Info("room emptied, state wiped")
				}

			case FromClient:
				events, err := r.state.Apply(msg.ConnID, msg.Cmd)
				if err != nil {
					r.sendTo(msg.ConnID, r.clients[msg.ConnID], OutMsg{Event: "error", Data: ErrorData{Message: err.Error()}})
					break
				}
				r.deliver(events)
				fields := []zap.Field{
					zap.String("conn", msg.ConnID),
					zap.String("cmd", string(msg.Cmd.Type)),
					zap.Int("pot", r.state.Pot()),
				}
				if msg.Cmd.Amount != nil {
					fields = append(fields, zap.Int("amount", *msg.Cmd.Amount))
				}
				if msg.Cmd.WinnerName != "" {
					fields = append(fields, zap.String("winner", msg.Cmd.WinnerName))
				}
				r.log.Info("command applied", fields...)

			case GetView:
				msg.Reply <- View{
					NumClients: len(r.clients),
					State:      r.state.Project(),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// deliver fans the state machine's events out to clients. EvtState triggers a
// fresh projection; everything else is forwarded as-is.
func (r *Room) deliver(events []game.Event) {
	for _, ev := range events {
		var out OutMsg
		if ev.Type == game.EvtState {
			out = OutMsg{Event: string(game.EvtState), Data: r.state.Project()}
		} else {
			out = OutMsg{Event: string(ev.Type), Data: ev.Data}
		}
		if ev.To != "" {
			r.sendTo(ev.To, r.clients[ev.To], out)
			continue
		}
		r.broadcast(out)
	}
}

func (r *Room) broadcast(out OutMsg) {
	for id, ch := range r.clients {
		select {
		case ch <- out:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) sendTo(id string, ch chan OutMsg, out OutMsg) {
	if ch == nil {
		return
	}
	select {
	case ch <- out:
	default:
		if _, ok := r.clients[id]; ok {
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch) // Tell client no more events
		delete(r.clients, id)
	}
	r.cancel()
}
