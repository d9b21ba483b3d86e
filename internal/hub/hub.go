package hub

import (
	"context"

	"go.uber.org/zap"

	"potroom/internal/game"
	"potroom/internal/room"
)

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the room for ID, creating it lazily on first use.
type EnsureRoom struct {
	ID    string
	Reply chan *room.Room
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

// RemoveRoom drops a room from the registry without stopping its actor.
// Emptied rooms are not removed (their state is wiped in place); this exists
// for administrative eviction.
type RemoveRoom struct {
	ID string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub is the process-wide registry actor and the sole owner of all room
// instances. Construct one per process; tests build isolated ones.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	opts   game.Options
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts game.Options, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		opts:   opts,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.ID]; rm != nil {
					msg.Reply <- rm
					break
				}
				// An emptied room wipes itself but stays registered, so
				// the pointer handed out here is good for the hub's whole
				// lifetime and a join racing a leave cannot strand on a
				// retired actor.
				rm := room.NewRoom(h.ctx, msg.ID, game.NewRoom(h.opts), h.log)
				h.rooms[msg.ID] = rm
				h.log.Info("room created", zap.String("room", msg.ID))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case RemoveRoom:
				if _, ok := h.rooms[msg.ID]; ok {
					delete(h.rooms, msg.ID)
					h.log.Info("room removed", zap.String("room", msg.ID))
				}

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}
