package room

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"potroom/internal/game"
)

func intp(v int) *int { return &v }

// helper: receive one message with a timeout so tests never hang
func recvMsg(t *testing.T, ch <-chan OutMsg, within time.Duration) OutMsg {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return OutMsg{} // unreachable
	}
}

func recvNoMsg(t *testing.T, ch <-chan OutMsg, within time.Duration) {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			// channel closed → no further messages possible
			return
		}
		t.Fatalf("expected no message within %v, but got: %+v", within, m)
	case <-time.After(within):
		// good: nothing arrived
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func joinParams(connID, name string) game.JoinParams {
	return game.JoinParams{ConnID: connID, Name: name, RoomPassword: "p"}
}

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRoom(ctx, "R1", game.NewRoom(game.Options{}), zap.NewNop())
}

func TestRoom_JoinSendsAckThenSnapshot(t *testing.T) {
	r := newTestRoom(t)

	out := make(chan OutMsg, 4)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out, Params: joinParams("c1", "alice")}

	ack := recvMsg(t, out, 100*time.Millisecond)
	if ack.Event != "joined" {
		t.Fatalf("want joined first, got %q", ack.Event)
	}
	joined := ack.Data.(game.JoinedData)
	if joined.Player.Name != "alice" {
		t.Fatalf("want alice in ack, got %+v", joined)
	}

	snap := recvMsg(t, out, 100*time.Millisecond)
	if snap.Event != "gameState" {
		t.Fatalf("want gameState after ack, got %q", snap.Event)
	}
	state := snap.Data.(game.Snapshot)
	if len(state.Players) != 1 || state.Players[0].Name != "alice" {
		t.Fatalf("unexpected snapshot: %+v", state)
	}
}

func TestRoom_BetBroadcastsToEveryone(t *testing.T) {
	r := newTestRoom(t)

	out1 := make(chan OutMsg, 8)
	out2 := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out1, Params: joinParams("c1", "alice")}
	r.Inbox() <- Join{ConnID: "c2", Outbox: out2, Params: joinParams("c2", "bob")}

	// Drain join traffic: c1 sees its ack + two snapshots, c2 ack + one.
	for i := 0; i < 3; i++ {
		recvMsg(t, out1, 100*time.Millisecond)
	}
	for i := 0; i < 2; i++ {
		recvMsg(t, out2, 100*time.Millisecond)
	}

	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdAddMoney, Amount: intp(300)}}

	for _, out := range []chan OutMsg{out1, out2} {
		added := recvMsg(t, out, 100*time.Millisecond)
		if added.Event != "moneyAdded" {
			t.Fatalf("want moneyAdded, got %q", added.Event)
		}
		data := added.Data.(game.MoneyAddedData)
		if data.Amount != 300 || data.NewPot != 300 {
			t.Fatalf("unexpected moneyAdded data: %+v", data)
		}
		snap := recvMsg(t, out, 100*time.Millisecond)
		if snap.Event != "gameState" {
			t.Fatalf("want gameState after moneyAdded, got %q", snap.Event)
		}
	}
}

func TestRoom_ErrorGoesOnlyToOffender(t *testing.T) {
	r := newTestRoom(t)

	out1 := make(chan OutMsg, 8)
	out2 := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out1, Params: joinParams("c1", "alice")}
	r.Inbox() <- Join{ConnID: "c2", Outbox: out2, Params: joinParams("c2", "bob")}
	for i := 0; i < 3; i++ {
		recvMsg(t, out1, 100*time.Millisecond)
	}
	for i := 0; i < 2; i++ {
		recvMsg(t, out2, 100*time.Millisecond)
	}

	// bob bets more than his wallet
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: game.Command{Type: game.CmdAddMoney, Amount: intp(99999)}}

	errMsg := recvMsg(t, out2, 100*time.Millisecond)
	if errMsg.Event != "error" {
		t.Fatalf("want error for offender, got %q", errMsg.Event)
	}
	recvNoMsg(t, out1, 100*time.Millisecond) // failed op mutates nothing, broadcasts nothing
}

func TestRoom_WrongPasswordNotSubscribed(t *testing.T) {
	r := newTestRoom(t)

	out1 := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out1, Params: joinParams("c1", "alice")}
	recvMsg(t, out1, 100*time.Millisecond)
	recvMsg(t, out1, 100*time.Millisecond)

	out2 := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c2", Outbox: out2, Params: game.JoinParams{ConnID: "c2", Name: "bob", RoomPassword: "wrong"}}

	errMsg := recvMsg(t, out2, 100*time.Millisecond)
	if errMsg.Event != "error" {
		t.Fatalf("want error, got %q", errMsg.Event)
	}

	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumClients != 1 {
		t.Fatalf("rejected join must not subscribe; NumClients=%d", view.NumClients)
	}
}

func TestRoom_FailedAdminJoinStaysSubscribed(t *testing.T) {
	r := newTestRoom(t)

	out1 := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out1, Params: game.JoinParams{ConnID: "c1", Name: "mod", RoomPassword: "p", IsAdmin: true, AdminPassword: "a"}}
	recvMsg(t, out1, 100*time.Millisecond)
	recvMsg(t, out1, 100*time.Millisecond)

	out2 := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c2", Outbox: out2, Params: game.JoinParams{ConnID: "c2", Name: "mod2", RoomPassword: "p", IsAdmin: true, AdminPassword: "bad"}}

	errMsg := recvMsg(t, out2, 100*time.Millisecond)
	if errMsg.Event != "error" {
		t.Fatalf("want error, got %q", errMsg.Event)
	}

	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumClients != 2 {
		t.Fatalf("failed admin join should stay subscribed; NumClients=%d", view.NumClients)
	}
}

func TestRoom_DropSlowClient(t *testing.T) {
	r := newTestRoom(t)

	// Buffer of one: the join ack fills it, the snapshot broadcast overflows.
	out := make(chan OutMsg, 1)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out, Params: joinParams("c1", "alice")}

	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestRoom_JoinQueuedBehindLastLeaveIsServed(t *testing.T) {
	r := newTestRoom(t)

	out1 := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out1, Params: joinParams("c1", "alice")}
	recvMsg(t, out1, 100*time.Millisecond)
	recvMsg(t, out1, 100*time.Millisecond)

	// The last player's leave and a newcomer's join arrive back to back.
	// The join must land on live, freshly wiped state - not vanish with a
	// retiring actor.
	out2 := make(chan OutMsg, 8)
	r.Inbox() <- Leave{ConnID: "c1"}
	r.Inbox() <- Join{ConnID: "c2", Outbox: out2, Params: game.JoinParams{ConnID: "c2", Name: "bob", RoomPassword: "different"}}

	ack := recvMsg(t, out2, 500*time.Millisecond)
	if ack.Event != "joined" {
		t.Fatalf("want joined ack for the queued join, got %q", ack.Event)
	}
	joined := ack.Data.(game.JoinedData)
	if joined.Player.Name != "bob" || joined.Player.Wallet != 1000 {
		t.Fatalf("queued join should see a fresh room, got %+v", joined.Player)
	}

	snap := recvMsg(t, out2, 100*time.Millisecond)
	if snap.Event != "gameState" {
		t.Fatalf("want gameState after ack, got %q", snap.Event)
	}
	state := snap.Data.(game.Snapshot)
	if len(state.Players) != 1 || state.Players[0].Name != "bob" {
		t.Fatalf("wiped room should only hold the newcomer: %+v", state.Players)
	}

	// The loop is still answering after the empty transition.
	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumClients != 1 {
		t.Fatalf("want 1 client after rejoin, got %d", view.NumClients)
	}
}

func TestRoom_LastLeaveWipesState(t *testing.T) {
	r := newTestRoom(t)

	out := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out, Params: joinParams("c1", "alice")}
	recvMsg(t, out, 100*time.Millisecond)
	recvMsg(t, out, 100*time.Millisecond)

	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdAddMoney, Amount: intp(300)}}
	recvMsg(t, out, 100*time.Millisecond) // moneyAdded
	recvMsg(t, out, 100*time.Millisecond) // gameState

	r.Inbox() <- Leave{ConnID: "c1"}

	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	view := recvView(t, reply, 500*time.Millisecond)
	if view.NumClients != 0 {
		t.Fatalf("want 0 clients after last leave, got %d", view.NumClients)
	}
	if view.State.Pot != 0 || len(view.State.Players) != 0 {
		t.Fatalf("want wiped state after last leave, got %+v", view.State)
	}
}

func TestRoom_CommandsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := NewRoom(ctx, "R1", game.NewRoom(game.Options{}), zap.New(core))

	out := make(chan OutMsg, 8)
	r.Inbox() <- Join{ConnID: "c1", Outbox: out, Params: joinParams("c1", "alice")}
	recvMsg(t, out, 100*time.Millisecond)
	recvMsg(t, out, 100*time.Millisecond)

	r.Inbox() <- FromClient{ConnID: "c1", Cmd: game.Command{Type: game.CmdAddMoney, Amount: intp(300)}}
	recvMsg(t, out, 100*time.Millisecond)
	recvMsg(t, out, 100*time.Millisecond)

	entries := logs.FilterMessage("command applied").All()
	if len(entries) != 1 {
		t.Fatalf("want one command log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["cmd"] != string(game.CmdAddMoney) {
		t.Fatalf("want cmd field %q, got %v", game.CmdAddMoney, fields["cmd"])
	}
	if fields["amount"] != int64(300) || fields["pot"] != int64(300) {
		t.Fatalf("want amount/pot 300 in log fields, got %v", fields)
	}
}
