package game

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimirvolkov/soccer/server/internal/ws"
)

func newTestRoom(t *testing.T, countdownFrames int) *Room {
	t.Helper()
	cfg := DefaultRoomConfig()
	cfg.Countdown = FrameDT * time.Duration(countdownFrames)
	r, err := newRoom([2]string{"Ann", "Bob"}, [2]string{"home", "away"}, cfg)
	require.NoError(t, err)
	t.Cleanup(r.match.Close)
	return r
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// dialPair connects two websocket clients and returns the server side of
// each as a running ws.Conn alongside the client ends.
func dialPair(t *testing.T, ctx context.Context) ([2]*ws.Conn, [2]*websocket.Conn) {
	t.Helper()
	accepted := make(chan *ws.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		id := r.URL.Query().Get("id")
		conn := ws.NewConn(c, id, "127.0.0.1", ws.JSONCodec{}, nil, zerolog.Nop())
		conn.Nickname = id
		go conn.WriteLoop(context.Background())
		accepted <- conn
		<-conn.Done()
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	var server [2]*ws.Conn
	var client [2]*websocket.Conn
	for i, id := range []string{"home", "away"} {
		c, _, err := websocket.Dial(ctx, url+"?id="+id, nil)
		require.NoError(t, err)
		t.Cleanup(func() { c.CloseNow() })
		client[i] = c
		select {
		case server[i] = <-accepted:
		case <-ctx.Done():
			t.Fatal("server side never accepted")
		}
	}
	return server, client
}

func TestRoom_SpawnsBothPlayers(t *testing.T) {
	r := newTestRoom(t, 0)
	players := r.match.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "home", players[0].ID())
	assert.Equal(t, "Bob", players[1].Name())
	assert.Greater(t, players[1].Position().Z(), players[0].Position().Z())
	assert.NotEmpty(t, r.ID())
}

func TestRoom_CountdownThenKickOff(t *testing.T) {
	r := newTestRoom(t, 3)
	assert.Equal(t, PhaseCountdown, r.phase)

	s := r.step()
	assert.Equal(t, PhaseCountdown, s.Phase)
	assert.InDelta(t, (2 * FrameDT).Seconds(), s.PhaseTimer, 1e-6)
	assert.Zero(t, s.Tick, "match is frozen before kick-off")

	r.step()
	s = r.step()
	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Zero(t, s.PhaseTimer)
	assert.Zero(t, s.Tick)

	s = r.step()
	assert.Equal(t, uint32(1), s.Tick)
	assert.Equal(t, uint32(1), r.tick.Load())
	assert.Len(t, s.Players, 2)
}

func TestRoom_ZeroCountdownStartsPlaying(t *testing.T) {
	r := newTestRoom(t, 0)
	assert.Equal(t, PhasePlaying, r.phase)
	assert.Equal(t, uint32(1), r.step().Tick)
}

func TestRoom_CountdownDiscardsEdges(t *testing.T) {
	r := newTestRoom(t, 2)
	r.pushInput(0, Input{MoveZ: 1, Shoot: true, Skill: 2})
	r.step()

	assert.Equal(t, Input{MoveZ: 1}, r.inputs[0], "movement is kept, presses are dropped")
}

func TestRoom_PushInputMergesUntilTaken(t *testing.T) {
	r := newTestRoom(t, 0)
	r.pushInput(1, Input{Tackle: true})
	r.pushInput(1, Input{MoveX: 0.5, Sprint: true})
	r.pushInput(5, Input{Shoot: true})
	r.pushInput(-1, Input{Shoot: true})

	in := r.takeInputs()
	require.Len(t, in, 2)
	assert.True(t, in["away"].Tackle)
	assert.Equal(t, 0.5, in["away"].MoveX)
	assert.Equal(t, Input{}, in["home"])

	again := r.takeInputs()
	assert.False(t, again["away"].Tackle)
	assert.True(t, again["away"].Sprint)
}

func TestRoom_InputsDriveThePlayers(t *testing.T) {
	r := newTestRoom(t, 0)
	home := r.match.Player("home")
	start := home.Position()

	r.pushInput(0, Input{MoveZ: 1})
	for range 30 {
		r.step()
	}
	assert.Greater(t, home.Position().Z(), start.Z())
	assert.InDelta(t, start.X(), home.Position().X(), 1e-9)
}

func TestInput_Merge(t *testing.T) {
	pending := Input{MoveX: 1, Shoot: true, Skill: 3}

	got := pending.Merge(Input{MoveX: -1})
	assert.Equal(t, -1.0, got.MoveX)
	assert.True(t, got.Shoot)
	assert.Equal(t, uint8(3), got.Skill)

	got = pending.Merge(Input{Skill: 1, Release: true})
	assert.Zero(t, got.MoveX)
	assert.Equal(t, uint8(1), got.Skill)
	assert.True(t, got.Release)

	assert.Equal(t, Input{MoveX: 1}, pending.Edges())
}

func TestRoom_NonFiniteAxesReadAsStill(t *testing.T) {
	r := newTestRoom(t, 0)
	home := r.match.Player("home")
	home.SetPosition(mgl64.Vec3{0, 0, -1})
	home.UpdateProximity()
	require.True(t, home.HasBallControl())

	codec := ws.MsgpackCodec{}
	conn := ws.NewConn(nil, "home", "127.0.0.1", codec, nil, zerolog.Nop())
	data, err := codec.Encode(ws.MsgPlayerInput, 0, Input{MoveX: math.NaN(), MoveZ: 1})
	require.NoError(t, err)
	msg, err := codec.Decode(data)
	require.NoError(t, err)

	r.handleMessage(conn, 0, msg)
	assert.Equal(t, Input{MoveZ: 1}, r.inputs[0])

	for range 10 {
		r.step()
	}
	assert.True(t, finite(home.Position()), "player at %v", home.Position())
	assert.True(t, finite(r.match.Ball().Position()), "ball at %v", r.match.Ball().Position())
	assert.True(t, r.match.Ball().HeldBy(home))
}

func TestRoom_DisconnectNotifiesAndClosesOpponent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server, client := dialPair(t, ctx)

	cfg := DefaultRoomConfig()
	cfg.Countdown = 0
	room, err := NewRoom(server[0], server[1], cfg)
	require.NoError(t, err)
	room.Start(ctx)

	codec := ws.JSONCodec{}
	_, data, err := client[1].Read(ctx)
	require.NoError(t, err)
	msg, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, ws.MsgGameStart, msg.Type)

	client[0].CloseNow()

	var notice *ws.PlayerDisconnectedPayload
	for {
		_, data, err := client[1].Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			break
		}
		msg, err := codec.Decode(data)
		require.NoError(t, err)
		if msg.Type == ws.MsgPlayerDisconnected {
			notice = &ws.PlayerDisconnectedPayload{}
			require.NoError(t, codec.Unmarshal(msg.Payload, notice))
		}
	}
	require.NotNil(t, notice, "opponent is told before the close")
	assert.Equal(t, uint8(0), notice.PlayerIndex)

	select {
	case <-room.Done():
	case <-ctx.Done():
		t.Fatal("room did not end")
	}
	select {
	case <-server[1].Done():
	case <-ctx.Done():
		t.Fatal("opponent connection left open")
	}
}
