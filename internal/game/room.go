package game

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vladimirvolkov/soccer/server/internal/ws"
)

// RoomConfig carries the settings a room builds its match from.
type RoomConfig struct {
	Match     MatchConfig
	Countdown time.Duration
	FrameDT   time.Duration
	Logger    zerolog.Logger
}

func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		Match:     DefaultMatchConfig(),
		Countdown: DefaultCountdown,
		FrameDT:   FrameDT,
		Logger:    zerolog.Nop(),
	}
}

// Kick-off spots, one per half, facing the opponent.
var spawns = [2]struct {
	pos mgl64.Vec3
	yaw float64
}{
	{mgl64.Vec3{0, 0, -5}, 0},
	{mgl64.Vec3{0, 0, 5}, math.Pi},
}

type Room struct {
	conns     [2]*ws.Conn
	nicknames [2]string
	playerIDs [2]string

	match     *Match
	phase     GamePhase
	countdown time.Duration
	frameDT   time.Duration
	tick      atomic.Uint32 // last broadcast frame, read by the conn goroutines

	inputs  [2]Input
	inputMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	log     zerolog.Logger
}

func NewRoom(p1, p2 *ws.Conn, cfg RoomConfig) (*Room, error) {
	r, err := newRoom([2]string{p1.Nickname, p2.Nickname}, [2]string{p1.ID, p2.ID}, cfg)
	if err != nil {
		return nil, err
	}
	r.conns = [2]*ws.Conn{p1, p2}
	return r, nil
}

func newRoom(names, ids [2]string, cfg RoomConfig) (*Room, error) {
	if cfg.FrameDT <= 0 {
		cfg.FrameDT = FrameDT
	}
	id := uuid.NewString()
	log := cfg.Logger.With().Str("room", id).Logger()
	m, err := NewMatch(id, cfg.Match, log)
	if err != nil {
		return nil, err
	}
	r := &Room{
		nicknames: names,
		playerIDs: ids,
		match:     m,
		phase:     PhaseCountdown,
		countdown: cfg.Countdown,
		frameDT:   cfg.FrameDT,
		log:       log,
	}
	if r.countdown <= 0 {
		r.phase = PhasePlaying
	}
	for i := range ids {
		m.AddPlayer(ids[i], names[i], spawns[i].pos, spawns[i].yaw)
	}
	return r, nil
}

func (r *Room) ID() string { return r.match.ID }

func (r *Room) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	for i, c := range r.conns {
		c.Send(ws.MsgGameStart, 0, ws.GameStartPayload{
			MatchID:     r.match.ID,
			PlayerIndex: uint8(i),
			PlayerID:    r.playerIDs[i],
			Names:       r.nicknames,
			Countdown:   float32(r.countdown.Seconds()),
		})
	}

	for i, c := range r.conns {
		go r.readLoop(ctx, c, i)
	}

	go func() {
		r.gameLoop(ctx)
		r.match.Close()
		for _, c := range r.conns {
			c.Finish()
		}
		close(r.done)
	}()
	r.log.Info().Str("home", r.playerIDs[0]).Str("away", r.playerIDs[1]).Msg("room started")
}

// Done returns a channel that closes when the room's game loop exits and
// both connections have been told to close.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) readLoop(ctx context.Context, conn *ws.Conn, playerIdx int) {
	// Reads use a background context: cancelling a websocket read closes
	// the socket at once, dropping queued frames.
	msgs := conn.ReadLoop(context.Background())
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				r.log.Info().Int("player", playerIdx).Msg("player disconnected")
				r.handleDisconnect(playerIdx)
				return
			}
			r.handleMessage(conn, playerIdx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Room) handleMessage(conn *ws.Conn, playerIdx int, msg ws.Message) {
	switch msg.Type {
	case ws.MsgPlayerInput:
		var input Input
		if err := conn.Unmarshal(msg, &input); err != nil {
			r.log.Debug().Err(err).Int("player", playerIdx).Msg("bad input payload")
			return
		}
		r.pushInput(playerIdx, input)

	case ws.MsgPing:
		var ping ws.PingPayload
		if err := conn.Unmarshal(msg, &ping); err != nil {
			return
		}
		conn.Send(ws.MsgPong, r.tick.Load(), ws.PongPayload{
			ClientTime: ping.ClientTime,
			ServerTime: uint64(time.Now().UnixMilli()),
		})
	}
}

// pushInput folds a client input into the pending one. Edges survive until
// the game loop consumes them; movement axes are clamped on the way in.
func (r *Room) pushInput(playerIdx int, in Input) {
	if playerIdx < 0 || playerIdx >= len(r.inputs) {
		return
	}
	r.inputMu.Lock()
	r.inputs[playerIdx] = r.inputs[playerIdx].Merge(in.Clamped())
	r.inputMu.Unlock()
}

// takeInputs returns pending inputs keyed by player id, keeping movement
// for the next frame and dropping consumed edges.
func (r *Room) takeInputs() map[string]Input {
	r.inputMu.Lock()
	defer r.inputMu.Unlock()
	out := make(map[string]Input, len(r.inputs))
	for i, in := range r.inputs {
		out[r.playerIDs[i]] = in
		r.inputs[i] = in.Edges()
	}
	return out
}

// handleDisconnect tells the opponent and ends the room. The opponent's
// connection closes once the notice is written.
func (r *Room) handleDisconnect(playerIdx int) {
	other := 1 - playerIdx
	r.conns[other].Send(ws.MsgPlayerDisconnected, r.tick.Load(), ws.PlayerDisconnectedPayload{
		PlayerIndex: uint8(playerIdx),
	})
	r.conns[other].Finish()
	r.cancel()
}

func (r *Room) gameLoop(ctx context.Context) {
	ticker := time.NewTicker(r.frameDT)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.broadcastState(r.step())
		case <-ctx.Done():
			return
		}
	}
}

// step advances the room by one frame and returns the snapshot to send.
// All match mutation happens here, on the game loop goroutine.
func (r *Room) step() GameState {
	switch r.phase {
	case PhaseCountdown:
		r.takeInputs() // presses before kick-off are discarded
		r.countdown -= r.frameDT
		if r.countdown <= 0 {
			r.countdown = 0
			r.phase = PhasePlaying
			r.log.Info().Msg("kick-off")
		}
	case PhasePlaying:
		r.match.Advance(r.frameDT, r.takeInputs())
	}

	s := r.match.Snapshot()
	s.Phase = r.phase
	s.PhaseTimer = float32(r.countdown.Seconds())
	r.tick.Store(s.Tick)
	return s
}

func (r *Room) broadcastState(s GameState) {
	for _, c := range r.conns {
		c.Send(ws.MsgGameState, s.Tick, s)
	}
}
