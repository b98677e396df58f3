package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/vladimirvolkov/soccer/server/internal/physics"
)

// MatchConfig bundles the tunables a match is built from.
type MatchConfig struct {
	Ball     BallTuning
	Player   PlayerTuning
	Pitch    physics.Pitch
	BallBody physics.BodyConfig
	FixedDT  time.Duration
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Ball:     DefaultBallTuning(),
		Player:   DefaultPlayerTuning(),
		Pitch:    physics.DefaultPitch(),
		BallBody: physics.DefaultBallBody(),
		FixedDT:  FixedDT,
	}
}

// BallIndex answers proximity queries through the physics world.
type BallIndex struct {
	world  *physics.World
	byBody map[*physics.RigidBody]*Ball
}

func NewBallIndex(world *physics.World) *BallIndex {
	return &BallIndex{world: world, byBody: make(map[*physics.RigidBody]*Ball)}
}

func (x *BallIndex) Add(body *physics.RigidBody, b *Ball) {
	x.byBody[body] = b
}

func (x *BallIndex) NearestBall(pos mgl64.Vec3, radius float64) (*Ball, float64) {
	for _, h := range x.world.Within(pos, radius) {
		if b, ok := x.byBody[h.Body]; ok {
			return b, h.Distance
		}
	}
	return nil, 0
}

func (x *BallIndex) BallsWithin(pos mgl64.Vec3, radius float64) []*Ball {
	var out []*Ball
	for _, h := range x.world.Within(pos, radius) {
		if b, ok := x.byBody[h.Body]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Match is one simulation instance: a ball, its players and two clocks. A
// fixed-rate physics step and a variable-rate presentation frame both run
// on the caller's goroutine; Match is not safe for concurrent use.
type Match struct {
	ID string

	cfg     MatchConfig
	clock   SimClock
	world   *physics.World
	index   *BallIndex
	body    *physics.RigidBody
	ball    *Ball
	players map[string]*Player
	order   []string
	log     zerolog.Logger

	accum      time.Duration
	frame      uint32
	events     []Event
	lastHolder string
}

func NewMatch(id string, cfg MatchConfig, log zerolog.Logger) (*Match, error) {
	if cfg.FixedDT <= 0 {
		cfg.FixedDT = FixedDT
	}
	m := &Match{
		ID:      id,
		cfg:     cfg,
		world:   physics.NewWorld(cfg.Pitch),
		players: make(map[string]*Player),
		log:     log.With().Str("match", id).Logger(),
	}
	m.index = NewBallIndex(m.world)

	m.body = physics.NewRigidBody(cfg.BallBody, mgl64.Vec3{0, cfg.BallBody.Radius, 0})
	ball, err := NewBall(id+"_ball", m.body, &m.clock, cfg.Ball, m.log)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", id, err)
	}
	m.ball = ball
	m.world.Add(m.body)
	m.index.Add(m.body, ball)
	return m, nil
}

func (m *Match) Ball() *Ball                  { return m.ball }
func (m *Match) BallBody() *physics.RigidBody { return m.body }
func (m *Match) Clock() Clock                 { return &m.clock }
func (m *Match) Now() time.Duration           { return m.clock.Now() }
func (m *Match) Frame() uint32                { return m.frame }

func (m *Match) Player(id string) *Player { return m.players[id] }

func (m *Match) Players() []*Player {
	out := make([]*Player, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.players[id])
	}
	return out
}

// AddPlayer spawns a player. Re-adding an existing id returns the existing
// player.
func (m *Match) AddPlayer(id, name string, spawn mgl64.Vec3, yaw float64) *Player {
	if p, ok := m.players[id]; ok {
		return p
	}
	p := NewPlayer(id, name, spawn, yaw, PlayerOptions{
		Tuning:    m.cfg.Player,
		Clock:     &m.clock,
		Balls:     m.index,
		Presenter: m,
		Pitch:     &m.world.Pitch,
		Logger:    m.log,
	})
	m.players[id] = p
	m.order = append(m.order, id)
	m.log.Info().Str("player", id).Str("name", name).Msg("player joined")
	return p
}

// RemovePlayer destroys a player; its pending actions never fire.
func (m *Match) RemovePlayer(id string) {
	p, ok := m.players[id]
	if !ok {
		return
	}
	p.Close()
	delete(m.players, id)
	m.order = slices.DeleteFunc(m.order, func(o string) bool { return o == id })
	m.log.Info().Str("player", id).Msg("player left")
}

// Advance runs every fixed step that fits into the accumulated time and
// then one presentation frame.
func (m *Match) Advance(frameDT time.Duration, inputs map[string]Input) {
	m.accum += frameDT
	for m.accum >= m.cfg.FixedDT {
		m.FixedStep(m.cfg.FixedDT)
		m.accum -= m.cfg.FixedDT
	}
	m.RunFrame(frameDT, inputs)
}

// FixedStep advances the clock by dt and steps continuations, the ball and
// the physics world in that order.
func (m *Match) FixedStep(dt time.Duration) {
	m.clock.Advance(dt)
	for _, id := range m.order {
		m.players[id].Drain()
	}
	m.ball.FixedStep(dt)
	m.world.Step(dt.Seconds())
	m.notePossession()
}

// RunFrame processes one presentation frame for every player, then
// re-checks proximity so control reflects where everyone ended up.
func (m *Match) RunFrame(dt time.Duration, inputs map[string]Input) {
	m.frame++
	for _, id := range m.order {
		m.players[id].Frame(inputs[id], dt)
	}
	for _, id := range m.order {
		m.players[id].UpdateProximity()
	}
	m.notePossession()
}

func (m *Match) notePossession() {
	holder := ""
	if h := m.ball.Holder(); h != nil {
		holder = h.ID()
	}
	if holder == m.lastHolder {
		return
	}
	m.lastHolder = holder
	m.events = append(m.events, Event{Type: EventPossession, PlayerID: holder, Tick: m.frame})
}

func (m *Match) KickTriggered(playerID string, kind ActionKind) {
	m.events = append(m.events, Event{Type: EventKick, PlayerID: playerID, Action: kind.String(), Tick: m.frame})
}

func (m *Match) SkillMoveTriggered(playerID string, index int) {
	m.events = append(m.events, Event{Type: EventSkillMove, PlayerID: playerID, Skill: index + 1, Tick: m.frame})
}

func (m *Match) TackleTriggered(playerID string, won bool) {
	action := "missed"
	if won {
		action = "won"
	}
	m.events = append(m.events, Event{Type: EventTackle, PlayerID: playerID, Action: action, Tick: m.frame})
}

// DrainEvents returns and clears the buffered presentation events.
func (m *Match) DrainEvents() []Event {
	ev := m.events
	m.events = nil
	return ev
}

// Snapshot builds the replicated state and drains pending events into it.
func (m *Match) Snapshot() GameState {
	s := GameState{
		Tick:    m.frame,
		Players: make([]PlayerState, 0, len(m.order)),
		Ball:    m.ball.State(),
		Events:  m.DrainEvents(),
	}
	for _, id := range m.order {
		s.Players = append(s.Players, m.players[id].State())
	}
	return s
}

// Close stops every pending continuation.
func (m *Match) Close() {
	for _, id := range m.order {
		m.players[id].Close()
	}
	m.ball.Close()
}

// checkPossession verifies the cross-entity possession invariants.
func (m *Match) checkPossession() error {
	b := m.ball
	if b.IsPossessed() && b.Holder() == nil {
		return fmt.Errorf("possessed ball without holder")
	}
	if b.IsLoose() && b.IsPossessed() {
		return fmt.Errorf("loose ball is possessed")
	}
	controllers := 0
	for _, id := range m.order {
		p := m.players[id]
		if !p.HasBallControl() {
			continue
		}
		controllers++
		if !b.HeldBy(p) {
			return fmt.Errorf("player %s has control but is not the holder", id)
		}
		if d := p.Position().Sub(b.Position()).Len(); d >= m.cfg.Player.DribbleRange {
			return fmt.Errorf("player %s has control %.2f from the ball", id, d)
		}
	}
	if controllers > 1 {
		return fmt.Errorf("%d players report ball control", controllers)
	}
	return nil
}
