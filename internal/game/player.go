package game

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/vladimirvolkov/soccer/server/internal/physics"
)

// ActionKind is a timed ball action.
type ActionKind uint8

const (
	ActionShoot ActionKind = iota
	ActionPowerShot
	ActionPass
	ActionChip
)

func (k ActionKind) String() string {
	switch k {
	case ActionShoot:
		return "shoot"
	case ActionPowerShot:
		return "power_shot"
	case ActionPass:
		return "pass"
	case ActionChip:
		return "chip"
	}
	return "unknown"
}

// SkillMoveCount is the number of skill move presets.
const SkillMoveCount = 4

// BallLocator resolves which balls are near a point.
type BallLocator interface {
	NearestBall(pos mgl64.Vec3, radius float64) (*Ball, float64)
	BallsWithin(pos mgl64.Vec3, radius float64) []*Ball
}

// Presenter receives fire-and-forget visual triggers.
type Presenter interface {
	KickTriggered(playerID string, kind ActionKind)
	SkillMoveTriggered(playerID string, index int)
	TackleTriggered(playerID string, won bool)
}

type nopPresenter struct{}

func (nopPresenter) KickTriggered(string, ActionKind) {}
func (nopPresenter) SkillMoveTriggered(string, int) {}
func (nopPresenter) TackleTriggered(string, bool) {}

// never is the timestamp of an action that has not happened yet.
const never = time.Duration(math.MinInt64 / 2)

// Player is the per-player action controller. It serializes timed actions
// against the shared ball and owns its cooldowns.
type Player struct {
	id     string
	name   string
	tuning PlayerTuning
	clock  Clock
	queue  *Schedule
	balls  BallLocator
	pres   Presenter
	pitch  *physics.Pitch
	log    zerolog.Logger

	pos     mgl64.Vec3
	facing  mgl64.Quat
	moveDir mgl64.Vec3

	ball           *Ball
	hasBallControl bool
	performing     bool

	lastSkillMove time.Duration
	lastTackle    time.Duration
}

// PlayerOptions carries a player's collaborators.
type PlayerOptions struct {
	Tuning    PlayerTuning
	Clock     Clock
	Balls     BallLocator
	Presenter Presenter
	Pitch     *physics.Pitch // optional movement bounds
	Logger    zerolog.Logger
}

func NewPlayer(id, name string, spawn mgl64.Vec3, yaw float64, opts PlayerOptions) *Player {
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	spawn[1] = opts.Tuning.Height
	return &Player{
		id:            id,
		name:          name,
		tuning:        opts.Tuning,
		clock:         opts.Clock,
		queue:         NewSchedule(opts.Clock),
		balls:         opts.Balls,
		pres:          opts.Presenter,
		pitch:         opts.Pitch,
		log:           opts.Logger.With().Str("component", "player").Str("player", id).Logger(),
		pos:           spawn,
		facing:        mgl64.QuatRotate(yaw, physics.Up),
		lastSkillMove: never,
		lastTackle:    never,
	}
}

func (p *Player) ID() string               { return p.id }
func (p *Player) Name() string             { return p.name }
func (p *Player) Position() mgl64.Vec3     { return p.pos }
func (p *Player) Forward() mgl64.Vec3      { return p.facing.Rotate(mgl64.Vec3{0, 0, 1}) }
func (p *Player) Right() mgl64.Vec3        { return p.facing.Rotate(mgl64.Vec3{1, 0, 0}) }
func (p *Player) IsPerformingAction() bool { return p.performing }
func (p *Player) Ball() *Ball              { return p.ball }

// HasBallControl reports whether the player is dribbling. A tackle by
// someone else clears it immediately, before this player's next frame.
func (p *Player) HasBallControl() bool {
	return p.hasBallControl && p.ball != nil && p.ball.HeldBy(p)
}

// Yaw is the heading in radians, 0 facing +z.
func (p *Player) Yaw() float64 {
	f := p.Forward()
	return math.Atan2(f.X(), f.Z())
}

// SetPosition places the player, keeping its standing height.
func (p *Player) SetPosition(pos mgl64.Vec3) {
	pos[1] = p.tuning.Height
	p.pos = pos
}

// SetYaw turns the player instantly.
func (p *Player) SetYaw(yaw float64) {
	p.facing = mgl64.QuatRotate(yaw, physics.Up)
}

// Frame processes one presentation frame of input. While a timed action is
// in flight all input is suppressed.
func (p *Player) Frame(in Input, dt time.Duration) {
	if p.performing {
		return
	}

	p.UpdateProximity()
	p.move(in, dt)

	switch {
	case in.Shoot:
		p.IssueAction(ActionShoot)
	case in.PowerShot:
		p.IssueAction(ActionPowerShot)
	case in.Pass:
		p.IssueAction(ActionPass)
	case in.Chip:
		p.IssueAction(ActionChip)
	case in.Release:
		p.IssueRelease()
	}
	if p.performing {
		return
	}

	if in.Skill >= 1 && in.Skill <= SkillMoveCount {
		p.IssueSkillMove(int(in.Skill) - 1)
	}
	if in.Tackle {
		p.IssueTackle()
	}
}

// Drain fires the player's due continuations. The match calls it every
// fixed step.
func (p *Player) Drain() {
	p.queue.Drain()
}

// UpdateProximity re-evaluates which ball is in range and whether this
// player controls it.
func (p *Player) UpdateProximity() {
	if p.balls == nil {
		return
	}
	prev := p.ball
	nearest, dist := p.balls.NearestBall(p.pos, p.tuning.DetectionRange)

	if nearest == nil {
		p.hasBallControl = false
		p.ball = nil
		if prev != nil && prev.HeldBy(p) {
			p.log.Debug().Msg("ball lost from detection range")
			prev.StopDribbling()
		}
		return
	}
	p.ball = nearest

	inRange := dist < p.tuning.DribbleRange
	switch {
	case nearest.HeldBy(p):
		// an own skill move in range keeps flying until the ball resumes
		if inRange {
			p.hasBallControl = true
			return
		}
		p.log.Debug().Float64("distance", dist).Msg("ball out of dribble range")
		nearest.StopDribbling()
		p.hasBallControl = false
	case inRange && !nearest.IsPossessed():
		p.hasBallControl = p.startDribbling(nearest)
	default:
		p.hasBallControl = false
	}
}

func (p *Player) startDribbling(b *Ball) bool {
	if b.IsLoose() {
		return false
	}
	return b.StartDribbling(p)
}

func (p *Player) move(in Input, dt time.Duration) {
	sec := dt.Seconds()
	dir := mgl64.Vec3{clampAxis(in.MoveX), 0, clampAxis(in.MoveZ)}
	p.moveDir = physics.Normalize(dir)

	speed := p.tuning.WalkSpeed
	switch {
	case p.HasBallControl():
		speed = p.tuning.DribbleSpeed
	case in.Sprint:
		speed = p.tuning.RunSpeed
	}

	pos := p.pos.Add(p.moveDir.Mul(speed * sec))
	if p.pitch != nil {
		pos = p.pitch.Clamp(pos, 0.5)
	}
	p.SetPosition(pos)

	if p.moveDir.Len() > 0.1 {
		target := mgl64.QuatRotate(math.Atan2(p.moveDir.X(), p.moveDir.Z()), physics.Up)
		if p.facing.Dot(target) < 0 {
			target = target.Scale(-1)
		}
		t := mgl64.Clamp(p.tuning.RotationSpeed*sec, 0, 1)
		p.facing = mgl64.QuatSlerp(p.facing, target, t).Normalize()
	}
}

// IssueAction starts a timed shoot, power shot, pass or chip. It is ignored
// while another action is in flight or without ball control.
func (p *Player) IssueAction(kind ActionKind) bool {
	if p.performing || !p.HasBallControl() {
		return false
	}

	var delay time.Duration
	switch kind {
	case ActionShoot, ActionPowerShot:
		delay = p.tuning.KickDelay
	case ActionPass:
		delay = p.tuning.PassDelay
	case ActionChip:
		delay = p.tuning.ChipDelay
	default:
		return false
	}

	p.performing = true
	p.pres.KickTriggered(p.id, kind)

	ball := p.ball
	p.queue.After(delay, func() { p.executeAction(kind, ball) })
	p.queue.After(delay+p.tuning.ActionRecovery, p.endAction)
	return true
}

func (p *Player) executeAction(kind ActionKind, b *Ball) {
	if b == nil || !b.HeldBy(p) {
		p.log.Debug().Stringer("action", kind).Msg("ball gone before contact")
		p.hasBallControl = false
		return
	}

	dir := p.Forward()
	switch kind {
	case ActionShoot:
		dir[1] = p.tuning.ShootLift
		b.Kick(dir, p.tuning.KickPower, false)
	case ActionPowerShot:
		dir[1] = p.tuning.PowerShotLift
		b.Kick(dir, p.tuning.StrongKickPower, false)
	case ActionPass:
		b.Pass(dir, p.tuning.PassPower)
	case ActionChip:
		dir[1] = p.tuning.ChipLift
		b.Kick(dir, p.tuning.ChipPower, true)
	}
	p.hasBallControl = false
	p.log.Debug().Stringer("action", kind).Msg("ball struck")
}

func (p *Player) endAction() {
	p.performing = false
}

// IssueRelease lets go of the ball voluntarily.
func (p *Player) IssueRelease() {
	if !p.HasBallControl() {
		return
	}
	p.ball.StopDribbling()
	p.hasBallControl = false
}

// IssueSkillMove pushes the ball along one of the four presets: right,
// left, forward, backward. The cooldown is stamped whether or not the ball
// accepted the move.
func (p *Player) IssueSkillMove(index int) bool {
	if !p.HasBallControl() {
		return false
	}
	now := p.clock.Now()
	if now-p.lastSkillMove < p.tuning.SkillMoveCooldown {
		return false
	}

	var dir mgl64.Vec3
	switch index {
	case 0:
		dir = p.Right()
	case 1:
		dir = p.Right().Mul(-1)
	case 2:
		dir = p.Forward().Mul(p.tuning.SkillForwardScale)
	case 3:
		dir = p.Forward().Mul(-p.tuning.SkillBackwardScale)
	default:
		return false
	}
	dir[1] = 0

	ok := p.ball.PerformSkillMove(dir, p.tuning.SkillMoveSpeed)
	p.pres.SkillMoveTriggered(p.id, index)
	p.lastSkillMove = now
	p.log.Debug().Int("skill", index+1).Bool("accepted", ok).Msg("skill move")
	return ok
}

// IssueTackle attempts to strip the first ball in tackle range held by
// another player. A won tackle frees the ball; the tackler re-checks
// proximity after PickupRetryDelay.
func (p *Player) IssueTackle() bool {
	now := p.clock.Now()
	if now-p.lastTackle < p.tuning.TackleCooldown || p.balls == nil {
		return false
	}
	for _, b := range p.balls.BallsWithin(p.pos, p.tuning.TackleRange) {
		if !b.IsPossessed() || b.HeldBy(p) {
			continue
		}
		won := b.TryTackle(p, p.tuning.TackleStrength)
		p.lastTackle = now
		p.pres.TackleTriggered(p.id, won)
		if won {
			p.queue.After(p.tuning.PickupRetryDelay, p.UpdateProximity)
		}
		return won
	}
	return false
}

// Close cancels pending continuations and lets go of a held ball.
func (p *Player) Close() {
	p.queue.Clear()
	p.performing = false
	if p.ball != nil && p.ball.HeldBy(p) {
		p.ball.StopDribbling()
	}
	p.ball = nil
	p.hasBallControl = false
}

// State returns the replicated view of the player.
func (p *Player) State() PlayerState {
	anim := AnimIdle
	switch {
	case p.performing:
		anim = AnimKick
	case p.HasBallControl() && p.moveDir.Len() > 0:
		anim = AnimDribble
	case p.moveDir.Len() > 0:
		anim = AnimRun
	}
	return PlayerState{
		ID:         p.id,
		Name:       p.name,
		X:          float32(p.pos.X()),
		Y:          float32(p.pos.Y()),
		Z:          float32(p.pos.Z()),
		Yaw:        float32(p.Yaw()),
		HasBall:    p.HasBallControl(),
		Performing: p.performing,
		Anim:       anim,
	}
}
