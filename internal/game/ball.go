package game

import (
	"errors"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/vladimirvolkov/soccer/server/internal/physics"
)

// ErrNoRigidBody is returned when a ball is built without a physics body.
var ErrNoRigidBody = errors.New("ball has no rigid body")

// Holder is anything that can dribble the ball.
type Holder interface {
	ID() string
	Position() mgl64.Vec3
	Forward() mgl64.Vec3
	Right() mgl64.Vec3
}

// BallPhase is the possession state derived from the ball's fields.
type BallPhase uint8

const (
	BallFree BallPhase = iota
	BallPossessed
	BallLoose    // unpossessed, repossession blocked until the loose timer expires
	BallInFlight // skill move: magnet suspended, holder kept
)

func (p BallPhase) String() string {
	switch p {
	case BallPossessed:
		return "possessed"
	case BallLoose:
		return "loose"
	case BallInFlight:
		return "in_flight"
	}
	return "free"
}

// Ball is the possession engine. It owns possession state and drives the
// physics body; all methods must be called from the match goroutine.
type Ball struct {
	id     string
	body   physics.Body
	tuning BallTuning
	clock  Clock
	queue  *Schedule
	log    zerolog.Logger

	possessed  bool
	holder     Holder
	strength   float64
	looseTimer time.Duration

	lastHolderPos mgl64.Vec3
	resume        Handle
}

func NewBall(id string, body physics.Body, clock Clock, tuning BallTuning, log zerolog.Logger) (*Ball, error) {
	if body == nil {
		return nil, ErrNoRigidBody
	}
	return &Ball{
		id:       id,
		body:     body,
		tuning:   tuning,
		clock:    clock,
		queue:    NewSchedule(clock),
		log:      log.With().Str("component", "ball").Str("ball", id).Logger(),
		strength: MaxPossessionStrength,
	}, nil
}

func (b *Ball) ID() string                  { return b.id }
func (b *Ball) Body() physics.Body          { return b.body }
func (b *Ball) Position() mgl64.Vec3        { return b.body.Position() }
func (b *Ball) Velocity() mgl64.Vec3        { return b.body.Velocity() }
func (b *Ball) IsPossessed() bool           { return b.possessed }
func (b *Ball) Holder() Holder              { return b.holder }
func (b *Ball) PossessionStrength() float64 { return b.strength }
func (b *Ball) LooseTimer() time.Duration   { return b.looseTimer }
func (b *Ball) IsLoose() bool               { return b.looseTimer > 0 }

// HeldBy reports whether h is the current holder, possessed or in flight.
func (b *Ball) HeldBy(h Holder) bool {
	return h != nil && b.holder == h
}

func (b *Ball) Phase() BallPhase {
	switch {
	case b.possessed:
		return BallPossessed
	case b.holder != nil:
		return BallInFlight
	case b.looseTimer > 0:
		return BallLoose
	}
	return BallFree
}

// StartDribbling hands possession to player unless the ball is loose and
// player is not the retained holder. It reports whether player now holds it.
func (b *Ball) StartDribbling(player Holder) bool {
	if player == nil {
		return false
	}
	if b.looseTimer > 0 && b.holder != player {
		return false
	}
	prev := b.holder
	b.cancelResume()
	b.possessed = true
	b.holder = player
	b.strength = MaxPossessionStrength
	b.lastHolderPos = player.Position()
	b.looseTimer = 0
	if prev != player {
		ev := b.log.Debug().Str("holder", player.ID())
		if prev != nil {
			ev = ev.Str("intercepted_from", prev.ID())
		}
		ev.Msg("possession taken")
	}
	return true
}

// StopDribbling releases the ball and opens the standard loose window.
func (b *Ball) StopDribbling() {
	if b.holder != nil {
		b.log.Debug().Str("holder", b.holder.ID()).Msg("possession released")
	}
	b.cancelResume()
	b.possessed = false
	b.holder = nil
	b.strength = MaxPossessionStrength
	b.looseTimer = b.tuning.ReleaseWindow
}

// TryTackle drains possession strength. When it reaches zero the holder
// loses the ball, which is knocked away from the tackler.
func (b *Ball) TryTackle(tackler Holder, strength float64) bool {
	if !b.possessed || b.holder == nil || tackler == nil || b.holder == tackler {
		return false
	}
	b.strength -= strength
	if b.strength > 0 {
		b.log.Debug().Str("tackler", tackler.ID()).Float64("strength", b.strength).Msg("tackle absorbed")
		return false
	}

	loser := b.holder.ID()
	b.StopDribbling()

	away := b.body.Position().Sub(tackler.Position())
	away[1] = 0
	away = physics.Normalize(away)
	away[1] = b.tuning.KnockbackLift
	b.body.SetVelocity(physics.Normalize(away).Mul(b.tuning.KnockbackSpeed))

	b.looseTimer = b.tuning.TackleWindow
	b.log.Debug().Str("tackler", tackler.ID()).Str("loser", loser).Msg("tackle won")
	return true
}

// Kick ends possession and launches the ball along direction.
func (b *Ball) Kick(direction mgl64.Vec3, power float64, applyLoft bool) {
	b.StopDribbling()
	if applyLoft {
		direction[1] = math.Max(direction[1], b.tuning.LoftMin)
	}
	b.body.SetVelocity(mgl64.Vec3{})
	b.body.AddImpulse(physics.Normalize(direction).Mul(power))

	spin := direction.Cross(physics.Up).Mul(power * b.tuning.KickSpin)
	b.body.AddTorqueImpulse(spin)
}

// Pass ends possession and sends the ball low along direction.
func (b *Ball) Pass(direction mgl64.Vec3, power float64) {
	b.StopDribbling()
	b.body.SetVelocity(mgl64.Vec3{})
	direction[1] = b.tuning.PassLift
	b.body.AddImpulse(physics.Normalize(direction).Mul(power))
}

// PerformSkillMove pushes a possessed ball away while the holder keeps its
// claim. Possession resumes after SkillResumeDelay if the holder is still set.
func (b *Ball) PerformSkillMove(direction mgl64.Vec3, power float64) bool {
	if !b.possessed {
		return false
	}
	b.possessed = false
	b.body.SetVelocity(direction.Mul(power))

	b.cancelResume()
	b.resume = b.queue.After(b.tuning.SkillResumeDelay, b.resumeAfterSkill)
	return true
}

func (b *Ball) resumeAfterSkill() {
	b.resume = 0
	if b.holder == nil || b.possessed {
		return
	}
	b.possessed = true
	b.lastHolderPos = b.holder.Position()
}

func (b *Ball) cancelResume() {
	if b.resume != 0 {
		b.queue.Cancel(b.resume)
		b.resume = 0
	}
}

// FixedStep advances the ball's own state by one physics tick. It runs
// before the physics world integrates.
func (b *Ball) FixedStep(dt time.Duration) {
	b.queue.Drain()

	sec := dt.Seconds()
	if sec <= 0 {
		return
	}

	v := b.body.Velocity()
	if v.Len() > b.tuning.MaxSpeed {
		v = physics.Normalize(v).Mul(b.tuning.MaxSpeed)
		b.body.SetVelocity(v)
	}

	if b.body.Position().Y() <= b.tuning.FrictionHeight && v.Len() > b.tuning.FrictionMinSpeed && !b.possessed {
		b.body.SetVelocity(v.Mul(1 - b.tuning.Drag*sec))
	}

	if b.possessed && b.holder != nil {
		b.applyMagnet(sec)
		b.strength = math.Min(MaxPossessionStrength, b.strength+b.tuning.PossessionRecovery*sec)
	}

	if b.looseTimer > 0 {
		b.looseTimer -= dt
		if b.looseTimer < 0 {
			b.looseTimer = 0
		}
	}
}

func (b *Ball) applyMagnet(sec float64) {
	t := b.tuning
	hp := b.holder.Position()
	holderVel := hp.Sub(b.lastHolderPos).Mul(1 / sec)
	b.lastHolderPos = hp

	sway := math.Sin(b.clock.Now().Seconds()*t.SwayFrequency) * t.DribbleSideOffset
	target := hp.Add(b.holder.Forward().Mul(t.DribbleDistance)).Add(b.holder.Right().Mul(sway))
	target[1] = t.DribbleHeight

	toTarget := target.Sub(b.body.Position())
	dist := toTarget.Len()

	var v mgl64.Vec3
	if dist > t.SnapDistance {
		pull := physics.Normalize(toTarget).Mul(dist * t.MagnetStrength)
		cur := b.body.Velocity()
		v = cur.Add(pull.Sub(cur).Mul(t.MagnetBlend))
		v = v.Add(holderVel.Mul(t.CarryFactor))
	} else {
		v = holderVel.Mul(t.SnapCarryFactor)
	}
	b.body.SetVelocity(v)

	if v.Len() > t.RollSpinSpeed {
		b.body.AddTorque(physics.Up.Cross(v).Mul(t.RollTorque))
	}
}

// Close drops pending continuations.
func (b *Ball) Close() {
	b.queue.Clear()
	b.resume = 0
}

// State returns the replicated view of the ball.
func (b *Ball) State() BallState {
	pos, vel := b.body.Position(), b.body.Velocity()
	s := BallState{
		X:         float32(pos.X()),
		Y:         float32(pos.Y()),
		Z:         float32(pos.Z()),
		VX:        float32(vel.X()),
		VY:        float32(vel.Y()),
		VZ:        float32(vel.Z()),
		Phase:     b.Phase().String(),
		Possessed: b.possessed,
		Strength:  float32(b.strength),
		LooseMS:   uint16(b.looseTimer / time.Millisecond),
	}
	if b.holder != nil {
		s.Holder = b.holder.ID()
	}
	return s
}
